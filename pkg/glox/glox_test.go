package glox

import (
	"bytes"
	"testing"

	"github.com/kristofer/glox/pkg/vm"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, source string) (string, string, vm.InterpretResult) {
	t.Helper()
	v := vm.New()
	var out, errOut bytes.Buffer
	v.Stdout = &out
	v.Stderr = &errOut
	result := Interpret(v, source)
	return out.String(), errOut.String(), result
}

func TestArithmeticPrecedence(t *testing.T) {
	out, _, result := run(t, `print 1 + 2 * 3;`)
	require.Equal(t, vm.InterpretOK, result)
	require.Equal(t, "7\n", out)
}

func TestStringConcatenationIsInterned(t *testing.T) {
	v := vm.New()
	var out bytes.Buffer
	v.Stdout = &out

	result := Interpret(v, `
		var a = "he";
		var b = "llo";
		print a + b;
		print (a + b == "hello");
	`)
	require.Equal(t, vm.InterpretOK, result)
	require.Equal(t, "hello\ntrue\n", out.String())
}

func TestClosureCapturesLocalByReference(t *testing.T) {
	out, _, result := run(t, `
		fun makeCounter() {
			var i = 0;
			fun c() {
				i = i + 1;
				return i;
			}
			return c;
		}
		var c = makeCounter();
		print c();
		print c();
		print c();
	`)
	require.Equal(t, vm.InterpretOK, result)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestClassInitAndMethodCall(t *testing.T) {
	out, _, result := run(t, `
		class A {
			init(x) {
				this.x = x;
			}
			get() {
				return this.x;
			}
		}
		print A(42).get();
	`)
	require.Equal(t, vm.InterpretOK, result)
	require.Equal(t, "42\n", out)
}

func TestSuperCallsParentMethod(t *testing.T) {
	out, _, result := run(t, `
		class A {
			f() {
				return "A";
			}
		}
		class B < A {
			f() {
				return "B" + super.f();
			}
		}
		print B().f();
	`)
	require.Equal(t, vm.InterpretOK, result)
	require.Equal(t, "BA\n", out)
}

func TestUninitializedVarIsNilAndUndefinedAssignIsRuntimeError(t *testing.T) {
	out, errOut, result := run(t, `
		var x;
		print x;
		y = 1;
	`)
	require.Equal(t, vm.InterpretRuntimeError, result)
	require.Equal(t, "nil\n", out)
	require.Contains(t, errOut, "Undefined variable 'y'.")
	require.Equal(t, 70, exitCode(result))
}

func TestCompileErrorExitCode(t *testing.T) {
	// Compile errors are reported by the compiler directly to os.Stderr
	// (spec.md §7's "[line N] Error at X: msg" form), not through the
	// VM's Stderr writer, so only the result/exit code are checked here.
	_, _, result := run(t, `print ;`)
	require.Equal(t, vm.InterpretCompileError, result)
	require.Equal(t, 65, exitCode(result))
}

func TestForLoopDesugarsToWhile(t *testing.T) {
	out, _, result := run(t, `
		var sum = 0;
		for (var i = 0; i < 5; i = i + 1) {
			sum = sum + i;
		}
		print sum;
	`)
	require.Equal(t, vm.InterpretOK, result)
	require.Equal(t, "10\n", out)
}
