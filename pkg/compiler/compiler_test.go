package compiler

import (
	"testing"

	"github.com/kristofer/glox/pkg/vm"
	"github.com/stretchr/testify/require"
)

func TestCompileArithmeticEmitsExpectedOps(t *testing.T) {
	v := vm.New()
	fn := Compile(v, `print 1 + 2 * 3;`)
	require.NotNil(t, fn)
	require.Contains(t, fn.Chunk.Code, byte(vm.OpAdd))
	require.Contains(t, fn.Chunk.Code, byte(vm.OpMultiply))
	require.Contains(t, fn.Chunk.Code, byte(vm.OpPrint))
}

func TestCompileFunctionDeclarationProducesClosureConstant(t *testing.T) {
	v := vm.New()
	fn := Compile(v, `
		fun add(a, b) {
			return a + b;
		}
	`)
	require.NotNil(t, fn)

	found := false
	for _, c := range fn.Chunk.Constants {
		if c.IsFunction() && c.AsFunction().Name != nil && c.AsFunction().Name.Chars == "add" {
			require.Equal(t, 2, c.AsFunction().Arity)
			found = true
		}
	}
	require.True(t, found, "expected a compiled constant for function add")
}

func TestCompileClassWithMethodsSucceeds(t *testing.T) {
	v := vm.New()
	fn := Compile(v, `
		class Greeter {
			init(name) {
				this.name = name;
			}
			greet() {
				return "hi " + this.name;
			}
		}
	`)
	require.NotNil(t, fn)
	require.Contains(t, fn.Chunk.Code, byte(vm.OpClass))
	require.Contains(t, fn.Chunk.Code, byte(vm.OpMethod))
}

func TestCompileSuperclassAndInheritance(t *testing.T) {
	v := vm.New()
	fn := Compile(v, `
		class A {}
		class B < A {}
	`)
	require.NotNil(t, fn)
	require.Contains(t, fn.Chunk.Code, byte(vm.OpInherit))
}

func TestCompileClosureCapturesEnclosingLocal(t *testing.T) {
	v := vm.New()
	fn := Compile(v, `
		fun outer() {
			var x = 1;
			fun inner() {
				return x;
			}
			return inner;
		}
	`)
	require.NotNil(t, fn)
	require.Contains(t, fn.Chunk.Code, byte(vm.OpClosure))
}

func TestCompileReturnAtTopLevelIsCompileError(t *testing.T) {
	v := vm.New()
	fn := Compile(v, `return;`)
	require.Nil(t, fn)
}

func TestCompileInvalidAssignmentTargetIsCompileError(t *testing.T) {
	v := vm.New()
	fn := Compile(v, `1 + 2 = 3;`)
	require.Nil(t, fn)
}

func TestCompileUseOfThisOutsideClassIsCompileError(t *testing.T) {
	v := vm.New()
	fn := Compile(v, `print this;`)
	require.Nil(t, fn)
}

func TestCompileUseOfSuperOutsideSubclassIsCompileError(t *testing.T) {
	v := vm.New()
	fn := Compile(v, `
		class A {
			f() {
				return super.f();
			}
		}
	`)
	require.Nil(t, fn)
}

func TestCompileForLoopDesugarsWithJumpsAndLoop(t *testing.T) {
	v := vm.New()
	fn := Compile(v, `
		for (var i = 0; i < 3; i = i + 1) {
			print i;
		}
	`)
	require.NotNil(t, fn)
	require.Contains(t, fn.Chunk.Code, byte(vm.OpLoop))
	require.Contains(t, fn.Chunk.Code, byte(vm.OpJumpIfFalse))
}
