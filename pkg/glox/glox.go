// Package glox ties the lexer, compiler, and vm packages into the
// driver-level operations cmd/glox exposes: running a file, a REPL, and
// disassembly. It exists to avoid an import cycle: pkg/compiler already
// imports pkg/vm for its types, so the orchestration that calls
// compiler.Compile and then vm.Run must live above both, not inside vm.
package glox

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/kristofer/glox/pkg/compiler"
	"github.com/kristofer/glox/pkg/vm"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Version is the driver's reported version string.
const Version = "0.1.0"

// Options configures a VM constructed by this package's entry points.
type Options struct {
	Trace    bool
	GCStress bool
}

func newVM(opts Options) *vm.VM {
	if opts.GCStress {
		os.Setenv("GLOX_GC_STRESS", "1")
	}
	log.Debug("vm: start")
	v := vm.New()
	v.Trace = opts.Trace
	return v
}

// Interpret compiles source and runs it against v, the glue for the
// compile-then-run half of spec.md §6's `interpret` entry point.
func Interpret(v *vm.VM, source string) vm.InterpretResult {
	function := compiler.Compile(v, source)
	if function == nil {
		return vm.InterpretCompileError
	}
	return v.Run(function)
}

// exitCode maps an InterpretResult to the driver exit codes spec.md §6
// mandates: 0 success, 65 compile error, 70 runtime error.
func exitCode(result vm.InterpretResult) int {
	switch result {
	case vm.InterpretOK:
		return 0
	case vm.InterpretCompileError:
		return 65
	case vm.InterpretRuntimeError:
		return 70
	default:
		return 1
	}
}

// RunFile reads, compiles, and runs a glox source file. The returned int
// is the process exit code to use; err is non-nil only for driver-level
// I/O failures (wrapped with github.com/pkg/errors so --verbose can print
// a cause chain), never for compile or runtime errors, which already
// wrote their own message to stderr per spec.md §6/§7.
func RunFile(path string, opts Options) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 1, errors.Wrapf(err, "reading %s", path)
	}

	v := newVM(opts)
	result := Interpret(v, string(data))
	return exitCode(result), nil
}

// DisassembleFile compiles a glox source file and prints its disassembled
// bytecode. Per spec.md §6 ("No file format is specified — bytecode is
// not persisted"), this always compiles in memory; there is nothing to
// load from a serialized bytecode file.
func DisassembleFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	v := vm.New()
	function := compiler.Compile(v, string(data))
	if function == nil {
		return errors.New("compilation failed")
	}

	vm.Disassemble(os.Stdout, function.Chunk, path)
	return nil
}

// REPL runs an interactive read-eval-print loop against a single
// persistent VM, matching the teacher's runREPL/evalREPL shape and
// clox's line-buffered REPL: it compiles and runs one line at a time and
// does not exit on a compile or runtime error (SPEC_FULL.md §C.1).
func REPL(opts Options) {
	v := newVM(opts)
	prompt := color.New(color.FgGreen, color.Bold)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		prompt.Fprint(os.Stdout, "glox> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		Interpret(v, line)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "reading stdin"))
	}
}
