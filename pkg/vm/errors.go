package vm

import "fmt"

// StackFrame is a snapshot of one active call frame at the moment a
// runtime error was reported: enough to reproduce the "[line L] in NAME()"
// line runtimeError writes to the error sink (spec.md §6).
type StackFrame struct {
	Name string // function name, or "script" for the top-level frame
	Line int
}

// RuntimeError is the Go-facing counterpart of a runtime error reported by
// the dispatch loop: the same message and frame list that runtimeError
// writes to vm.Stderr, captured so embedders (the REPL, tests) can inspect
// it programmatically instead of scraping stderr text.
type RuntimeError struct {
	Message string
	Frames  []StackFrame
}

func (e *RuntimeError) Error() string {
	s := e.Message
	for _, f := range e.Frames {
		s += fmt.Sprintf("\n[line %d] in %s()", f.Line, f.Name)
	}
	return s
}

// LastError returns the RuntimeError captured by the most recent failing
// runtimeError call, or nil if the VM hasn't failed (or has been reset).
func (vm *VM) LastError() *RuntimeError {
	return vm.lastError
}

// captureError builds the RuntimeError value that LastError will return,
// from the same frame walk runtimeError performs for the text it writes
// to Stderr.
func (vm *VM) captureError(message string) *RuntimeError {
	re := &RuntimeError{Message: message}
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		function := frame.closure.Function
		line := int(function.Chunk.Lines[frame.ip-1])
		name := "script"
		if function.Name != nil {
			name = function.Name.Chars
		}
		re.Frames = append(re.Frames, StackFrame{Name: name, Line: line})
	}
	return re
}
