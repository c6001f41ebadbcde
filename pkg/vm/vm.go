// Package vm implements the bytecode virtual machine for glox.
//
// The VM is a stack-based interpreter that executes bytecode instructions.
// It's the final stage in the execution pipeline:
//
//	Source Code -> Lexer -> Compiler -> Chunk -> VM -> Execution
//
// vm.go holds the VM state, the call protocol (call/callValue/invoke/
// bindMethod), upvalue capture, and the opcode dispatch loop in Run. Its
// structure follows clox's vm.c closely: the same STORE_FRAME/LOAD_FRAME
// discipline around any call that can re-enter the loop, the same
// per-opcode error wording, the same reset-stack-on-error recovery.
//
// Compiling source into a callable ObjFunction lives one layer up, in
// package compiler, to avoid an import cycle (compiler needs vm's types;
// vm must not need compiler's). See glox.Interpret for the glue.
package vm

import (
	"fmt"
	"io"
	"os"
	"time"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// processStart is the reference point for clock(): it is taken once, when
// the package is initialized at process start-up.
var processStart = time.Now()

// CallFrame is one activation record: the closure being executed, the
// instruction pointer into its chunk, and the base stack index its locals
// start at. slotBase replaces clox's raw `Value *slots` with an index into
// vm.stack, per spec.md §9's guidance for a memory-safe rewrite.
type CallFrame struct {
	closure  *ObjClosure
	ip       int
	slotBase int
}

// InterpretResult mirrors clox's InterpretResult / spec.md §6's
// {Ok, CompileError, RuntimeError} contract.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// VM is a single, self-contained interpreter instance. Nothing about it is
// global: callers that want isolated interpreters (e.g. tests running in
// parallel) construct one VM each via New.
type VM struct {
	stack      [stackMax]Value
	stackTop   int
	frames     [framesMax]CallFrame
	frameCount int

	globals      *Table
	strings      *Table // the string interner
	initString   *ObjString
	openUpvalues *ObjUpvalue

	gc            gc
	compilerRoots []*ObjFunction // functions pinned mid-compilation, see PinFunction

	Stdout io.Writer
	Stderr io.Writer

	Trace bool // --trace / GLOX_TRACE: print stack + instruction before each step

	startTime time.Time
	lastError *RuntimeError
}

// New constructs a ready-to-use VM with its globals and string interner
// initialized and "clock" defined, the way clox's init_vm does.
func New() *VM {
	vm := &VM{
		globals:   NewTable(),
		strings:   NewTable(),
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		startTime: processStart,
	}
	vm.gc = *newGC()
	vm.initString = vm.internString("init")
	vm.defineNative("clock", vm.clockNative)
	return vm
}

// clockNative returns wall-clock seconds elapsed since the process started,
// per spec.md §6 (the Go stand-in for C's process-relative clock()).
func (vm *VM) clockNative(args []Value) Value {
	return NumberValue(time.Since(vm.startTime).Seconds())
}

// resetStack discards every in-flight call and open upvalue, the way
// clox's reset_stack does after an unrecoverable runtime error.
func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

// runtimeError reports a formatted error plus a full stack trace to
// vm.Stderr, then resets the stack. The message text and per-frame
// "[line L] in NAME()" format match clox's runtime_error exactly
// (spec.md §6, §7).
func (vm *VM) runtimeError(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	vm.lastError = vm.captureError(message)

	fmt.Fprint(vm.Stderr, message)
	fmt.Fprint(vm.Stderr, "\n")

	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		function := frame.closure.Function
		instruction := frame.ip - 1
		line := int(function.Chunk.Lines[instruction])
		if function.Name == nil {
			fmt.Fprintf(vm.Stderr, "[line %d] in script\n", line)
		} else {
			fmt.Fprintf(vm.Stderr, "[line %d] in %s()\n", line, function.Name.Chars)
		}
	}

	vm.resetStack()
}

// defineNative installs a native function under name in globals. The
// push/pop-around-table-set dance matches clox's define_native: it keeps
// the name and function reachable as GC roots (they live on the stack)
// while the table insert itself may trigger an allocation.
func (vm *VM) defineNative(name string, fn NativeFn) {
	vm.push(ObjValue(vm.internString(name)))
	vm.push(ObjValue(vm.newNative(name, fn)))
	vm.globals.Set(vm.stack[0].AsString(), vm.stack[1])
	vm.pop()
	vm.pop()
}

// PinFunction keeps fn reachable as a GC root while the compiler is still
// building it (and hence not yet referenced by any chunk's constant pool).
// The compiler calls UnpinFunction in endCompiler, just before it adds the
// finished function to the enclosing chunk's constant pool.
func (vm *VM) PinFunction(fn *ObjFunction) {
	vm.compilerRoots = append(vm.compilerRoots, fn)
}

// UnpinFunction reverses the most recent PinFunction for fn.
func (vm *VM) UnpinFunction(fn *ObjFunction) {
	for i := len(vm.compilerRoots) - 1; i >= 0; i-- {
		if vm.compilerRoots[i] == fn {
			vm.compilerRoots = append(vm.compilerRoots[:i], vm.compilerRoots[i+1:]...)
			return
		}
	}
}

// call pushes a new CallFrame for closure, checking arity and recursion
// depth first. The caller's STORE_FRAME must already have happened.
func (vm *VM) call(closure *ObjClosure, argCount int) bool {
	if argCount != closure.Function.Arity {
		vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
		return false
	}
	if vm.frameCount == framesMax {
		vm.runtimeError("Stack overflow.")
		return false
	}

	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.slotBase = vm.stackTop - argCount - 1
	return true
}

// callValue dispatches a call to whatever callee is: a bound method, a
// class (constructing an instance and optionally running its init), a
// closure, or a native function. Anything else is a call error.
func (vm *VM) callValue(callee Value, argCount int) bool {
	if callee.IsObj() {
		switch callee.Obj.objKind() {
		case KindBoundMethod:
			bound := callee.AsBoundMethod()
			vm.stack[vm.stackTop-argCount-1] = bound.Receiver
			return vm.call(bound.Method, argCount)
		case KindClass:
			class := callee.AsClass()
			vm.stack[vm.stackTop-argCount-1] = ObjValue(vm.newInstance(class))
			if initializer, ok := class.Methods.Get(vm.initString); ok {
				return vm.call(initializer.AsClosure(), argCount)
			} else if argCount != 0 {
				vm.runtimeError("Expected 0 arguments but got %d.", argCount)
				return false
			}
			return true
		case KindClosure:
			return vm.call(callee.AsClosure(), argCount)
		case KindNative:
			native := callee.AsNative()
			result := native.Fn(vm.stack[vm.stackTop-argCount : vm.stackTop])
			vm.stackTop -= argCount + 1
			vm.push(result)
			return true
		}
	}
	vm.runtimeError("Can only call functions and classes.")
	return false
}

func (vm *VM) invokeFromClass(class *ObjClass, name *ObjString, argCount int) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		vm.runtimeError("Undefined property '%s'.", name.Chars)
		return false
	}
	return vm.call(method.AsClosure(), argCount)
}

// invoke fast-paths a `.` call without first materializing a bound method:
// if the receiver has the name as a field (e.g. a stored closure), that
// field is called directly; otherwise the method is looked up on the class.
func (vm *VM) invoke(name *ObjString, argCount int) bool {
	receiver := vm.peek(argCount)
	if !receiver.IsInstance() {
		vm.runtimeError("Only instances have methods.")
		return false
	}
	instance := receiver.AsInstance()

	if value, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = value
		return vm.callValue(value, argCount)
	}

	return vm.invokeFromClass(instance.Class, name, argCount)
}

func (vm *VM) bindMethod(class *ObjClass, name *ObjString) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		vm.runtimeError("Undefined property '%s'.", name.Chars)
		return false
	}
	bound := vm.newBoundMethod(vm.peek(0), method.AsClosure())
	vm.pop()
	vm.push(ObjValue(bound))
	return true
}

// captureUpvalue finds or creates the ObjUpvalue for the stack slot at
// index, keeping the VM's open-upvalue list sorted by descending index so
// closeUpvalues can stop early (spec.md §4.6).
func (vm *VM) captureUpvalue(index int) *ObjUpvalue {
	var prev *ObjUpvalue
	uv := vm.openUpvalues
	for uv != nil && uv.location > index {
		prev = uv
		uv = uv.nextOpen
	}
	if uv != nil && uv.location == index {
		return uv
	}

	created := vm.newUpvalue(index)
	created.nextOpen = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.nextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue whose stack slot is at or above
// last, copying its value off the stack before the frame that owns that
// slot is torn down.
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.location >= last {
		uv := vm.openUpvalues
		uv.Closed = vm.stack[uv.location]
		uv.isOpen = false
		vm.openUpvalues = uv.nextOpen
	}
}

func (vm *VM) defineMethod(name *ObjString) {
	method := vm.peek(0)
	class := vm.peek(1).AsClass()
	class.Methods.Set(name, method)
	vm.pop()
}

// concatenate pops two string operands and pushes their interned
// concatenation (spec.md §4.7, OP_ADD).
func (vm *VM) concatenate() {
	b := vm.peek(0).AsString()
	a := vm.peek(1).AsString()
	result := vm.internString(a.Chars + b.Chars)
	vm.pop()
	vm.pop()
	vm.push(ObjValue(result))
}

// Run executes function as the top-level script: it wraps it in a closure,
// pushes the initial call frame, and drives the dispatch loop to
// completion. The compile step that produces function lives in package
// compiler; see glox.Interpret for how the two are wired together.
func (vm *VM) Run(function *ObjFunction) InterpretResult {
	vm.push(ObjValue(function))
	closure := vm.newClosure(function)
	vm.pop()
	vm.push(ObjValue(closure))
	vm.call(closure, 0)

	return vm.run()
}

// run is the dispatch loop. ip lives directly in the CallFrame rather than
// in a local copy, so there is nothing to store back before a call; every
// opcode handler that can push or pop a frame (call, invoke, super-invoke,
// return) reloads the local frame pointer afterwards, the role clox's
// STORE_FRAME/LOAD_FRAME macros play.
func (vm *VM) run() InterpretResult {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.closure.Function.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() uint16 {
		hi := frame.closure.Function.Chunk.Code[frame.ip]
		lo := frame.closure.Function.Chunk.Code[frame.ip+1]
		frame.ip += 2
		return uint16(hi)<<8 | uint16(lo)
	}
	readConstant := func() Value {
		return frame.closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *ObjString {
		return readConstant().AsString()
	}

	for {
		if vm.Trace {
			vm.traceStep(frame)
		}
		if vm.gc.shouldCollect() {
			vm.collect()
		}

		instruction := OpCode(readByte())
		switch instruction {
		case OpConstant:
			vm.push(readConstant())
		case OpNil:
			vm.push(NilValue)
		case OpTrue:
			vm.push(BoolValue(true))
		case OpFalse:
			vm.push(BoolValue(false))
		case OpPop:
			vm.pop()
		case OpGetLocal:
			slot := readByte()
			vm.push(vm.stack[frame.slotBase+int(slot)])
		case OpSetLocal:
			slot := readByte()
			vm.stack[frame.slotBase+int(slot)] = vm.peek(0)
		case OpGetGlobal:
			name := readString()
			value, ok := vm.globals.Get(name)
			if !ok {
				vm.runtimeError("Undefined variable '%s'.", name.Chars)
				return InterpretRuntimeError
			}
			vm.push(value)
		case OpDefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case OpSetGlobal:
			name := readString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				vm.runtimeError("Undefined variable '%s'.", name.Chars)
				return InterpretRuntimeError
			}
		case OpGetUpvalue:
			slot := readByte()
			uv := frame.closure.Upvalues[slot]
			if uv.isOpen {
				vm.push(vm.stack[uv.location])
			} else {
				vm.push(uv.Closed)
			}
		case OpSetUpvalue:
			slot := readByte()
			uv := frame.closure.Upvalues[slot]
			if uv.isOpen {
				vm.stack[uv.location] = vm.peek(0)
			} else {
				uv.Closed = vm.peek(0)
			}
		case OpGetProperty:
			if !vm.peek(0).IsInstance() {
				vm.runtimeError("Only instances have properties.")
				return InterpretRuntimeError
			}
			instance := vm.peek(0).AsInstance()
			name := readString()
			if value, ok := instance.Fields.Get(name); ok {
				vm.pop()
				vm.push(value)
				break
			}
			if !vm.bindMethod(instance.Class, name) {
				return InterpretRuntimeError
			}
		case OpSetProperty:
			if !vm.peek(1).IsInstance() {
				vm.runtimeError("Only instances have fields.")
				return InterpretRuntimeError
			}
			instance := vm.peek(1).AsInstance()
			instance.Fields.Set(readString(), vm.peek(0))
			value := vm.pop()
			vm.pop()
			vm.push(value)
		case OpGetSuper:
			name := readString()
			superclass := vm.pop().AsClass()
			if !vm.bindMethod(superclass, name) {
				return InterpretRuntimeError
			}
		case OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolValue(ValuesEqual(a, b)))
		case OpGreater:
			if !vm.binaryNumberOp(func(a, b float64) Value { return BoolValue(a > b) }) {
				return InterpretRuntimeError
			}
		case OpLess:
			if !vm.binaryNumberOp(func(a, b float64) Value { return BoolValue(a < b) }) {
				return InterpretRuntimeError
			}
		case OpAdd:
			switch {
			case vm.peek(0).IsString() && vm.peek(1).IsString():
				vm.concatenate()
			case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
				b := vm.pop().Number
				a := vm.pop().Number
				vm.push(NumberValue(a + b))
			default:
				vm.runtimeError("Operands must be two numbers of two strings.")
				return InterpretRuntimeError
			}
		case OpSubtract:
			if !vm.binaryNumberOp(func(a, b float64) Value { return NumberValue(a - b) }) {
				return InterpretRuntimeError
			}
		case OpMultiply:
			if !vm.binaryNumberOp(func(a, b float64) Value { return NumberValue(a * b) }) {
				return InterpretRuntimeError
			}
		case OpDivide:
			if !vm.binaryNumberOp(func(a, b float64) Value { return NumberValue(a / b) }) {
				return InterpretRuntimeError
			}
		case OpNot:
			vm.push(BoolValue(IsFalsey(vm.pop())))
		case OpNegate:
			if !vm.peek(0).IsNumber() {
				vm.runtimeError("Operand must be a number.")
				return InterpretRuntimeError
			}
			vm.push(NumberValue(-vm.pop().Number))
		case OpPrint:
			fmt.Fprintln(vm.Stdout, ToString(vm.pop()))
		case OpJump:
			offset := readShort()
			frame.ip += int(offset)
		case OpJumpIfFalse:
			offset := readShort()
			if IsFalsey(vm.peek(0)) {
				frame.ip += int(offset)
			}
		case OpLoop:
			offset := readShort()
			frame.ip -= int(offset)
		case OpCall:
			argCount := int(readByte())
			if !vm.callValue(vm.peek(argCount), argCount) {
				return InterpretRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]
		case OpInvoke:
			method := readString()
			argCount := int(readByte())
			if !vm.invoke(method, argCount) {
				return InterpretRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]
		case OpSuperInvoke:
			method := readString()
			argCount := int(readByte())
			superclass := vm.pop().AsClass()
			if !vm.invokeFromClass(superclass, method, argCount) {
				return InterpretRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]
		case OpClosure:
			function := readConstant().AsFunction()
			closure := vm.newClosure(function)
			vm.push(ObjValue(closure))
			for i := 0; i < closure.Function.UpvalueCount; i++ {
				isLocal := readByte()
				index := readByte()
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slotBase + int(index))
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
		case OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()
		case OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slotBase)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return InterpretOK
			}
			vm.stackTop = frame.slotBase
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]
		case OpClass:
			vm.push(ObjValue(vm.newClass(readString())))
		case OpInherit:
			superclass := vm.peek(1)
			if !superclass.IsClass() {
				vm.runtimeError("Superclass must be a class.")
				return InterpretRuntimeError
			}
			subclass := vm.peek(0).AsClass()
			superclass.AsClass().Methods.AddAll(subclass.Methods)
			vm.pop()
		case OpMethod:
			vm.defineMethod(readString())
		default:
			vm.runtimeError("Unknown opcode %d.", instruction)
			return InterpretRuntimeError
		}
	}
}

// binaryNumberOp implements the BINARY_OP macro from clox's run(): check
// both operands are numbers, or report the shared error, otherwise pop both
// and push op's result.
func (vm *VM) binaryNumberOp(op func(a, b float64) Value) bool {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		vm.runtimeError("Operands must be numbers.")
		return false
	}
	b := vm.pop().Number
	a := vm.pop().Number
	vm.push(op(a, b))
	return true
}

func (vm *VM) traceStep(frame *CallFrame) {
	s := "          "
	for i := 0; i < vm.stackTop; i++ {
		s += "[ " + ToString(vm.stack[i]) + " ]"
	}
	s += "\n" + DisassembleInstruction(frame.closure.Function.Chunk, frame.ip)
	fmt.Fprintln(vm.Stderr, s)
}
