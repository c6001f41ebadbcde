package vm

// alloc.go centralizes every heap allocation the VM performs. Each
// constructor builds the object, then calls gc.track so the collector's
// object list and bytesAllocated stay authoritative — nothing in object.go
// ever becomes reachable from the VM without going through here first.

func (vm *VM) track(o Obj, size int64) {
	vm.gc.track(o, size)
}

// InternString returns the canonical *ObjString for s, allocating a new
// one only if the interner doesn't already hold one with the same
// contents (spec.md §4.2). Exported so the compiler package can intern
// string literals and identifier names through the same interner the VM
// uses for runtime strings (spec.md §6, "those must be interned through
// the same interner used by the VM").
func (vm *VM) InternString(s string) *ObjString {
	hash := fnv1a32(s)
	if existing := vm.strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := &ObjString{ObjHeader: ObjHeader{kind: KindString}, Chars: s, Hash: hash}
	vm.track(str, int64(32+len(s)))
	vm.push(ObjValue(str)) // keep reachable across the table insert below
	vm.strings.Set(str, NilValue)
	vm.pop()
	return str
}

func (vm *VM) internString(s string) *ObjString { return vm.InternString(s) }

// NewFunction allocates an empty Function for the compiler to fill in as
// it compiles a body, tracked by the GC from the moment it's created.
func (vm *VM) NewFunction() *ObjFunction {
	fn := newFunction()
	vm.track(fn, 64)
	return fn
}

func (vm *VM) newNative(name string, fn NativeFn) *ObjNative {
	n := &ObjNative{ObjHeader: ObjHeader{kind: KindNative}, Name: name, Fn: fn}
	vm.track(n, 32)
	return n
}

func (vm *VM) newClosure(fn *ObjFunction) *ObjClosure {
	cl := newClosure(fn)
	vm.track(cl, int64(32+8*len(cl.Upvalues)))
	return cl
}

func (vm *VM) newUpvalue(stackIndex int) *ObjUpvalue {
	uv := newUpvalue(stackIndex)
	vm.track(uv, 32)
	return uv
}

func (vm *VM) newClass(name *ObjString) *ObjClass {
	cls := newClass(name)
	vm.track(cls, 48)
	return cls
}

func (vm *VM) newInstance(class *ObjClass) *ObjInstance {
	inst := newInstance(class)
	vm.track(inst, 48)
	return inst
}

func (vm *VM) newBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	bm := newBoundMethod(receiver, method)
	vm.track(bm, 32)
	return bm
}
