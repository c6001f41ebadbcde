package vm

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// gc is the tri-color mark-sweep collector bundled into the VM (spec.md §5,
// "Garbage collector"). It never runs concurrently with the interpreter:
// collect is only ever called from the dispatch loop, once before each
// instruction, on the same goroutine. Allocating an object never triggers
// a collection by itself, so nothing is collected while compiling.
type gc struct {
	bytesAllocated int64
	nextGC         int64
	objects        Obj // intrusive linked list of every live heap object
	gray           []Obj

	stress bool // GLOX_GC_STRESS / --gc-stress: collect before every instruction
}

const gcHeapGrowFactor = 2
const initialNextGC = 1024 * 1024 // 1 MiB, matches clox's vm.next_gc seed

func newGC() *gc {
	return &gc{
		nextGC: initialNextGC,
		stress: os.Getenv("GLOX_GC_STRESS") != "",
	}
}

// track registers a freshly allocated object on the GC's object list and
// charges its size toward bytesAllocated. Every constructor in object.go
// that the VM uses to put a new heap record into play routes through this
// (via the VM constructors in alloc.go) so the collector always knows about it.
func (g *gc) track(o Obj, size int64) {
	o.setNext(g.objects)
	g.objects = o
	g.bytesAllocated += size
}

// shouldCollect reports whether the dispatch loop should run a collection
// before the next instruction: either stress mode, or bytesAllocated has
// crossed nextGC. It is not consulted at allocation time.
func (g *gc) shouldCollect() bool {
	return g.stress || g.bytesAllocated > g.nextGC
}

// collect runs one full mark-sweep cycle: mark roots, trace the gray
// worklist to black, sweep unreached objects, then grow nextGC so the next
// collection happens after roughly double the now-live heap (spec.md §5).
func (vm *VM) collect() {
	log.WithField("before", vm.gc.bytesAllocated).Debug("gc: begin")

	vm.markRoots()
	vm.traceReferences()
	vm.sweepStrings()
	vm.sweepObjects()

	vm.gc.nextGC = vm.gc.bytesAllocated * gcHeapGrowFactor
	log.WithFields(log.Fields{
		"after":   vm.gc.bytesAllocated,
		"next_gc": vm.gc.nextGC,
	}).Debug("gc: end")
}

// markRoots marks every root the spec enumerates: the operand stack, each
// call frame's closure, every open upvalue, the globals table, the interned
// "init" string, and any compiler-pinned functions mid-compilation
// (spec.md §5, "Roots").
func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.nextOpen {
		vm.markObject(uv)
	}
	vm.markTable(vm.globals)
	vm.markObject(vm.initString)
	for _, fn := range vm.compilerRoots {
		vm.markObject(fn)
	}
}

func (vm *VM) markValue(v Value) {
	if v.Kind == ValObj {
		vm.markObject(v.Obj)
	}
}

func (vm *VM) markTable(t *Table) {
	if t == nil {
		return
	}
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key != nil {
			vm.markObject(e.Key)
			vm.markValue(e.Value)
		}
	}
}

// markObject grays o: flips its mark bit and pushes it onto the worklist
// for later blackening in traceReferences. A nil or already-marked object
// is a no-op, matching clox's mark_object guard.
func (vm *VM) markObject(o Obj) {
	if o == nil || o.marked() {
		return
	}
	o.setMarked(true)
	vm.gc.gray = append(vm.gc.gray, o)
}

// traceReferences drains the gray worklist, blackening each object by
// marking whatever it references, until the worklist is empty (spec.md §5,
// "Trace").
func (vm *VM) traceReferences() {
	for len(vm.gc.gray) > 0 {
		n := len(vm.gc.gray) - 1
		o := vm.gc.gray[n]
		vm.gc.gray = vm.gc.gray[:n]
		vm.blacken(o)
	}
}

// blacken marks every object o itself references, per its kind. Strings
// and natives have nothing further to mark; an upvalue marks its Closed
// value (an open upvalue's stack slot is already a root).
func (vm *VM) blacken(o Obj) {
	switch o.objKind() {
	case KindString, KindNative:
		// no outgoing references
	case KindUpvalue:
		vm.markValue(o.(*ObjUpvalue).Closed)
	case KindFunction:
		fn := o.(*ObjFunction)
		if fn.Name != nil { // the top-level script has no name
			vm.markObject(fn.Name)
		}
		for _, c := range fn.Chunk.Constants {
			vm.markValue(c)
		}
	case KindClosure:
		cl := o.(*ObjClosure)
		vm.markObject(cl.Function)
		for _, uv := range cl.Upvalues {
			vm.markObject(uv)
		}
	case KindClass:
		cls := o.(*ObjClass)
		vm.markObject(cls.Name)
		vm.markTable(cls.Methods)
	case KindInstance:
		inst := o.(*ObjInstance)
		vm.markObject(inst.Class)
		vm.markTable(inst.Fields)
	case KindBoundMethod:
		bm := o.(*ObjBoundMethod)
		vm.markValue(bm.Receiver)
		vm.markObject(bm.Method)
	}
}

// sweepStrings removes unmarked keys from the string interner before the
// general sweep frees their backing ObjStrings, so the table never holds a
// dangling entry (spec.md §5, "Sweep" — "the interner's weak references
// must not keep strings alive").
func (vm *VM) sweepStrings() {
	for i := range vm.strings.entries {
		e := &vm.strings.entries[i]
		if e.Key != nil && !e.Key.marked() {
			vm.strings.Delete(e.Key)
		}
	}
}

// sweepObjects walks the intrusive object list, unlinking and dropping
// every unmarked object and clearing the mark bit on every survivor so the
// next cycle starts white.
func (vm *VM) sweepObjects() {
	var prev Obj
	obj := vm.gc.objects
	for obj != nil {
		if obj.marked() {
			obj.setMarked(false)
			prev = obj
			obj = obj.next()
			continue
		}
		unreached := obj
		obj = obj.next()
		if prev != nil {
			prev.setNext(obj)
		} else {
			vm.gc.objects = obj
		}
		vm.gc.bytesAllocated -= objectSize(unreached)
	}
}

// objectSize approximates the heap footprint charged against
// bytesAllocated. It doesn't need to be exact, only consistent between
// track and sweepObjects, since it only drives collection frequency.
func objectSize(o Obj) int64 {
	switch o.objKind() {
	case KindString:
		return int64(32 + len(o.(*ObjString).Chars))
	case KindFunction:
		return 64
	case KindNative:
		return 32
	case KindClosure:
		cl := o.(*ObjClosure)
		return int64(32 + 8*len(cl.Upvalues))
	case KindUpvalue:
		return 32
	case KindClass:
		return 48
	case KindInstance:
		return 48
	case KindBoundMethod:
		return 32
	default:
		return 16
	}
}
