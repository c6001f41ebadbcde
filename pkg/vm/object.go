package vm

import "fmt"

// ObjKind discriminates the concrete type of a heap object (spec.md §3,
// "Heap object (Obj)"). Every variant below corresponds to one of the
// concrete struct types in this file.
type ObjKind byte

const (
	KindString ObjKind = iota
	KindFunction
	KindNative
	KindClosure
	KindUpvalue
	KindClass
	KindInstance
	KindBoundMethod
)

// Obj is the interface every heap record implements. Every heap record
// carries a kind tag, a GC mark bit, and an intrusive "next" link
// threading all live objects (spec.md §3) — those three live in ObjHeader,
// embedded by every concrete type below, and are accessed through this
// interface by the collector in gc.go.
type Obj interface {
	objKind() ObjKind
	marked() bool
	setMarked(bool)
	next() Obj
	setNext(Obj)
}

// ObjHeader is embedded first in every concrete Obj type. Its methods
// promote, so embedding alone satisfies the Obj interface.
type ObjHeader struct {
	kind    ObjKind
	isMark  bool
	nextObj Obj
}

func (h *ObjHeader) objKind() ObjKind   { return h.kind }
func (h *ObjHeader) marked() bool       { return h.isMark }
func (h *ObjHeader) setMarked(m bool)   { h.isMark = m }
func (h *ObjHeader) next() Obj          { return h.nextObj }
func (h *ObjHeader) setNext(o Obj)      { h.nextObj = o }

// ObjString is an immutable, interned byte sequence. Two ObjString values
// with equal Chars are always the same *ObjString (spec.md §4.2); equality
// and map lookups on strings therefore reduce to pointer comparison.
type ObjString struct {
	ObjHeader
	Chars string
	Hash  uint32
}

// fnv1a32 computes the 32-bit FNV-1a hash of data, per spec.md §3.
func fnv1a32(data string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(data); i++ {
		hash ^= uint32(data[i])
		hash *= 16777619
	}
	return hash
}

// ObjFunction is a compiled function: its arity, how many upvalues its
// closures capture, an optional name (nil for the top-level script), and
// its owned Chunk.
type ObjFunction struct {
	ObjHeader
	Arity        int
	UpvalueCount int
	Name         *ObjString
	Chunk        *Chunk
}

func newFunction() *ObjFunction {
	return &ObjFunction{ObjHeader: ObjHeader{kind: KindFunction}, Chunk: NewChunk()}
}

// NativeFn is a host-provided callable: (argc, args) -> Value, per
// spec.md §6. argc is always len(args).
type NativeFn func(args []Value) Value

// ObjNative wraps a host-provided function so it can be stored in a Value
// and called through the same call_value dispatch as any other callable.
type ObjNative struct {
	ObjHeader
	Name string
	Fn   NativeFn
}

// ObjUpvalue is a captured variable. While open it refers to a live slot
// on the VM's operand stack by index (spec.md §9 recommends indices over
// raw pointers for a rewrite with strict aliasing); once closed it owns
// the value directly in Closed and Location is no longer consulted.
type ObjUpvalue struct {
	ObjHeader
	location int
	isOpen   bool
	Closed   Value
	nextOpen *ObjUpvalue // link in the VM's sorted open-upvalue list
}

func newUpvalue(stackIndex int) *ObjUpvalue {
	return &ObjUpvalue{ObjHeader: ObjHeader{kind: KindUpvalue}, location: stackIndex, isOpen: true}
}

// ObjClosure binds a Function to the upvalues its body captured.
type ObjClosure struct {
	ObjHeader
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func newClosure(fn *ObjFunction) *ObjClosure {
	return &ObjClosure{
		ObjHeader: ObjHeader{kind: KindClosure},
		Function:  fn,
		Upvalues:  make([]*ObjUpvalue, fn.UpvalueCount),
	}
}

// ObjClass is a class: its name and its method table (String -> Closure).
type ObjClass struct {
	ObjHeader
	Name    *ObjString
	Methods *Table
}

func newClass(name *ObjString) *ObjClass {
	return &ObjClass{ObjHeader: ObjHeader{kind: KindClass}, Name: name, Methods: NewTable()}
}

// ObjInstance is an instance of a class: a class reference plus a field
// table (String -> Value).
type ObjInstance struct {
	ObjHeader
	Class  *ObjClass
	Fields *Table
}

func newInstance(class *ObjClass) *ObjInstance {
	return &ObjInstance{ObjHeader: ObjHeader{kind: KindInstance}, Class: class, Fields: NewTable()}
}

// ObjBoundMethod pairs a receiver with the closure that was looked up for
// it, so that passing a method around as a value still calls with the
// right `this`.
type ObjBoundMethod struct {
	ObjHeader
	Receiver Value
	Method   *ObjClosure
}

func newBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	return &ObjBoundMethod{ObjHeader: ObjHeader{kind: KindBoundMethod}, Receiver: receiver, Method: method}
}

// ToString renders v the way OP_PRINT and the disassembler's constant
// pool dump do: whole numbers without a fraction, other numbers with Go's
// shortest round-trip formatting, and objects by kind (closures and bound
// methods render as their underlying function).
func ToString(v Value) string {
	switch v.Kind {
	case ValNil:
		return "nil"
	case ValBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.Number)
	case ValObj:
		return objToString(v.Obj)
	default:
		return "?"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func objToString(o Obj) string {
	switch o.objKind() {
	case KindString:
		return o.(*ObjString).Chars
	case KindFunction:
		fn := o.(*ObjFunction)
		if fn.Name == nil {
			return "<script>"
		}
		return fmt.Sprintf("<fn %s>", fn.Name.Chars)
	case KindNative:
		return fmt.Sprintf("<native fn %s>", o.(*ObjNative).Name)
	case KindClosure:
		return objToString(o.(*ObjClosure).Function)
	case KindUpvalue:
		return "<upvalue>"
	case KindClass:
		return o.(*ObjClass).Name.Chars
	case KindInstance:
		inst := o.(*ObjInstance)
		return fmt.Sprintf("%s instance", inst.Class.Name.Chars)
	case KindBoundMethod:
		return objToString(o.(*ObjBoundMethod).Method.Function)
	default:
		return "<obj>"
	}
}
