// Package vm implements the bytecode virtual machine for glox.
//
// The VM is a stack-based interpreter that executes bytecode instructions.
// It's the final stage in the execution pipeline:
//
//	Source Code -> Lexer -> Compiler -> Chunk -> VM -> Execution
//
// This file holds the Value representation: a tagged union of nil, bool,
// number, and heap-object-reference, the way clox's value.h represents it.
// Values are compared by the rules in ValuesEqual and copied by value —
// a Value is always a small fixed-size struct, so passing one around never
// allocates on its own.
package vm

// ValueKind discriminates the variant held by a Value.
type ValueKind byte

const (
	ValNil ValueKind = iota
	ValBool
	ValNumber
	ValObj
)

// Value is glox's tagged-union runtime value. Exactly one of the fields
// below is meaningful, selected by Kind.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Obj    Obj
}

// NilValue is the canonical nil Value.
var NilValue = Value{Kind: ValNil}

// BoolValue wraps a bool into a Value.
func BoolValue(b bool) Value { return Value{Kind: ValBool, Bool: b} }

// NumberValue wraps a float64 into a Value.
func NumberValue(n float64) Value { return Value{Kind: ValNumber, Number: n} }

// ObjValue wraps a heap object reference into a Value.
func ObjValue(o Obj) Value { return Value{Kind: ValObj, Obj: o} }

func (v Value) IsNil() bool    { return v.Kind == ValNil }
func (v Value) IsBool() bool   { return v.Kind == ValBool }
func (v Value) IsNumber() bool { return v.Kind == ValNumber }
func (v Value) IsObj() bool    { return v.Kind == ValObj }

func (v Value) IsString() bool      { return v.IsObj() && v.Obj.objKind() == KindString }
func (v Value) IsFunction() bool    { return v.IsObj() && v.Obj.objKind() == KindFunction }
func (v Value) IsNative() bool      { return v.IsObj() && v.Obj.objKind() == KindNative }
func (v Value) IsClosure() bool     { return v.IsObj() && v.Obj.objKind() == KindClosure }
func (v Value) IsClass() bool       { return v.IsObj() && v.Obj.objKind() == KindClass }
func (v Value) IsInstance() bool    { return v.IsObj() && v.Obj.objKind() == KindInstance }
func (v Value) IsBoundMethod() bool { return v.IsObj() && v.Obj.objKind() == KindBoundMethod }

// These extractors are unchecked, same as clox's AS_* macros: the caller
// must have verified the matching Is* predicate first.
func (v Value) AsString() *ObjString           { return v.Obj.(*ObjString) }
func (v Value) AsFunction() *ObjFunction       { return v.Obj.(*ObjFunction) }
func (v Value) AsNative() *ObjNative           { return v.Obj.(*ObjNative) }
func (v Value) AsClosure() *ObjClosure         { return v.Obj.(*ObjClosure) }
func (v Value) AsClass() *ObjClass             { return v.Obj.(*ObjClass) }
func (v Value) AsInstance() *ObjInstance       { return v.Obj.(*ObjInstance) }
func (v Value) AsBoundMethod() *ObjBoundMethod { return v.Obj.(*ObjBoundMethod) }

// IsFalsey reports whether v is falsey: only nil and the boolean false
// are falsey. Everything else, including 0 and "", is truthy.
func IsFalsey(v Value) bool {
	return v.IsNil() || (v.IsBool() && !v.Bool)
}

// ValuesEqual is total: mismatched kinds are never equal. Strings compare
// by identity because they are interned (invariant 6, spec.md §3), which
// reduces this to pointer comparison since Go compares pointer-typed
// interface values by pointer identity.
func ValuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValNil:
		return true
	case ValBool:
		return a.Bool == b.Bool
	case ValNumber:
		return a.Number == b.Number
	case ValObj:
		return a.Obj == b.Obj
	default:
		return false
	}
}
