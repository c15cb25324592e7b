package vm

import (
	"math/big"
	"unsafe"
)

// ObjectKind discriminates the concrete layout a HeapObject was allocated
// with. It is stored in the header so the GC and the dispatcher's value
// decoding (class_of) can recover the concrete type from a bare
// *HeapObject without a Go type switch on every access.
type ObjectKind byte

const (
	KindInstance ObjectKind = iota
	KindArray
	KindBoxed
	KindFunction
	KindClass
	KindDouble
	KindLargeInteger
	KindString
	KindCoroutine
	KindStack
)

// HeapObject is the common header every heap-resident value starts with:
// a pointer to its Class as the first word. Every concrete kind below
// embeds HeapObject as its first field, so a *HeapObject recovered from
// a tagged Value can be reinterpreted as the concrete type once Kind is
// known — a header-first layout that lets class.go and vtable.go share
// one pointer without an import cycle.
type HeapObject struct {
	Class *Class
	Kind  ObjectKind
	Mark  bool // reserved; the current collector marks into an external set, see gc.go
}

// Instance is header + N value slots, N = class field count.
type Instance struct {
	HeapObject
	Slots     []Value
	Immutable bool
}

// Array is header + length Values (length is len(Elements); a separate
// Smi length field is redundant in a Go slice and is not duplicated
// here).
type Array struct {
	HeapObject
	Elements []Value
}

// Boxed is header + one mutable Value slot.
type Boxed struct {
	HeapObject
	Slot Value
}

// DoubleObject is header + inline float64 payload.
type DoubleObject struct {
	HeapObject
	F float64
}

// LargeIntegerObject is header + inline arbitrary-precision payload, used
// when ToInteger's Smi range check fails. math/big is used rather
// than a pack dependency: the retrieved corpus's only decimal library
// (cockroachdb/apd, pulled in transitively by cuelang.org/go) implements
// base-10 floating-point decimals, not arbitrary-precision integers, so it
// cannot represent this type's semantics — see DESIGN.md.
type LargeIntegerObject struct {
	HeapObject
	Big *big.Int
}

// StringObject is header + inline string payload.
type StringObject struct {
	HeapObject
	S string
}

// asHeader reinterprets any concrete kind's leading HeapObject field as a
// *HeapObject; used to build a Value via fromHeapObjectPtr.
func asHeader(p unsafe.Pointer) *HeapObject { return (*HeapObject)(p) }

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func newInstanceHeader(class *Class, kind ObjectKind) HeapObject {
	return HeapObject{Class: class, Kind: kind}
}

// ---------------------------------------------------------------------------
// Kind-specific accessors (panics on kind mismatch — a mismatch here is a
// dispatcher bug, not a recoverable condition)
// ---------------------------------------------------------------------------

func (v Value) asInstance() *Instance {
	h := v.heapObjectPtr()
	if h.Kind != KindInstance {
		panic("vm: Value is not an Instance")
	}
	return (*Instance)(unsafe.Pointer(h))
}

func (v Value) asArray() *Array {
	h := v.heapObjectPtr()
	if h.Kind != KindArray {
		panic("vm: Value is not an Array")
	}
	return (*Array)(unsafe.Pointer(h))
}

func (v Value) asBoxed() *Boxed {
	h := v.heapObjectPtr()
	if h.Kind != KindBoxed {
		panic("vm: Value is not a Boxed")
	}
	return (*Boxed)(unsafe.Pointer(h))
}

func (v Value) asDouble() *DoubleObject {
	h := v.heapObjectPtr()
	if h.Kind != KindDouble {
		panic("vm: Value is not a Double")
	}
	return (*DoubleObject)(unsafe.Pointer(h))
}

func (v Value) asLargeInteger() *LargeIntegerObject {
	h := v.heapObjectPtr()
	if h.Kind != KindLargeInteger {
		panic("vm: Value is not a LargeInteger")
	}
	return (*LargeIntegerObject)(unsafe.Pointer(h))
}

func (v Value) asString() *StringObject {
	h := v.heapObjectPtr()
	if h.Kind != KindString {
		panic("vm: Value is not a String")
	}
	return (*StringObject)(unsafe.Pointer(h))
}

func (v Value) asFunction() *Function {
	h := v.heapObjectPtr()
	if h.Kind != KindFunction {
		panic("vm: Value is not a Function")
	}
	return (*Function)(unsafe.Pointer(h))
}

func (v Value) asClass() *Class {
	h := v.heapObjectPtr()
	if h.Kind != KindClass {
		panic("vm: Value is not a Class")
	}
	return (*Class)(unsafe.Pointer(h))
}

func (v Value) asCoroutine() *Coroutine {
	h := v.heapObjectPtr()
	if h.Kind != KindCoroutine {
		panic("vm: Value is not a Coroutine")
	}
	return (*Coroutine)(unsafe.Pointer(h))
}

func (v Value) asStack() *StackObject {
	h := v.heapObjectPtr()
	if h.Kind != KindStack {
		panic("vm: Value is not a Stack")
	}
	return (*StackObject)(unsafe.Pointer(h))
}

// kind reports the ObjectKind a heap Value was allocated with, or false
// for a non-heap Value, without panicking — used by code that branches
// on representation (e.g. the builtin numeric tower in builtins.go).
func (v Value) kind() (ObjectKind, bool) {
	if !v.IsHeapObject() {
		return 0, false
	}
	return v.heapObjectPtr().Kind, true
}
