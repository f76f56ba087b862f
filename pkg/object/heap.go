package object

import (
	"github.com/kristofer/loxvm/pkg/table"
	"github.com/kristofer/loxvm/pkg/value"
)

// Heap owns every object the compiler and the VM allocate: it threads
// them into one linked list (for the lifecycle contract described in
// object.go) and canonicalizes strings by content.
type Heap struct {
	objects value.Obj
	strings *table.Table
}

// NewHeap returns an empty heap with an empty intern table.
func NewHeap() *Heap {
	return &Heap{strings: table.New()}
}

// Strings exposes the intern table. The VM keeps its globals in a
// separate table keyed by the interned strings this heap returns.
func (h *Heap) Strings() *table.Table { return h.strings }

func (h *Heap) track(o value.Obj) {
	o.SetNext(h.objects)
	h.objects = o
}

// InternString returns the canonical String for the given bytes,
// allocating and tracking a new one only if no live string with that
// exact content already exists.
func (h *Heap) InternString(chars []byte) *String {
	hash := hashBytes(chars)
	if existing, ok := h.strings.FindString(chars, hash); ok {
		return existing.(*String)
	}
	s := &String{Header: value.NewHeader(value.ObjKindString), Chars: append([]byte(nil), chars...), hash: hash}
	h.strings.Set(s, value.Nil)
	h.track(s)
	return s
}

// TakeOwnedString interns a byte slice the caller already owns (e.g.
// the result of string concatenation), avoiding a second copy when
// the content is not already interned. When it is, the caller's
// buffer is dropped and the existing handle is returned.
func (h *Heap) TakeOwnedString(chars []byte) *String {
	hash := hashBytes(chars)
	if existing, ok := h.strings.FindString(chars, hash); ok {
		return existing.(*String)
	}
	s := &String{Header: value.NewHeader(value.ObjKindString), Chars: chars, hash: hash}
	h.strings.Set(s, value.Nil)
	h.track(s)
	return s
}

// NewFunction allocates a fresh, empty Function object.
func (h *Heap) NewFunction() *Function {
	f := &Function{Header: value.NewHeader(value.ObjKindFunction)}
	h.track(f)
	return f
}

// NewNative wraps fn as a heap-allocated native function.
func (h *Heap) NewNative(fn NativeFn) *Native {
	n := &Native{Header: value.NewHeader(value.ObjKindNative), Function: fn}
	h.track(n)
	return n
}

// NewClosure allocates a closure over fn with upvalue slots left nil,
// ready for the VM to fill in while executing OP_CLOSURE.
func (h *Heap) NewClosure(fn *Function) *Closure {
	c := &Closure{
		Header:   value.NewHeader(value.ObjKindClosure),
		Function: fn,
		Upvalues: make([]*Upvalue, fn.UpvalueCount),
	}
	h.track(c)
	return c
}

// NewUpvalue allocates an open upvalue referencing slot.
func (h *Heap) NewUpvalue(slot *value.Value) *Upvalue {
	u := &Upvalue{Header: value.NewHeader(value.ObjKindUpvalue), Location: slot}
	h.track(u)
	return u
}

// Free severs every tracked object's reference. There is no manual
// memory to reclaim in Go; this exists so Heap's lifecycle mirrors the
// spec's "freed en masse at VM shutdown" contract and so tests can
// assert the list is actually empty afterward.
func (h *Heap) Free() {
	for o := h.objects; o != nil; {
		next := o.Next()
		o.SetNext(nil)
		o = next
	}
	h.objects = nil
	h.strings = table.New()
}

// Objects returns the head of the live-object list, for tests that
// want to walk it.
func (h *Heap) Objects() value.Obj { return h.objects }
