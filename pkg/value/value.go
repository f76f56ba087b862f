// Package value defines the tagged Value representation shared by the
// compiler and the VM, plus the growable Chunk that holds compiled
// bytecode and its constant pool.
//
// Value is a closed sum type {Nil, Bool, Number, Obj}. Obj is an
// interface rather than a concrete struct so that heap object kinds
// (strings, functions, closures, upvalues, natives) can live in the
// object package without value importing it back; object implements
// Obj, value only describes its shape.
package value

import (
	"fmt"
	"strconv"
)

// Kind discriminates a Value's active variant.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

// ObjKind discriminates which heap object variant an Obj implements.
type ObjKind int

const (
	ObjKindString ObjKind = iota
	ObjKindFunction
	ObjKindNative
	ObjKindClosure
	ObjKindUpvalue
)

// Obj is implemented by every heap-allocated object kind. Next/SetNext
// thread every live object into the VM's single linked list; ObjKind
// drives the VM's and printer's type switches; Print renders the
// object the way `print` and the disassembler show it.
type Obj interface {
	ObjKind() ObjKind
	Print() string
	Next() Obj
	SetNext(Obj)
}

// Header is embedded by every concrete Obj implementation in the
// object package. It carries the intrusive next-link and kind tag so
// individual object types don't each reimplement list plumbing.
type Header struct {
	kind ObjKind
	next Obj
}

// NewHeader initializes a Header for an object of the given kind.
func NewHeader(kind ObjKind) Header { return Header{kind: kind} }

func (h *Header) ObjKind() ObjKind { return h.kind }
func (h *Header) Next() Obj        { return h.next }
func (h *Header) SetNext(o Obj)    { h.next = o }

// Value is a tagged union of {Nil, Bool, Number, Obj}.
type Value struct {
	kind  Kind
	boolV bool
	numV  float64
	objV  Obj
}

// Nil is the canonical nil value.
var Nil = Value{kind: KindNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, boolV: b} }

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, numV: n} }

// FromObj constructs a Value wrapping a heap object.
func FromObj(o Obj) Value { return Value{kind: KindObj, objV: o} }

func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsObj() bool    { return v.kind == KindObj }

func (v Value) AsBool() bool       { return v.boolV }
func (v Value) AsNumber() float64  { return v.numV }
func (v Value) AsObj() Obj         { return v.objV }

// IsObjKind reports whether v holds an object of the given kind.
func (v Value) IsObjKind(k ObjKind) bool {
	return v.kind == KindObj && v.objV.ObjKind() == k
}

// Falsey implements lox's truthiness rule: nil and false are falsey,
// everything else (including 0 and "") is truthy.
func (v Value) Falsey() bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// Equal implements valuesEqual: different tags are always unequal,
// Bool/Number compare by content, Obj compares by handle identity
// (which reduces to content equality for interned strings).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.boolV == b.boolV
	case KindNumber:
		return a.numV == b.numV
	case KindObj:
		return a.objV == b.objV
	default:
		return false
	}
}

// Print renders a Value the way OP_PRINT and the disassembler do:
// nil/true/false literally, numbers compactly, objects via their own
// Print method.
func Print(v Value) string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.boolV {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.numV)
	case KindObj:
		return v.objV.Print()
	default:
		return fmt.Sprintf("<invalid value kind %d>", v.kind)
	}
}

// formatNumber renders a float64 with 6 significant digits and
// trailing zeros stripped, e.g. 1 -> "1", 0.1 -> "0.1", 100000000 -> "1e+08".
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', 6, 64)
}
