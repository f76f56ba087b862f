// Package object implements lox's heap object kinds (strings,
// functions, natives, closures, upvalues), string interning, and the
// Heap that owns the VM's single linked list of live objects.
//
// Go's garbage collector reclaims the underlying memory; Heap exists
// to satisfy the spec's object-lifecycle contract (every object
// reachable from a root, a single free-on-shutdown list) rather than
// to perform manual reclamation. There is no tracing collector:
// objects stay on the list until Heap.Free.
package object

import (
	"hash/fnv"

	"github.com/kristofer/loxvm/pkg/table"
	"github.com/kristofer/loxvm/pkg/value"
)

// hashBytes computes the 32-bit FNV-1a hash the spec mandates for
// string interning. hash/fnv is the standard library's implementation
// of exactly this algorithm, so there is nothing to hand-roll here.
func hashBytes(b []byte) uint32 {
	h := fnv.New32a()
	h.Write(b)
	return h.Sum32()
}

// String is lox's immutable interned string object.
type String struct {
	value.Header
	Chars []byte
	hash  uint32
}

func (s *String) Print() string  { return string(s.Chars) }
func (s *String) Hash() uint32   { return s.hash }
func (s *String) Bytes() []byte  { return s.Chars }
func (s *String) Go() string     { return string(s.Chars) }
func (s *String) Len() int       { return len(s.Chars) }

var _ table.Key = (*String)(nil)

// Function is a compiled lox function: its arity, how many upvalues
// it captures, its optional name (nil for the top-level script), and
// its own bytecode chunk.
type Function struct {
	value.Header
	Arity        int
	UpvalueCount int
	Name         *String
	Chunk        value.Chunk
}

func (f *Function) Print() string {
	if f.Name == nil {
		return "<script>"
	}
	return "<fn " + f.Name.Go() + ">"
}

// NativeFn is the Go implementation of a native (host-provided)
// function. It receives the arguments as a slice of the VM's stack
// slots (they are popped only after it returns) and returns the
// result value.
type NativeFn func(args []value.Value) (value.Value, error)

// Native wraps a Go function so it can be called like a lox function.
type Native struct {
	value.Header
	Function NativeFn
}

func (n *Native) Print() string { return "<native fn>" }

// Closure pairs a Function with the upvalues it resolved at creation
// time, one per entry in Function.UpvalueCount.
type Closure struct {
	value.Header
	Function *Function
	Upvalues []*Upvalue
}

func (c *Closure) Print() string { return c.Function.Print() }

// Upvalue is a mutable indirection onto a captured variable. While
// Open, Location points into a live VM stack slot; once Closed, it
// points at the upvalue's own Closed field so the value survives
// after its originating frame returns.
type Upvalue struct {
	value.Header
	Location *value.Value
	Closed   value.Value
	// Slot is the stack index Location refers to while open. It is
	// meaningless once the upvalue is closed.
	Slot int
	// NextOpen threads this upvalue into the VM's open-upvalue list,
	// kept sorted by the stack slot Location refers to.
	NextOpen *Upvalue
}

func (u *Upvalue) Print() string { return "upvalue" }

// Close hoists the captured value off the stack into the upvalue's
// own storage and repoints Location at it.
func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}
