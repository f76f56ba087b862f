package object

import (
	"testing"

	"github.com/kristofer/loxvm/pkg/value"
)

func TestInternStringCanonicalizes(t *testing.T) {
	h := NewHeap()
	a := h.InternString([]byte("hello"))
	b := h.InternString([]byte("hello"))
	if a != b {
		t.Error("two interns of the same content should return the same handle")
	}
	c := h.InternString([]byte("world"))
	if a == c {
		t.Error("different content must not collide onto the same handle")
	}
	if !value.Equal(value.FromObj(a), value.FromObj(b)) {
		t.Error("interned equal-content strings must compare Equal as values")
	}
}

func TestTakeOwnedStringDedupesAgainstInterned(t *testing.T) {
	h := NewHeap()
	original := h.InternString([]byte("shared"))
	taken := h.TakeOwnedString([]byte("shared"))
	if original != taken {
		t.Error("TakeOwnedString should return the existing handle for already-interned content")
	}
}

func TestFunctionPrint(t *testing.T) {
	h := NewHeap()
	anon := h.NewFunction()
	if got, want := anon.Print(), "<script>"; got != want {
		t.Errorf("Print() = %q, want %q", got, want)
	}
	named := h.NewFunction()
	named.Name = h.InternString([]byte("fib"))
	if got, want := named.Print(), "<fn fib>"; got != want {
		t.Errorf("Print() = %q, want %q", got, want)
	}
}

func TestNativePrint(t *testing.T) {
	h := NewHeap()
	n := h.NewNative(func(args []value.Value) (value.Value, error) { return value.Nil, nil })
	if got, want := n.Print(), "<native fn>"; got != want {
		t.Errorf("Print() = %q, want %q", got, want)
	}
}

func TestClosurePrintDelegatesToFunction(t *testing.T) {
	h := NewHeap()
	fn := h.NewFunction()
	fn.Name = h.InternString([]byte("counter"))
	fn.UpvalueCount = 1
	cl := h.NewClosure(fn)
	if len(cl.Upvalues) != 1 {
		t.Fatalf("expected 1 upvalue slot, got %d", len(cl.Upvalues))
	}
	if got, want := cl.Print(), "<fn counter>"; got != want {
		t.Errorf("Print() = %q, want %q", got, want)
	}
}

func TestUpvalueCloseHoistsValue(t *testing.T) {
	h := NewHeap()
	slot := value.Number(42)
	up := h.NewUpvalue(&slot)
	if up.Location != &slot {
		t.Fatal("open upvalue should point at the stack slot")
	}
	up.Close()
	if up.Location == &slot {
		t.Error("closed upvalue should no longer point at the original slot")
	}
	if !value.Equal(*up.Location, value.Number(42)) {
		t.Errorf("closed upvalue lost its value: %v", value.Print(*up.Location))
	}
	// Mutating the original slot must no longer affect the closed upvalue.
	slot = value.Number(99)
	if !value.Equal(*up.Location, value.Number(42)) {
		t.Error("closed upvalue should be independent of the original stack slot")
	}
}

func TestHeapTracksEveryAllocation(t *testing.T) {
	h := NewHeap()
	h.InternString([]byte("a"))
	h.NewFunction()
	h.NewNative(func(args []value.Value) (value.Value, error) { return value.Nil, nil })

	count := 0
	for o := h.Objects(); o != nil; o = o.Next() {
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 tracked objects, got %d", count)
	}
}

func TestHeapFreeClearsList(t *testing.T) {
	h := NewHeap()
	h.InternString([]byte("a"))
	h.Free()
	if h.Objects() != nil {
		t.Error("Free should clear the live-object list")
	}
}
