package value

import "testing"

type fakeObj struct {
	Header
	name string
}

func (f *fakeObj) Print() string { return f.name }

func newFakeObj(name string) *fakeObj {
	return &fakeObj{Header: NewHeader(ObjKindString), name: name}
}

func TestEqualDifferentTagsAlwaysUnequal(t *testing.T) {
	if Equal(Nil, Bool(false)) {
		t.Error("Nil should not equal Bool(false)")
	}
	if Equal(Number(0), Bool(false)) {
		t.Error("Number(0) should not equal Bool(false)")
	}
}

func TestEqualByContent(t *testing.T) {
	if !Equal(Number(3), Number(3)) {
		t.Error("Number(3) should equal Number(3)")
	}
	if Equal(Number(3), Number(4)) {
		t.Error("Number(3) should not equal Number(4)")
	}
	if !Equal(Bool(true), Bool(true)) {
		t.Error("Bool(true) should equal Bool(true)")
	}
	if !Equal(Nil, Nil) {
		t.Error("Nil should equal Nil")
	}
}

func TestEqualObjByHandleIdentity(t *testing.T) {
	a := newFakeObj("a")
	b := newFakeObj("a") // same content, distinct handle
	if Equal(FromObj(a), FromObj(b)) {
		t.Error("distinct handles with equal content should not be Equal (no interning at this layer)")
	}
	if !Equal(FromObj(a), FromObj(a)) {
		t.Error("a value should equal itself")
	}
}

func TestFalsey(t *testing.T) {
	falsey := []Value{Nil, Bool(false)}
	truthy := []Value{Bool(true), Number(0), Number(1), FromObj(newFakeObj("s"))}
	for _, v := range falsey {
		if !v.Falsey() {
			t.Errorf("%v should be falsey", Print(v))
		}
	}
	for _, v := range truthy {
		if v.Falsey() {
			t.Errorf("%v should be truthy", Print(v))
		}
	}
}

func TestPrint(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Number(1), "1"},
		{Number(1.5), "1.5"},
		{Number(100), "100"},
		{FromObj(newFakeObj("hi")), "hi"},
	}
	for _, tt := range cases {
		if got := Print(tt.v); got != tt.want {
			t.Errorf("Print(%#v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestChunkWriteKeepsParallelArrays(t *testing.T) {
	c := NewChunk()
	c.Write(1, 10)
	c.Write(2, 10)
	c.Write(3, 11)
	if len(c.Code) != len(c.Lines) {
		t.Fatalf("len(Code)=%d != len(Lines)=%d", len(c.Code), len(c.Lines))
	}
	if c.Lines[0] != 10 || c.Lines[2] != 11 {
		t.Errorf("unexpected lines: %v", c.Lines)
	}
}

func TestAddConstant(t *testing.T) {
	c := NewChunk()
	i0 := c.AddConstant(Number(1))
	i1 := c.AddConstant(Number(2))
	if i0 != 0 || i1 != 1 {
		t.Errorf("got indices %d, %d; want 0, 1", i0, i1)
	}
	if !Equal(c.Constants[i1], Number(2)) {
		t.Errorf("constants[1] = %v, want 2", Print(c.Constants[i1]))
	}
}
