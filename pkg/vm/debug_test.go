package vm

import (
	"strings"
	"testing"

	"github.com/kristofer/loxvm/pkg/compiler"
	"github.com/kristofer/loxvm/pkg/object"
	"github.com/kristofer/loxvm/pkg/value"
)

func fakeChunkWithByte(b byte) *value.Chunk {
	c := value.NewChunk()
	c.Write(b, 1)
	return c
}

func TestDisassembleChunkSimpleProgram(t *testing.T) {
	heap := object.NewHeap()
	var errBuf strings.Builder
	fn, ok := compiler.Compile("print 1 + 2;", heap, &errBuf)
	if !ok {
		t.Fatalf("compile failed: %s", errBuf.String())
	}

	out := DisassembleChunk(&fn.Chunk, "test")
	for _, want := range []string{"OP_CONSTANT", "OP_ADD", "OP_PRINT", "OP_NIL", "OP_RETURN"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}

func TestDisassembleUnknownOpcode(t *testing.T) {
	// A single stray 0xFF byte is not a valid opcode; the disassembler
	// must report it and still advance, rather than looping forever.
	chunk := fakeChunkWithByte(0xFF)
	out := DisassembleChunk(chunk, "bad")
	if !strings.Contains(out, "Unknown opcode 255") {
		t.Errorf("got %q", out)
	}
}
