package vm

import (
	"fmt"
	"strings"

	"github.com/kristofer/loxvm/pkg/bytecode"
	"github.com/kristofer/loxvm/pkg/object"
	"github.com/kristofer/loxvm/pkg/value"
)

// DisassembleChunk renders every instruction in chunk as
// "OFFSET LINE NAME [operand...]", one per line, prefixed by name.
func DisassembleChunk(chunk *value.Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		line, next := disassembleInstruction(chunk, offset)
		b.WriteString(line)
		b.WriteByte('\n')
		offset = next
	}
	return b.String()
}

// disassembleInstruction renders the instruction at offset and
// returns the offset of the next one. Instruction widths: simple
// opcodes consume 1 byte total, byte/constant operands 2, jumps 3,
// and OP_CLOSURE 2 plus 2 bytes per upvalue it captures.
func disassembleInstruction(chunk *value.Chunk, offset int) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(&b, "%4d ", chunk.Lines[offset])
	}

	op := bytecode.OpCode(chunk.Code[offset])
	switch op {
	case bytecode.OpNil, bytecode.OpTrue, bytecode.OpFalse, bytecode.OpPop,
		bytecode.OpEqual, bytecode.OpGreater, bytecode.OpLess,
		bytecode.OpAdd, bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide,
		bytecode.OpNot, bytecode.OpNegate, bytecode.OpPrint,
		bytecode.OpCloseUpvalue, bytecode.OpReturn:
		b.WriteString(op.String())
		return b.String(), offset + 1

	case bytecode.OpGetLocal, bytecode.OpSetLocal, bytecode.OpGetUpvalue, bytecode.OpSetUpvalue, bytecode.OpCall:
		slot := chunk.Code[offset+1]
		fmt.Fprintf(&b, "%-16s %4d", op, slot)
		return b.String(), offset + 2

	case bytecode.OpConstant, bytecode.OpGetGlobal, bytecode.OpDefineGlobal, bytecode.OpSetGlobal:
		idx := chunk.Code[offset+1]
		fmt.Fprintf(&b, "%-16s %4d '%s'", op, idx, value.Print(chunk.Constants[idx]))
		return b.String(), offset + 2

	case bytecode.OpJump, bytecode.OpJumpIfFalse:
		jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
		fmt.Fprintf(&b, "%-16s %4d -> %d", op, offset, offset+3+jump)
		return b.String(), offset + 3

	case bytecode.OpLoop:
		jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
		fmt.Fprintf(&b, "%-16s %4d -> %d", op, offset, offset+3-jump)
		return b.String(), offset + 3

	case bytecode.OpClosure:
		idx := chunk.Code[offset+1]
		fmt.Fprintf(&b, "%-16s %4d '%s'", op, idx, value.Print(chunk.Constants[idx]))
		next := offset + 2
		upvalueCount := 0
		if fn, ok := chunk.Constants[idx].AsObj().(*object.Function); ok {
			upvalueCount = fn.UpvalueCount
		}
		for i := 0; i < upvalueCount; i++ {
			isLocal := chunk.Code[next]
			index := chunk.Code[next+1]
			kind := "upvalue"
			if isLocal != 0 {
				kind = "local"
			}
			fmt.Fprintf(&b, "\n%04d      |                     %s %d", next, kind, index)
			next += 2
		}
		return b.String(), next

	default:
		fmt.Fprintf(&b, "Unknown opcode %d", op)
		return b.String(), offset + 1
	}
}

// traceStep dumps the current stack contents and the instruction
// about to execute, used when VM.Trace is enabled.
func (vm *VM) traceStep(frame *CallFrame) {
	var b strings.Builder
	b.WriteString("          ")
	for i := 0; i < vm.stackTop; i++ {
		fmt.Fprintf(&b, "[ %s ]", value.Print(vm.stack[i]))
	}
	fmt.Fprintln(vm.Stderr, b.String())

	line, _ := disassembleInstruction(&frame.closure.Function.Chunk, frame.ip)
	fmt.Fprintln(vm.Stderr, line)
}
