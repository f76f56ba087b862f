// Package bytecode defines the instruction set the compiler emits and
// the VM executes. It intentionally holds nothing but the opcode enum:
// both the compiler and the VM depend on it, and neither depends on
// the other, so the shared vocabulary lives in its own leaf package.
package bytecode

// OpCode is a single bytecode instruction's operation. Opcodes are one
// byte wide; any operands they take are encoded as the bytes that
// immediately follow in the chunk.
type OpCode byte

const (
	// OpConstant pushes constants[operand] (1-byte index).
	OpConstant OpCode = iota
	// OpNil pushes the nil value.
	OpNil
	// OpTrue pushes the boolean true.
	OpTrue
	// OpFalse pushes the boolean false.
	OpFalse
	// OpPop discards the top of the stack.
	OpPop

	// OpGetLocal pushes frame.slots[operand] (1-byte slot).
	OpGetLocal
	// OpSetLocal stores peek(0) into frame.slots[operand], leaving it on the stack.
	OpSetLocal
	// OpGetGlobal looks up strings[operand] in the globals table.
	OpGetGlobal
	// OpDefineGlobal binds strings[operand] to peek(0) and pops.
	OpDefineGlobal
	// OpSetGlobal assigns peek(0) to the already-defined global strings[operand].
	OpSetGlobal
	// OpGetUpvalue pushes the value referenced by closure.upvalues[operand].
	OpGetUpvalue
	// OpSetUpvalue stores peek(0) through closure.upvalues[operand].
	OpSetUpvalue

	// OpEqual, OpGreater, OpLess compare the top two stack values.
	OpEqual
	OpGreater
	OpLess

	// OpAdd, OpSubtract, OpMultiply, OpDivide are the binary arithmetic ops.
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	// OpNot replaces the top of stack with its falsey negation.
	OpNot
	// OpNegate replaces the top of stack with its numeric negation.
	OpNegate

	// OpPrint pops and prints the top of stack.
	OpPrint

	// OpJump is an unconditional forward jump (2-byte big-endian offset).
	OpJump
	// OpJumpIfFalse jumps forward without popping if the top of stack is falsey.
	OpJumpIfFalse
	// OpLoop is an unconditional backward jump (2-byte big-endian distance).
	OpLoop

	// OpCall invokes peek(operand) with operand arguments already on the stack.
	OpCall
	// OpClosure builds a closure from constants[operand] followed by its upvalue metadata.
	OpClosure
	// OpCloseUpvalue closes the upvalue referencing the top stack slot, then pops it.
	OpCloseUpvalue
	// OpReturn returns from the current function.
	OpReturn
)

var names = [...]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpGetUpvalue:   "OP_GET_UPVALUE",
	OpSetUpvalue:   "OP_SET_UPVALUE",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpPrint:        "OP_PRINT",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpClosure:      "OP_CLOSURE",
	OpCloseUpvalue: "OP_CLOSE_UPVALUE",
	OpReturn:       "OP_RETURN",
}

// String renders an opcode's mnemonic, used by the disassembler. A
// byte outside the enum renders as "OP_UNKNOWN".
func (op OpCode) String() string {
	if int(op) < len(names) && names[op] != "" {
		return names[op]
	}
	return "OP_UNKNOWN"
}
