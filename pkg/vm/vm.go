// Package vm implements the stack-based bytecode interpreter that runs
// the chunks pkg/compiler produces.
//
// The VM is the final stage of the pipeline:
//
//	source -> lexer -> compiler (single-pass, emits bytecode) -> vm -> result
//
// Execution model:
//
// The VM keeps one contiguous value stack shared by every call frame
// (recursion depth is bounded by FramesMax, not by Go's own call
// stack: the interpreter loop never recurses into itself to make a
// lox call). Each frame remembers its closure, its own instruction
// pointer into that closure's chunk, and the stack index its local
// slots start at. Globals live in a single interned-string-keyed
// table; locals and call arguments live directly on the value stack
// and are addressed by slot offset from the current frame.
package vm

import (
	"fmt"
	"io"
	"time"

	"github.com/kristofer/loxvm/pkg/bytecode"
	"github.com/kristofer/loxvm/pkg/compiler"
	"github.com/kristofer/loxvm/pkg/object"
	"github.com/kristofer/loxvm/pkg/table"
	"github.com/kristofer/loxvm/pkg/value"
)

const (
	// FramesMax bounds how deeply lox calls may nest.
	FramesMax = 64
	// StackMax is the total number of value slots shared across all frames.
	StackMax = FramesMax * 256
)

// InterpretResult reports how Interpret finished.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

func (r InterpretResult) String() string {
	switch r {
	case InterpretOK:
		return "OK"
	case InterpretCompileError:
		return "CompileError"
	case InterpretRuntimeError:
		return "RuntimeError"
	default:
		return "Unknown"
	}
}

// CallFrame is one activation of a closure: its own instruction
// pointer and the base slot its locals start at on the shared stack.
type CallFrame struct {
	closure *object.Closure
	ip      int
	slots   int
}

// VM owns all interpreter-lifetime state: the value stack, the call
// frame stack, globals, the object heap (and its string intern
// table), and the list of upvalues still open onto the stack.
type VM struct {
	stack    [StackMax]value.Value
	stackTop int

	frames     [FramesMax]CallFrame
	frameCount int

	globals      *table.Table
	heap         *object.Heap
	openUpvalues *object.Upvalue

	startTime time.Time

	Stdout io.Writer
	Stderr io.Writer

	// Trace, when set, makes run emit one disassembled line per
	// executed instruction and a snapshot of the stack to Stderr.
	Trace bool
}

// New returns a VM with its globals and native functions initialized,
// ready for repeated Interpret calls. stdout/stderr control where
// `print` output and runtime error/trace output go.
func New(stdout, stderr io.Writer) *VM {
	vm := &VM{
		globals:   table.New(),
		heap:      object.NewHeap(),
		startTime: time.Now(),
		Stdout:    stdout,
		Stderr:    stderr,
	}
	vm.defineNatives()
	return vm
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// Interpret compiles and runs a lox program, sharing this VM's
// globals and heap with any program interpreted before it (so a REPL
// can build up state across lines).
func (vm *VM) Interpret(source string) InterpretResult {
	fn, ok := compiler.Compile(source, vm.heap, vm.Stderr)
	if !ok {
		return InterpretCompileError
	}

	closure := vm.heap.NewClosure(fn)
	vm.push(value.FromObj(closure))
	vm.call(closure, 0)

	return vm.run()
}

// run is the bytecode dispatch loop. It executes instructions from
// the innermost active frame until an OP_RETURN unwinds the last
// frame or a runtime error aborts execution.
func (vm *VM) run() InterpretResult {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.closure.Function.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int {
		hi := frame.closure.Function.Chunk.Code[frame.ip]
		lo := frame.closure.Function.Chunk.Code[frame.ip+1]
		frame.ip += 2
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() value.Value {
		return frame.closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *object.String {
		return readConstant().AsObj().(*object.String)
	}

	for {
		if vm.Trace {
			vm.traceStep(frame)
		}

		op := bytecode.OpCode(readByte())
		switch op {
		case bytecode.OpConstant:
			vm.push(readConstant())

		case bytecode.OpNil:
			vm.push(value.Nil)
		case bytecode.OpTrue:
			vm.push(value.Bool(true))
		case bytecode.OpFalse:
			vm.push(value.Bool(false))
		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetLocal:
			slot := int(readByte())
			vm.push(vm.stack[frame.slots+slot])
		case bytecode.OpSetLocal:
			slot := int(readByte())
			vm.stack[frame.slots+slot] = vm.peek(0)

		case bytecode.OpGetGlobal:
			name := readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Go())
			}
			vm.push(v)
		case bytecode.OpDefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case bytecode.OpSetGlobal:
			name := readString()
			if isNew := vm.globals.Set(name, vm.peek(0)); isNew {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Go())
			}

		case bytecode.OpGetUpvalue:
			slot := int(readByte())
			vm.push(*frame.closure.Upvalues[slot].Location)
		case bytecode.OpSetUpvalue:
			slot := int(readByte())
			*frame.closure.Upvalues[slot].Location = vm.peek(0)

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case bytecode.OpGreater:
			if result := vm.numericCompare(func(a, b float64) bool { return a > b }); result != InterpretOK {
				return result
			}
		case bytecode.OpLess:
			if result := vm.numericCompare(func(a, b float64) bool { return a < b }); result != InterpretOK {
				return result
			}

		case bytecode.OpAdd:
			if result := vm.add(); result != InterpretOK {
				return result
			}
		case bytecode.OpSubtract:
			if result := vm.numericBinary(func(a, b float64) float64 { return a - b }); result != InterpretOK {
				return result
			}
		case bytecode.OpMultiply:
			if result := vm.numericBinary(func(a, b float64) float64 { return a * b }); result != InterpretOK {
				return result
			}
		case bytecode.OpDivide:
			if result := vm.numericBinary(func(a, b float64) float64 { return a / b }); result != InterpretOK {
				return result
			}

		case bytecode.OpNot:
			vm.push(value.Bool(vm.pop().Falsey()))
		case bytecode.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case bytecode.OpPrint:
			fmt.Fprintln(vm.Stdout, value.Print(vm.pop()))

		case bytecode.OpJump:
			offset := readShort()
			frame.ip += offset
		case bytecode.OpJumpIfFalse:
			offset := readShort()
			if vm.peek(0).Falsey() {
				frame.ip += offset
			}
		case bytecode.OpLoop:
			offset := readShort()
			frame.ip -= offset

		case bytecode.OpCall:
			argCount := int(readByte())
			if !vm.callValue(vm.peek(argCount), argCount) {
				return InterpretRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]

		case bytecode.OpClosure:
			fn := readConstant().AsObj().(*object.Function)
			closure := vm.heap.NewClosure(fn)
			vm.push(value.FromObj(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte() != 0
				index := int(readByte())
				if isLocal {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slots + index)
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}

		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return InterpretOK
			}
			vm.stackTop = frame.slots
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

func (vm *VM) add() InterpretResult {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(value.Number(a.AsNumber() + b.AsNumber()))
		return InterpretOK
	case a.IsObjKind(value.ObjKindString) && b.IsObjKind(value.ObjKindString):
		vm.pop()
		vm.pop()
		sa := a.AsObj().(*object.String)
		sb := b.AsObj().(*object.String)
		combined := make([]byte, 0, sa.Len()+sb.Len())
		combined = append(combined, sa.Chars...)
		combined = append(combined, sb.Chars...)
		vm.push(value.FromObj(vm.heap.TakeOwnedString(combined)))
		return InterpretOK
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

func (vm *VM) numericBinary(op func(a, b float64) float64) InterpretResult {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(value.Number(op(a, b)))
	return InterpretOK
}

func (vm *VM) numericCompare(op func(a, b float64) bool) InterpretResult {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(value.Bool(op(a, b)))
	return InterpretOK
}
