package vm

import (
	"github.com/kristofer/loxvm/pkg/object"
	"github.com/kristofer/loxvm/pkg/value"
)

// callValue dispatches a call instruction's callee: lox closures push
// a new CallFrame, natives run synchronously and leave their result
// on the stack in place of the callee and its arguments. Anything
// else is a runtime error. Returns false if a runtime error was
// raised, matching the convention callers use to unwind run().
func (vm *VM) callValue(callee value.Value, argCount int) bool {
	if callee.IsObj() {
		switch callee.AsObj().ObjKind() {
		case value.ObjKindClosure:
			return vm.call(callee.AsObj().(*object.Closure), argCount)
		case value.ObjKindNative:
			native := callee.AsObj().(*object.Native)
			args := vm.stack[vm.stackTop-argCount : vm.stackTop]
			result, err := native.Function(args)
			if err != nil {
				vm.runtimeError("%s", err.Error())
				return false
			}
			vm.stackTop -= argCount + 1
			vm.push(result)
			return true
		}
	}
	vm.runtimeError("Can only call functions and classes.")
	return false
}

// call pushes a new frame for closure, checking arity and the frame
// depth limit first.
func (vm *VM) call(closure *object.Closure, argCount int) bool {
	if argCount != closure.Function.Arity {
		vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
		return false
	}
	if vm.frameCount == FramesMax {
		vm.runtimeError("Stack overflow.")
		return false
	}

	frame := &vm.frames[vm.frameCount]
	frame.closure = closure
	frame.ip = 0
	frame.slots = vm.stackTop - argCount - 1
	vm.frameCount++
	return true
}

// captureUpvalue returns the open upvalue for the given stack slot,
// reusing one already threaded into vm.openUpvalues if a closure
// already captured that exact slot. The list stays sorted with the
// highest slot first so a new capture (or closeUpvalues) only has to
// walk as far as the slots actually in play.
func (vm *VM) captureUpvalue(slot int) *object.Upvalue {
	var prev *object.Upvalue
	up := vm.openUpvalues
	for up != nil && up.Slot > slot {
		prev = up
		up = up.NextOpen
	}
	if up != nil && up.Slot == slot {
		return up
	}

	created := vm.heap.NewUpvalue(&vm.stack[slot])
	created.Slot = slot
	created.NextOpen = up
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues hoists the value of every open upvalue referencing a
// stack slot at or above last off the stack and into the upvalue's
// own storage, then drops it from the open list. Called both when a
// scope exits (OP_CLOSE_UPVALUE, last = the one slot being popped)
// and when a function returns (last = the whole frame's slot range).
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= last {
		up := vm.openUpvalues
		up.Close()
		vm.openUpvalues = up.NextOpen
	}
}
