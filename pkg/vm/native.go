package vm

import (
	"time"

	"github.com/kristofer/loxvm/pkg/object"
	"github.com/kristofer/loxvm/pkg/value"
)

// defineNatives installs the VM's built-in native functions as
// globals, available to every program this VM interprets.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", func(args []value.Value) (value.Value, error) {
		return value.Number(time.Since(vm.startTime).Seconds()), nil
	})
}

func (vm *VM) defineNative(name string, fn object.NativeFn) {
	nameObj := vm.heap.InternString([]byte(name))
	native := vm.heap.NewNative(fn)
	vm.globals.Set(nameObj, value.FromObj(native))
}
