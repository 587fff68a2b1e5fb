// Package plugin connects a guest program to the cfx host. It owns the
// program's executor, event router and reference table, and implements the
// __cfx_* exports on top of them. Programs register handlers from init
// functions; the host starts calling exports once _initialize returns.
package plugin

import (
	"bytes"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/guest/events"
	"github.com/cfxwasm/wasmhost/guest/internal/mem"
	"github.com/cfxwasm/wasmhost/guest/refs"
	"github.com/cfxwasm/wasmhost/guest/scheduler"
)

var (
	executor = scheduler.NewExecutor(nil)
	router   = events.NewRouter(executor)
	table    = refs.NewTable(refs.HostCanonicalizer)

	// scrObject describes the last call_ref result to the host.
	scrObject = make([]byte, abi.ScrObjectSize)
)

// Executor returns the program's task executor.
func Executor() *scheduler.Executor { return executor }

// Router returns the program's event router.
func Router() *events.Router { return router }

// Refs returns the program's reference table.
func Refs() *refs.Table { return table }

// Spawn starts a task on the program's executor.
func Spawn(fn func(*scheduler.Context)) *scheduler.Handle {
	return executor.Spawn(fn)
}

// OnEvent handles __cfx_on_event. The host reuses its argument buffers, so
// the payload is copied before it is routed.
func OnEvent(namePtr, argsPtr, argsLen, srcPtr uint32) {
	name := mem.CString(namePtr)
	data := bytes.Clone(mem.Bytes(argsPtr, argsLen))
	router.Dispatch(name, data, mem.CString(srcPtr))
}

// OnTick handles __cfx_on_tick.
func OnTick() {
	executor.Tick()
}

// CallRef handles __cfx_call_ref. It returns the address of an object
// describing the result, or 0 for no result.
func CallRef(ref, argsPtr, argsLen uint32) uint32 {
	out := table.Call(ref, mem.Bytes(argsPtr, argsLen))
	if len(out) == 0 {
		return 0
	}
	abi.ScrObject{Data: mem.Ptr(out), Length: uint32(len(out))}.Encode(scrObject)
	return mem.Ptr(scrObject)
}

// DuplicateRef handles __cfx_duplicate_ref.
func DuplicateRef(ref uint32) uint32 {
	return table.Duplicate(ref)
}

// RemoveRef handles __cfx_remove_ref.
func RemoveRef(ref uint32) {
	table.Remove(ref)
}
