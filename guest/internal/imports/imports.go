// Package imports declares the cfx host imports. Off wasm the imports are
// routed to a replaceable Host so the guest packages can be tested without a
// runtime.
package imports

import (
	"runtime"

	"github.com/cfxwasm/wasmhost/guest/internal/mem"
)

// Log writes msg to the host script log.
func Log(msg string) {
	b := mem.CStringBytes(msg)
	scriptLog(mem.Ptr(b))
	runtime.KeepAlive(b)
}

// Invoke calls the native identified by hash. args points at argc encoded
// arguments and retval at a return descriptor, or 0 to discard the result.
func Invoke(hash uint64, args, argc, retval uint32) int32 {
	return invoke(hash, args, argc, retval)
}

// CanonicalizeRef writes the NUL-terminated name of ref into buf when it
// fits and returns the size the name needs.
func CanonicalizeRef(ref, buf, size uint32) uint32 {
	return canonicalizeRef(ref, buf, size)
}

// InvokeRefFunc calls the function reference named at name and returns the
// result length or a negative status.
func InvokeRefFunc(name, args, argsLen, buf, bufCap uint32) int32 {
	return invokeRefFunc(name, args, argsLen, buf, bufCap)
}
