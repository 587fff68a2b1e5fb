//go:build !wasm

package imports

import "github.com/cfxwasm/wasmhost/abi"

// Host stands in for the cfx imports off wasm. Nil fields behave like a host
// that does not provide the import.
type Host struct {
	ScriptLog       func(msg uint32)
	Invoke          func(hash uint64, args, argc, retval uint32) int32
	CanonicalizeRef func(ref, buf, size uint32) uint32
	InvokeRefFunc   func(name, args, argsLen, buf, bufCap uint32) int32
}

var host Host

// SetHost installs h and returns a function restoring the previous host.
func SetHost(h Host) (restore func()) {
	prev := host
	host = h
	return func() { host = prev }
}

func scriptLog(msg uint32) {
	if host.ScriptLog != nil {
		host.ScriptLog(msg)
	}
}

func invoke(hash uint64, args, argc, retval uint32) int32 {
	if host.Invoke == nil {
		return int32(abi.StatusCriticalError)
	}
	return host.Invoke(hash, args, argc, retval)
}

func canonicalizeRef(ref, buf, size uint32) uint32 {
	if host.CanonicalizeRef == nil {
		return 0
	}
	return host.CanonicalizeRef(ref, buf, size)
}

func invokeRefFunc(name, args, argsLen, buf, bufCap uint32) int32 {
	if host.InvokeRefFunc == nil {
		return int32(abi.StatusCriticalError)
	}
	return host.InvokeRefFunc(name, args, argsLen, buf, bufCap)
}
