package refs

import (
	"fmt"
	"runtime"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/guest/internal/imports"
	"github.com/cfxwasm/wasmhost/guest/internal/mem"
	"github.com/cfxwasm/wasmhost/payload"
)

const canonicalNameSize = 64

// HostCanonicalizer asks the host for the canonical name of id.
func HostCanonicalizer(id uint32) (string, error) {
	buf := make([]byte, canonicalNameSize)
	n := imports.CanonicalizeRef(id, mem.Ptr(buf), uint32(len(buf)))
	if n > uint32(len(buf)) {
		buf = make([]byte, n)
		n = imports.CanonicalizeRef(id, mem.Ptr(buf), uint32(len(buf)))
	}
	if n == 0 || n > uint32(len(buf)) {
		return "", fmt.Errorf("canonicalize ref %d: host returned size %d", id, n)
	}
	return string(buf[:n-1]), nil
}

// Invoke calls the reference called name with encoded args and returns the
// encoded result. An empty result means the reference returned nothing.
func Invoke(name string, args []byte) ([]byte, error) {
	nameBuf := mem.CStringBytes(name)
	buf := mem.Retval()
	status := abi.Status(imports.InvokeRefFunc(mem.Ptr(nameBuf), mem.Ptr(args), uint32(len(args)), mem.Ptr(buf), uint32(len(buf))))
	runtime.KeepAlive(nameBuf)
	runtime.KeepAlive(args)
	if !status.Ok() {
		return nil, fmt.Errorf("invoke ref %s: %w", name, status)
	}
	// The host may have replaced the return buffer.
	return append([]byte(nil), mem.Retval()[:status]...), nil
}

// InvokeTyped encodes args as a positional list, calls the reference and
// decodes its result into R.
func InvokeTyped[R any](name string, args ...any) (R, error) {
	var r R
	in, err := payload.Args(args...)
	if err != nil {
		return r, err
	}
	out, err := Invoke(name, in)
	if err != nil {
		return r, err
	}
	if len(out) == 0 {
		return r, fmt.Errorf("invoke ref %s: %w", name, abi.StatusNoReturnValue)
	}
	err = payload.Unmarshal(out, &r)
	return r, err
}
