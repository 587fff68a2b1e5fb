//go:build !wasm

// Package hosttest runs guest code against an in-process host. Natives are
// served by a wasmhost.NativeInvoker and guest memory is the simulated
// address space of package mem. Faults that would trap a real module panic.
package hosttest

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/guest/internal/imports"
	"github.com/cfxwasm/wasmhost/guest/internal/mem"
	"github.com/cfxwasm/wasmhost/wasmhost"
)

// Host answers the cfx imports.
type Host struct {
	// Natives serves invoke and invoke_ref_func.
	Natives wasmhost.NativeInvoker
	// Canonicalize names a reference for canonicalize_ref.
	Canonicalize wasmhost.Canonicalizer
	// NoExtend behaves as if the guest did not export
	// __cfx_extend_retval_buffer.
	NoExtend bool

	// Logs collects script_log messages.
	Logs []string
	// Extends records the sizes of return buffer extension requests.
	Extends []uint32
}

// Install routes the cfx imports to h until the test ends. Guest memory is
// reset before and after.
func Install(t testing.TB, h *Host) *Host {
	t.Helper()
	mem.Reset()
	restore := imports.SetHost(imports.Host{
		ScriptLog:       h.scriptLog,
		Invoke:          h.invoke,
		CanonicalizeRef: h.canonicalizeRef,
		InvokeRefFunc:   h.invokeRefFunc,
	})
	t.Cleanup(func() {
		restore()
		mem.Reset()
	})
	return h
}

func (h *Host) scriptLog(msg uint32) {
	h.Logs = append(h.Logs, mem.CString(msg))
}

func (h *Host) invoke(hash uint64, argsPtr, argc, retvalPtr uint32) int32 {
	if argc > abi.MaxArguments {
		return int32(abi.StatusTooManyArguments)
	}
	if argc > 0 && argsPtr == 0 {
		return int32(abi.StatusWrongArgs)
	}

	args := make([]wasmhost.Argument, argc)
	raw := mem.Bytes(argsPtr, argc*abi.ArgumentSize)
	for i := range args {
		a := abi.DecodeArgument(raw[i*abi.ArgumentSize:])
		switch a.Kind {
		case abi.ArgValue:
			args[i] = wasmhost.ValueArgument(a.Value)
		case abi.ArgReference:
			args[i] = wasmhost.ReferenceArgument(view(uint32(a.Value), a.Size))
		default:
			return int32(abi.StatusWrongArgs)
		}
	}

	nctx := h.call(hash, args...)
	if retvalPtr == 0 {
		return int32(abi.StatusOK)
	}

	descRaw := mem.Bytes(retvalPtr, abi.ReturnDescriptorSize)
	desc := abi.DecodeReturnDescriptor(descRaw)
	data, status := nctx.EncodeResult(desc.Kind)
	if status != abi.StatusOK {
		return int32(status)
	}
	n := uint32(len(data))
	if desc.Capacity < n {
		buf, ok := h.extend(n)
		if !ok {
			return int32(abi.StatusSmallReturnBuffer)
		}
		desc.Buffer, desc.Capacity = buf, n
	}
	copy(mem.Bytes(desc.Buffer, n), data)
	desc.Length = n
	desc.Encode(descRaw)
	return int32(n)
}

func (h *Host) canonicalizeRef(ref, buf, size uint32) uint32 {
	if h.Canonicalize == nil {
		panic("hosttest: canonicalize_ref without a canonicalizer")
	}
	s, err := h.Canonicalize(ref)
	if err != nil {
		panic(fmt.Sprintf("hosttest: canonicalize %d: %v", ref, err))
	}
	name := mem.CStringBytes(s)
	n := uint32(len(name))
	if n <= size {
		copy(mem.Bytes(buf, n), name)
	}
	return n
}

func (h *Host) invokeRefFunc(namePtr, argsPtr, argsLen, buf, bufCap uint32) int32 {
	var outLen [4]byte
	nctx := h.call(abi.InvokeFunctionReferenceHash,
		wasmhost.ReferenceArgument(mem.CStringBytes(mem.CString(namePtr))),
		wasmhost.ReferenceArgument(mem.Bytes(argsPtr, argsLen)),
		wasmhost.ValueArgument(uint64(argsLen)),
		wasmhost.ReferenceArgument(outLen[:]),
	)

	n := binary.LittleEndian.Uint32(outLen[:])
	if n == 0 {
		return int32(abi.StatusOK)
	}
	data, _ := nctx.Data()
	if int(n) > len(data) {
		panic(fmt.Sprintf("hosttest: reference result reports %d bytes, holds %d", n, len(data)))
	}
	if bufCap < n {
		ptr, ok := h.extend(n)
		if !ok {
			return int32(abi.StatusSmallReturnBuffer)
		}
		buf = ptr
	}
	copy(mem.Bytes(buf, n), data[:n])
	return int32(n)
}

func (h *Host) call(hash uint64, args ...wasmhost.Argument) *wasmhost.NativeContext {
	if h.Natives == nil {
		panic("hosttest: no native invoker")
	}
	nctx := wasmhost.NewNativeContext(context.Background(), hash, args...)
	if status := h.Natives(nctx); !abi.Succeeded(status) {
		panic(fmt.Sprintf("hosttest: native %#016x returned %#x", hash, status))
	}
	return nctx
}

func (h *Host) extend(size uint32) (uint32, bool) {
	h.Extends = append(h.Extends, size)
	if h.NoExtend {
		return 0, false
	}
	ptr := mem.ExtendRetval(size)
	return ptr, ptr != 0
}

func view(ptr, size uint32) []byte {
	if ptr == 0 {
		return nil
	}
	if size == 0 {
		return mem.Tail(ptr)
	}
	return mem.Bytes(ptr, size)
}
