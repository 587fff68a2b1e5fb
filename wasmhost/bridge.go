package wasmhost

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/runtime"
)

// hostKey is the key used to store the owning Runtime in the call context.
type hostKey struct{}

// withHost returns ctx carrying r for the cfx host functions.
func withHost(ctx context.Context, r *Runtime) context.Context {
	return context.WithValue(ctx, hostKey{}, r)
}

// hostFromContext retrieves the Runtime that issued the guest call.
func hostFromContext(ctx context.Context) *Runtime {
	return ctx.Value(hostKey{}).(*Runtime)
}

// newHostModule declares the cfx imports.
func newHostModule() *runtime.HostModule {
	i32, i64 := runtime.I32, runtime.I64
	return runtime.NewHostModule(abi.HostModule).
		AddFunction(abi.ImportLog, []runtime.ValueType{i32}, nil, scriptLogFn).
		AddFunction(abi.ImportInvoke, []runtime.ValueType{i64, i32, i32, i32}, []runtime.ValueType{i32}, invokeFn).
		AddFunction(abi.ImportCanonicalizeRef, []runtime.ValueType{i32, i32, i32}, []runtime.ValueType{i32}, canonicalizeRefFn).
		AddFunction(abi.ImportInvokeRefFunc, []runtime.ValueType{i32, i32, i32, i32, i32}, []runtime.ValueType{i32}, invokeRefFuncFn)
}

func scriptLogFn(ctx context.Context, caller runtime.ModuleInstance, stack []uint64) {
	r := hostFromContext(ctx)
	msg, err := memoryOf(caller).readCString(uint32(stack[0]))
	if err != nil {
		r.logger.Warn(abi.HostModule+"::"+abi.ImportLog+" error", zap.Error(err))
		return
	}
	r.emit(msg)
}

func invokeFn(ctx context.Context, caller runtime.ModuleInstance, stack []uint64) {
	r := hostFromContext(ctx)
	status, err := r.invokeNative(ctx, caller, stack[0], uint32(stack[1]), uint32(stack[2]), uint32(stack[3]))
	if err != nil {
		r.trap(abi.ImportInvoke, err)
	}
	stack[0] = encodeStatus(status)
}

func canonicalizeRefFn(ctx context.Context, caller runtime.ModuleInstance, stack []uint64) {
	r := hostFromContext(ctx)
	n, err := r.canonicalizeRef(caller, uint32(stack[0]), uint32(stack[1]), uint32(stack[2]))
	if err != nil {
		r.trap(abi.ImportCanonicalizeRef, err)
	}
	stack[0] = uint64(n)
}

func invokeRefFuncFn(ctx context.Context, caller runtime.ModuleInstance, stack []uint64) {
	r := hostFromContext(ctx)
	status, err := r.invokeRefFunc(ctx, caller,
		uint32(stack[0]), uint32(stack[1]), uint32(stack[2]), uint32(stack[3]), uint32(stack[4]))
	if err != nil {
		r.trap(abi.ImportInvokeRefFunc, err)
	}
	stack[0] = encodeStatus(status)
}

func encodeStatus(s abi.Status) uint64 {
	return uint64(uint32(int32(s)))
}

// trap logs a fatal import error and aborts the guest call. The engine
// surfaces the panic as the error of the exported function, which discards
// the module.
func (r *Runtime) trap(name string, err error) {
	err = fmt.Errorf("%s::%s error: %w", abi.HostModule, name, err)
	r.logger.Error("host function failed", zap.String("import", name), zap.Error(err))
	panic(err)
}

// invokeNative implements cfx::invoke.
func (r *Runtime) invokeNative(ctx context.Context, caller runtime.ModuleInstance, hash uint64, argsPtr, argc, retvalPtr uint32) (abi.Status, error) {
	if argc > abi.MaxArguments {
		return abi.StatusTooManyArguments, nil
	}
	if argc > 0 && argsPtr == 0 {
		return abi.StatusWrongArgs, nil
	}
	if r.invoker == nil {
		return 0, ErrNoNativeInvoker
	}

	mem := memoryOf(caller)
	args := make([]Argument, argc)
	if argc > 0 {
		raw, err := mem.view(argsPtr, argc*abi.ArgumentSize)
		if err != nil {
			return 0, err
		}
		for i := range args {
			a := abi.DecodeArgument(raw[i*abi.ArgumentSize:])
			switch a.Kind {
			case abi.ArgValue:
				args[i] = Argument{kind: a.Kind, value: a.Value}
			case abi.ArgReference:
				ref, err := referenceView(mem, a)
				if err != nil {
					return 0, fmt.Errorf("argument %d: %w", i, err)
				}
				args[i] = Argument{kind: a.Kind, value: a.Value, ref: ref}
			default:
				return abi.StatusWrongArgs, nil
			}
		}
	}

	nctx := NewNativeContext(ctx, hash, args...)
	if status := r.invoker(nctx); !abi.Succeeded(status) {
		return 0, fmt.Errorf("%w: native %#016x returned %#x", ErrNativeInvokeFailed, hash, status)
	}
	if retvalPtr == 0 {
		return abi.StatusOK, nil
	}

	// The native may have re-entered the guest, so the descriptor is read now.
	raw, err := memoryOf(caller).view(retvalPtr, abi.ReturnDescriptorSize)
	if err != nil {
		return 0, err
	}
	desc := abi.DecodeReturnDescriptor(raw)
	data, status := nctx.EncodeResult(desc.Kind)
	if status != abi.StatusOK {
		return status, nil
	}
	return r.writeReturn(ctx, caller, retvalPtr, desc, data)
}

// referenceView resolves a reference argument. A zero size means the value
// extends to the end of memory.
func referenceView(mem guestMemory, a abi.Argument) ([]byte, error) {
	if a.Value > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: offset %#x", ErrIncorrectPointer, a.Value)
	}
	if a.Size == 0 {
		return mem.tail(uint32(a.Value))
	}
	return mem.view(uint32(a.Value), a.Size)
}

// writeReturn copies data into the descriptor's buffer, asking the guest for
// a larger one first when needed.
func (r *Runtime) writeReturn(ctx context.Context, caller runtime.ModuleInstance, retvalPtr uint32, desc abi.ReturnDescriptor, data []byte) (abi.Status, error) {
	n := uint32(len(data))
	if desc.Capacity < n {
		buf, ok, err := extendRetvalBuffer(ctx, caller, n)
		if err != nil {
			return 0, err
		}
		if !ok {
			return abi.StatusSmallReturnBuffer, nil
		}
		desc.Buffer, desc.Capacity = buf, n
	}

	mem := memoryOf(caller)
	// An empty result never touches the buffer; a none-kind call leaves it
	// unset.
	if n > 0 {
		if err := mem.write(desc.Buffer, data); err != nil {
			return 0, err
		}
	}
	desc.Length = n
	raw, err := mem.view(retvalPtr, abi.ReturnDescriptorSize)
	if err != nil {
		return 0, err
	}
	desc.Encode(raw)
	return abi.Status(n), nil
}

// extendRetvalBuffer asks the guest for a return buffer of at least size
// bytes. ok is false when the guest cannot provide one.
func extendRetvalBuffer(ctx context.Context, caller runtime.ModuleInstance, size uint32) (buf uint32, ok bool, err error) {
	fn := caller.Function(abi.ExportExtendRetvalBuffer)
	if fn == nil {
		return 0, false, nil
	}
	res, err := fn.Call(ctx, uint64(size))
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", abi.ExportExtendRetvalBuffer, err)
	}
	if len(res) == 0 || uint32(res[0]) == 0 {
		return 0, false, nil
	}
	return uint32(res[0]), true, nil
}

// invokeRefFunc implements cfx::invoke_ref_func through the
// INVOKE_FUNCTION_REFERENCE native.
func (r *Runtime) invokeRefFunc(ctx context.Context, caller runtime.ModuleInstance, namePtr, argsPtr, argsLen, bufPtr, bufCap uint32) (abi.Status, error) {
	if r.invoker == nil {
		return 0, ErrNoNativeInvoker
	}
	mem := memoryOf(caller)
	name, err := mem.cstring(namePtr)
	if err != nil {
		return 0, fmt.Errorf("reference name: %w", err)
	}
	args, err := mem.view(argsPtr, argsLen)
	if err != nil {
		return 0, fmt.Errorf("reference arguments: %w", err)
	}

	var outLen [4]byte
	nctx := NewNativeContext(ctx, abi.InvokeFunctionReferenceHash,
		Argument{kind: abi.ArgReference, value: uint64(namePtr), ref: name},
		Argument{kind: abi.ArgReference, value: uint64(argsPtr), ref: args},
		ValueArgument(uint64(argsLen)),
		ReferenceArgument(outLen[:]),
	)
	if status := r.invoker(nctx); !abi.Succeeded(status) {
		return 0, fmt.Errorf("%w: %s returned %#x", ErrNativeInvokeFailed, abi.NativeInvokeFunctionReference, status)
	}

	n := binary.LittleEndian.Uint32(outLen[:])
	if n == 0 {
		return abi.StatusOK, nil
	}
	data, _ := nctx.Data()
	if uint64(n) > uint64(len(data)) {
		return 0, fmt.Errorf("%w: reported %d bytes, result holds %d", ErrInvalidResult, n, len(data))
	}

	if bufCap < n {
		buf, ok, err := extendRetvalBuffer(ctx, caller, n)
		if err != nil {
			return 0, err
		}
		if !ok {
			return abi.StatusSmallReturnBuffer, nil
		}
		bufPtr = buf
	}
	if err := memoryOf(caller).write(bufPtr, data[:n]); err != nil {
		return 0, err
	}
	return abi.Status(n), nil
}

// canonicalizeRef implements cfx::canonicalize_ref. It returns the size the
// NUL-terminated name needs; the name is written only when it fits.
func (r *Runtime) canonicalizeRef(caller runtime.ModuleInstance, ref, buf, capacity uint32) (uint32, error) {
	if r.canonicalizer == nil {
		return 0, ErrNoCanonicalizer
	}
	name, err := r.canonicalizer(ref)
	if err != nil {
		return 0, fmt.Errorf("canonicalize %d: %w", ref, err)
	}
	return memoryOf(caller).writeIfUnderLimit(cstringBytes(name), buf, capacity)
}
