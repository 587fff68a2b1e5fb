package wasmhost

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/runtime"
)

// scratchSlot is a guest allocation owned by the host.
type scratchSlot struct {
	ptr  uint32
	size uint32
}

type pendingEvent struct {
	name    string
	payload []byte
	source  string
}

// scriptModule is the loaded guest and its host-side state.
type scriptModule struct {
	compiled runtime.CompiledModule
	instance runtime.ModuleInstance
	rc       runtime.Context
	exports  Exports

	start        runtime.FunctionInstance
	onEvent      runtime.FunctionInstance
	onTick       runtime.FunctionInstance
	callRef      runtime.FunctionInstance
	alloc        runtime.FunctionInstance
	free         runtime.FunctionInstance
	duplicateRef runtime.FunctionInstance
	removeRef    runtime.FunctionInstance

	// handlingEvent is set while __cfx_on_event runs on the scratch slots.
	handlingEvent bool
	eventName     scratchSlot
	eventArgs     scratchSlot
	eventSource   scratchSlot

	// deferred holds events triggered during a guest call when nested
	// delivery is deferred.
	deferred []pendingEvent

	// depth counts guest calls in progress. A module discarded from inside
	// a call is closed when the outermost call returns.
	depth     int
	discarded bool
	closed    bool
}

func newScriptModule(compiled runtime.CompiledModule, instance runtime.ModuleInstance, rc runtime.Context, exports Exports) (*scriptModule, error) {
	s := &scriptModule{
		compiled:     compiled,
		instance:     instance,
		rc:           rc,
		exports:      exports,
		start:        instance.Function(abi.ExportStart),
		onEvent:      instance.Function(abi.ExportOnEvent),
		onTick:       instance.Function(abi.ExportOnTick),
		callRef:      instance.Function(abi.ExportCallRef),
		alloc:        instance.Function(abi.ExportAlloc),
		free:         instance.Function(abi.ExportFree),
		duplicateRef: instance.Function(abi.ExportDuplicateRef),
		removeRef:    instance.Function(abi.ExportRemoveRef),
	}
	if instance.Memory() == nil {
		return nil, fmt.Errorf("%q: %w", abi.ExportMemory, ErrMemoryNotExported)
	}
	if s.alloc == nil {
		return nil, fmt.Errorf("%s: %w", abi.ExportAlloc, ErrRequiredFunctionNotExported)
	}
	if s.free == nil {
		return nil, fmt.Errorf("%s: %w", abi.ExportFree, ErrRequiredFunctionNotExported)
	}
	return s, nil
}

func (s *scriptModule) memory() guestMemory {
	return memoryOf(s.instance)
}

// close releases the instance, its engine context and the compiled module.
func (s *scriptModule) close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.instance != nil {
		err = multierr.Append(err, s.instance.Close(ctx))
	}
	if s.rc != nil {
		err = multierr.Append(err, s.rc.Close(ctx))
	}
	if s.compiled != nil {
		err = multierr.Append(err, s.compiled.Close(ctx))
	}
	return err
}

// call invokes a guest export with the host bridge reachable from ctx.
func (r *Runtime) call(ctx context.Context, s *scriptModule, fn runtime.FunctionInstance, params ...uint64) ([]uint64, error) {
	if s.closed {
		return nil, ErrModuleDiscarded
	}
	callCtx := withHost(ctx, r)
	if s.rc != nil {
		callCtx = s.rc.WithRuntimeContext(callCtx)
	}

	s.depth++
	res, err := fn.Call(callCtx, params...)
	s.depth--

	if s.discarded {
		if s.depth == 0 {
			r.closeScript(ctx, s)
		}
		if err == nil {
			err = ErrModuleDiscarded
		}
	}
	return res, err
}

func (r *Runtime) allocate(ctx context.Context, s *scriptModule, size uint32) (uint32, error) {
	res, err := r.call(ctx, s, s.alloc, uint64(size), 1)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", abi.ExportAlloc, err)
	}
	if len(res) == 0 || uint32(res[0]) == 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrAllocationFailed, size)
	}
	return uint32(res[0]), nil
}

// allocBytes copies b into a fresh guest allocation.
func (r *Runtime) allocBytes(ctx context.Context, s *scriptModule, b []byte) (scratchSlot, error) {
	size := max(uint32(len(b)), 1)
	ptr, err := r.allocate(ctx, s, size)
	if err != nil {
		return scratchSlot{}, err
	}
	slot := scratchSlot{ptr: ptr, size: size}
	if err := s.memory().write(ptr, b); err != nil {
		return scratchSlot{}, multierr.Append(err, r.freeBytes(ctx, s, slot))
	}
	return slot, nil
}

func (r *Runtime) freeBytes(ctx context.Context, s *scriptModule, slot scratchSlot) error {
	if slot.ptr == 0 {
		return nil
	}
	if _, err := r.call(ctx, s, s.free, uint64(slot.ptr), uint64(slot.size), 1); err != nil {
		return fmt.Errorf("%s: %w", abi.ExportFree, err)
	}
	return nil
}

// copyInto writes b into a persistent slot, replacing the slot with a larger
// allocation when b does not fit.
func (r *Runtime) copyInto(ctx context.Context, s *scriptModule, slot *scratchSlot, b []byte) (uint32, error) {
	if slot.ptr != 0 && slot.size >= uint32(len(b)) {
		if err := s.memory().write(slot.ptr, b); err != nil {
			return 0, err
		}
		return slot.ptr, nil
	}

	fresh, err := r.allocBytes(ctx, s, b)
	if err != nil {
		return 0, err
	}
	old := *slot
	*slot = fresh
	if err := r.freeBytes(ctx, s, old); err != nil {
		return 0, err
	}
	return fresh.ptr, nil
}

// preallocate reserves the persistent event slots.
func (r *Runtime) preallocate(ctx context.Context, s *scriptModule) error {
	slots := []struct {
		slot *scratchSlot
		size uint32
	}{
		{&s.eventName, r.config.Scratch.EventName},
		{&s.eventArgs, r.config.Scratch.EventArgs},
		{&s.eventSource, r.config.Scratch.EventSource},
	}
	for _, sl := range slots {
		slot, err := r.allocBytes(ctx, s, make([]byte, sl.size))
		if err != nil {
			return fmt.Errorf("scratch allocation: %w", err)
		}
		*sl.slot = slot
	}
	return nil
}

// deliverEvent calls __cfx_on_event. A nested delivery uses its own
// allocations so the outer handler's buffers stay intact.
func (r *Runtime) deliverEvent(ctx context.Context, s *scriptModule, name string, payload []byte, source string) error {
	nameBytes, sourceBytes := cstringBytes(name), cstringBytes(source)

	if s.handlingEvent {
		var slots []scratchSlot
		release := func() error {
			var err error
			for _, slot := range slots {
				err = multierr.Append(err, r.freeBytes(ctx, s, slot))
			}
			return err
		}
		for _, b := range [][]byte{nameBytes, payload, sourceBytes} {
			slot, err := r.allocBytes(ctx, s, b)
			if err != nil {
				return multierr.Append(err, release())
			}
			slots = append(slots, slot)
		}
		if _, err := r.call(ctx, s, s.onEvent,
			uint64(slots[0].ptr), uint64(slots[1].ptr), uint64(len(payload)), uint64(slots[2].ptr)); err != nil {
			return err
		}
		return release()
	}

	namePtr, err := r.copyInto(ctx, s, &s.eventName, nameBytes)
	if err != nil {
		return err
	}
	argsPtr, err := r.copyInto(ctx, s, &s.eventArgs, payload)
	if err != nil {
		return err
	}
	sourcePtr, err := r.copyInto(ctx, s, &s.eventSource, sourceBytes)
	if err != nil {
		return err
	}

	s.handlingEvent = true
	defer func() { s.handlingEvent = false }()
	_, err = r.call(ctx, s, s.onEvent, uint64(namePtr), uint64(argsPtr), uint64(len(payload)), uint64(sourcePtr))
	return err
}

// invokeCallRef runs __cfx_call_ref and copies the result into r.retBuf.
func (r *Runtime) invokeCallRef(ctx context.Context, s *scriptModule, ref uint32, args []byte) ([]byte, error) {
	if s.callRef == nil {
		return nil, fmt.Errorf("%s: %w", abi.ExportCallRef, ErrRequiredFunctionNotExported)
	}
	slot, err := r.allocBytes(ctx, s, args)
	if err != nil {
		return nil, err
	}
	res, err := r.call(ctx, s, s.callRef, uint64(ref), uint64(slot.ptr), uint64(len(args)))
	if err != nil {
		return nil, err
	}
	if err := r.freeBytes(ctx, s, slot); err != nil {
		return nil, err
	}

	r.retBuf = r.retBuf[:0]
	if len(res) == 0 || uint32(res[0]) == 0 {
		return r.retBuf, nil
	}
	mem := s.memory()
	raw, err := mem.view(uint32(res[0]), abi.ScrObjectSize)
	if err != nil {
		return nil, err
	}
	obj := abi.DecodeScrObject(raw)
	if obj.Data == 0 || obj.Length == 0 {
		return r.retBuf, nil
	}
	data, err := mem.view(obj.Data, obj.Length)
	if err != nil {
		return nil, err
	}
	r.retBuf = append(r.retBuf, data...)
	return r.retBuf, nil
}
