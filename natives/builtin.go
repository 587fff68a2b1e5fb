package natives

import (
	"context"
	"fmt"
	"time"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/wasmhost"
)

// Names of the built-in natives.
const (
	NativeGetGameTimer           = "GET_GAME_TIMER"
	NativeGetCurrentResourceName = "GET_CURRENT_RESOURCE_NAME"
)

// Host is the part of wasmhost.Runtime the loopback natives call back into.
type Host interface {
	TriggerEvent(ctx context.Context, name string, payload []byte, source string) error
	CallRef(ctx context.Context, ref uint32, args []byte) ([]byte, error)
}

// BuiltinConfig describes the resource the built-in natives serve.
type BuiltinConfig struct {
	Resource string
	Instance uint32
	// Clock returns the game time. Defaults to the time since Builtins was called.
	Clock func() time.Duration
}

// Builtins registers the natives a standalone host provides:
//
//	GET_GAME_TIMER             milliseconds of game time
//	GET_CURRENT_RESOURCE_NAME  the resource name
//	TRIGGER_EVENT_INTERNAL     (name, payload, length) delivered back as a local event
//	INVOKE_FUNCTION_REFERENCE  (name, args, length, out length) calls the resource's own refs
func Builtins(host Host, cfg BuiltinConfig) Option {
	if cfg.Clock == nil {
		start := time.Now()
		cfg.Clock = func() time.Duration { return time.Since(start) }
	}

	return WithOptions(
		WithNative(NativeGetGameTimer, func(nctx *wasmhost.NativeContext) error {
			nctx.SetResult(uint64(cfg.Clock().Milliseconds()))
			return nil
		}),
		WithNative(NativeGetCurrentResourceName, func(nctx *wasmhost.NativeContext) error {
			nctx.SetString(cfg.Resource)
			return nil
		}),
		WithNativeHash(abi.NativeTriggerEvent, abi.TriggerEventHash, MinArgs(3, func(nctx *wasmhost.NativeContext) error {
			name := nctx.Arg(0).String()
			payload, err := sizedRef(nctx.Arg(1), nctx.Arg(2).Uint32())
			if err != nil {
				return err
			}
			return host.TriggerEvent(nctx.Context(), name, payload, "")
		})),
		WithNativeHash(abi.NativeInvokeFunctionReference, abi.InvokeFunctionReferenceHash, MinArgs(4, func(nctx *wasmhost.NativeContext) error {
			resource, instance, id, err := ParseRefName(nctx.Arg(0).String())
			if err != nil {
				return err
			}
			if resource != cfg.Resource || instance != cfg.Instance {
				nctx.SetReferenceResult(nil)
				return nil
			}
			args, err := sizedRef(nctx.Arg(1), nctx.Arg(2).Uint32())
			if err != nil {
				return err
			}
			out, err := host.CallRef(nctx.Context(), id, args)
			if err != nil {
				return err
			}
			nctx.SetReferenceResult(out)
			return nil
		})),
	)
}

// sizedRef copies the first n bytes of a reference argument. The copy
// survives calls back into the guest, which may move its memory.
func sizedRef(a wasmhost.Argument, n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	ref := a.Ref()
	if uint64(n) > uint64(len(ref)) {
		return nil, fmt.Errorf("%w: length %d exceeds the %d byte argument", ErrBadArguments, n, len(ref))
	}
	return append([]byte(nil), ref[:n]...), nil
}
