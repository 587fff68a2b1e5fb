// Package wasmhost hosts a single guest WebAssembly script: it loads the
// module, drives its tick and event entry points, calls its function
// references and bridges the guest's cfx imports to the embedding host.
package wasmhost

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/runtime"
	_ "github.com/cfxwasm/wasmhost/runtime/wazero" // Register Wazero runtime
)

// Runtime owns at most one loaded script.
//
// A Runtime is not safe for concurrent use. Natives invoked by the script may
// call back into it, for example to trigger a nested event.
type Runtime struct {
	engine runtime.Runtime
	config Config
	logger *zap.Logger

	// scriptLogger receives script output when no LogSink is installed.
	scriptLogger *zap.Logger

	invoker       NativeInvoker
	canonicalizer Canonicalizer
	logSink       LogSink

	host   *runtime.HostModule
	script *scriptModule
	retBuf []byte
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	logger *zap.Logger
	config Config
	engine runtime.Runtime
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfig sets the configuration. Unset fields take their defaults.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithEngine uses engine instead of creating one from the configuration.
// The Runtime takes ownership and closes it.
func WithEngine(engine runtime.Runtime) Option {
	return func(o *options) {
		o.engine = engine
	}
}

// NewRuntime creates a Runtime with no script loaded.
func NewRuntime(_ context.Context, opts ...Option) (*Runtime, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	o.config.Default()
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("wasmhost: invalid config: %w", err)
	}

	engine := o.engine
	if engine == nil {
		var err error
		engine, err = runtime.NewRuntime(o.config.Runtime.Type, o.config.Runtime.engineConfig())
		if err != nil {
			return nil, fmt.Errorf("wasmhost: error creating runtime: %w", err)
		}
	}

	return &Runtime{
		engine:       engine,
		config:       o.config,
		logger:       o.logger,
		scriptLogger: o.logger.Named("script"),
		host:         newHostModule(),
	}, nil
}

// Close unloads the script and releases the engine.
func (r *Runtime) Close(ctx context.Context) error {
	r.UnloadModule(ctx)
	if err := r.engine.Close(ctx); err != nil {
		return fmt.Errorf("wasmhost: error closing runtime: %w", err)
	}
	return nil
}

// SetLogSink installs the receiver of script output. nil restores the
// default, which writes to the logger named "script".
func (r *Runtime) SetLogSink(sink LogSink) { r.logSink = sink }

// SetNativeInvoker installs the function executing natives.
func (r *Runtime) SetNativeInvoker(invoker NativeInvoker) { r.invoker = invoker }

// SetCanonicalizer installs the function naming guest references.
func (r *Runtime) SetCanonicalizer(c Canonicalizer) { r.canonicalizer = c }

// Loaded reports whether a script is loaded.
func (r *Runtime) Loaded() bool { return r.script != nil }

// LoadModule replaces the loaded script with the module in binary. wasi
// exposes wasi_snapshot_preview1 to the guest. On failure no script is loaded.
func (r *Runtime) LoadModule(ctx context.Context, binary []byte, wasi bool) error {
	r.UnloadModule(ctx)

	compiled, err := r.engine.Compile(ctx, binary)
	if err != nil {
		return fmt.Errorf("wasmhost: error compiling module: %w", err)
	}

	exports := DetectExports(compiled)
	if err := exports.Validate(); err != nil {
		_ = compiled.Close(ctx)
		return fmt.Errorf("wasmhost: %w", err)
	}

	instance, rc, err := r.engine.InstantiateWithHost(withHost(ctx, r), compiled, r.host, runtime.InstanceConfig{
		WASI:           wasi,
		StartFunctions: []string{abi.ExportInitialize},
	})
	if err != nil {
		_ = compiled.Close(ctx)
		return fmt.Errorf("wasmhost: error instantiating module: %w", err)
	}

	s, err := newScriptModule(compiled, instance, rc, exports)
	if err != nil {
		r.closeScript(ctx, &scriptModule{compiled: compiled, instance: instance, rc: rc})
		return fmt.Errorf("wasmhost: %w", err)
	}
	r.script = s

	if err := r.preallocate(ctx, s); err != nil {
		r.discard(ctx, s)
		return fmt.Errorf("wasmhost: %w", err)
	}

	if s.start != nil {
		if _, err := r.call(ctx, s, s.start); err != nil && !isCleanExit(err) {
			r.logger.Error(abi.ExportStart+" error", zap.Error(err))
			r.discard(ctx, s)
			return fmt.Errorf("wasmhost: %s: %w", abi.ExportStart, err)
		}
		if err := r.flushDeferred(ctx, s); err != nil {
			return fmt.Errorf("wasmhost: %w", err)
		}
	}
	r.logger.Info("module loaded",
		zap.Int("size", len(binary)),
		zap.Bool("wasi", wasi),
		zap.Uint32("memory_pages", r.MemorySize()))
	return nil
}

// UnloadModule drops the loaded script, if any.
func (r *Runtime) UnloadModule(ctx context.Context) {
	if s := r.script; s != nil {
		r.discard(ctx, s)
	}
}

// Tick runs __cfx_on_tick. Any error discards the script.
func (r *Runtime) Tick(ctx context.Context) error {
	s := r.script
	if s == nil || s.onTick == nil {
		return nil
	}
	if _, err := r.call(ctx, s, s.onTick); err != nil {
		return r.fail(ctx, s, abi.ExportOnTick, err)
	}
	return r.flushDeferred(ctx, s)
}

// TriggerEvent delivers an event to the script. Any error discards the script.
//
// An event triggered while the script is running, typically by a native it
// called, is delivered at once unless nested events are deferred. Deferred
// events are delivered in order when the outermost guest call returns.
func (r *Runtime) TriggerEvent(ctx context.Context, name string, payload []byte, source string) error {
	s := r.script
	if s == nil || s.onEvent == nil {
		return nil
	}
	if s.depth > 0 && r.config.Runtime.NestedEvents == NestedEventsDeferred {
		s.deferred = append(s.deferred, pendingEvent{name: name, payload: bytes.Clone(payload), source: source})
		return nil
	}
	if err := r.deliverEvent(ctx, s, name, payload, source); err != nil {
		return r.fail(ctx, s, abi.ExportOnEvent, err)
	}
	return r.flushDeferred(ctx, s)
}

// flushDeferred delivers the events queued during guest calls, including
// those their handlers trigger in turn.
func (r *Runtime) flushDeferred(ctx context.Context, s *scriptModule) error {
	for s.depth == 0 && r.script == s && len(s.deferred) > 0 {
		ev := s.deferred[0]
		s.deferred = s.deferred[1:]
		if err := r.deliverEvent(ctx, s, ev.name, ev.payload, ev.source); err != nil {
			return r.fail(ctx, s, abi.ExportOnEvent, err)
		}
	}
	return nil
}

// CallRef calls the guest reference ref. The result is only valid until the
// next CallRef. Any error discards the script.
func (r *Runtime) CallRef(ctx context.Context, ref uint32, args []byte) ([]byte, error) {
	s := r.script
	if s == nil {
		return nil, nil
	}
	out, err := r.invokeCallRef(ctx, s, ref, args)
	if err != nil {
		return nil, r.fail(ctx, s, abi.ExportCallRef, err)
	}
	if len(s.deferred) > 0 {
		// Event handlers may call references and overwrite retBuf.
		out = bytes.Clone(out)
	}
	if err := r.flushDeferred(ctx, s); err != nil {
		return nil, err
	}
	return out, nil
}

// DuplicateRef adds a holder to ref and returns the id the guest reports,
// or 0 when no script handles references.
func (r *Runtime) DuplicateRef(ctx context.Context, ref uint32) uint32 {
	s := r.script
	if s == nil || s.duplicateRef == nil {
		return 0
	}
	res, err := r.call(ctx, s, s.duplicateRef, uint64(ref))
	if err != nil {
		_ = r.fail(ctx, s, abi.ExportDuplicateRef, err)
		return 0
	}
	if len(res) == 0 {
		return 0
	}
	return uint32(res[0])
}

// RemoveRef drops a holder of ref.
func (r *Runtime) RemoveRef(ctx context.Context, ref uint32) {
	s := r.script
	if s == nil || s.removeRef == nil {
		return
	}
	if _, err := r.call(ctx, s, s.removeRef, uint64(ref)); err != nil {
		_ = r.fail(ctx, s, abi.ExportRemoveRef, err)
	}
}

// MemorySize returns the script's memory size in 64 KiB pages, 0 when unloaded.
func (r *Runtime) MemorySize() uint32 {
	if r.script == nil {
		return 0
	}
	return r.script.memory().size() / wasmPageSize
}

// emit forwards script output.
func (r *Runtime) emit(msg string) {
	if r.logSink != nil {
		r.logSink(msg)
		return
	}
	NewZapLogSink(r.scriptLogger)(msg)
}

// fail reports a fault in export and discards s.
func (r *Runtime) fail(ctx context.Context, s *scriptModule, export string, err error) error {
	err = fmt.Errorf("%s error: %w", export, err)
	r.logger.Error("script fault", zap.String("export", export), zap.Error(err))
	if r.logSink != nil {
		r.logSink(err.Error())
	}
	r.discard(ctx, s)
	return err
}

// discard unloads s. Closing waits for guest calls in progress to unwind.
func (r *Runtime) discard(ctx context.Context, s *scriptModule) {
	if r.script == s {
		r.script = nil
	}
	if s.discarded {
		return
	}
	s.discarded = true
	if s.depth == 0 {
		r.closeScript(ctx, s)
	}
}

func (r *Runtime) closeScript(ctx context.Context, s *scriptModule) {
	if err := s.close(ctx); err != nil {
		r.logger.Warn("error closing module", zap.Error(err))
	}
}

// isCleanExit reports a WASI exit with status 0.
func isCleanExit(err error) bool {
	var exit *runtime.ExitError
	return errors.As(err, &exit) && exit.Code == 0
}
