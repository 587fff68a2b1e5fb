package wazero

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/stealthrocket/wasi-go"
	wasigo "github.com/stealthrocket/wasi-go/imports"
	"github.com/stealthrocket/wasi-go/imports/wasi_snapshot_preview1"
	"github.com/stealthrocket/wazergo"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/multierr"

	"github.com/cfxwasm/wasmhost/runtime"
)

const (
	// wasmEdgeV2Extension is the WASI extension name
	wasmEdgeV2Extension = "wasmedgev2"
	// wasiModuleName is the module name wasi-go instantiates its host functions under.
	wasiModuleName = "wasi_snapshot_preview1"
)

// wazeroRuntime implements runtime.Runtime using Wazero
type wazeroRuntime struct {
	runtime wazero.Runtime
	config  runtime.Config
}

// wazeroCompiledModule implements runtime.CompiledModule for Wazero
type wazeroCompiledModule struct {
	module wazero.CompiledModule
}

// wazeroModuleInstance implements runtime.ModuleInstance for Wazero
type wazeroModuleInstance struct {
	instance api.Module
}

// wazeroFunctionInstance implements runtime.FunctionInstance for Wazero
type wazeroFunctionInstance struct {
	function api.Function
}

// wazeroMemory implements runtime.Memory for Wazero
type wazeroMemory struct {
	memory api.Memory
}

// wazeroContext implements runtime.Context for Wazero. It owns the host
// modules instantiated for one guest so that a later load can reuse the names.
type wazeroContext struct {
	runtime          wazero.Runtime
	hostModule       api.Module
	sys              wasi.System
	wasiP1HostModule *wasi_snapshot_preview1.Module
}

// Compile compiles the given Wasm binary into a CompiledModule
func (r *wazeroRuntime) Compile(ctx context.Context, binary []byte) (runtime.CompiledModule, error) {
	compiled, err := r.runtime.CompileModule(ctx, binary)
	if err != nil {
		return nil, fmt.Errorf("wazero compile error: %v: %w", err, runtime.ErrModuleCompileFailed)
	}
	return &wazeroCompiledModule{module: compiled}, nil
}

// InstantiateWithHost creates module instance with host functions and runtime-specific setup
func (r *wazeroRuntime) InstantiateWithHost(ctx context.Context, module runtime.CompiledModule, hostModule *runtime.HostModule, cfg runtime.InstanceConfig) (runtime.ModuleInstance, runtime.Context, error) {
	wazeroModule, ok := module.(*wazeroCompiledModule)
	if !ok {
		return nil, nil, fmt.Errorf("invalid module type for wazero runtime: %w", runtime.ErrInvalidConfiguration)
	}

	rc := &wazeroContext{runtime: r.runtime}

	if cfg.WASI {
		var system wasi.System
		var err error
		ctx, system, err = wasigo.NewBuilder().
			WithSocketsExtension(wasmEdgeV2Extension, wazeroModule.module).
			WithEnv(cfg.Env...).
			Instantiate(ctx, r.runtime)
		if err != nil {
			return nil, nil, fmt.Errorf("wasi instantiation failed: %w", err)
		}
		rc.sys = system

		// Extract the wasi host module instance from the context as a workaround
		// to avoid panic when calling wasi functions with different context than the one used to instantiate the host module.
		wasiP1HostModule, ok := moduleInstanceFor[*wasi_snapshot_preview1.Module](ctx)
		if !ok {
			rc.Close(ctx)
			return nil, nil, fmt.Errorf("failed to retrieve wasi host module instance: %w", runtime.ErrInvalidConfiguration)
		}
		rc.wasiP1HostModule = wasiP1HostModule
	}

	if hostModule != nil {
		hm, err := r.instantiateHostModule(ctx, hostModule)
		if err != nil {
			rc.Close(ctx)
			return nil, nil, fmt.Errorf("host module instantiation failed: %w", err)
		}
		rc.hostModule = hm
	}

	config := wazero.NewModuleConfig().WithStartFunctions(cfg.StartFunctions...)
	instance, err := r.runtime.InstantiateModule(ctx, wazeroModule.module, config)
	if err != nil {
		rc.Close(ctx)
		return nil, nil, fmt.Errorf("guest module instantiation failed: %v: %w", err, runtime.ErrModuleInstantiateFailed)
	}

	return &wazeroModuleInstance{instance: instance}, rc, nil
}

// Close closes the runtime and releases all resources
func (r *wazeroRuntime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// ExportedFunctions lists the exported function names in sorted order.
func (m *wazeroCompiledModule) ExportedFunctions() []string {
	defs := m.module.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExportsMemory reports whether a memory is exported under name.
func (m *wazeroCompiledModule) ExportsMemory(name string) bool {
	_, ok := m.module.ExportedMemories()[name]
	return ok
}

// Close releases the resources associated with the compiled module
func (m *wazeroCompiledModule) Close(ctx context.Context) error {
	return m.module.Close(ctx)
}

// Function returns a handle to an exported function
func (m *wazeroModuleInstance) Function(name string) runtime.FunctionInstance {
	fn := m.instance.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	return &wazeroFunctionInstance{function: fn}
}

// Memory returns the memory instance of the module
func (m *wazeroModuleInstance) Memory() runtime.Memory {
	memory := m.instance.Memory()
	if memory == nil {
		return nil
	}
	return &wazeroMemory{memory: memory}
}

// Close closes the instance and releases its resources
func (m *wazeroModuleInstance) Close(ctx context.Context) error {
	return m.instance.Close(ctx)
}

// Call executes the function with the given parameters
func (f *wazeroFunctionInstance) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	res, err := f.function.Call(ctx, params...)
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		return res, &runtime.ExitError{Code: exitErr.ExitCode()}
	}
	return res, err
}

// Size returns the memory size in bytes.
func (mem *wazeroMemory) Size() uint32 {
	return mem.memory.Size()
}

// Read reads 'size' bytes from the memory at 'offset'
func (mem *wazeroMemory) Read(offset uint32, size uint32) ([]byte, bool) {
	return mem.memory.Read(offset, size)
}

// Write writes 'data' to the memory at 'offset'
func (mem *wazeroMemory) Write(offset uint32, data []byte) bool {
	return mem.memory.Write(offset, data)
}

// Close releases runtime-specific resources
func (c *wazeroContext) Close(ctx context.Context) error {
	var err error
	if c.hostModule != nil {
		err = multierr.Append(err, c.hostModule.Close(ctx))
		c.hostModule = nil
	}
	if c.sys != nil {
		err = multierr.Append(err, c.sys.Close(ctx))
		c.sys = nil
		// wasi-go leaves its host module registered under the fixed WASI name.
		if m := c.runtime.Module(wasiModuleName); m != nil {
			err = multierr.Append(err, m.Close(ctx))
		}
	}
	return err
}

// WithRuntimeContext returns a context configured for runtime-specific operations
func (c *wazeroContext) WithRuntimeContext(ctx context.Context) context.Context {
	if c.wasiP1HostModule == nil {
		return ctx
	}
	return withModuleInstance(ctx, c.wasiP1HostModule)
}

// instantiateHostModule creates and instantiates the host module with exported functions
func (r *wazeroRuntime) instantiateHostModule(ctx context.Context, hostModule *runtime.HostModule) (api.Module, error) {
	builder := r.runtime.NewHostModuleBuilder(hostModule.Name)

	for _, hostFunc := range hostModule.Functions {
		if hostFunc.Function == nil {
			return nil, fmt.Errorf("no implementation for host function %s: %w", hostFunc.FunctionName, runtime.ErrHostFunctionNotFound)
		}

		paramTypes := make([]api.ValueType, len(hostFunc.ParamTypes))
		for i, vt := range hostFunc.ParamTypes {
			paramTypes[i] = convertValueType(vt)
		}

		resultTypes := make([]api.ValueType, len(hostFunc.ResultTypes))
		for i, vt := range hostFunc.ResultTypes {
			resultTypes[i] = convertValueType(vt)
		}

		fn := hostFunc.Function
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				fn(ctx, &wazeroModuleInstance{instance: mod}, stack)
			}), paramTypes, resultTypes).
			WithName(hostFunc.FunctionName).
			Export(hostFunc.FunctionName)
	}

	return builder.Instantiate(ctx)
}

// convertValueType converts runtime.ValueType to api.ValueType
func convertValueType(vt runtime.ValueType) api.ValueType {
	switch vt {
	case runtime.ValueTypeI32:
		return api.ValueTypeI32
	case runtime.ValueTypeI64:
		return api.ValueTypeI64
	case runtime.ValueTypeF32:
		return api.ValueTypeF32
	case runtime.ValueTypeF64:
		return api.ValueTypeF64
	default:
		return api.ValueTypeI32 // default fallback
	}
}

// moduleInstanceFor returns the module instance from the context that contains the internal
// state required for WASI host functions.
// NOTE: wasi-go returns context containing internal state when initializing the host module,
// and the same context is required when calling wasi functions exposed by wasi-go.
func moduleInstanceFor[T wazergo.Module](ctx context.Context) (res T, ok bool) {
	res, ok = ctx.Value((*wazergo.ModuleInstance[T])(nil)).(T)
	return
}

// withModuleInstance returns a Go context inheriting from ctx and containing the
// state needed for module instantiated from wazero host module to properly bind
// their methods to their receiver (e.g. the module instance).
func withModuleInstance[T wazergo.Module](ctx context.Context, instance T) context.Context {
	return context.WithValue(ctx, (*wazergo.ModuleInstance[T])(nil), instance)
}
