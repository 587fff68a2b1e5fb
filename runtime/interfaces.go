// Package runtime provides an abstraction layer for WebAssembly runtime engines.
package runtime

import "context"

// Runtime represents a Wasm runtime engine
type Runtime interface {
	// Compile compiles the given Wasm binary into a CompiledModule
	Compile(ctx context.Context, binary []byte) (CompiledModule, error)
	// InstantiateWithHost creates module instance with host functions and runtime-specific setup
	InstantiateWithHost(ctx context.Context, module CompiledModule, hostModule *HostModule, cfg InstanceConfig) (ModuleInstance, Context, error)
	// Close closes the runtime and releases all resources
	Close(ctx context.Context) error
}

// InstanceConfig carries per-instantiation options.
type InstanceConfig struct {
	// WASI instantiates wasi_snapshot_preview1 for the guest.
	WASI bool
	// Env is the environment exposed through WASI.
	Env []string
	// StartFunctions are run by the engine during instantiation, in order.
	// Missing functions are skipped.
	StartFunctions []string
}

// CompiledModule represents a compiled Wasm module, ready for instantiation
type CompiledModule interface {
	// ExportedFunctions lists the names of all exported functions.
	ExportedFunctions() []string
	// ExportsMemory reports whether the module exports a memory under name.
	ExportsMemory(name string) bool
	// Close releases the resources associated with the compiled module
	Close(ctx context.Context) error
}

// ModuleInstance represents an instantiated Wasm module
type ModuleInstance interface {
	// Function returns a handle to an exported function
	// Returns nil if the function is not found
	Function(name string) FunctionInstance
	// Memory returns the memory instance of the module
	// Returns nil if the module does not export memory
	Memory() Memory
	// Close closes the instance and releases its resources
	Close(ctx context.Context) error
}

// FunctionInstance represents an exported function from a Wasm module
type FunctionInstance interface {
	// Call executes the function with the given parameters
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Memory represents the linear memory of a Wasm module instance
type Memory interface {
	// Size returns the current size in bytes.
	Size() uint32
	// Read returns a view of 'size' bytes at 'offset'. Writes to the view
	// are visible to the guest. The view is invalidated by memory growth.
	Read(offset uint32, size uint32) ([]byte, bool)
	// Write writes 'data' to the memory at 'offset'
	Write(offset uint32, data []byte) bool
}

// Context holds runtime-specific state (WASI, host modules, etc.)
// This is opaque to the host runtime and managed entirely by runtime adapters
type Context interface {
	// WithRuntimeContext returns ctx carrying whatever the adapter needs
	// during guest calls.
	WithRuntimeContext(ctx context.Context) context.Context
	// Close releases runtime-specific resources
	Close(ctx context.Context) error
}
