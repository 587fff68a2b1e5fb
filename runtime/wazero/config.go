package wazero

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"

	"github.com/cfxwasm/wasmhost/runtime"
)

// newWazeroRuntime creates a new Wazero runtime instance
func newWazeroRuntime(config runtime.Config) (runtime.Runtime, error) {
	// Create wazero runtime config based on mode
	var wrc wazero.RuntimeConfig
	switch config.Mode {
	case runtime.ModeInterpreter, "":
		wrc = wazero.NewRuntimeConfigInterpreter()
	case runtime.ModeCompiled:
		wrc = wazero.NewRuntimeConfigCompiler()
	default:
		return nil, fmt.Errorf("unknown wazero mode %q: %w", config.Mode, runtime.ErrInvalidConfiguration)
	}

	if config.MemoryLimitPages > 0 {
		wrc = wrc.WithMemoryLimitPages(config.MemoryLimitPages)
	}

	wazeruntime := wazero.NewRuntimeWithConfig(context.Background(), wrc)

	return &wazeroRuntime{
		runtime: wazeruntime,
		config:  config,
	}, nil
}
