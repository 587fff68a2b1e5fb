package wasmhost

import (
	"fmt"

	"github.com/cfxwasm/wasmhost/runtime"
)

// Default scratch slot sizes, in bytes.
const (
	DefaultEventNameScratch   = 1024
	DefaultEventArgsScratch   = 1 << 15
	DefaultEventSourceScratch = 1024
)

// Nested event delivery modes.
const (
	// NestedEventsInline re-enters the guest as soon as an event is
	// triggered from inside a guest call.
	NestedEventsInline = "inline"
	// NestedEventsDeferred queues such events and delivers them in order
	// once the outermost guest call returns.
	NestedEventsDeferred = "deferred"
)

// RuntimeConfig is the configuration for the WebAssembly engine.
type RuntimeConfig struct {
	// Type names a registered engine. Defaults to wazero.
	Type string `mapstructure:"type"`
	// Mode is the engine execution mode, interpreter or compiled.
	Mode string `mapstructure:"mode"`
	// MemoryLimitPages caps guest memory in 64 KiB pages. 0 keeps the engine default.
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages"`
	// NestedEvents is inline or deferred. The compiled engine faults when
	// a Go guest is re-entered through __cfx_on_event, so it only supports
	// deferred delivery, which is also its default.
	NestedEvents string `mapstructure:"nested_events"`
}

// Default sets default values for unset fields.
func (cfg *RuntimeConfig) Default() {
	if cfg.Type == "" {
		cfg.Type = runtime.DefaultType
	}
	if cfg.Mode == "" {
		cfg.Mode = runtime.ModeInterpreter
	}
	if cfg.NestedEvents == "" {
		cfg.NestedEvents = NestedEventsInline
		if cfg.Mode == runtime.ModeCompiled {
			cfg.NestedEvents = NestedEventsDeferred
		}
	}
}

// Validate validates the configuration
func (cfg *RuntimeConfig) Validate() error {
	if err := cfg.engineConfig().Validate(); err != nil {
		return err
	}
	switch cfg.NestedEvents {
	case NestedEventsDeferred, "":
	case NestedEventsInline:
		if cfg.Mode == runtime.ModeCompiled {
			return fmt.Errorf("nested_events %q is not supported in %s mode", cfg.NestedEvents, runtime.ModeCompiled)
		}
	default:
		return fmt.Errorf("invalid nested_events %q: must be %q or %q", cfg.NestedEvents, NestedEventsInline, NestedEventsDeferred)
	}
	return nil
}

func (cfg RuntimeConfig) engineConfig() runtime.Config {
	return runtime.Config{Mode: cfg.Mode, MemoryLimitPages: cfg.MemoryLimitPages}
}

// ScratchConfig sizes the event scratch slots preallocated in the guest.
type ScratchConfig struct {
	EventName   uint32 `mapstructure:"event_name"`
	EventArgs   uint32 `mapstructure:"event_args"`
	EventSource uint32 `mapstructure:"event_source"`
}

// Default sets default values for unset fields.
func (cfg *ScratchConfig) Default() {
	if cfg.EventName == 0 {
		cfg.EventName = DefaultEventNameScratch
	}
	if cfg.EventArgs == 0 {
		cfg.EventArgs = DefaultEventArgsScratch
	}
	if cfg.EventSource == 0 {
		cfg.EventSource = DefaultEventSourceScratch
	}
}

// Config defines the configuration of a Runtime.
type Config struct {
	// Runtime is the configuration of the WebAssembly engine.
	Runtime RuntimeConfig `mapstructure:"runtime"`

	// Scratch sizes the persistent event buffers.
	Scratch ScratchConfig `mapstructure:"scratch"`
}

// DefaultConfig returns a Config with every field defaulted.
func DefaultConfig() Config {
	var cfg Config
	cfg.Default()
	return cfg
}

// Default sets default values for unset fields.
func (cfg *Config) Default() {
	cfg.Runtime.Default()
	cfg.Scratch.Default()
}

// Validate validates the configuration
func (cfg *Config) Validate() error {
	if err := cfg.Runtime.Validate(); err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	return nil
}
