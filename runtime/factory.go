package runtime

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// DefaultType names the engine used when none is configured. The wazero
// adapter registers it when runtime/wazero is imported.
const DefaultType = "wazero"

// Factory builds an engine from a validated Config.
type Factory func(config Config) (Runtime, error)

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Factory)
)

// Register makes an engine available under name. Engines register from an
// init function; registering a name twice panics.
func Register(name string, factory Factory) {
	if name == "" || factory == nil {
		panic("runtime: engine registered without a name or factory")
	}
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if _, exists := engines[name]; exists {
		panic(fmt.Sprintf("runtime: engine %q registered twice", name))
	}
	engines[name] = factory
}

// NewRuntime validates config and builds the engine registered as name.
// An empty name selects DefaultType.
func NewRuntime(name string, config Config) (Runtime, error) {
	if name == "" {
		name = DefaultType
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("engine %s: %w", name, err)
	}

	enginesMu.RLock()
	factory, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine %q, registered: [%s]: %w", name, strings.Join(Engines(), " "), ErrRuntimeNotFound)
	}
	return factory(config)
}

// Engines returns the registered engine names in order.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	return slices.Sorted(maps.Keys(engines))
}

// Validate checks the mode and memory limit.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeInterpreter, ModeCompiled, "":
	default:
		return fmt.Errorf("invalid runtime mode %q: must be %q or %q: %w", c.Mode, ModeInterpreter, ModeCompiled, ErrInvalidConfiguration)
	}
	if c.MemoryLimitPages > MaxMemoryPages {
		return fmt.Errorf("memory_limit_pages %d exceeds the 4 GiB address space: %w", c.MemoryLimitPages, ErrInvalidConfiguration)
	}
	return nil
}
