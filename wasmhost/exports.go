package wasmhost

import (
	"fmt"
	"strings"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/runtime"
)

// Exports reports which entry points a compiled guest provides.
type Exports struct {
	Memory             bool
	Start              bool
	Initialize         bool
	OnEvent            bool
	OnTick             bool
	CallRef            bool
	Alloc              bool
	Free               bool
	DuplicateRef       bool
	RemoveRef          bool
	ExtendRetvalBuffer bool
}

// DetectExports inspects a compiled module before it is instantiated.
func DetectExports(mod runtime.CompiledModule) Exports {
	if mod == nil {
		return Exports{}
	}
	names := make(map[string]struct{})
	for _, name := range mod.ExportedFunctions() {
		names[name] = struct{}{}
	}
	has := func(name string) bool {
		_, ok := names[name]
		return ok
	}
	return Exports{
		Memory:             mod.ExportsMemory(abi.ExportMemory),
		Start:              has(abi.ExportStart),
		Initialize:         has(abi.ExportInitialize),
		OnEvent:            has(abi.ExportOnEvent),
		OnTick:             has(abi.ExportOnTick),
		CallRef:            has(abi.ExportCallRef),
		Alloc:              has(abi.ExportAlloc),
		Free:               has(abi.ExportFree),
		DuplicateRef:       has(abi.ExportDuplicateRef),
		RemoveRef:          has(abi.ExportRemoveRef),
		ExtendRetvalBuffer: has(abi.ExportExtendRetvalBuffer),
	}
}

// Validate checks the exports the host cannot run without.
func (e Exports) Validate() error {
	if !e.Memory {
		return fmt.Errorf("%q: %w", abi.ExportMemory, ErrMemoryNotExported)
	}
	var missing []string
	if !e.Alloc {
		missing = append(missing, abi.ExportAlloc)
	}
	if !e.Free {
		missing = append(missing, abi.ExportFree)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(missing, ", "), ErrRequiredFunctionNotExported)
	}
	return nil
}
