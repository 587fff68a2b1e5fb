package runtime

import "context"

// HostFunc is a runtime-neutral host function. Parameters are read from
// stack and results written back into it, starting at index 0.
// caller is the guest module instance that made the call.
type HostFunc func(ctx context.Context, caller ModuleInstance, stack []uint64)

// HostFunctionDefinition defines a host function with its signature and implementation
type HostFunctionDefinition struct {
	FunctionName string
	ParamTypes   []ValueType
	ResultTypes  []ValueType
	Function     HostFunc
}

// HostModule represents a collection of host functions that can be instantiated in any runtime
type HostModule struct {
	Name      string
	Functions []HostFunctionDefinition
}

// NewHostModule creates a new host module with the given name
func NewHostModule(name string) *HostModule {
	return &HostModule{
		Name:      name,
		Functions: make([]HostFunctionDefinition, 0),
	}
}

// AddFunction adds a host function to the module
func (hm *HostModule) AddFunction(name string, paramTypes, resultTypes []ValueType, fn HostFunc) *HostModule {
	hm.Functions = append(hm.Functions, HostFunctionDefinition{
		FunctionName: name,
		ParamTypes:   paramTypes,
		ResultTypes:  resultTypes,
		Function:     fn,
	})
	return hm
}

// Lookup returns the definition exported under name.
func (hm *HostModule) Lookup(name string) (HostFunctionDefinition, bool) {
	for _, fn := range hm.Functions {
		if fn.FunctionName == name {
			return fn, true
		}
	}
	return HostFunctionDefinition{}, false
}
