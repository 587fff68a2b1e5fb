package runtime

import (
	"errors"
	"fmt"
)

// Common errors used across runtime implementations
var (
	ErrRuntimeNotFound         = errors.New("runtime not found")
	ErrModuleCompileFailed     = errors.New("module compilation failed")
	ErrModuleInstantiateFailed = errors.New("module instantiation failed")
	ErrInvalidConfiguration    = errors.New("invalid configuration")
	ErrMemoryExportNotFound    = errors.New("memory export not found")
	ErrHostFunctionNotFound    = errors.New("host function not found")
)

// ExitError reports that the guest exited through WASI proc_exit.
type ExitError struct {
	Code uint32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("module exited with code %d", e.Code)
}
