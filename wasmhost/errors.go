package wasmhost

import "errors"

var (
	ErrRequiredFunctionNotExported = errors.New("required function not exported")
	ErrMemoryNotExported           = errors.New("memory not exported")
	ErrIncorrectPointer            = errors.New("incorrect pointer")
	ErrAllocationFailed            = errors.New("guest allocation failed")
	ErrNativeInvokeFailed          = errors.New("native invocation failed")
	ErrNoNativeInvoker             = errors.New("no native invoker installed")
	ErrNoCanonicalizer             = errors.New("no reference canonicalizer installed")
	ErrInvalidResult               = errors.New("invalid native result")
	ErrModuleDiscarded             = errors.New("module discarded during call")
)
