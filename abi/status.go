package abi

import "fmt"

// Status is the i32 returned by the invoke family of host imports.
// Non-negative values are the number of bytes written to the return buffer.
type Status int32

const (
	StatusOK                Status = 0
	StatusCriticalError     Status = -1
	StatusWrongArgs         Status = -2
	StatusNullResult        Status = -3
	StatusTooManyArguments  Status = -4
	StatusSmallReturnBuffer Status = -5
	StatusNoReturnValue     Status = -6
)

// Ok reports whether s carries a written length rather than an error code.
func (s Status) Ok() bool {
	return s >= 0
}

// String returns the string representation of the status code
func (s Status) String() string {
	switch s {
	case StatusCriticalError:
		return "CRITICAL_ERROR"
	case StatusWrongArgs:
		return "WRONG_ARGS"
	case StatusNullResult:
		return "NULL_RESULT"
	case StatusTooManyArguments:
		return "TOO_MANY_ARGUMENTS"
	case StatusSmallReturnBuffer:
		return "SMALL_RETURN_BUFFER"
	case StatusNoReturnValue:
		return "NO_RETURN_VALUE"
	}
	if s >= 0 {
		return fmt.Sprintf("OK(%d)", int32(s))
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(s))
}

// Error adapts a failing status to the error interface.
func (s Status) Error() string {
	return "abi: call failed: " + s.String()
}
