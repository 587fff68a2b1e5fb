// Package logging writes guest diagnostics to the host script log.
package logging

import (
	"fmt"

	"github.com/cfxwasm/wasmhost/guest/internal/imports"
)

// Print writes its operands, formatted as by fmt.Sprint, as one script log
// message.
func Print(args ...any) {
	imports.Log(fmt.Sprint(args...))
}

// Printf writes a formatted script log message.
func Printf(format string, args ...any) {
	imports.Log(fmt.Sprintf(format, args...))
}

// Println writes its operands separated by spaces. The host splits messages
// into lines, so no newline is appended.
func Println(args ...any) {
	s := fmt.Sprintln(args...)
	imports.Log(s[:len(s)-1])
}
