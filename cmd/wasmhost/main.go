// Command wasmhost runs a cfx guest script outside a game server. It loads
// the module, serves a small set of built-in natives, delivers the events
// given on the command line and ticks the script at a fixed interval.
//
// wasmhost build compiles a guest package into a module.
package main

//go:generate go run . build -o testdata/hello.wasm ../../examples/hello

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
