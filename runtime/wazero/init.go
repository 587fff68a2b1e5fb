package wazero

import (
	"github.com/cfxwasm/wasmhost/runtime"
)

func init() {
	runtime.Register(runtime.DefaultType, newWazeroRuntime)
}
