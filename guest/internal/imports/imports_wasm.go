//go:build wasm

package imports

//go:wasmimport cfx script_log
func scriptLog(msg uint32)

//go:wasmimport cfx invoke
func invoke(hash uint64, args, argc, retval uint32) int32

//go:wasmimport cfx canonicalize_ref
func canonicalizeRef(ref, buf, size uint32) uint32

//go:wasmimport cfx invoke_ref_func
func invokeRefFunc(name, args, argsLen, buf, bufCap uint32) int32
