//go:build wasm

package plugin

import "github.com/cfxwasm/wasmhost/guest/internal/mem"

//go:wasmexport __cfx_alloc
func _alloc(size, align uint32) uint32 {
	return mem.Alloc(size, align)
}

//go:wasmexport __cfx_free
func _free(ptr, size, align uint32) {
	mem.Free(ptr, size, align)
}

//go:wasmexport __cfx_extend_retval_buffer
func _extendRetvalBuffer(size uint32) uint32 {
	return mem.ExtendRetval(size)
}

//go:wasmexport __cfx_on_event
func _onEvent(name, args, argsLen, src uint32) {
	OnEvent(name, args, argsLen, src)
}

//go:wasmexport __cfx_on_tick
func _onTick() {
	OnTick()
}

//go:wasmexport __cfx_call_ref
func _callRef(ref, args, argsLen uint32) uint32 {
	return CallRef(ref, args, argsLen)
}

//go:wasmexport __cfx_duplicate_ref
func _duplicateRef(ref uint32) uint32 {
	return DuplicateRef(ref)
}

//go:wasmexport __cfx_remove_ref
func _removeRef(ref uint32) {
	RemoveRef(ref)
}
