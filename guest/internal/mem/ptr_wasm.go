//go:build wasm

package mem

import "unsafe"

// Ptr returns the linear memory address of b. The caller keeps b alive for
// as long as the host may use the address.
func Ptr(b []byte) uint32 {
	if len(b) == 0 {
		return 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}

// Bytes returns the size bytes at ptr.
func Bytes(ptr, size uint32) []byte {
	if ptr == 0 || size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), size)
}
