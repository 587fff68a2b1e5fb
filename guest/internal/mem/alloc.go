package mem

// pinnedAllocations keeps references to host-allocated buffers until the host
// frees them, so the GC cannot reclaim them.
var pinnedAllocations = map[uint32][]byte{}

// Alloc allocates and pins a buffer of size bytes. Go allocations are at
// least 8-byte aligned, which covers every alignment the host asks for.
func Alloc(size, align uint32) uint32 {
	if size == 0 {
		return 0
	}

	buf := make([]byte, size)
	ptr := Ptr(buf)
	pinnedAllocations[ptr] = buf
	return ptr
}

// Free unpins the allocation at ptr. Unknown pointers are ignored.
func Free(ptr, size, align uint32) {
	delete(pinnedAllocations, ptr)
}

// CStringBytes returns s followed by a NUL terminator.
func CStringBytes(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// CString reads the NUL-terminated string at ptr.
func CString(ptr uint32) string {
	if ptr == 0 {
		return ""
	}
	var n uint32
	for Bytes(ptr+n, 1)[0] != 0 {
		n++
	}
	return string(Bytes(ptr, n))
}
