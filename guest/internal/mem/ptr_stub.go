//go:build !wasm

package mem

import (
	"fmt"
	"unsafe"
)

// Off wasm there is no 32-bit linear memory, so addresses are simulated:
// every buffer passed to Ptr is given its own range in a fake address space
// and Bytes resolves addresses back to the buffer. This lets tests stand in
// for the host.

type region struct {
	base uint32
	buf  []byte
}

var (
	regions  []region
	nextBase uint32 = 0x10000
)

// Ptr returns the simulated address of b.
func Ptr(b []byte) uint32 {
	if len(b) == 0 {
		return 0
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	for i, r := range regions {
		start := uintptr(unsafe.Pointer(unsafe.SliceData(r.buf)))
		if addr >= start && addr+uintptr(len(b)) <= start+uintptr(cap(r.buf)) {
			regions[i].buf = r.buf[:cap(r.buf)]
			return r.base + uint32(addr-start)
		}
	}
	full := b[:cap(b)]
	base := nextBase
	regions = append(regions, region{base: base, buf: full})
	nextBase += (uint32(len(full)) + 16) &^ 7
	return base
}

// Bytes returns the size bytes at the simulated address ptr.
func Bytes(ptr, size uint32) []byte {
	if ptr == 0 || size == 0 {
		return nil
	}
	for _, r := range regions {
		if ptr >= r.base && uint64(ptr)+uint64(size) <= uint64(r.base)+uint64(len(r.buf)) {
			off := ptr - r.base
			return r.buf[off : off+size : off+size]
		}
	}
	panic(fmt.Sprintf("mem: address %#x+%d is not mapped", ptr, size))
}

// Tail returns everything from ptr to the end of its buffer.
func Tail(ptr uint32) []byte {
	for _, r := range regions {
		if ptr >= r.base && ptr < r.base+uint32(len(r.buf)) {
			return r.buf[ptr-r.base:]
		}
	}
	panic(fmt.Sprintf("mem: address %#x is not mapped", ptr))
}

// Reset forgets every simulated address and host allocation.
func Reset() {
	regions = nil
	nextBase = 0x10000
	pinnedAllocations = map[uint32][]byte{}
	retval = make([]byte, DefaultRetvalSize)
}
