package wasmhost

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cfxwasm/wasmhost/runtime"
)

// wasmPageSize is the size of one WebAssembly memory page.
const wasmPageSize = 65536

// guestMemory is a bounds-checked accessor over a guest's linear memory.
// Views returned from it are invalidated by any call back into the guest.
type guestMemory struct {
	mem runtime.Memory
}

// memoryOf returns the accessor for the calling module's memory.
func memoryOf(mod runtime.ModuleInstance) guestMemory {
	if mod == nil {
		return guestMemory{}
	}
	return guestMemory{mem: mod.Memory()}
}

func (m guestMemory) size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// view returns the length bytes at offset. Writes through the view reach
// guest memory.
func (m guestMemory) view(offset, length uint32) ([]byte, error) {
	if m.mem == nil {
		return nil, ErrMemoryNotExported
	}
	size := m.mem.Size()
	if uint64(offset)+uint64(length) > uint64(size) {
		return nil, fmt.Errorf("%w: [%#x, +%d) outside %d bytes", ErrIncorrectPointer, offset, length, size)
	}
	b, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("%w: [%#x, +%d)", ErrIncorrectPointer, offset, length)
	}
	return b, nil
}

// tail returns everything from offset to the end of memory.
func (m guestMemory) tail(offset uint32) ([]byte, error) {
	size := m.size()
	if offset >= size {
		if m.mem == nil {
			return nil, ErrMemoryNotExported
		}
		return nil, fmt.Errorf("%w: %#x outside %d bytes", ErrIncorrectPointer, offset, size)
	}
	return m.view(offset, size-offset)
}

// cstring returns the bytes at offset up to, not including, the first NUL.
func (m guestMemory) cstring(offset uint32) ([]byte, error) {
	b, err := m.tail(offset)
	if err != nil {
		return nil, err
	}
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		return nil, fmt.Errorf("%w: unterminated string at %#x", ErrIncorrectPointer, offset)
	}
	return b[:n:n], nil
}

func (m guestMemory) readCString(offset uint32) (string, error) {
	b, err := m.cstring(offset)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (m guestMemory) readUint32(offset uint32) (uint32, error) {
	b, err := m.view(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m guestMemory) writeUint32(offset, v uint32) error {
	b, err := m.view(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// write copies data to offset. Nothing is written unless the whole range fits.
func (m guestMemory) write(offset uint32, data []byte) error {
	b, err := m.view(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

// writeIfUnderLimit writes data to buf when it fits in limit bytes and always
// returns len(data), so the guest can retry with a large enough buffer.
func (m guestMemory) writeIfUnderLimit(data []byte, buf, limit uint32) (uint32, error) {
	dst, err := m.view(buf, limit)
	if err != nil {
		return 0, err
	}
	n := uint32(len(data))
	if n <= limit {
		copy(dst, data)
	}
	return n, nil
}

// cstringBytes returns s followed by a NUL terminator.
func cstringBytes(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}
