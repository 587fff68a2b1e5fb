// Package natives calls host natives from guest code.
//
//	name, err := natives.New("GET_PLAYER_NAME").Int(src).InvokeString()
//
// Arguments are encoded in the cfx argument layout and results are read from
// a shared return buffer that the host grows on demand. Results are copied
// out before they are returned, so they stay valid across later calls.
package natives

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/guest/internal/imports"
	"github.com/cfxwasm/wasmhost/guest/internal/mem"
)

// Hash returns the identifier of the native called name.
func Hash(name string) uint64 {
	return abi.NativeHash(name)
}

// Call is a native invocation under construction.
type Call struct {
	hash uint64
	args []abi.Argument
	refs [][]byte
}

// New starts a call to the native called name.
func New(name string) *Call {
	return NewHash(Hash(name))
}

// NewHash starts a call to the native with the given hash.
func NewHash(hash uint64) *Call {
	return &Call{hash: hash}
}

func (c *Call) value(v uint64) *Call {
	c.args = append(c.args, abi.Argument{Kind: abi.ArgValue, Value: v})
	return c
}

// Ref passes b by reference. The native may write into it.
func (c *Call) Ref(b []byte) *Call {
	c.refs = append(c.refs, b)
	c.args = append(c.args, abi.Argument{Kind: abi.ArgReference, Size: uint32(len(b)), Value: uint64(mem.Ptr(b))})
	return c
}

// Int appends a signed 32-bit argument.
func (c *Call) Int(v int32) *Call { return c.value(uint64(uint32(v))) }

// Uint appends an unsigned 32-bit argument.
func (c *Call) Uint(v uint32) *Call { return c.value(uint64(v)) }

// Int64 appends a 64-bit argument.
func (c *Call) Int64(v int64) *Call { return c.value(uint64(v)) }

// Float appends a 32-bit float argument.
func (c *Call) Float(v float32) *Call { return c.value(uint64(math.Float32bits(v))) }

// Bool appends a boolean argument.
func (c *Call) Bool(v bool) *Call {
	if v {
		return c.value(1)
	}
	return c.value(0)
}

// String appends a NUL-terminated string argument.
func (c *Call) String(s string) *Call { return c.Ref(mem.CStringBytes(s)) }

// Bytes appends a byte buffer argument.
func (c *Call) Bytes(b []byte) *Call { return c.Ref(b) }

// Invoke calls the native and discards any result.
func (c *Call) Invoke() error {
	_, err := c.invoke(abi.ReturnNone)
	return err
}

// InvokeUint64 calls the native and returns its raw 64-bit result.
func (c *Call) InvokeUint64() (uint64, error) {
	b, err := c.invoke(abi.ReturnNumber)
	if err != nil {
		return 0, err
	}
	if len(b) < abi.NumberSize {
		return 0, c.errorf("number result holds %d bytes", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// InvokeInt calls the native and returns a signed 32-bit result.
func (c *Call) InvokeInt() (int32, error) {
	v, err := c.InvokeUint64()
	return int32(uint32(v)), err
}

// InvokeFloat calls the native and returns a 32-bit float result.
func (c *Call) InvokeFloat() (float32, error) {
	v, err := c.InvokeUint64()
	return math.Float32frombits(uint32(v)), err
}

// InvokeBool calls the native and returns a boolean result.
func (c *Call) InvokeBool() (bool, error) {
	v, err := c.InvokeUint64()
	return v&0xFF != 0, err
}

// InvokeVector calls the native and returns a vector result.
func (c *Call) InvokeVector() (abi.Vector3, error) {
	b, err := c.invoke(abi.ReturnVector3)
	if err != nil {
		return abi.Vector3{}, err
	}
	if len(b) < abi.Vector3Size {
		return abi.Vector3{}, c.errorf("vector result holds %d bytes", len(b))
	}
	return abi.DecodeVector3(b), nil
}

// InvokeString calls the native and returns a string result. A null string
// is reported as abi.StatusNullResult.
func (c *Call) InvokeString() (string, error) {
	b, err := c.invoke(abi.ReturnString)
	return string(b), err
}

// InvokeBytes calls the native and returns a byte buffer result. A null or
// empty buffer is reported as abi.StatusNullResult.
func (c *Call) InvokeBytes() ([]byte, error) {
	return c.invoke(abi.ReturnBytes)
}

func (c *Call) invoke(kind abi.ReturnKind) ([]byte, error) {
	if len(c.args) > abi.MaxArguments {
		return nil, c.errorf("%w", abi.StatusTooManyArguments)
	}

	raw := make([]byte, len(c.args)*abi.ArgumentSize)
	for i, a := range c.args {
		a.Encode(raw[i*abi.ArgumentSize:])
	}

	buf := mem.Retval()
	desc := make([]byte, abi.ReturnDescriptorSize)
	abi.ReturnDescriptor{Kind: kind, Buffer: mem.Ptr(buf), Capacity: uint32(len(buf))}.Encode(desc)

	status := abi.Status(imports.Invoke(c.hash, mem.Ptr(raw), uint32(len(c.args)), mem.Ptr(desc)))
	runtime.KeepAlive(raw)
	runtime.KeepAlive(c.refs)
	if !status.Ok() {
		return nil, c.errorf("%w", status)
	}
	if kind == abi.ReturnNone {
		return nil, nil
	}

	out := abi.DecodeReturnDescriptor(desc)
	if out.Length == 0 {
		return []byte{}, nil
	}
	return append([]byte(nil), mem.Bytes(out.Buffer, out.Length)...), nil
}

func (c *Call) errorf(format string, args ...any) error {
	return fmt.Errorf("native %#016x: "+format, append([]any{c.hash}, args...)...)
}
