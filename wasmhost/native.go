package wasmhost

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"

	"github.com/cfxwasm/wasmhost/abi"
)

// NativeInvoker executes the native identified by nctx.Hash. A returned
// status with the top bit set reports failure and discards the module.
type NativeInvoker func(nctx *NativeContext) uint32

// Canonicalizer returns the canonical name of a guest reference id.
type Canonicalizer func(ref uint32) (string, error)

// LogSink receives script output.
type LogSink func(msg string)

// Argument is one native argument. Reference arguments expose a view of
// guest memory that is valid until the native returns.
type Argument struct {
	kind  abi.ArgKind
	value uint64
	ref   []byte
}

// ValueArgument builds an inline argument.
func ValueArgument(v uint64) Argument {
	return Argument{kind: abi.ArgValue, value: v}
}

// ReferenceArgument builds a reference argument over b.
func ReferenceArgument(b []byte) Argument {
	return Argument{kind: abi.ArgReference, ref: b}
}

func (a Argument) IsRef() bool { return a.kind == abi.ArgReference }

// Uint64 returns the raw slot. For references it is the guest offset.
func (a Argument) Uint64() uint64 { return a.value }

func (a Argument) Uint32() uint32 { return uint32(a.value) }

func (a Argument) Int32() int32 { return int32(uint32(a.value)) }

func (a Argument) Float32() float32 { return math.Float32frombits(uint32(a.value)) }

func (a Argument) Bool() bool { return a.value != 0 }

// Ref returns the referenced memory, or nil for inline arguments.
func (a Argument) Ref() []byte { return a.ref }

// String interprets a reference argument as a NUL-terminated string.
func (a Argument) String() string {
	if a.ref == nil {
		return ""
	}
	if n := bytes.IndexByte(a.ref, 0); n >= 0 {
		return string(a.ref[:n])
	}
	return string(a.ref)
}

// NativeContext carries one native call: the hash, the arguments and the
// result the native produces.
type NativeContext struct {
	Hash uint64

	ctx     context.Context
	args    []Argument
	result  [3]uint64
	data    []byte
	hasData bool
}

// NewNativeContext builds a call context. The bridge builds these for guest
// calls; embedders use it to drive a NativeInvoker directly.
func NewNativeContext(ctx context.Context, hash uint64, args ...Argument) *NativeContext {
	return &NativeContext{Hash: hash, ctx: ctx, args: args}
}

// Context is the context of the guest call that issued the native. Natives
// calling back into the Runtime must pass it on.
func (n *NativeContext) Context() context.Context {
	if n.ctx == nil {
		return context.Background()
	}
	return n.ctx
}

func (n *NativeContext) ArgCount() int { return len(n.args) }

// Arg returns argument i, or the zero Argument when out of range.
func (n *NativeContext) Arg(i int) Argument {
	if i < 0 || i >= len(n.args) {
		return Argument{}
	}
	return n.args[i]
}

func (n *NativeContext) SetResult(v uint64) { n.result[0] = v }

func (n *NativeContext) SetInt(v int32) { n.result[0] = uint64(int64(v)) }

func (n *NativeContext) SetFloat(v float32) { n.result[0] = uint64(math.Float32bits(v)) }

func (n *NativeContext) SetBool(v bool) {
	if v {
		n.result[0] = 1
	} else {
		n.result[0] = 0
	}
}

func (n *NativeContext) SetVector(x, y, z float32) {
	n.result[0] = uint64(math.Float32bits(x))
	n.result[1] = uint64(math.Float32bits(y))
	n.result[2] = uint64(math.Float32bits(z))
}

// SetString sets a string result. Only the bytes before the first NUL reach
// the guest.
func (n *NativeContext) SetString(s string) {
	n.data = append(n.data[:0], s...)
	n.hasData = true
}

// SetBytes sets a binary result. An empty result reads as null.
func (n *NativeContext) SetBytes(b []byte) {
	n.data = append(n.data[:0], b...)
	n.hasData = b != nil
}

// SetNull clears any pointer result.
func (n *NativeContext) SetNull() {
	n.data = n.data[:0]
	n.hasData = false
}

// SetReferenceResult answers an INVOKE_FUNCTION_REFERENCE call: it stores b
// and reports its length through the out-length argument.
func (n *NativeContext) SetReferenceResult(b []byte) {
	n.SetBytes(b)
	if out := n.Arg(3).Ref(); len(out) >= 4 {
		binary.LittleEndian.PutUint32(out, uint32(len(b)))
	}
}

// Result returns the first result word.
func (n *NativeContext) Result() uint64 { return n.result[0] }

// Data returns the pointer result and whether one was set.
func (n *NativeContext) Data() ([]byte, bool) { return n.data, n.hasData }

// EncodeResult renders the result in the layout a guest declared. The bridge
// uses it for every invoke; embedders driving a NativeInvoker directly can
// too.
func (n *NativeContext) EncodeResult(kind abi.ReturnKind) ([]byte, abi.Status) {
	switch kind {
	case abi.ReturnNone:
		return nil, abi.StatusOK
	case abi.ReturnNumber:
		b := make([]byte, abi.NumberSize)
		binary.LittleEndian.PutUint64(b, n.result[0])
		return b, abi.StatusOK
	case abi.ReturnVector3:
		b := make([]byte, abi.Vector3Size)
		abi.EncodeVector3(b, abi.Vector3{
			X: math.Float32frombits(uint32(n.result[0])),
			Y: math.Float32frombits(uint32(n.result[1])),
			Z: math.Float32frombits(uint32(n.result[2])),
		})
		return b, abi.StatusOK
	case abi.ReturnString:
		if !n.hasData {
			return nil, abi.StatusNullResult
		}
		if i := bytes.IndexByte(n.data, 0); i >= 0 {
			return n.data[:i], abi.StatusOK
		}
		return n.data, abi.StatusOK
	case abi.ReturnBytes:
		if !n.hasData || len(n.data) == 0 {
			return nil, abi.StatusNullResult
		}
		return n.data, abi.StatusOK
	default:
		return nil, abi.StatusNoReturnValue
	}
}
