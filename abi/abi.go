// Package abi defines the binary contract shared by the host runtime and the
// guest SDK: import and export names, the byte layout of call descriptors in
// guest linear memory, call status codes and native hashes.
//
// All multi-byte values are little endian, matching WebAssembly linear memory.
package abi

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// HostModule is the import module name the guest links host functions from.
const HostModule = "cfx"

// Host imports available to the guest.
const (
	ImportLog             = "script_log"
	ImportInvoke          = "invoke"
	ImportCanonicalizeRef = "canonicalize_ref"
	ImportInvokeRefFunc   = "invoke_ref_func"
)

// Guest exports expected by the host.
const (
	ExportMemory             = "memory"
	ExportStart              = "_start"
	ExportInitialize         = "_initialize"
	ExportOnEvent            = "__cfx_on_event"
	ExportOnTick             = "__cfx_on_tick"
	ExportCallRef            = "__cfx_call_ref"
	ExportAlloc              = "__cfx_alloc"
	ExportFree               = "__cfx_free"
	ExportDuplicateRef       = "__cfx_duplicate_ref"
	ExportRemoveRef          = "__cfx_remove_ref"
	ExportExtendRetvalBuffer = "__cfx_extend_retval_buffer"
)

// MaxArguments is the capacity of the native argument slot array.
const MaxArguments = 32

// Sizes of the fixed layouts in guest memory.
const (
	ArgumentSize         = 16
	ReturnDescriptorSize = 16
	ScrObjectSize        = 8
	Vector3Size          = 24
	NumberSize           = 8
)

// ArgKind tags a guest argument.
type ArgKind uint32

const (
	// ArgValue is an inline scalar copied by value.
	ArgValue ArgKind = iota
	// ArgReference is a guest-memory offset resolved to a memory view.
	ArgReference
)

// Argument is one native-call argument as laid out in guest memory:
// kind u32 | size u32 | value u64.
type Argument struct {
	Kind  ArgKind
	Size  uint32
	Value uint64
}

// DecodeArgument reads an Argument from a buffer of at least ArgumentSize bytes.
func DecodeArgument(b []byte) Argument {
	return Argument{
		Kind:  ArgKind(binary.LittleEndian.Uint32(b[0:])),
		Size:  binary.LittleEndian.Uint32(b[4:]),
		Value: binary.LittleEndian.Uint64(b[8:]),
	}
}

// Encode writes the argument into b, which must hold ArgumentSize bytes.
func (a Argument) Encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], uint32(a.Kind))
	binary.LittleEndian.PutUint32(b[4:], a.Size)
	binary.LittleEndian.PutUint64(b[8:], a.Value)
}

// ReturnKind declares the expected shape of a native result.
type ReturnKind uint32

const (
	ReturnNone ReturnKind = iota
	ReturnNumber
	ReturnString
	ReturnVector3
	ReturnBytes
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnNone:
		return "none"
	case ReturnNumber:
		return "number"
	case ReturnString:
		return "string"
	case ReturnVector3:
		return "vector3"
	case ReturnBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// ReturnDescriptor is laid out as kind u32 | buffer u32 | capacity u32 | length u32.
// The host rewrites Buffer and Capacity after a successful buffer extension
// and always sets Length to the number of bytes written.
type ReturnDescriptor struct {
	Kind     ReturnKind
	Buffer   uint32
	Capacity uint32
	Length   uint32
}

// DecodeReturnDescriptor reads a ReturnDescriptor from b.
func DecodeReturnDescriptor(b []byte) ReturnDescriptor {
	return ReturnDescriptor{
		Kind:     ReturnKind(binary.LittleEndian.Uint32(b[0:])),
		Buffer:   binary.LittleEndian.Uint32(b[4:]),
		Capacity: binary.LittleEndian.Uint32(b[8:]),
		Length:   binary.LittleEndian.Uint32(b[12:]),
	}
}

// Encode writes the descriptor into b, which must hold ReturnDescriptorSize bytes.
func (d ReturnDescriptor) Encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], uint32(d.Kind))
	binary.LittleEndian.PutUint32(b[4:], d.Buffer)
	binary.LittleEndian.PutUint32(b[8:], d.Capacity)
	binary.LittleEndian.PutUint32(b[12:], d.Length)
}

// ScrObject is the data/length pair returned by __cfx_call_ref.
type ScrObject struct {
	Data   uint32
	Length uint32
}

// DecodeScrObject reads a ScrObject from b.
func DecodeScrObject(b []byte) ScrObject {
	return ScrObject{
		Data:   binary.LittleEndian.Uint32(b[0:]),
		Length: binary.LittleEndian.Uint32(b[4:]),
	}
}

// Encode writes the object into b, which must hold ScrObjectSize bytes.
func (o ScrObject) Encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], o.Data)
	binary.LittleEndian.PutUint32(b[4:], o.Length)
}

// Vector3 is the three-float native result. Each component occupies 8 bytes
// in the wire layout: the float32 followed by 4 bytes of padding.
type Vector3 struct {
	X, Y, Z float32
}

// EncodeVector3 writes v into b, which must hold Vector3Size bytes.
func EncodeVector3(b []byte, v Vector3) {
	clear(b[:Vector3Size])
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[16:], math.Float32bits(v.Z))
}

// DecodeVector3 reads a Vector3 from b.
func DecodeVector3(b []byte) Vector3 {
	return Vector3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[16:])),
	}
}

// NativeHash returns the 64-bit identifier of a native by name.
// Names are case-insensitive.
func NativeHash(name string) uint64 {
	return xxhash.Sum64String(strings.ToUpper(name))
}

// Well-known natives used by the runtime itself.
const (
	NativeInvokeFunctionReference = "INVOKE_FUNCTION_REFERENCE"
	NativeTriggerEvent            = "TRIGGER_EVENT_INTERNAL"
)

var (
	// InvokeFunctionReferenceHash is the native used by invoke_ref_func.
	InvokeFunctionReferenceHash = NativeHash(NativeInvokeFunctionReference)
	// TriggerEventHash is the native the guest SDK emits events through.
	TriggerEventHash = NativeHash(NativeTriggerEvent)
)

// nativeFailureBit is set in a native invoker status word on failure.
const nativeFailureBit = 0x80000000

// Succeeded reports whether a native invoker status word signals success.
func Succeeded(status uint32) bool {
	return status&nativeFailureBit == 0
}

// Failed builds a failure status word carrying code in the low bits.
func Failed(code uint32) uint32 {
	return code | nativeFailureBit
}
