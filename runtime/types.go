package runtime

// ValueType represents WASM value types
type ValueType int

const (
	ValueTypeI32 ValueType = iota
	ValueTypeI64
	ValueTypeF32
	ValueTypeF64
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return "unknown"
	}
}

// Shorthands used when declaring host function signatures.
var (
	I32 = ValueTypeI32
	I64 = ValueTypeI64
)

// Engine modes.
const (
	ModeInterpreter = "interpreter"
	ModeCompiled    = "compiled"
)

// MaxMemoryPages is the number of 64 KiB pages in a 32-bit address space.
const MaxMemoryPages = 65536

// Config is the engine configuration handed to a registered factory.
type Config struct {
	// Mode selects the interpreter or the ahead-of-time compiler.
	Mode string
	// MemoryLimitPages caps guest memory in 64 KiB pages. 0 keeps the engine default.
	MemoryLimitPages uint32
}
