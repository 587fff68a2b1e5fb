package wasmhost

import (
	"github.com/cfxwasm/wasmhost/abi"
)

// Function types of the hand-assembled test modules.
const (
	wasmTypeFunc0To0 = iota
	wasmTypeFuncI32I32ToI32
	wasmTypeFuncI32To0
	wasmTypeFuncI32x4To0
	wasmTypeFuncI64I32x3ToI32
	wasmTypeFuncI32x3To0
	wasmTypeFuncI32x3ToI32
	wasmTypeFuncI32ToI32
)

var wasmTypes = [][]byte{
	{0x60, 0x00, 0x00},
	{0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f},
	{0x60, 0x01, 0x7f, 0x00},
	{0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x00},
	{0x60, 0x04, 0x7e, 0x7f, 0x7f, 0x7f, 0x01, 0x7f},
	{0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x00},
	{0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x01, 0x7f},
	{0x60, 0x01, 0x7f, 0x01, 0x7f},
}

type wasmImportSpec struct {
	module    string
	name      string
	typeIndex byte
}

type wasmFunctionSpec struct {
	name      string
	typeIndex byte
	// code is the instruction sequence without locals or the final end.
	code []byte
}

type wasmDataSpec struct {
	offset uint32
	data   []byte
}

type wasmModuleSpec struct {
	imports   []wasmImportSpec
	functions []wasmFunctionSpec
	memory    bool
	// heapBase initializes global 0, the bump allocator's next pointer.
	heapBase int32
	data     []wasmDataSpec
}

// Fixed guest memory layout of the cfx test module.
const (
	testReadyString  = 256
	testDescriptor   = 512
	testReturnBuffer = 600
	testScrObject    = 700
	testHeapBase     = 4096
)

// Instruction helpers.
func i32Const(v int32) []byte { return append([]byte{0x41}, encodeSLEB128Test(int64(v))...) }
func i64Const(v int64) []byte { return append([]byte{0x42}, encodeSLEB128Test(v)...) }
func localGet(i byte) []byte  { return []byte{0x20, i} }
func call(i byte) []byte      { return []byte{0x10, i} }

func code(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// buildCfxTestModule assembles a guest importing cfx::script_log (func 0) and
// cfx::invoke (func 1) with a bump allocator and every entry point.
//
//	_initialize       logs "ready"
//	__cfx_on_tick     invokes GET_PLAYER_NAME into a string buffer and logs it
//	__cfx_on_event    logs the event name
//	__cfx_call_ref    returns "ready"
//	__cfx_duplicate_ref returns ref+1
//	__cfx_remove_ref  traps
func buildCfxTestModule() []byte {
	desc := make([]byte, abi.ReturnDescriptorSize)
	abi.ReturnDescriptor{Kind: abi.ReturnString, Buffer: testReturnBuffer, Capacity: 64}.Encode(desc)
	obj := make([]byte, abi.ScrObjectSize)
	abi.ScrObject{Data: testReadyString, Length: 5}.Encode(obj)

	return buildTestModule(wasmModuleSpec{
		imports: []wasmImportSpec{
			{module: abi.HostModule, name: abi.ImportLog, typeIndex: wasmTypeFuncI32To0},
			{module: abi.HostModule, name: abi.ImportInvoke, typeIndex: wasmTypeFuncI64I32x3ToI32},
		},
		functions: []wasmFunctionSpec{
			{name: abi.ExportInitialize, typeIndex: wasmTypeFunc0To0, code: code(i32Const(testReadyString), call(0))},
			{name: abi.ExportAlloc, typeIndex: wasmTypeFuncI32I32ToI32, code: code(
				[]byte{0x23, 0x00}, // global.get 0, the result
				[]byte{0x23, 0x00},
				localGet(0),
				[]byte{0x6a}, // i32.add
				i32Const(7),
				[]byte{0x6a},
				i32Const(-8),
				[]byte{0x71},       // i32.and
				[]byte{0x24, 0x00}, // global.set 0
			)},
			{name: abi.ExportFree, typeIndex: wasmTypeFuncI32x3To0},
			{name: abi.ExportOnEvent, typeIndex: wasmTypeFuncI32x4To0, code: code(localGet(0), call(0))},
			{name: abi.ExportOnTick, typeIndex: wasmTypeFunc0To0, code: code(
				i64Const(int64(hashGetName)),
				i32Const(0),
				i32Const(0),
				i32Const(testDescriptor),
				call(1),
				[]byte{0x1a}, // drop
				i32Const(testReturnBuffer),
				call(0),
			)},
			{name: abi.ExportCallRef, typeIndex: wasmTypeFuncI32x3ToI32, code: i32Const(testScrObject)},
			{name: abi.ExportDuplicateRef, typeIndex: wasmTypeFuncI32ToI32, code: code(localGet(0), i32Const(1), []byte{0x6a})},
			{name: abi.ExportRemoveRef, typeIndex: wasmTypeFuncI32To0, code: []byte{0x00}}, // unreachable
		},
		memory:   true,
		heapBase: testHeapBase,
		data: []wasmDataSpec{
			{offset: testReadyString, data: []byte("ready\x00")},
			{offset: testDescriptor, data: desc},
			{offset: testScrObject, data: obj},
		},
	})
}

func buildTestModule(spec wasmModuleSpec) []byte {
	module := []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version
	}

	appendSection := func(sectionID byte, payload []byte) {
		module = append(module, sectionID)
		module = append(module, encodeULEB128Test(uint32(len(payload)))...)
		module = append(module, payload...)
	}
	appendName := func(b []byte, name string) []byte {
		b = append(b, encodeULEB128Test(uint32(len(name)))...)
		return append(b, name...)
	}

	// Type section
	typePayload := encodeULEB128Test(uint32(len(wasmTypes)))
	for _, ft := range wasmTypes {
		typePayload = append(typePayload, ft...)
	}
	appendSection(0x01, typePayload)

	// Import section
	if len(spec.imports) > 0 {
		importPayload := encodeULEB128Test(uint32(len(spec.imports)))
		for _, imp := range spec.imports {
			importPayload = appendName(importPayload, imp.module)
			importPayload = appendName(importPayload, imp.name)
			importPayload = append(importPayload, 0x00, imp.typeIndex) // func
		}
		appendSection(0x02, importPayload)
	}

	// Function section
	funcPayload := encodeULEB128Test(uint32(len(spec.functions)))
	for _, fn := range spec.functions {
		funcPayload = append(funcPayload, fn.typeIndex)
	}
	appendSection(0x03, funcPayload)

	if spec.memory {
		// Memory section: one memory, min 1 page.
		appendSection(0x05, []byte{0x01, 0x00, 0x01})
	}

	// Global section: one mutable i32.
	globalPayload := []byte{0x01, 0x7f, 0x01}
	globalPayload = append(globalPayload, i32Const(spec.heapBase)...)
	globalPayload = append(globalPayload, 0x0b)
	appendSection(0x06, globalPayload)

	// Export section
	exportCount := len(spec.functions)
	if spec.memory {
		exportCount++
	}
	exportPayload := encodeULEB128Test(uint32(exportCount))
	if spec.memory {
		exportPayload = appendName(exportPayload, abi.ExportMemory)
		exportPayload = append(exportPayload, 0x02, 0x00) // memory index 0
	}
	for i, fn := range spec.functions {
		exportPayload = appendName(exportPayload, fn.name)
		exportPayload = append(exportPayload, 0x00) // export kind: func
		exportPayload = append(exportPayload, encodeULEB128Test(uint32(len(spec.imports)+i))...)
	}
	appendSection(0x07, exportPayload)

	// Code section
	codePayload := encodeULEB128Test(uint32(len(spec.functions)))
	for _, fn := range spec.functions {
		body := append([]byte{0x00}, fn.code...) // no locals
		body = append(body, 0x0b)                 // end
		codePayload = append(codePayload, encodeULEB128Test(uint32(len(body)))...)
		codePayload = append(codePayload, body...)
	}
	appendSection(0x0a, codePayload)

	// Data section
	if len(spec.data) > 0 {
		dataPayload := encodeULEB128Test(uint32(len(spec.data)))
		for _, d := range spec.data {
			dataPayload = append(dataPayload, 0x00) // active, memory 0
			dataPayload = append(dataPayload, i32Const(int32(d.offset))...)
			dataPayload = append(dataPayload, 0x0b)
			dataPayload = append(dataPayload, encodeULEB128Test(uint32(len(d.data)))...)
			dataPayload = append(dataPayload, d.data...)
		}
		appendSection(0x0b, dataPayload)
	}

	return module
}

func encodeULEB128Test(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func encodeSLEB128Test(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
