package wasmhost

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/runtime"
)

// fakeFunc is a guest export implemented in Go.
type fakeFunc func(ctx context.Context, params ...uint64) ([]uint64, error)

// fakeGuest is an in-process stand-in for a compiled guest: Go closures for
// exports, a byte slice for linear memory and a bump allocator.
type fakeGuest struct {
	mem      *fakeMemory
	exports  map[string]fakeFunc
	noMemory bool

	host *runtime.HostModule
	inst *fakeInstance

	next   uint32
	live   map[uint32]uint32
	allocs int
	frees  int

	extendRequests []uint32

	instanceClosed int
	contextClosed  int
	compiledClosed int
}

func newFakeGuest() *fakeGuest {
	g := &fakeGuest{
		mem:     &fakeMemory{data: make([]byte, 2*wasmPageSize)},
		exports: make(map[string]fakeFunc),
		next:    1024,
		live:    make(map[uint32]uint32),
	}
	g.exports[abi.ExportAlloc] = func(_ context.Context, p ...uint64) ([]uint64, error) {
		return []uint64{uint64(g.malloc(uint32(p[0])))}, nil
	}
	g.exports[abi.ExportFree] = func(_ context.Context, p ...uint64) ([]uint64, error) {
		ptr := uint32(p[0])
		if _, ok := g.live[ptr]; !ok {
			return nil, fmt.Errorf("free of unknown pointer %#x", ptr)
		}
		delete(g.live, ptr)
		g.frees++
		return nil, nil
	}
	return g
}

func (g *fakeGuest) malloc(size uint32) uint32 {
	ptr := g.next
	end := uint64(ptr) + uint64((size+7)&^7)
	if end > uint64(len(g.mem.data)) {
		return 0
	}
	g.next = uint32(end)
	g.live[ptr] = size
	g.allocs++
	return ptr
}

// enableExtend exports __cfx_extend_retval_buffer backed by malloc.
func (g *fakeGuest) enableExtend() {
	g.exports[abi.ExportExtendRetvalBuffer] = func(_ context.Context, p ...uint64) ([]uint64, error) {
		g.extendRequests = append(g.extendRequests, uint32(p[0]))
		return []uint64{uint64(g.malloc(uint32(p[0])))}, nil
	}
}

// callHost calls a cfx import the way the engine would.
func (g *fakeGuest) callHost(ctx context.Context, name string, params ...uint64) uint64 {
	def, ok := g.host.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("import %s not provided", name))
	}
	stack := make([]uint64, max(len(def.ParamTypes), len(def.ResultTypes)))
	copy(stack, params)
	def.Function(ctx, g.inst, stack)
	if len(def.ResultTypes) == 0 {
		return 0
	}
	return stack[0]
}

func (g *fakeGuest) putBytes(b []byte) uint32 {
	ptr := g.malloc(uint32(len(b)))
	copy(g.mem.data[ptr:], b)
	return ptr
}

func (g *fakeGuest) putCString(s string) uint32 {
	return g.putBytes(cstringBytes(s))
}

func (g *fakeGuest) bytesAt(ptr, n uint32) []byte {
	return append([]byte(nil), g.mem.data[ptr:ptr+n]...)
}

func (g *fakeGuest) cstringAt(ptr uint32) string {
	b := g.mem.data[ptr:]
	return string(b[:bytes.IndexByte(b, 0)])
}

func (g *fakeGuest) u32At(ptr uint32) uint32 {
	return binary.LittleEndian.Uint32(g.mem.data[ptr:])
}

// nativeCall is the outcome of a guest-side cfx::invoke.
type nativeCall struct {
	status abi.Status
	desc   abi.ReturnDescriptor
	result []byte
}

// invoke lays out args and a return descriptor in guest memory and calls
// cfx::invoke with them.
func (g *fakeGuest) invoke(ctx context.Context, hash uint64, kind abi.ReturnKind, capacity uint32, args ...abi.Argument) nativeCall {
	var argsPtr uint32
	if len(args) > 0 {
		raw := make([]byte, len(args)*abi.ArgumentSize)
		for i, a := range args {
			a.Encode(raw[i*abi.ArgumentSize:])
		}
		argsPtr = g.putBytes(raw)
	}
	desc := abi.ReturnDescriptor{Kind: kind, Capacity: capacity}
	if capacity > 0 {
		desc.Buffer = g.malloc(capacity)
	}
	return g.invokeWith(ctx, hash, desc, argsPtr, len(args))
}

// invokeWith calls cfx::invoke with a caller-built return descriptor.
func (g *fakeGuest) invokeWith(ctx context.Context, hash uint64, desc abi.ReturnDescriptor, argsPtr uint32, argc int) nativeCall {
	raw := make([]byte, abi.ReturnDescriptorSize)
	desc.Encode(raw)
	descPtr := g.putBytes(raw)

	status := abi.Status(int32(uint32(g.callHost(ctx, abi.ImportInvoke, hash, uint64(argsPtr), uint64(argc), uint64(descPtr)))))
	out := abi.DecodeReturnDescriptor(g.mem.data[descPtr:])
	call := nativeCall{status: status, desc: out}
	if status > 0 {
		call.result = g.bytesAt(out.Buffer, out.Length)
	}
	return call
}

type fakeMemory struct {
	data []byte
}

func (m *fakeMemory) Size() uint32 { return uint32(len(m.data)) }

func (m *fakeMemory) Read(offset, size uint32) ([]byte, bool) {
	if uint64(offset)+uint64(size) > uint64(len(m.data)) {
		return nil, false
	}
	return m.data[offset : offset+size : offset+size], true
}

func (m *fakeMemory) Write(offset uint32, data []byte) bool {
	if uint64(offset)+uint64(len(data)) > uint64(len(m.data)) {
		return false
	}
	copy(m.data[offset:], data)
	return true
}

type fakeInstance struct {
	g *fakeGuest
}

func (i *fakeInstance) Function(name string) runtime.FunctionInstance {
	fn, ok := i.g.exports[name]
	if !ok {
		return nil
	}
	return fakeFunction(fn)
}

func (i *fakeInstance) Memory() runtime.Memory {
	if i.g.noMemory {
		return nil
	}
	return i.g.mem
}

func (i *fakeInstance) Close(context.Context) error {
	i.g.instanceClosed++
	return nil
}

// fakeFunction turns panics raised by host functions into call errors.
type fakeFunction fakeFunc

func (f fakeFunction) Call(ctx context.Context, params ...uint64) (res []uint64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = fmt.Errorf("guest trap: %w", e)
				return
			}
			err = fmt.Errorf("guest trap: %v", rec)
		}
	}()
	return f(ctx, params...)
}

type fakeCompiled struct {
	g *fakeGuest
}

func (c *fakeCompiled) ExportedFunctions() []string {
	names := make([]string, 0, len(c.g.exports))
	for name := range c.g.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *fakeCompiled) ExportsMemory(name string) bool {
	return !c.g.noMemory && name == abi.ExportMemory
}

func (c *fakeCompiled) Close(context.Context) error {
	c.g.compiledClosed++
	return nil
}

type fakeContext struct {
	g *fakeGuest
}

func (c *fakeContext) WithRuntimeContext(ctx context.Context) context.Context { return ctx }

func (c *fakeContext) Close(context.Context) error {
	c.g.contextClosed++
	return nil
}

// fakeEngine instantiates fakeGuests. Each LoadModule picks the next guest.
type fakeEngine struct {
	guests     []*fakeGuest
	compileErr error
	closed     bool
}

var errBadBinary = errors.New("bad binary")

func (e *fakeEngine) Compile(context.Context, []byte) (runtime.CompiledModule, error) {
	if e.compileErr != nil {
		return nil, e.compileErr
	}
	if len(e.guests) == 0 {
		return nil, errBadBinary
	}
	g := e.guests[0]
	e.guests = e.guests[1:]
	return &fakeCompiled{g: g}, nil
}

func (e *fakeEngine) InstantiateWithHost(ctx context.Context, mod runtime.CompiledModule, host *runtime.HostModule, cfg runtime.InstanceConfig) (runtime.ModuleInstance, runtime.Context, error) {
	g := mod.(*fakeCompiled).g
	g.host = host
	g.inst = &fakeInstance{g: g}
	for _, name := range cfg.StartFunctions {
		if fn := g.inst.Function(name); fn != nil {
			if _, err := fn.Call(ctx); err != nil {
				return nil, nil, fmt.Errorf("start %s: %w", name, err)
			}
		}
	}
	return g.inst, &fakeContext{g: g}, nil
}

func (e *fakeEngine) Close(context.Context) error {
	e.closed = true
	return nil
}

// newTestRuntime returns a Runtime over a fake engine loaded with guests in
// order, logging to an observer.
func newTestRuntime(t *testing.T, guests ...*fakeGuest) (*Runtime, *fakeEngine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	engine := &fakeEngine{guests: guests}
	r, err := NewRuntime(context.Background(), WithEngine(engine), WithLogger(zap.New(core)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close(context.Background())
	})
	return r, engine, logs
}

// loadGuest loads g into a fresh test runtime.
func loadGuest(t *testing.T, g *fakeGuest) (*Runtime, *observer.ObservedLogs) {
	t.Helper()
	r, _, logs := newTestRuntime(t, g)
	require.NoError(t, r.LoadModule(context.Background(), []byte("\x00asm"), false))
	return r, logs
}
