package natives

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/wasmhost"
)

type recordedEvent struct {
	name    string
	payload []byte
	source  string
}

type fakeHost struct {
	events  []recordedEvent
	calls   map[uint32][]byte
	lastArg []byte
	err     error
}

func (h *fakeHost) TriggerEvent(_ context.Context, name string, payload []byte, source string) error {
	h.events = append(h.events, recordedEvent{name, payload, source})
	return h.err
}

func (h *fakeHost) CallRef(_ context.Context, ref uint32, args []byte) ([]byte, error) {
	h.lastArg = args
	return h.calls[ref], h.err
}

func newBuiltins(t *testing.T, host Host) *Registry {
	t.Helper()
	reg, err := NewRegistry(Builtins(host, BuiltinConfig{
		Resource: "chat",
		Instance: 2,
		Clock:    func() time.Duration { return 1500 * time.Millisecond },
	}))
	require.NoError(t, err)
	return reg
}

func TestBuiltins(t *testing.T) {
	reg := newBuiltins(t, &fakeHost{})
	assert.Equal(t, []string{
		NativeGetCurrentResourceName,
		NativeGetGameTimer,
		abi.NativeInvokeFunctionReference,
		abi.NativeTriggerEvent,
	}, reg.Names())

	nctx := call(abi.NativeHash(NativeGetGameTimer))
	require.Equal(t, uint32(0), reg.Invoke(nctx))
	assert.Equal(t, uint64(1500), nctx.Result())

	nctx = call(abi.NativeHash(NativeGetCurrentResourceName))
	require.Equal(t, uint32(0), reg.Invoke(nctx))
	data, ok := nctx.Data()
	assert.True(t, ok)
	assert.Equal(t, "chat", string(data))
}

func TestTriggerEventLoopback(t *testing.T) {
	host := &fakeHost{}
	reg := newBuiltins(t, host)

	payload := []byte{0x91, 0x01, 0xFF, 0xFF}
	status := reg.Invoke(call(abi.TriggerEventHash,
		wasmhost.ReferenceArgument([]byte("chat:message\x00")),
		wasmhost.ReferenceArgument(payload),
		wasmhost.ValueArgument(2)))
	require.Equal(t, uint32(0), status)

	require.Len(t, host.events, 1)
	assert.Equal(t, recordedEvent{name: "chat:message", payload: []byte{0x91, 0x01}, source: ""}, host.events[0])

	payload[0] = 0
	assert.Equal(t, byte(0x91), host.events[0].payload[0], "payload is copied")

	t.Run("length beyond the argument", func(t *testing.T) {
		status := reg.Invoke(call(abi.TriggerEventHash,
			wasmhost.ReferenceArgument([]byte("e\x00")),
			wasmhost.ReferenceArgument([]byte{1}),
			wasmhost.ValueArgument(9)))
		assert.Equal(t, abi.Failed(CodeNativeError), status)
	})

	t.Run("too few arguments", func(t *testing.T) {
		status := reg.Invoke(call(abi.TriggerEventHash, wasmhost.ReferenceArgument([]byte("e\x00"))))
		assert.Equal(t, abi.Failed(CodeNativeError), status)
	})

	t.Run("event fault propagates", func(t *testing.T) {
		host.err = errors.New("module discarded")
		defer func() { host.err = nil }()
		status := reg.Invoke(call(abi.TriggerEventHash,
			wasmhost.ReferenceArgument([]byte("e\x00")),
			wasmhost.ReferenceArgument(nil),
			wasmhost.ValueArgument(0)))
		assert.Equal(t, abi.Failed(CodeNativeError), status)
	})
}

func TestInvokeFunctionReferenceLoopback(t *testing.T) {
	host := &fakeHost{calls: map[uint32][]byte{5: {0x92, 0x01, 0x02}}}
	reg := newBuiltins(t, host)

	invoke := func(name string) (*wasmhost.NativeContext, uint32, uint32) {
		var outLen [4]byte
		nctx := call(abi.InvokeFunctionReferenceHash,
			wasmhost.ReferenceArgument([]byte(name+"\x00")),
			wasmhost.ReferenceArgument([]byte{0x91, 0xc3}),
			wasmhost.ValueArgument(2),
			wasmhost.ReferenceArgument(outLen[:]))
		status := reg.Invoke(nctx)
		return nctx, status, binary.LittleEndian.Uint32(outLen[:])
	}

	nctx, status, n := invoke("chat:2:5")
	require.Equal(t, uint32(0), status)
	assert.Equal(t, uint32(3), n)
	data, _ := nctx.Data()
	assert.Equal(t, []byte{0x92, 0x01, 0x02}, data)
	assert.Equal(t, []byte{0x91, 0xc3}, host.lastArg)

	t.Run("other resource", func(t *testing.T) {
		_, status, n := invoke("other:2:5")
		assert.Equal(t, uint32(0), status)
		assert.Zero(t, n)
	})

	t.Run("stale instance", func(t *testing.T) {
		_, status, n := invoke("chat:1:5")
		assert.Equal(t, uint32(0), status)
		assert.Zero(t, n)
	})

	t.Run("malformed name", func(t *testing.T) {
		_, status, _ := invoke("garbage")
		assert.Equal(t, abi.Failed(CodeNativeError), status)
	})
}
