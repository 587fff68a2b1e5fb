package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgumentLayout(t *testing.T) {
	buf := make([]byte, ArgumentSize)
	Argument{Kind: ArgReference, Size: 24, Value: 0x1000}.Encode(buf)

	assert.Equal(t, []byte{
		0x01, 0x00, 0x00, 0x00,
		0x18, 0x00, 0x00, 0x00,
		0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}, buf)
	assert.Equal(t, Argument{Kind: ArgReference, Size: 24, Value: 0x1000}, DecodeArgument(buf))
}

func TestReturnDescriptorLayout(t *testing.T) {
	buf := make([]byte, ReturnDescriptorSize)
	ReturnDescriptor{Kind: ReturnString, Buffer: 64, Capacity: 4, Length: 10}.Encode(buf)

	assert.Equal(t, uint8(ReturnString), buf[0])
	assert.Equal(t, uint8(64), buf[4])
	assert.Equal(t, uint8(4), buf[8])
	assert.Equal(t, uint8(10), buf[12])
}

func TestVector3Padding(t *testing.T) {
	buf := make([]byte, Vector3Size)
	for i := range buf {
		buf[i] = 0xff
	}
	EncodeVector3(buf, Vector3{X: 1, Y: 2, Z: 3})

	for _, pad := range []int{4, 12, 20} {
		require.Equal(t, []byte{0, 0, 0, 0}, buf[pad:pad+4], "padding at %d", pad)
	}
	assert.Equal(t, Vector3{X: 1, Y: 2, Z: 3}, DecodeVector3(buf))
}

func TestNativeHash(t *testing.T) {
	assert.Equal(t, NativeHash("get_game_timer"), NativeHash("GET_GAME_TIMER"))
	assert.NotEqual(t, InvokeFunctionReferenceHash, TriggerEventHash)
}

func TestSucceeded(t *testing.T) {
	assert.True(t, Succeeded(0))
	assert.True(t, Succeeded(0x7fffffff))
	assert.False(t, Succeeded(Failed(0)))
	assert.False(t, Succeeded(Failed(3)))
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusOK, "OK(0)"},
		{Status(10), "OK(10)"},
		{StatusSmallReturnBuffer, "SMALL_RETURN_BUFFER"},
		{StatusTooManyArguments, "TOO_MANY_ARGUMENTS"},
		{Status(-99), "UNKNOWN(-99)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
	assert.True(t, Status(3).Ok())
	assert.False(t, StatusNullResult.Ok())
}
