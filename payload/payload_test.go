package payload

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type playerJoined struct {
	Name  string `msgpack:"name"`
	Slot  int    `msgpack:"slot"`
	Admin bool   `msgpack:"admin"`
}

func TestStructFieldOrderPreserved(t *testing.T) {
	data, err := Marshal(playerJoined{Name: "alice", Slot: 3})
	require.NoError(t, err)

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	n, err := dec.DecodeMapLen()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	var keys []string
	for i := 0; i < n; i++ {
		k, err := dec.DecodeString()
		require.NoError(t, err)
		keys = append(keys, k)
		require.NoError(t, dec.Skip())
	}
	assert.Equal(t, []string{"name", "slot", "admin"}, keys)
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	var v playerJoined

	assert.Error(t, Unmarshal(nil, &v))
	assert.Error(t, Unmarshal([]byte{0xc1}, &v)) // never-used marker

	data, err := Marshal(playerJoined{Name: "bob"})
	require.NoError(t, err)
	assert.Error(t, Unmarshal(append(data, 0x01), &v))
	assert.Error(t, Unmarshal(data[:len(data)-1], &v))
}

func TestArgs(t *testing.T) {
	data, err := Args("hello", 42)
	require.NoError(t, err)

	var out []any
	require.NoError(t, Unmarshal(data, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "hello", out[0])

	empty, err := Args()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90}, empty)
}
