// Package payload encodes structured values crossing the guest/host boundary:
// event payloads and reference call arguments/results.
//
// The encoding is MessagePack. Structs are written as maps with their fields
// in declaration order; slices and arrays as arrays.
package payload

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes v.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.UseCompactFloats(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("payload: encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v. Trailing bytes after the first value are an
// error so that truncated or concatenated payloads are not silently accepted.
func Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("payload: decode %T: empty payload", v)
	}
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("payload: decode %T: %w", v, err)
	}
	if r.Len() != 0 {
		return fmt.Errorf("payload: decode %T: %d trailing bytes", v, r.Len())
	}
	return nil
}

// Args encodes a positional argument list as an array.
func Args(args ...any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return Marshal(args)
}
