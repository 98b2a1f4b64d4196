// Package msgpack encodes and decodes the MessagePack bodies of Airport
// actions.
package msgpack

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrEmpty is returned when decoding an empty body.
var ErrEmpty = errors.New("empty MessagePack data")

// Decode deserializes data into v, which must be a pointer.
//
//	var req struct {
//	    Descriptor string `msgpack:"descriptor"`
//	}
//	err := msgpack.Decode(body, &req)
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode MessagePack: %w", err)
	}
	return nil
}

// DecodeOptional is Decode for bodies that may be absent. An empty body
// leaves v untouched.
func DecodeOptional(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return Decode(data, v)
}

// Encode serializes v. Map keys are sorted so equal values always encode
// to equal bytes, which keeps content hashes stable.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode MessagePack: %w", err)
	}
	return buf.Bytes(), nil
}
