package serialize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/hugr-lab/manageql/internal/msgpack"
)

// Envelope is the compressed content wrapper Airport clients expect:
// a two-element MessagePack array of the uncompressed length and the
// ZStandard-compressed bytes.
type Envelope struct {
	Length uint32
	Data   []byte
}

// Seal encodes v with MessagePack, compresses it and returns the encoded
// envelope.
func Seal(v any) ([]byte, error) {
	raw, err := msgpack.Encode(v)
	if err != nil {
		return nil, err
	}
	compressed, err := Compress(raw)
	if err != nil {
		return nil, err
	}
	return msgpack.Encode([]any{uint32(len(raw)), string(compressed)})
}

// Open decodes an envelope produced by Seal and returns the uncompressed
// MessagePack payload.
func Open(sealed []byte) ([]byte, error) {
	var parts []any
	if err := msgpack.Decode(sealed, &parts); err != nil {
		return nil, err
	}
	if len(parts) != 2 {
		return nil, fmt.Errorf("envelope has %d elements, want 2", len(parts))
	}
	var env Envelope
	switch n := parts[0].(type) {
	case uint32:
		env.Length = n
	case uint64:
		env.Length = uint32(n)
	case int64:
		env.Length = uint32(n)
	case uint8:
		env.Length = uint32(n)
	case uint16:
		env.Length = uint32(n)
	case int8:
		env.Length = uint32(n)
	default:
		return nil, fmt.Errorf("envelope length has type %T", parts[0])
	}
	switch d := parts[1].(type) {
	case string:
		env.Data = []byte(d)
	case []byte:
		env.Data = d
	default:
		return nil, fmt.Errorf("envelope data has type %T", parts[1])
	}

	raw, err := Decompress(env.Data)
	if err != nil {
		return nil, err
	}
	if uint32(len(raw)) != env.Length {
		return nil, fmt.Errorf("envelope length %d, payload has %d bytes", env.Length, len(raw))
	}
	return raw, nil
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
