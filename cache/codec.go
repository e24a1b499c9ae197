package cache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ErrSerialization marks a corrupt or incompatible cached payload. Callers
// treat it as a cache miss and drop the entry rather than failing the request.
var ErrSerialization = errors.New("cache payload serialization failed")

// Envelope flag bytes. Every stored payload is prefixed with exactly one of
// these so decoding never has to guess whether the body is compressed.
const (
	flagRaw        byte = 0x00
	flagCompressed byte = 0x01
)

// Globally shared zstd encoder and decoder. Only their EncodeAll and
// DecodeAll methods are used, which are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	if zstdEncoder, err = zstd.NewWriter(nil); err != nil {
		panic(err) // this is impossible
	}
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic(err) // this is impossible
	}
}

// Codec converts cache payloads to their transport form: a one-byte
// compression flag followed by the JSON body, zstd-compressed when the body
// exceeds Threshold bytes. Encode and Decode round-trip exactly.
type Codec struct {
	// Threshold is the body size in bytes above which the payload is
	// compressed. Zero or negative disables compression.
	Threshold int
}

// Encode serializes value into an envelope
func (c *Codec) Encode(value any) ([]byte, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	if c.Threshold > 0 && len(body) > c.Threshold {
		out := make([]byte, 1, len(body)/2+1)
		out[0] = flagCompressed
		return zstdEncoder.EncodeAll(body, out), nil
	}

	out := make([]byte, 1+len(body))
	out[0] = flagRaw
	copy(out[1:], body)
	return out, nil
}

// Decode deserializes an envelope produced by Encode into out
func (c *Codec) Decode(data []byte, out any) error {
	if len(data) < 1 {
		return fmt.Errorf("%w: empty payload", ErrSerialization)
	}

	body := data[1:]
	switch data[0] {
	case flagCompressed:
		var err error
		body, err = zstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
	case flagRaw:
		// body used as-is
	default:
		return fmt.Errorf("%w: unknown envelope flag 0x%02x", ErrSerialization, data[0])
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}
