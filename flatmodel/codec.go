package flatmodel

import (
	"bytes"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Magic prefixes every encoded model.
const Magic = "TPM1"

// MaxBodySize bounds the decompressed body accepted by Decode.
const MaxBodySize = 8 << 20

// Encode validates m and serializes it as Magic followed by the snappy
// compressed msgpack body.
func Encode(m *Model) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	body, err := m.MarshalMsg(nil)
	if err != nil {
		return nil, errors.Wrap(err, "flatmodel: marshal")
	}
	return append([]byte(Magic), snappy.Encode(nil, body)...), nil
}

// Decode parses and validates a buffer produced by Encode. It never panics,
// malformed input yields an error wrapping ErrFormat.
func Decode(buf []byte) (*Model, error) {
	if !bytes.HasPrefix(buf, []byte(Magic)) {
		return nil, errors.Wrap(ErrFormat, "missing magic")
	}
	compressed := buf[len(Magic):]
	n, err := snappy.DecodedLen(compressed)
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "snappy: %v", err)
	}
	if n > MaxBodySize {
		return nil, errors.Wrapf(ErrFormat, "body of %d bytes", n)
	}
	body, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "snappy: %v", err)
	}
	m := new(Model)
	rest, err := m.UnmarshalMsg(body)
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "msgpack: %v", err)
	}
	if len(rest) != 0 {
		return nil, errors.Wrapf(ErrFormat, "%d trailing bytes", len(rest))
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
