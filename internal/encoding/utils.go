// Package encoding provides the little-endian wire codecs shared by the
// SQL-backed storage variants and the dump/load persistence format.
package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidVector is returned when a vector byte blob is malformed.
var ErrInvalidVector = errors.New("invalid vector encoding")

// EncodeVector converts a float32 slice to bytes using little-endian encoding.
func EncodeVector(vector []float32) ([]byte, error) {
	if vector == nil {
		return nil, ErrInvalidVector
	}

	buf := new(bytes.Buffer)

	vectorLen := len(vector)
	if vectorLen > 2147483647 { // max int32
		return nil, fmt.Errorf("vector too large: %d elements exceeds maximum", vectorLen)
	}
	if err := binary.Write(buf, binary.LittleEndian, int32(vectorLen)); err != nil {
		return nil, fmt.Errorf("encode vector length: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, vector); err != nil {
		return nil, fmt.Errorf("encode vector values: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeVector converts bytes back to a float32 slice using little-endian encoding.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, ErrInvalidVector
	}

	buf := bytes.NewReader(data)

	var length int32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("decode vector length: %w", err)
	}
	if length < 0 {
		return nil, ErrInvalidVector
	}
	if length == 0 {
		return []float32{}, nil
	}

	expectedBytes := int(length) * 4
	if buf.Len() < expectedBytes {
		return nil, ErrInvalidVector
	}

	vector := make([]float32, length)
	if err := binary.Read(buf, binary.LittleEndian, vector); err != nil {
		return nil, fmt.Errorf("decode vector values: %w", err)
	}

	return vector, nil
}

// EncodeHash converts a hash (small signed integers) to bytes.
func EncodeHash(hash []int8) []byte {
	out := make([]byte, len(hash))
	for i, v := range hash {
		out[i] = byte(v)
	}
	return out
}

// DecodeHash is the inverse of EncodeHash.
func DecodeHash(data []byte) []int8 {
	out := make([]int8, len(data))
	for i, v := range data {
		out[i] = int8(v)
	}
	return out
}
