// Package spbin implements the tagged, length-prefixed binary codec used
// for every persisted and on-the-wire stability pool value (spec §6). It
// is a purpose-built replacement for encoding/gob: every integer is
// fixed-width little-endian, every variable-length value is length
// prefixed, and every externally-visible variant type is encoded behind a
// one-byte tag so an older decoder can fall back to an Unknown variant
// instead of corrupting its stream.
package spbin

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MarshalBool writes a bool as a single byte.
func MarshalBool(w io.Writer, b bool) error {
	if b {
		return MarshalUint8(w, 1)
	}
	return MarshalUint8(w, 0)
}

// UnmarshalBool reads a single byte as a bool.
func UnmarshalBool(r io.Reader) (bool, error) {
	x, err := UnmarshalUint8(r)
	if err != nil {
		return false, fmt.Errorf("spbin: unmarshal bool: %w", err)
	}
	switch x {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("spbin: invalid bool byte %d", x)
	}
}

// MarshalUint8 writes a single byte.
func MarshalUint8(w io.Writer, x uint8) error {
	_, err := w.Write([]byte{x})
	return err
}

// UnmarshalUint8 reads a single byte.
func UnmarshalUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// MarshalUint64 writes an 8-byte little-endian uint64.
func MarshalUint64(w io.Writer, x uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], x)
	_, err := w.Write(b[:])
	return err
}

// UnmarshalUint64 reads an 8-byte little-endian uint64.
func UnmarshalUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// MarshalInt64 writes an 8-byte little-endian int64.
func MarshalInt64(w io.Writer, x int64) error {
	return MarshalUint64(w, uint64(x))
}

// UnmarshalInt64 reads an 8-byte little-endian int64.
func UnmarshalInt64(r io.Reader) (int64, error) {
	x, err := UnmarshalUint64(r)
	return int64(x), err
}

// MarshalUint32 writes a 4-byte little-endian uint32.
func MarshalUint32(w io.Writer, x uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], x)
	_, err := w.Write(b[:])
	return err
}

// UnmarshalUint32 reads a 4-byte little-endian uint32.
func UnmarshalUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
