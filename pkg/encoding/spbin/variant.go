package spbin

import (
	"fmt"
	"io"
)

// Marshaler is implemented by any spbin-encodable value.
type Marshaler interface {
	MarshalSP(w io.Writer) error
}

// Unmarshaler is implemented by any spbin-decodable value.
type Unmarshaler interface {
	UnmarshalSP(r io.Reader) error
}

// VariantID identifies one case of an externally-visible variant type
// (a deposit meta kind, an account-history kind, an input/output kind,
// ...). Mirrors the teacher's ConditionType byte tag.
type VariantID uint8

// UnknownVariant is what a decoder produces when it sees a VariantID it
// does not recognize. It is never applied (spec §7: "unknown input/output
// variants are accepted as opaque in encoding but rejected at apply-time"),
// but it round-trips so an older guardian can still persist and
// re-propagate a payload written by a newer one.
type UnknownVariant struct {
	ID      VariantID
	Payload []byte
}

// MarshalSP implements Marshaler.
func (u UnknownVariant) MarshalSP(w io.Writer) error {
	if err := MarshalUint8(w, uint8(u.ID)); err != nil {
		return err
	}
	return WriteBytes(w, u.Payload)
}

// UnmarshalSP implements Unmarshaler.
func (u *UnknownVariant) UnmarshalSP(r io.Reader) error {
	id, err := UnmarshalUint8(r)
	if err != nil {
		return err
	}
	payload, err := ReadBytes(r)
	if err != nil {
		return err
	}
	u.ID = VariantID(id)
	u.Payload = payload
	return nil
}

// VariantConstructor builds a fresh, zero-valued Unmarshaler for a given
// VariantID, the way the teacher's _RegisteredUnlockConditionTypes map
// does for ConditionType.
type VariantConstructor func() Unmarshaler

// VariantRegistry maps VariantIDs to constructors, and provides the
// Unknown-fallback read/write envelope every open-extensible enum in this
// module uses (DepositMeta kind, AccountHistoryItem kind, module
// input/output kind).
type VariantRegistry struct {
	ctors map[VariantID]VariantConstructor
}

// NewVariantRegistry builds a registry from a fixed set of known variants.
func NewVariantRegistry(known map[VariantID]VariantConstructor) *VariantRegistry {
	ctors := make(map[VariantID]VariantConstructor, len(known))
	for id, ctor := range known {
		ctors[id] = ctor
	}
	return &VariantRegistry{ctors: ctors}
}

// WriteVariant writes the VariantID tag followed by the value's own
// encoding, framed as a length-prefixed blob so an unrecognizing reader
// can still skip it cleanly.
func WriteVariant(w io.Writer, id VariantID, v Marshaler) error {
	if err := MarshalUint8(w, uint8(id)); err != nil {
		return err
	}
	inner := new(countingBuffer)
	if err := v.MarshalSP(inner); err != nil {
		return fmt.Errorf("spbin: marshal variant %d: %w", id, err)
	}
	return WriteBytes(w, inner.buf)
}

// ReadVariant reads a VariantID tag and its payload, returning a concrete
// decoded value when the ID is known, or an UnknownVariant otherwise.
func (reg *VariantRegistry) ReadVariant(r io.Reader) (VariantID, Unmarshaler, error) {
	rawID, err := UnmarshalUint8(r)
	if err != nil {
		return 0, nil, err
	}
	id := VariantID(rawID)
	payload, err := ReadBytes(r)
	if err != nil {
		return 0, nil, err
	}
	ctor, ok := reg.ctors[id]
	if !ok {
		return id, &UnknownVariant{ID: id, Payload: payload}, nil
	}
	v := ctor()
	if err := v.UnmarshalSP(newByteReader(payload)); err != nil {
		return id, nil, fmt.Errorf("spbin: unmarshal variant %d: %w", id, err)
	}
	return id, v, nil
}
