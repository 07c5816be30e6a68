package spbin

import (
	"bytes"
	"io"
	"testing"
)

func TestMarshalUnmarshalStandaloneRoundTrip(t *testing.T) {
	v := &unlockRequestStub{All: true, Fiat: 99}
	data, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() = %v", err)
	}
	var got unlockRequestStub
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() = %v", err)
	}
	if got != *v {
		t.Fatalf("got %+v, want %+v", got, *v)
	}
}

func TestWriteReadVariantKnown(t *testing.T) {
	const idUnlock VariantID = 1
	reg := NewVariantRegistry(map[VariantID]VariantConstructor{
		idUnlock: func() Unmarshaler { return &unlockRequestStub{} },
	})

	var buf bytes.Buffer
	if err := WriteVariant(&buf, idUnlock, &unlockRequestStub{All: false, Fiat: 7}); err != nil {
		t.Fatalf("WriteVariant() = %v", err)
	}

	id, v, err := reg.ReadVariant(&buf)
	if err != nil {
		t.Fatalf("ReadVariant() = %v", err)
	}
	if id != idUnlock {
		t.Fatalf("got id %d, want %d", id, idUnlock)
	}
	got, ok := v.(*unlockRequestStub)
	if !ok {
		t.Fatalf("ReadVariant() returned %T, want *unlockRequestStub", v)
	}
	if got.Fiat != 7 {
		t.Fatalf("got Fiat %d, want 7", got.Fiat)
	}
}

func TestReadVariantUnknownFallsBackToUnknownVariant(t *testing.T) {
	reg := NewVariantRegistry(nil)

	var buf bytes.Buffer
	if err := WriteVariant(&buf, 200, &unlockRequestStub{All: true, Fiat: 5}); err != nil {
		t.Fatalf("WriteVariant() = %v", err)
	}

	id, v, err := reg.ReadVariant(&buf)
	if err != nil {
		t.Fatalf("ReadVariant() = %v", err)
	}
	if id != 200 {
		t.Fatalf("got id %d, want 200", id)
	}
	unk, ok := v.(*UnknownVariant)
	if !ok {
		t.Fatalf("ReadVariant() returned %T, want *UnknownVariant", v)
	}
	if unk.ID != 200 || len(unk.Payload) == 0 {
		t.Fatalf("UnknownVariant = %+v, want non-empty payload tagged 200", unk)
	}
}

// unlockRequestStub is a tiny self-contained Marshaler/Unmarshaler used only
// to exercise Marshal/Unmarshal/WriteVariant/ReadVariant without depending on
// the types package (which itself depends on this package).
type unlockRequestStub struct {
	All  bool
	Fiat uint64
}

func (u unlockRequestStub) MarshalSP(w io.Writer) error {
	if err := MarshalBool(w, u.All); err != nil {
		return err
	}
	return MarshalUint64(w, u.Fiat)
}

func (u *unlockRequestStub) UnmarshalSP(r io.Reader) error {
	all, err := UnmarshalBool(r)
	if err != nil {
		return err
	}
	fiat, err := UnmarshalUint64(r)
	if err != nil {
		return err
	}
	u.All = all
	u.Fiat = fiat
	return nil
}
