package spbin

import (
	"bytes"
	"testing"
)

func TestMarshalUnmarshalUint8(t *testing.T) {
	var buf bytes.Buffer
	if err := MarshalUint8(&buf, 0xAB); err != nil {
		t.Fatalf("MarshalUint8() = %v", err)
	}
	got, err := UnmarshalUint8(&buf)
	if err != nil {
		t.Fatalf("UnmarshalUint8() = %v", err)
	}
	if got != 0xAB {
		t.Fatalf("got %#x, want 0xAB", got)
	}
}

func TestMarshalUnmarshalUint64(t *testing.T) {
	for _, x := range []uint64{0, 1, 1<<64 - 1, 0x0102030405060708} {
		var buf bytes.Buffer
		if err := MarshalUint64(&buf, x); err != nil {
			t.Fatalf("MarshalUint64(%d) = %v", x, err)
		}
		got, err := UnmarshalUint64(&buf)
		if err != nil {
			t.Fatalf("UnmarshalUint64() = %v", err)
		}
		if got != x {
			t.Fatalf("got %d, want %d", got, x)
		}
	}
}

func TestMarshalUnmarshalInt64Negative(t *testing.T) {
	var buf bytes.Buffer
	if err := MarshalInt64(&buf, -123456789); err != nil {
		t.Fatalf("MarshalInt64() = %v", err)
	}
	got, err := UnmarshalInt64(&buf)
	if err != nil {
		t.Fatalf("UnmarshalInt64() = %v", err)
	}
	if got != -123456789 {
		t.Fatalf("got %d, want -123456789", got)
	}
}

func TestMarshalUnmarshalUint32(t *testing.T) {
	var buf bytes.Buffer
	if err := MarshalUint32(&buf, 0xDEADBEEF); err != nil {
		t.Fatalf("MarshalUint32() = %v", err)
	}
	got, err := UnmarshalUint32(&buf)
	if err != nil {
		t.Fatalf("UnmarshalUint32() = %v", err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("got %#x, want 0xDEADBEEF", got)
	}
}

func TestMarshalUnmarshalBool(t *testing.T) {
	for _, b := range []bool{true, false} {
		var buf bytes.Buffer
		if err := MarshalBool(&buf, b); err != nil {
			t.Fatalf("MarshalBool(%v) = %v", b, err)
		}
		got, err := UnmarshalBool(&buf)
		if err != nil {
			t.Fatalf("UnmarshalBool() = %v", err)
		}
		if got != b {
			t.Fatalf("got %v, want %v", got, b)
		}
	}
}

func TestUnmarshalBoolRejectsInvalidByte(t *testing.T) {
	buf := bytes.NewReader([]byte{7})
	if _, err := UnmarshalBool(buf); err == nil {
		t.Fatal("expected error for non-0/1 bool byte")
	}
}

func TestWriteReadBytesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	data := []byte("hello, stability pool")
	if err := WriteBytes(&buf, data); err != nil {
		t.Fatalf("WriteBytes() = %v", err)
	}
	got, err := ReadBytes(&buf)
	if err != nil {
		t.Fatalf("ReadBytes() = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestWriteReadBytesEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBytes(&buf, nil); err != nil {
		t.Fatalf("WriteBytes() = %v", err)
	}
	got, err := ReadBytes(&buf)
	if err != nil {
		t.Fatalf("ReadBytes() = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestReadBytesRejectsOversizedLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	if err := MarshalUint32(&buf, MaxSliceLength+1); err != nil {
		t.Fatalf("MarshalUint32() = %v", err)
	}
	if _, err := ReadBytes(&buf); err == nil {
		t.Fatal("expected error for length prefix exceeding MaxSliceLength")
	}
}

func TestWriteReadStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteString(&buf, "sps1exampleaccount"); err != nil {
		t.Fatalf("WriteString() = %v", err)
	}
	got, err := ReadString(&buf)
	if err != nil {
		t.Fatalf("ReadString() = %v", err)
	}
	if got != "sps1exampleaccount" {
		t.Fatalf("got %q, want %q", got, "sps1exampleaccount")
	}
}
