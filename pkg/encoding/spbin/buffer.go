package spbin

import "bytes"

// countingBuffer is a trivial io.Writer sink used when a variant must be
// encoded to a temporary buffer before its length is known. A
// *bytes.Buffer would do, but the teacher's MarshalAll helpers in
// pkg/encoding/rivbin follow the same "encode to a bytes.Buffer first"
// idiom, so this keeps that shape explicit rather than hiding it behind
// bytes.Buffer directly.
type countingBuffer struct {
	buf []byte
}

func (c *countingBuffer) Write(p []byte) (int, error) {
	c.buf = append(c.buf, p...)
	return len(p), nil
}

func newByteReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

// Marshal encodes v to a standalone byte slice.
func Marshal(v Marshaler) ([]byte, error) {
	buf := new(countingBuffer)
	if err := v.MarshalSP(buf); err != nil {
		return nil, err
	}
	return buf.buf, nil
}

// Unmarshal decodes v from a standalone byte slice.
func Unmarshal(data []byte, v Unmarshaler) error {
	return v.UnmarshalSP(bytes.NewReader(data))
}
