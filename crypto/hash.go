package crypto

import (
	"crypto/sha256"
)

// HashSize is the size, in bytes, of a Hash.
const HashSize = 32

// Hash is a content hash used throughout the module: it identifies
// accounts (AccountId is derived from one), transfer requests (replay
// defense, spec §4.6/§9), and history item keys.
type Hash [HashSize]byte

// HashBytes hashes an arbitrary byte slice.
func HashBytes(data []byte) (h Hash) {
	h = sha256.Sum256(data)
	return
}

// HashAll hashes the concatenation of all given byte slices, avoiding the
// ambiguity of hashing each independently and then hashing the hashes.
func HashAll(data ...[]byte) Hash {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var sum Hash
	copy(sum[:], h.Sum(nil))
	return sum
}

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, HashSize*2)
	for i, b := range h {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}
