package crypto

import (
	"errors"

	"github.com/NebulousLabs/fastrand"
	"golang.org/x/crypto/ed25519"
)

const (
	// EntropySize is the amount of entropy, in bytes, needed to deterministically
	// derive a keypair.
	EntropySize = 32

	// PublicKeySize is the size, in bytes, of a PublicKey.
	PublicKeySize = ed25519.PublicKeySize
	// SecretKeySize is the size, in bytes, of a SecretKey.
	SecretKeySize = ed25519.PrivateKeySize
	// SignatureSize is the size, in bytes, of a Signature.
	SignatureSize = ed25519.SignatureSize
)

// ErrInvalidSignature is returned when a signature does not verify against
// the given public key and message.
var ErrInvalidSignature = errors.New("invalid signature")

type (
	// PublicKey verifies signatures produced by the corresponding SecretKey.
	// Guardians and accounts alike are identified by one or more of these
	// (spec §3, Account.pub_keys).
	PublicKey [PublicKeySize]byte

	// SecretKey signs messages on behalf of the corresponding PublicKey.
	SecretKey [SecretKeySize]byte

	// Signature proves a SecretKey holder authorized a given message.
	Signature [SignatureSize]byte
)

var nilPublicKey = PublicKey{}

// PublicKey derives the public half of a secret key.
func (sk SecretKey) PublicKey() (pk PublicKey) {
	copy(pk[:], sk[SecretKeySize-PublicKeySize:])
	return
}

// IsNil reports whether pk is the zero value.
func (pk PublicKey) IsNil() bool {
	return pk == nilPublicKey
}

// GenerateKeyPair creates a new random keypair.
func GenerateKeyPair() (sk SecretKey, pk PublicKey) {
	// no error possible when using fastrand.Reader
	epk, esk, _ := ed25519.GenerateKey(fastrand.Reader)
	copy(sk[:], esk)
	copy(pk[:], epk)
	return
}

// SignHash signs a hash using a secret key.
func SignHash(h Hash, sk SecretKey) (sig Signature) {
	copy(sig[:], ed25519.Sign(sk[:], h[:]))
	return
}

// VerifyHash verifies a signature over a hash against a public key.
func VerifyHash(h Hash, pk PublicKey, sig Signature) error {
	if !ed25519.Verify(pk[:], h[:], sig[:]) {
		return ErrInvalidSignature
	}
	return nil
}

// SecureWipe overwrites a secret key's backing array with zeroes so it
// does not linger in memory after the caller is done with it, matching
// the teacher's spendableKey.WipeSecret pattern.
func SecureWipe(sk *SecretKey) {
	for i := range sk {
		sk[i] = 0
	}
}
