package crypto

import (
	"crypto/rand"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// SchnorrPublicKey and SchnorrSignature back account transfer signing
// (spec §4.8, §9: "the client hashes the TransferRequest and produces a
// Schnorr signature"). Accounts use secp256k1/BIP340 Schnorr rather than
// the ed25519 scheme used for plain account/guardian keys, since a
// TransferRequest must carry a signature format a Bitcoin-ecosystem wallet
// can natively produce.
type (
	SchnorrPublicKey  [32]byte
	SchnorrSecretKey  [32]byte
	SchnorrSignature  [64]byte
)

// ErrInvalidSchnorrSignature is returned when a Schnorr signature fails to
// verify against the claimed public key and message hash.
var ErrInvalidSchnorrSignature = errors.New("invalid schnorr signature")

// GenerateSchnorrKeyPair creates a new random secp256k1 keypair.
func GenerateSchnorrKeyPair() (SchnorrSecretKey, SchnorrPublicKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return SchnorrSecretKey{}, SchnorrPublicKey{}, err
	}
	var sk SchnorrSecretKey
	var pk SchnorrPublicKey
	copy(sk[:], priv.Serialize())
	copy(pk[:], schnorr.SerializePubKey(priv.PubKey()))
	return sk, pk, nil
}

// SignSchnorr signs a hash with a secp256k1 secret key, producing a BIP340
// signature.
func SignSchnorr(h Hash, sk SchnorrSecretKey) (SchnorrSignature, error) {
	priv, _ := btcec.PrivKeyFromBytes(sk[:])
	sig, err := schnorr.Sign(priv, h[:], schnorr.CustomNonce(randomAuxBytes()))
	if err != nil {
		return SchnorrSignature{}, err
	}
	var out SchnorrSignature
	copy(out[:], sig.Serialize())
	return out, nil
}

// VerifySchnorr verifies a BIP340 signature against a public key and
// message hash.
func VerifySchnorr(h Hash, pk SchnorrPublicKey, sigBytes SchnorrSignature) error {
	pubKey, err := schnorr.ParsePubKey(pk[:])
	if err != nil {
		return err
	}
	sig, err := schnorr.ParseSignature(sigBytes[:])
	if err != nil {
		return err
	}
	if !sig.Verify(h[:], pubKey) {
		return ErrInvalidSchnorrSignature
	}
	return nil
}

func randomAuxBytes() [32]byte {
	var aux [32]byte
	_, _ = rand.Read(aux[:])
	return aux
}
