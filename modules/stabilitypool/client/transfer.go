package client

import (
	"fmt"

	"github.com/threefoldtech/stabilitypool/crypto"
	"github.com/threefoldtech/stabilitypool/types"
)

// TransferSigner collects per-key Schnorr signatures over one
// TransferRequest until the account's threshold is met, per spec §4.8: "the
// client hashes the TransferRequest and produces a Schnorr signature; a map
// key_index -> signature is collected until threshold is met, then
// submitted."
type TransferSigner struct {
	request   types.TransferRequest
	threshold int
	hash      crypto.Hash

	sigs map[int]crypto.SchnorrSignature
}

// NewTransferSigner starts collecting signatures for req, to be considered
// complete once threshold distinct key indices have signed.
func NewTransferSigner(req types.TransferRequest, threshold int) *TransferSigner {
	return &TransferSigner{
		request:   req,
		threshold: threshold,
		hash:      crypto.HashBytes(req.CanonicalEncoding()),
		sigs:      make(map[int]crypto.SchnorrSignature),
	}
}

// Sign produces this key's signature over the request and adds it to the
// collected set, keyed by keyIndex. Re-signing with an already-present
// index overwrites the prior signature for that index.
func (s *TransferSigner) Sign(keyIndex int, secretKey crypto.SchnorrSecretKey) error {
	sig, err := crypto.SignSchnorr(s.hash, secretKey)
	if err != nil {
		return fmt.Errorf("transfer signer: sign key index %d: %w", keyIndex, err)
	}
	s.sigs[keyIndex] = sig
	return nil
}

// AddSignature records a signature produced elsewhere (e.g. relayed from
// another co-signer over a side channel) without verifying it locally; the
// federation's own verifyThresholdSignatures check is authoritative.
func (s *TransferSigner) AddSignature(keyIndex int, sig crypto.SchnorrSignature) {
	s.sigs[keyIndex] = sig
}

// Ready reports whether enough distinct key indices have signed to meet the
// account's threshold.
func (s *TransferSigner) Ready() bool {
	return len(s.sigs) >= s.threshold
}

// Hash returns the message hash every co-signer signs over.
func (s *TransferSigner) Hash() crypto.Hash { return s.hash }

// Build assembles the SignedTransferRequest ready for submission, returning
// an error if threshold has not yet been met.
func (s *TransferSigner) Build() (types.SignedTransferRequest, error) {
	if !s.Ready() {
		return types.SignedTransferRequest{}, fmt.Errorf("transfer signer: have %d of %d required signatures", len(s.sigs), s.threshold)
	}
	out := types.SignedTransferRequest{Request: s.request}
	for idx, sig := range s.sigs {
		out.Signatures = append(out.Signatures, types.KeyIndexSignature{KeyIndex: idx, Signature: sig})
	}
	return out, nil
}
