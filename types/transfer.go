package types

import (
	"bytes"

	"github.com/threefoldtech/stabilitypool/crypto"
	"github.com/threefoldtech/stabilitypool/pkg/encoding/spbin"
)

// TransferRequestID is the content hash of a canonical TransferRequest
// encoding, used for replay defense (spec §3, §9): "content-hash of the
// canonical encoding of TransferRequest stored in a set; validated before
// signatures are checked (cheaper rejection path)".
type TransferRequestID crypto.Hash

// TransferAmount is either a specific fiat amount or the sentinel
// "everything", mirroring UnlockRequest's FiatOrAll shape (spec §4.6).
type TransferAmount struct {
	All  bool
	Fiat FiatAmount
}

// TransferRequest is the unsigned body of a Transfer output (spec §4.6).
type TransferRequest struct {
	From            AccountID
	To              AccountID
	Amount          TransferAmount
	ValidUntilCycle CycleIndex
	// NewFeeRate is required when From/To are provider accounts
	// (spec §4.6, "Provider-only: new_fee_rate present and within bounds").
	NewFeeRate *FeeRatePPB
	// Meta is opaque, caller-supplied bytes carried into the resulting
	// history items (spec §3).
	Meta []byte
}

// CanonicalEncoding returns the deterministic byte encoding used both to
// compute the TransferRequestID and as the message hashed for signing.
func (tr TransferRequest) CanonicalEncoding() []byte {
	buf := new(bytes.Buffer)
	_ = spbin.WriteString(buf, string(tr.From))
	_ = spbin.WriteString(buf, string(tr.To))
	_ = spbin.MarshalBool(buf, tr.Amount.All)
	_ = spbin.MarshalUint64(buf, uint64(tr.Amount.Fiat))
	_ = spbin.MarshalUint64(buf, uint64(tr.ValidUntilCycle))
	if tr.NewFeeRate != nil {
		_ = spbin.MarshalBool(buf, true)
		_ = spbin.MarshalUint64(buf, uint64(*tr.NewFeeRate))
	} else {
		_ = spbin.MarshalBool(buf, false)
	}
	_ = spbin.WriteBytes(buf, tr.Meta)
	return buf.Bytes()
}

// ID computes the TransferRequestID of this request.
func (tr TransferRequest) ID() TransferRequestID {
	return TransferRequestID(crypto.HashBytes(tr.CanonicalEncoding()))
}

// KeyIndexSignature pairs a signature with the index of the signing
// account key within Account.PubKeys, the way the client accumulates
// threshold signatures (spec §4.8).
type KeyIndexSignature struct {
	KeyIndex  int
	Signature crypto.SchnorrSignature
}

// SignedTransferRequest carries a TransferRequest plus enough signatures
// to meet From's threshold (spec §4.6, §6).
type SignedTransferRequest struct {
	Request    TransferRequest
	Signatures []KeyIndexSignature
}
