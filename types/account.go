package types

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcutil/bech32"

	"github.com/threefoldtech/stabilitypool/crypto"
	"github.com/threefoldtech/stabilitypool/pkg/encoding/spbin"
)

// AccountType distinguishes the three account flavors of spec §3.
type AccountType uint8

const (
	// AccountSeeker holds only seeks (staged + locked) plus idle.
	AccountSeeker AccountType = iota
	// AccountProvider holds only provides plus idle.
	AccountProvider
	// AccountBtcDepositor holds only staged seeks plus idle, never locked.
	AccountBtcDepositor
)

func (t AccountType) String() string {
	switch t {
	case AccountSeeker:
		return "seeker"
	case AccountProvider:
		return "provider"
	case AccountBtcDepositor:
		return "btc_depositor"
	default:
		return fmt.Sprintf("unknown_account_type(%d)", uint8(t))
	}
}

// bech32HRPForType returns the human-readable-part prefix for an account's
// type (spec §6, "Bech32m AccountId prefixes").
func bech32HRPForType(t AccountType) (string, error) {
	switch t {
	case AccountSeeker:
		return "sps", nil
	case AccountProvider:
		return "spp", nil
	case AccountBtcDepositor:
		return "spd", nil
	default:
		return "", fmt.Errorf("bech32 hrp: %w: %v", ErrInvalidAccountType, t)
	}
}

// ErrInvalidAccountType is returned when an AccountType is out of range.
var ErrInvalidAccountType = errors.New("invalid account type")

// ErrEmptyKeySet is returned when an Account is constructed with no
// public keys.
var ErrEmptyKeySet = errors.New("account must have at least one public key")

// ErrThresholdOutOfRange is returned when an Account's threshold is not in
// [1, len(pub_keys)].
var ErrThresholdOutOfRange = errors.New("account threshold out of range")

// Account is the federation-visible description of a seeker, provider, or
// btc-depositor (spec §3). Its AccountId is a deterministic content hash
// of its fields, so two accounts with the same type/keys/threshold are
// the same account.
type Account struct {
	AccType   AccountType
	PubKeys   []crypto.PublicKey
	Threshold int
}

// Validate checks the invariants from spec §3: non-empty key set,
// threshold in range.
func (a Account) Validate() error {
	if len(a.PubKeys) == 0 {
		return ErrEmptyKeySet
	}
	if a.Threshold < 1 || a.Threshold > len(a.PubKeys) {
		return ErrThresholdOutOfRange
	}
	if a.AccType != AccountSeeker && a.AccType != AccountProvider && a.AccType != AccountBtcDepositor {
		return ErrInvalidAccountType
	}
	return nil
}

// canonicalPubKeys returns a levelling sorted copy of the account's keys,
// so content hashing/encoding never depends on construction order
// (spec §5 determinism requirement).
func (a Account) canonicalPubKeys() []crypto.PublicKey {
	keys := make([]crypto.PublicKey, len(a.PubKeys))
	copy(keys, a.PubKeys)
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
	return keys
}

// contentHash is the deterministic hash used to derive the AccountId.
func (a Account) contentHash() crypto.Hash {
	buf := new(bytes.Buffer)
	_ = spbin.MarshalUint8(buf, uint8(a.AccType))
	_ = spbin.MarshalUint8(buf, uint8(a.Threshold))
	keys := a.canonicalPubKeys()
	_ = spbin.MarshalUint8(buf, uint8(len(keys)))
	for _, k := range keys {
		buf.Write(k[:])
	}
	return crypto.HashBytes(buf.Bytes())
}

// AccountID is the account's account-type-prefixed, bech32m-encoded
// content hash (spec §3, §6).
func (a Account) AccountID() (AccountID, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	hrp, err := bech32HRPForType(a.AccType)
	if err != nil {
		return "", err
	}
	h := a.contentHash()
	conv, err := bech32.ConvertBits(h[:], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("account id: convert bits: %w", err)
	}
	encoded, err := bech32.EncodeM(hrp, conv)
	if err != nil {
		return "", fmt.Errorf("account id: encode: %w", err)
	}
	return AccountID(encoded), nil
}

// AccountID is the bech32m-encoded, type-prefixed identifier derived from
// an Account's content hash (spec §3). It is treated as an opaque string
// key everywhere in the store.
type AccountID string

// sortAccountIDs sorts AccountIDs lexically in place, the determinism
// helper every map[AccountID]... encoding or reduction uses (spec §5).
func sortAccountIDs(ids []AccountID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// AccountTypeOf recovers the AccountType implied by an AccountID's
// human-readable prefix, without needing the full Account.
func AccountTypeOf(id AccountID) (AccountType, error) {
	hrp, _, err := bech32.DecodeNoLimit(string(id))
	if err != nil {
		return 0, fmt.Errorf("account id: decode: %w", err)
	}
	switch hrp {
	case "sps":
		return AccountSeeker, nil
	case "spp":
		return AccountProvider, nil
	case "spd":
		return AccountBtcDepositor, nil
	default:
		return 0, fmt.Errorf("account id: %w: unrecognized prefix %q", ErrInvalidAccountType, hrp)
	}
}
