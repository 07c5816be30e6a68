package types

import (
	"testing"

	"github.com/threefoldtech/stabilitypool/crypto"
)

func testPubKeys(n int) []crypto.PublicKey {
	keys := make([]crypto.PublicKey, n)
	for i := range keys {
		_, keys[i] = crypto.GenerateKeyPair()
	}
	return keys
}

func TestAccountValidate(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		wantErr error
	}{
		{"empty keys", Account{AccType: AccountSeeker, PubKeys: nil, Threshold: 1}, ErrEmptyKeySet},
		{"threshold zero", Account{AccType: AccountSeeker, PubKeys: testPubKeys(2), Threshold: 0}, ErrThresholdOutOfRange},
		{"threshold too high", Account{AccType: AccountSeeker, PubKeys: testPubKeys(2), Threshold: 3}, ErrThresholdOutOfRange},
		{"bad account type", Account{AccType: AccountType(99), PubKeys: testPubKeys(1), Threshold: 1}, ErrInvalidAccountType},
		{"valid", Account{AccType: AccountProvider, PubKeys: testPubKeys(3), Threshold: 2}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if tt.wantErr != nil && err == nil {
				t.Fatalf("Validate() = nil, want error wrapping %v", tt.wantErr)
			}
		})
	}
}

func TestAccountIDDeterministic(t *testing.T) {
	keys := testPubKeys(2)
	a := Account{AccType: AccountSeeker, PubKeys: keys, Threshold: 1}
	b := Account{AccType: AccountSeeker, PubKeys: []crypto.PublicKey{keys[1], keys[0]}, Threshold: 1}

	idA, err := a.AccountID()
	if err != nil {
		t.Fatalf("AccountID() = %v", err)
	}
	idB, err := b.AccountID()
	if err != nil {
		t.Fatalf("AccountID() = %v", err)
	}
	if idA != idB {
		t.Fatalf("key order changed the account id: %s != %s", idA, idB)
	}
}

func TestAccountIDPrefixPerType(t *testing.T) {
	keys := testPubKeys(1)
	tests := []struct {
		accType AccountType
		prefix  string
	}{
		{AccountSeeker, "sps"},
		{AccountProvider, "spp"},
		{AccountBtcDepositor, "spd"},
	}
	for _, tt := range tests {
		a := Account{AccType: tt.accType, PubKeys: keys, Threshold: 1}
		id, err := a.AccountID()
		if err != nil {
			t.Fatalf("AccountID() = %v", err)
		}
		if len(id) < len(tt.prefix) || string(id[:len(tt.prefix)]) != tt.prefix {
			t.Fatalf("AccountID() = %s, want prefix %q", id, tt.prefix)
		}
		gotType, err := AccountTypeOf(id)
		if err != nil {
			t.Fatalf("AccountTypeOf() = %v", err)
		}
		if gotType != tt.accType {
			t.Fatalf("AccountTypeOf() = %v, want %v", gotType, tt.accType)
		}
	}
}

func TestAccountTypeOfRejectsUnknownPrefix(t *testing.T) {
	if _, err := AccountTypeOf("bc1qthisisnotours"); err == nil {
		t.Fatal("expected error for unrecognized prefix")
	}
}

func TestAccountTypeString(t *testing.T) {
	if AccountSeeker.String() != "seeker" {
		t.Errorf("AccountSeeker.String() = %q", AccountSeeker.String())
	}
	if AccountType(200).String() == "" {
		t.Errorf("unknown AccountType.String() should not be empty")
	}
}
