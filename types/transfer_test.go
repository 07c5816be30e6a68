package types

import "testing"

func TestTransferRequestCanonicalEncodingDeterministic(t *testing.T) {
	rate := FeeRatePPB(500)
	a := TransferRequest{From: "sps1a", To: "sps1b", Amount: TransferAmount{Fiat: 100}, ValidUntilCycle: 5, NewFeeRate: &rate, Meta: []byte("note")}
	b := TransferRequest{From: "sps1a", To: "sps1b", Amount: TransferAmount{Fiat: 100}, ValidUntilCycle: 5, NewFeeRate: &rate, Meta: []byte("note")}

	if string(a.CanonicalEncoding()) != string(b.CanonicalEncoding()) {
		t.Fatal("identical requests produced different encodings")
	}
	if a.ID() != b.ID() {
		t.Fatal("identical requests produced different ids")
	}
}

func TestTransferRequestIDChangesWithFields(t *testing.T) {
	base := TransferRequest{From: "sps1a", To: "sps1b", Amount: TransferAmount{Fiat: 100}, ValidUntilCycle: 5}
	changedAmount := base
	changedAmount.Amount = TransferAmount{Fiat: 200}

	if base.ID() == changedAmount.ID() {
		t.Fatal("changing the amount did not change the request id")
	}
}

func TestTransferRequestIDDistinguishesNilFeeRate(t *testing.T) {
	rate := FeeRatePPB(0)
	withRate := TransferRequest{From: "spp1a", To: "spp1b"}
	withRate.NewFeeRate = &rate
	withoutRate := TransferRequest{From: "spp1a", To: "spp1b"}

	if withRate.ID() == withoutRate.ID() {
		t.Fatal("a present zero-value fee rate must hash differently than an absent one")
	}
}
