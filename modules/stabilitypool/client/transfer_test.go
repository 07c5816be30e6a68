package client

import (
	"testing"

	"github.com/threefoldtech/stabilitypool/crypto"
	"github.com/threefoldtech/stabilitypool/types"
)

func TestTransferSignerThreshold(t *testing.T) {
	req := types.TransferRequest{
		From:            "sps1from",
		To:              "sps1to",
		Amount:          types.TransferAmount{All: true},
		ValidUntilCycle: 5,
	}
	signer := NewTransferSigner(req, 2)
	if signer.Ready() {
		t.Fatalf("expected not ready with zero signatures")
	}

	sk1, _, err := crypto.GenerateSchnorrKeyPair()
	if err != nil {
		t.Fatalf("generate key 1: %v", err)
	}
	if err := signer.Sign(0, sk1); err != nil {
		t.Fatalf("sign 0: %v", err)
	}
	if signer.Ready() {
		t.Fatalf("expected not ready with one of two signatures")
	}

	sk2, _, err := crypto.GenerateSchnorrKeyPair()
	if err != nil {
		t.Fatalf("generate key 2: %v", err)
	}
	if err := signer.Sign(1, sk2); err != nil {
		t.Fatalf("sign 1: %v", err)
	}
	if !signer.Ready() {
		t.Fatalf("expected ready with two of two signatures")
	}

	signed, err := signer.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(signed.Signatures) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(signed.Signatures))
	}
}

func TestTransferSignerResignOverwrites(t *testing.T) {
	req := types.TransferRequest{From: "sps1from", To: "sps1to", Amount: types.TransferAmount{All: true}}
	signer := NewTransferSigner(req, 1)
	sk, _, _ := crypto.GenerateSchnorrKeyPair()
	_ = signer.Sign(0, sk)
	_ = signer.Sign(0, sk)
	if len(signer.sigs) != 1 {
		t.Fatalf("expected resigning the same index not to duplicate entries, got %d", len(signer.sigs))
	}
}

func TestTransferSignerBuildBeforeReadyFails(t *testing.T) {
	req := types.TransferRequest{From: "sps1from", To: "sps1to", Amount: types.TransferAmount{All: true}}
	signer := NewTransferSigner(req, 1)
	if _, err := signer.Build(); err == nil {
		t.Fatalf("expected Build to fail before threshold is met")
	}
}
