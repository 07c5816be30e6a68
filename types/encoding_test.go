package types

import (
	"bytes"
	"testing"
	"time"
)

func TestAccountMarshalUnmarshalRoundTrip(t *testing.T) {
	keys := testPubKeys(3)
	a := Account{AccType: AccountProvider, PubKeys: keys, Threshold: 2}

	var buf bytes.Buffer
	if err := a.MarshalSP(&buf); err != nil {
		t.Fatalf("MarshalSP() = %v", err)
	}
	var got Account
	if err := got.UnmarshalSP(&buf); err != nil {
		t.Fatalf("UnmarshalSP() = %v", err)
	}
	if got.AccType != a.AccType || got.Threshold != a.Threshold || len(got.PubKeys) != len(a.PubKeys) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, a)
	}
}

func TestCycleMarshalUnmarshalRoundTrip(t *testing.T) {
	c := Cycle{
		Index:      7,
		StartTime:  time.Unix(1700000000, 0).UTC(),
		StartPrice: 5_000_000,
		FeeRate:    250,
		LockedSeeks: map[AccountID][]Seek{
			"sps1b": {{Amount: 10}},
			"sps1a": {{Amount: 20}, {Amount: 30}},
		},
		LockedProvides: map[AccountID][]Provide{
			"spp1a": {{Amount: 100, Meta: 5}},
		},
	}

	var buf bytes.Buffer
	if err := c.MarshalSP(&buf); err != nil {
		t.Fatalf("MarshalSP() = %v", err)
	}
	var got Cycle
	if err := got.UnmarshalSP(&buf); err != nil {
		t.Fatalf("UnmarshalSP() = %v", err)
	}
	if got.Index != c.Index || got.StartPrice != c.StartPrice || got.FeeRate != c.FeeRate {
		t.Fatalf("scalar fields mismatch: got %+v, want %+v", got, c)
	}
	if !got.StartTime.Equal(c.StartTime) {
		t.Fatalf("StartTime mismatch: got %v, want %v", got.StartTime, c.StartTime)
	}
	if got.TotalLockedSeeks() != c.TotalLockedSeeks() {
		t.Fatalf("TotalLockedSeeks mismatch: got %d, want %d", got.TotalLockedSeeks(), c.TotalLockedSeeks())
	}
	if got.TotalLockedProvides() != c.TotalLockedProvides() {
		t.Fatalf("TotalLockedProvides mismatch: got %d, want %d", got.TotalLockedProvides(), c.TotalLockedProvides())
	}
}

func TestCycleMarshalIsDeterministicRegardlessOfMapOrder(t *testing.T) {
	seeks := map[AccountID][]Seek{
		"sps1a": {{Amount: 1}},
		"sps1b": {{Amount: 2}},
		"sps1c": {{Amount: 3}},
	}
	a := Cycle{Index: 1, LockedSeeks: seeks}
	b := Cycle{Index: 1, LockedSeeks: map[AccountID][]Seek{
		"sps1c": seeks["sps1c"],
		"sps1a": seeks["sps1a"],
		"sps1b": seeks["sps1b"],
	}}

	var bufA, bufB bytes.Buffer
	if err := a.MarshalSP(&bufA); err != nil {
		t.Fatalf("MarshalSP() = %v", err)
	}
	if err := b.MarshalSP(&bufB); err != nil {
		t.Fatalf("MarshalSP() = %v", err)
	}
	if !bytes.Equal(bufA.Bytes(), bufB.Bytes()) {
		t.Fatal("encoding depends on map iteration order, want deterministic sorted-key encoding")
	}
}

func TestAccountHistoryItemMarshalUnmarshalRoundTrip(t *testing.T) {
	h := AccountHistoryItem{
		Counter:      3,
		Cycle:        CycleInfo{Index: 9, Price: 6_000_000},
		TxID:         TxID{1, 2, 3},
		Sequence:     4,
		Amount:       12345,
		Kind:         HistoryStagedTransferOut,
		Counterparty: "sps1xyz",
		Meta:         []byte("hello"),
	}

	var buf bytes.Buffer
	if err := h.MarshalSP(&buf); err != nil {
		t.Fatalf("MarshalSP() = %v", err)
	}
	var got AccountHistoryItem
	if err := got.UnmarshalSP(&buf); err != nil {
		t.Fatalf("UnmarshalSP() = %v", err)
	}
	if got.Counter != h.Counter || got.Cycle != h.Cycle || got.TxID != h.TxID || got.Sequence != h.Sequence ||
		got.Amount != h.Amount || got.Kind != h.Kind || got.Counterparty != h.Counterparty || !bytes.Equal(got.Meta, h.Meta) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestUnlockRequestMarshalUnmarshalRoundTrip(t *testing.T) {
	u := UnlockRequest{All: false, Fiat: 42}

	var buf bytes.Buffer
	if err := u.MarshalSP(&buf); err != nil {
		t.Fatalf("MarshalSP() = %v", err)
	}
	var got UnlockRequest
	if err := got.UnmarshalSP(&buf); err != nil {
		t.Fatalf("UnmarshalSP() = %v", err)
	}
	if got != u {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, u)
	}
}

func TestConsensusItemMarshalUnmarshalRoundTrip(t *testing.T) {
	ci := ConsensusItem{NextCycleIndex: 11, Time: time.Unix(1690000000, 0).UTC(), Price: 7_500_000}

	var buf bytes.Buffer
	if err := ci.MarshalSP(&buf); err != nil {
		t.Fatalf("MarshalSP() = %v", err)
	}
	var got ConsensusItem
	if err := got.UnmarshalSP(&buf); err != nil {
		t.Fatalf("UnmarshalSP() = %v", err)
	}
	if got.NextCycleIndex != ci.NextCycleIndex || got.Price != ci.Price || !got.Time.Equal(ci.Time) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, ci)
	}
}
