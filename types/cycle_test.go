package types

import "testing"

func TestCycleTotalLockedSeeksAndProvides(t *testing.T) {
	c := Cycle{
		LockedSeeks: map[AccountID][]Seek{
			"sps1a": {{Amount: 100}, {Amount: 50}},
			"sps1b": {{Amount: 25}},
		},
		LockedProvides: map[AccountID][]Provide{
			"spp1a": {{Amount: 200, Meta: 10}},
		},
	}
	if got := c.TotalLockedSeeks(); got != 175 {
		t.Errorf("TotalLockedSeeks() = %d, want 175", got)
	}
	if got := c.TotalLockedProvides(); got != 200 {
		t.Errorf("TotalLockedProvides() = %d, want 200", got)
	}
}

func TestCycleTotalsEmpty(t *testing.T) {
	var c Cycle
	if got := c.TotalLockedSeeks(); got != 0 {
		t.Errorf("TotalLockedSeeks() on zero Cycle = %d, want 0", got)
	}
	if got := c.TotalLockedProvides(); got != 0 {
		t.Errorf("TotalLockedProvides() on zero Cycle = %d, want 0", got)
	}
}
