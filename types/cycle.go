package types

import "time"

// CycleIndex numbers cycles contiguously starting at 0 (spec §3, §8
// invariant 7).
type CycleIndex uint64

// Cycle is the current epoch's contract: its locks are immutable until
// the next turnover (spec §3).
type Cycle struct {
	Index         CycleIndex
	StartTime     time.Time
	StartPrice    FiatAmount
	FeeRate       FeeRatePPB
	LockedSeeks   map[AccountID][]Seek
	LockedProvides map[AccountID][]Provide
}

// TotalLockedSeeks sums every locked seek across every account.
func (c Cycle) TotalLockedSeeks() Msat {
	var total Msat
	for _, seeks := range c.LockedSeeks {
		for _, s := range seeks {
			total += s.Amount
		}
	}
	return total
}

// TotalLockedProvides sums every locked provide across every account.
func (c Cycle) TotalLockedProvides() Msat {
	var total Msat
	for _, provides := range c.LockedProvides {
		for _, p := range provides {
			total += p.Amount
		}
	}
	return total
}
