package types

import "time"

// ConsensusItem is the single guardian-proposed, threshold-voted payload
// that drives cycle turnover (spec §4.4, §6).
type ConsensusItem struct {
	NextCycleIndex CycleIndex
	Time           time.Time
	Price          FiatAmount
}
