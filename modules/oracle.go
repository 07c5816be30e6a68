package modules

import (
	"context"
	"time"

	"github.com/threefoldtech/stabilitypool/types"
)

// Oracle is the narrow upward interface the engine consumes for price
// discovery (spec §1, §6): "the price oracle (interface: get_price() →
// FiatAmount with timestamp)". The module never picks or trusts a single
// oracle implementation; it only ever calls this interface.
type Oracle interface {
	// GetPrice fetches a fresh price observation. It is expected to be
	// fallible (network error, stale upstream, ...) and is always called
	// with a bounded-duration context (spec §5, "oracle requests use a
	// fixed timeout (<=30s)").
	GetPrice(ctx context.Context) (PriceObservation, error)
}

// PriceObservation is a single (time, price) sample from an Oracle.
type PriceObservation struct {
	Time  time.Time
	Price types.FiatAmount
}
