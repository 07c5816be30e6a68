package stabilitypool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/threefoldtech/stabilitypool/modules"
)

// priceCell is the single-writer/many-reader prefetched-price cell of
// spec §5: the oracle prefetcher loop is the only writer, every other
// goroutine takes a non-blocking snapshot via Load. atomic.Value gives
// torn-free reads without a mutex, matching the "lock-free single-writer
// cell" design note of spec §9.
type priceCell struct {
	v atomic.Value // holds *modules.PriceObservation, nil entry means "none"
}

func newPriceCell() *priceCell {
	c := &priceCell{}
	c.v.Store((*modules.PriceObservation)(nil))
	return c
}

// Load returns the latest observation and whether one is present.
func (c *priceCell) Load() (modules.PriceObservation, bool) {
	obs, _ := c.v.Load().(*modules.PriceObservation)
	if obs == nil {
		return modules.PriceObservation{}, false
	}
	return *obs, true
}

// Store records a fresh observation.
func (c *priceCell) Store(obs modules.PriceObservation) {
	c.v.Store(&obs)
}

// Clear reverts the cell to "none", run on a failed oracle poll
// (spec §4.2: "on failure it clears to None").
func (c *priceCell) Clear() {
	c.v.Store((*modules.PriceObservation)(nil))
}

// RunOraclePrefetcher runs the C2 background polling loop until ctx is
// canceled. It is started by the daemon main, never by the Engine
// itself, so tests can drive the price cell directly without a
// goroutine. On success it stores the observation; on failure it clears
// the cell and retries at half the configured interval (spec §4.2).
func (e *Engine) RunOraclePrefetcher(ctx context.Context) {
	interval := e.cfg.oraclePollInterval()
	timer := time.NewTimer(e.pollOracleOnce(ctx, interval))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			next := e.pollOracleOnce(ctx, interval)
			timer.Reset(next)
		}
	}
}

// pollOracleOnce performs a single bounded-timeout fetch (spec §5:
// "oracle requests use a fixed timeout (<=30s)") and returns the
// interval to wait before the next poll.
func (e *Engine) pollOracleOnce(ctx context.Context, interval time.Duration) time.Duration {
	const oracleTimeout = 30 * time.Second
	callCtx, cancel := context.WithTimeout(ctx, oracleTimeout)
	defer cancel()

	obs, err := e.oracle.GetPrice(callCtx)
	if err != nil {
		e.cachedPrice.Clear()
		if e.log != nil {
			e.log.Debugln("oracle prefetch failed, retrying sooner:", err)
		}
		return interval / 2
	}
	e.cachedPrice.Store(obs)
	return interval
}
