package stabilitypool

import (
	"time"

	"github.com/threefoldtech/stabilitypool/types"
)

// CollateralRatio is the provider-to-seeker coverage ratio used in
// Phase E of the turnover engine (spec §4.5, "collateral ratio C_p : C_s").
type CollateralRatio struct {
	Provider uint64
	Seeker   uint64
}

// Config holds every recognized option from spec §6's configuration
// table. It is assembled by the daemon's flag layer and handed to the
// engine on construction; the engine itself never reads flags directly,
// matching the teacher's separation between pkg/daemon and the modules it
// wires.
type Config struct {
	CycleDuration time.Duration
	Collateral    CollateralRatio

	MinAllowedSeek               types.Msat
	MinAllowedProvide             types.Msat
	MaxAllowedProvideFeeRatePPB   types.FeeRatePPB
	ConsensusThreshold            int

	// MinAllowedCancellationBPS gates the legacy cancellation-renewal
	// path (spec SUPPLEMENT 1); zero disables it entirely.
	MinAllowedCancellationBPS uint16
}

// enoughDuration is the "enough" constant of spec §4.4: min(15s,
// cycle_duration/20).
func (c Config) enoughDuration() time.Duration {
	fraction := c.CycleDuration / 20
	if fraction < 15*time.Second {
		return fraction
	}
	return 15 * time.Second
}

// oraclePollInterval is the C2 prefetcher interval: min(30s,
// cycle_duration/10).
func (c Config) oraclePollInterval() time.Duration {
	fraction := c.CycleDuration / 10
	if fraction < 30*time.Second {
		return fraction
	}
	return 30 * time.Second
}

// DefaultConfig returns the configuration used by scenario 1 of spec §8:
// a 60s cycle, 1:1 collateral, and permissive minimums, suitable for
// tests and the Mock oracle path.
func DefaultConfig() Config {
	return Config{
		CycleDuration:               60 * time.Second,
		Collateral:                  CollateralRatio{Provider: 1, Seeker: 1},
		MinAllowedSeek:              1_000,
		MinAllowedProvide:           1_000,
		MaxAllowedProvideFeeRatePPB: types.FeeRatePPB(1e8),
		ConsensusThreshold:          1,
	}
}
