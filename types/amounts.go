package types

// amounts.go defines the three money units the module ever operates on
// (spec §3, "Amounts"). Msat and FiatAmount are always non-negative; the
// zero value is therefore always a valid "empty" amount and needs no
// separate nil state.

// Msat is a Bitcoin amount in millisatoshis.
type Msat uint64

// FiatAmount is an amount in the pegged currency's base unit (e.g. cents).
type FiatAmount uint64

// FeeRatePPB is a fee rate in parts-per-billion.
type FeeRatePPB uint64

const (
	// MsatPerBTC is the fixed identity 1 BTC = 10^11 msat (spec §3).
	MsatPerBTC Msat = 100_000_000_000

	// PPBUnit is the ppb base, B = 10^9 (spec §4.5).
	PPBUnit FeeRatePPB = 1_000_000_000
)
