package types

// UnlockRequest is, per account, at most one pending instruction to free
// locked value at the next turnover (spec §3, §8 invariant 4).
type UnlockRequest struct {
	// All, when true, requests that everything locked be freed,
	// irrespective of Fiat.
	All  bool
	Fiat FiatAmount
}

// NewUnlockRequestFiat builds a request for a specific fiat amount
// outstanding.
func NewUnlockRequestFiat(fiat FiatAmount) UnlockRequest {
	return UnlockRequest{Fiat: fiat}
}

// NewUnlockRequestAll builds a request for everything locked.
func NewUnlockRequestAll() UnlockRequest {
	return UnlockRequest{All: true}
}

// IdleBalance is the per-account msat amount available for plain
// withdrawal (spec §3).
type IdleBalance Msat
