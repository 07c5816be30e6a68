package types

import (
	"math/big"
	"sort"

	"github.com/threefoldtech/stabilitypool/build"
)

// fixedpoint.go is the C1 arithmetic kernel: every division the module
// performs on money goes through CeilDiv/FloorDiv with a 128-bit
// intermediate, the way consensus/currency.go in the teacher corpus
// round-trips Currency through big.Int rather than risking u64 overflow
// mid-computation.

// CeilDiv returns ceil(a/b) using a 128-bit intermediate. On division by
// zero it calls build.Critical, which panics in debug builds, and
// otherwise returns 0 — every call site is expected to have already
// validated b > 0.
func CeilDiv(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		build.Critical("spbin fixedpoint: division by zero in CeilDiv")
		return new(big.Int)
	}
	q, r := new(big.Int), new(big.Int)
	q.DivMod(a, b, r)
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// FloorDiv returns floor(a/b) using a 128-bit intermediate.
func FloorDiv(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		build.Critical("spbin fixedpoint: division by zero in FloorDiv")
		return new(big.Int)
	}
	return new(big.Int).Div(a, b)
}

// CeilDivUint64 is the u64 convenience wrapper used by call sites that
// know their inputs and result fit in 64 bits (true for every money value
// in this module, capped at 21e6 BTC worth of msat, spec §8 invariant 2).
func CeilDivUint64(a, b uint64) uint64 {
	return mustUint64(CeilDiv(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b)))
}

// FloorDivUint64 is the u64 convenience wrapper for FloorDiv.
func FloorDivUint64(a, b uint64) uint64 {
	return mustUint64(FloorDiv(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b)))
}

// mustUint64 narrows a big.Int back to uint64, the way consensus/currency.go's
// BigToCurrency checks BitLen before narrowing: every call site in this
// module is bounded by the 21e6 BTC supply cap from spec §8, so the
// narrowing can never actually overflow in practice; build.Critical
// catches it anyway if it ever does.
func mustUint64(x *big.Int) uint64 {
	if x.Sign() < 0 || x.BitLen() > 64 {
		build.Critical("spbin fixedpoint: value does not fit in uint64", x.String())
		return 0
	}
	return x.Uint64()
}

// FiatFromMsat converts an msat amount to fiat at the given price, floored
// (spec §4.1): fiat = floor(price * msat / 10^11).
func FiatFromMsat(msat Msat, price FiatAmount) FiatAmount {
	num := new(big.Int).Mul(big.NewInt(int64(price)), new(big.Int).SetUint64(uint64(msat)))
	den := new(big.Int).SetUint64(uint64(MsatPerBTC))
	return FiatAmount(mustUint64(FloorDiv(num, den)))
}

// MsatFromFiat converts a fiat amount to msat at the given price, floored
// (spec §4.1): msat = floor(fiat * 10^11 / price). price must be > 0.
func MsatFromFiat(fiat FiatAmount, price FiatAmount) Msat {
	num := new(big.Int).Mul(new(big.Int).SetUint64(uint64(fiat)), new(big.Int).SetUint64(uint64(MsatPerBTC)))
	den := new(big.Int).SetUint64(uint64(price))
	return Msat(mustUint64(FloorDiv(num, den)))
}

// PoolItem is anything distribute_from_pool can redistribute: a current
// weight (the item's pre-distribution amount) and a place to write the
// post-distribution amount.
type PoolItem struct {
	Weight Msat
	Amount Msat
}

// DistributeFromPool rewrites each item's Amount to
// floor(pool * weight_i / sum(weight)), then hands the rounding residue
// to the single item at index (randomness mod n), preserving
// sum(Amount) == pool exactly (spec §4.1, §8 round-trip law).
//
// items is mutated in place. Iteration for the proportional pass does not
// need to be order-sensitive (each item's share depends only on its own
// weight and the fixed total), but the residue recipient computation must
// use the caller-supplied, already-deterministic ordering of items (e.g.
// sorted by account id or deposit sequence) since "randomness mod n"
// indexes into that exact slice.
func DistributeFromPool(items []PoolItem, pool Msat, randomness uint64) {
	n := len(items)
	if n == 0 {
		return
	}
	totalWeight := new(big.Int)
	for _, it := range items {
		totalWeight.Add(totalWeight, new(big.Int).SetUint64(uint64(it.Weight)))
	}
	poolBig := new(big.Int).SetUint64(uint64(pool))
	if totalWeight.Sign() == 0 {
		// Nothing to weight the distribution by: give everything to the
		// residue recipient rather than dividing by zero.
		for i := range items {
			items[i].Amount = 0
		}
		items[int(randomness%uint64(n))].Amount = pool
		return
	}

	distributed := new(big.Int)
	for i := range items {
		w := new(big.Int).SetUint64(uint64(items[i].Weight))
		share := FloorDiv(new(big.Int).Mul(poolBig, w), totalWeight)
		items[i].Amount = Msat(mustUint64(share))
		distributed.Add(distributed, share)
	}
	residue := new(big.Int).Sub(poolBig, distributed)
	if residue.Sign() > 0 {
		idx := int(randomness % uint64(n))
		items[idx].Amount += Msat(mustUint64(residue))
	}
}

// SortUint64sAsc is a tiny determinism helper: every map this module
// iterates in a way that affects its output must first be reduced to a
// sorted slice of keys (spec §5, "Map iteration must be sorted").
func SortUint64sAsc(xs []uint64) {
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
}
