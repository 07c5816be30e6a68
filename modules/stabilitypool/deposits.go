package stabilitypool

import (
	"sort"

	"github.com/threefoldtech/stabilitypool/types"
)

// accountSeq identifies one deposit across the whole module: the pair a
// (account, sequence) tuple that Phase D's restage-merge and the
// turnover history diff both key on (spec §4.5 Phase D, §4.5 "diffing
// old-locks vs new-locks per (account, sequence)").
type accountSeq struct {
	Account  types.AccountID
	Sequence types.DepositSequence
}

// seekItem / provideItem pair a deposit with its owning account, the
// shape every flatten-sort-consume pass in the turnover engine needs.
type seekItem struct {
	Account types.AccountID
	Deposit types.Seek
}

type provideItem struct {
	Account types.AccountID
	Deposit types.Provide
}

// flattenSeeksSorted flattens a per-account seek map into a single slice
// sorted by (account, sequence), the deterministic order spec §5
// requires whenever a map keyed by account is iterated in a way that
// affects output (here: settlement's distribute_from_pool item order).
func flattenSeeksSorted(m map[types.AccountID][]types.Seek) []seekItem {
	var items []seekItem
	for acc, seeks := range m {
		for _, s := range seeks {
			items = append(items, seekItem{Account: acc, Deposit: s})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Account != items[j].Account {
			return items[i].Account < items[j].Account
		}
		return items[i].Deposit.Sequence < items[j].Deposit.Sequence
	})
	return items
}

func flattenProvidesSorted(m map[types.AccountID][]types.Provide) []provideItem {
	var items []provideItem
	for acc, provides := range m {
		for _, p := range provides {
			items = append(items, provideItem{Account: acc, Deposit: p})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Account != items[j].Account {
			return items[i].Account < items[j].Account
		}
		return items[i].Deposit.Sequence < items[j].Deposit.Sequence
	})
	return items
}

// sortSeekItems sorts flattened seeks by sequence ascending, ignoring
// account (sequence is globally unique and monotonic, spec §3
// invariant 2), the order Phase E consumes staged seeks in.
func sortSeekItems(items []seekItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].Deposit.Sequence < items[j].Deposit.Sequence })
}

// provideItemsByFeeThenSequence sorts provides by (min_fee_rate asc,
// sequence asc) (spec §4.5 Phase E), ties in fee broken by sequence so
// the ordering is identical on every guardian.
func provideItemsByFeeThenSequence(items []provideItem) []provideItem {
	out := append([]provideItem(nil), items...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Deposit.Meta != out[j].Deposit.Meta {
			return out[i].Deposit.Meta < out[j].Deposit.Meta
		}
		return out[i].Deposit.Sequence < out[j].Deposit.Sequence
	})
	return out
}

// drainResult is the outcome of draining a deposit list newest-sequence-
// first up to a target amount (spec §4.5 Phase C, §4.6 staged draining).
type drainResult[M any] struct {
	Remaining []types.Deposit[M]
	Drained   types.Msat
	// Touched holds, for every deposit that lost any amount, an entry
	// whose Amount is the amount actually drained from it (not its
	// remaining balance) — what the history recorder needs to log.
	Touched []types.Deposit[M]
}

// drainNewestFirst drains deposits in descending sequence order (spec
// §4.5 Phase C: "reverse sequence order (newest first)"; §4.6: "drain
// staged/locked newest-first") until target is met or the list is
// exhausted.
func drainNewestFirst[M any](deposits []types.Deposit[M], target types.Msat) drainResult[M] {
	sorted := append([]types.Deposit[M](nil), deposits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sequence > sorted[j].Sequence })

	var result drainResult[M]
	for _, d := range sorted {
		if result.Drained >= target {
			result.Remaining = append(result.Remaining, d)
			continue
		}
		need := target - result.Drained
		if d.Amount <= need {
			result.Drained += d.Amount
			result.Touched = append(result.Touched, d)
			continue
		}
		touched := d
		touched.Amount = need
		result.Touched = append(result.Touched, touched)
		result.Drained += need
		d.Amount -= need
		result.Remaining = append(result.Remaining, d)
	}
	return result
}

// mergeSeeks coalesces locked seeks surviving settlement back into an
// account's staged list, keyed by sequence (spec §4.5 Phase D): matching
// sequences sum their amounts, zero-amount results are dropped (spec
// SUPPLEMENT 5).
func mergeSeeks(staged, locked []types.Seek) []types.Seek {
	return mergeDeposits(staged, locked, func(types.SeekMeta, types.SeekMeta) types.SeekMeta { return types.SeekMeta{} })
}

// mergeProvides is mergeSeeks' provider-side analogue: the surviving
// lock's fee-rate meta wins on coalesce (spec §4.5 Phase D: "provider
// meta (fee rate) is preserved from the surviving lock").
func mergeProvides(staged, locked []types.Provide) []types.Provide {
	return mergeDeposits(staged, locked, func(_ types.FeeRatePPB, lockedMeta types.FeeRatePPB) types.FeeRatePPB { return lockedMeta })
}

func mergeDeposits[M any](staged, locked []types.Deposit[M], resolveMeta func(stagedMeta, lockedMeta M) M) []types.Deposit[M] {
	bySeq := make(map[types.DepositSequence]types.Deposit[M], len(staged)+len(locked))
	for _, s := range staged {
		bySeq[s.Sequence] = s
	}
	for _, l := range locked {
		if existing, ok := bySeq[l.Sequence]; ok {
			existing.Amount += l.Amount
			existing.Meta = resolveMeta(existing.Meta, l.Meta)
			bySeq[l.Sequence] = existing
		} else {
			bySeq[l.Sequence] = l
		}
	}
	out := make([]types.Deposit[M], 0, len(bySeq))
	for _, d := range bySeq {
		if d.Amount == 0 {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// sumSeeks / sumProvides total a deposit slice's amounts.
func sumSeeks(seeks []types.Seek) types.Msat {
	var total types.Msat
	for _, s := range seeks {
		total += s.Amount
	}
	return total
}

func sumProvides(provides []types.Provide) types.Msat {
	var total types.Msat
	for _, p := range provides {
		total += p.Amount
	}
	return total
}
