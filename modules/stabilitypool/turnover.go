package stabilitypool

import (
	"math/big"
	"time"

	bolt "github.com/rivine/bbolt"

	"github.com/threefoldtech/stabilitypool/types"
)

// turnover executes the five ordered phases of spec §4.5 atomically,
// inside the same database transaction as the vote that reached
// threshold (spec §4.4).
func (e *Engine) turnover(tx *bolt.Tx, nextIndex types.CycleIndex, newTime time.Time, newPrice types.FiatAmount, randomness uint64) error {
	current, hasCurrent, err := getCurrentCycle(tx)
	if err != nil {
		return err
	}

	oldLockedSeeks := map[accountSeq]types.Msat{}
	oldLockedProvides := map[accountSeq]types.Msat{}
	settledSeeks := map[types.AccountID][]types.Seek{}
	settledProvides := map[types.AccountID][]types.Provide{}

	if hasCurrent {
		// Phase A — Archive.
		if err := putPastCycle(tx, current); err != nil {
			return err
		}
		for acc, seeks := range current.LockedSeeks {
			for _, s := range seeks {
				oldLockedSeeks[accountSeq{acc, s.Sequence}] = s.Amount
			}
		}
		for acc, provides := range current.LockedProvides {
			for _, p := range provides {
				oldLockedProvides[accountSeq{acc, p.Sequence}] = p.Amount
			}
		}

		// Phase B — Settle locks at new_price.
		settledSeeks, settledProvides = settleLocks(current, newPrice, randomness)
	}

	// Legacy cancellation-renewal pass (spec SUPPLEMENT 1), run before
	// Phase C per SPEC_FULL §10.
	if err := e.applyLegacyCancelRenewals(tx, nextIndex, newPrice, settledSeeks, settledProvides); err != nil {
		return err
	}

	// Phase C — Process unlock requests.
	if err := e.processUnlockRequests(tx, nextIndex, newPrice, settledSeeks, settledProvides); err != nil {
		return err
	}

	// Phase D — Restage remaining locks.
	if err := restageRemainingLocks(tx, settledSeeks, settledProvides); err != nil {
		return err
	}

	// Phase E — Compute new locks and fee rate.
	newLockedSeeks, newLockedProvides, feeRate, err := e.computeNewLocksAndFee(tx, randomness)
	if err != nil {
		return err
	}

	newCycle := types.Cycle{
		Index:          nextIndex,
		StartTime:      newTime,
		StartPrice:     newPrice,
		FeeRate:        feeRate,
		LockedSeeks:    newLockedSeeks,
		LockedProvides: newLockedProvides,
	}
	if err := putCurrentCycle(tx, newCycle); err != nil {
		return err
	}

	return e.emitTurnoverHistory(tx, newCycle.Index, newPrice, oldLockedSeeks, oldLockedProvides, newLockedSeeks, newLockedProvides)
}

// settleLocks implements Phase B: revalue S and P at new_price, splitting
// the combined pool T = S+P between the two sides via distribute_from_pool
// so total locked BTC is exactly preserved (spec §8 round-trip law).
func settleLocks(current types.Cycle, newPrice types.FiatAmount, randomness uint64) (map[types.AccountID][]types.Seek, map[types.AccountID][]types.Provide) {
	seekItems := flattenSeeksSorted(current.LockedSeeks)
	provideItems := flattenProvidesSorted(current.LockedProvides)

	S := current.TotalLockedSeeks()
	P := current.TotalLockedProvides()
	T := S + P

	msatForSeeks := S
	if newPrice != 0 {
		num := new(big.Int).SetUint64(uint64(S))
		num.Mul(num, new(big.Int).SetUint64(uint64(current.StartPrice)))
		den := new(big.Int).SetUint64(uint64(newPrice))
		msatForSeeks = types.Msat(types.CeilDiv(num, den).Uint64())
	}
	if msatForSeeks > T {
		msatForSeeks = T
	}
	msatForProvides := T - msatForSeeks

	seekPool := make([]types.PoolItem, len(seekItems))
	for i, it := range seekItems {
		seekPool[i] = types.PoolItem{Weight: it.Deposit.Amount}
	}
	types.DistributeFromPool(seekPool, msatForSeeks, randomness)

	providePool := make([]types.PoolItem, len(provideItems))
	for i, it := range provideItems {
		providePool[i] = types.PoolItem{Weight: it.Deposit.Amount}
	}
	types.DistributeFromPool(providePool, msatForProvides, randomness)

	settledSeeks := make(map[types.AccountID][]types.Seek)
	for i, it := range seekItems {
		d := it.Deposit
		d.Amount = seekPool[i].Amount
		if d.Amount == 0 {
			continue
		}
		settledSeeks[it.Account] = append(settledSeeks[it.Account], d)
	}
	settledProvides := make(map[types.AccountID][]types.Provide)
	for i, it := range provideItems {
		d := it.Deposit
		d.Amount = providePool[i].Amount
		if d.Amount == 0 {
			continue
		}
		settledProvides[it.Account] = append(settledProvides[it.Account], d)
	}
	return settledSeeks, settledProvides
}

// processUnlockRequests implements Phase C: for every pending
// UnlockRequest, drain the settled locks of the matching type
// newest-first, credit IdleBalance, and emit LockedToIdle history.
func (e *Engine) processUnlockRequests(tx *bolt.Tx, cycleIndex types.CycleIndex, newPrice types.FiatAmount, settledSeeks map[types.AccountID][]types.Seek, settledProvides map[types.AccountID][]types.Provide) error {
	var accounts []types.AccountID
	if err := forEachUnlockRequest(tx, func(id types.AccountID, _ types.UnlockRequest) error {
		accounts = append(accounts, id)
		return nil
	}); err != nil {
		return err
	}

	for _, id := range accounts {
		req, ok, err := getUnlockRequest(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		acc, ok, err := getAccount(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			if err := deleteUnlockRequest(tx, id); err != nil {
				return err
			}
			continue
		}

		cycleInfo := types.CycleInfo{Index: cycleIndex, Price: newPrice}
		switch acc.AccType {
		case types.AccountSeeker:
			locked := settledSeeks[id]
			target := unlockTarget(req, sumSeeks(locked), newPrice)
			res := drainNewestFirst(locked, target)
			settledSeeks[id] = res.Remaining
			if err := e.creditIdleAndRecordDrain(tx, id, res.Drained, res.Touched, cycleInfo); err != nil {
				return err
			}
		case types.AccountProvider:
			locked := settledProvides[id]
			target := unlockTarget(req, sumProvides(locked), newPrice)
			res := drainNewestFirst(locked, target)
			settledProvides[id] = res.Remaining
			if err := e.creditIdleAndRecordDrainProvide(tx, id, res.Drained, res.Touched, cycleInfo); err != nil {
				return err
			}
		}
		if err := deleteUnlockRequest(tx, id); err != nil {
			return err
		}
	}
	return nil
}

// unlockTarget converts an UnlockRequest into the msat amount to drain:
// everything locked for All, or the fiat amount converted at new_price.
func unlockTarget(req types.UnlockRequest, totalLocked types.Msat, newPrice types.FiatAmount) types.Msat {
	if req.All {
		return totalLocked
	}
	target := types.MsatFromFiat(req.Fiat, newPrice)
	if target > totalLocked {
		target = totalLocked
	}
	return target
}

func (e *Engine) creditIdleAndRecordDrain(tx *bolt.Tx, id types.AccountID, drained types.Msat, touched []types.Seek, cycle types.CycleInfo) error {
	if drained == 0 {
		return nil
	}
	if err := addIdleBalance(tx, id, drained); err != nil {
		return err
	}
	for _, d := range touched {
		if err := e.appendHistory(tx, id, cycle, d.TxID, d.Sequence, d.Amount, types.HistoryLockedToIdle, "", nil); err != nil {
			return err
		}
	}
	return nil
}

// restageRemainingLocks implements Phase D: surviving locks are merged
// back into the staged list of the same account, keyed by sequence; no
// history is emitted (it is the identity operation until Phase E).
func restageRemainingLocks(tx *bolt.Tx, settledSeeks map[types.AccountID][]types.Seek, settledProvides map[types.AccountID][]types.Provide) error {
	for acc, locked := range settledSeeks {
		staged, err := getStagedSeeks(tx, acc)
		if err != nil {
			return err
		}
		merged := mergeSeeks(staged, locked)
		if err := putStagedSeeks(tx, acc, merged); err != nil {
			return err
		}
	}
	for acc, locked := range settledProvides {
		staged, err := getStagedProvides(tx, acc)
		if err != nil {
			return err
		}
		merged := mergeProvides(staged, locked)
		if err := putStagedProvides(tx, acc, merged); err != nil {
			return err
		}
	}
	return nil
}
