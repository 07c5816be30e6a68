package stabilitypool

import (
	"sort"

	bolt "github.com/rivine/bbolt"

	"github.com/threefoldtech/stabilitypool/types"
)

// appendHistory is the C7 recorder: every transition that changes
// user-visible state appends exactly one item to the account's
// append-only log (spec §4.7). Restage-during-turnover and unchanged
// auto-renewals never call this.
func (e *Engine) appendHistory(tx *bolt.Tx, id types.AccountID, cycle types.CycleInfo, txid types.TxID, seq types.DepositSequence, amount types.Msat, kind types.HistoryKind, counterparty types.AccountID, meta []byte) error {
	counter, err := nextHistoryCounter(tx, id)
	if err != nil {
		return err
	}
	item := types.AccountHistoryItem{
		Counter:      counter,
		Cycle:        cycle,
		TxID:         txid,
		Sequence:     seq,
		Amount:       amount,
		Kind:         kind,
		Counterparty: counterparty,
		Meta:         meta,
	}
	return putHistoryItem(tx, id, item)
}

// emitTurnoverHistory implements the history side of Phase E: diffing the
// locked set before settlement against the new locked set by
// (account, sequence), emitting StagedToLocked for newly admitted locks
// and LockedToStaged for locks that fell out, skipping sequences whose
// amount is unchanged (auto-renewal emits nothing, spec §4.7).
func (e *Engine) emitTurnoverHistory(tx *bolt.Tx, cycleIndex types.CycleIndex, price types.FiatAmount, oldSeeks, oldProvides map[accountSeq]types.Msat, newLockedSeeks map[types.AccountID][]types.Seek, newLockedProvides map[types.AccountID][]types.Provide) error {
	cycle := types.CycleInfo{Index: cycleIndex, Price: price}

	newSeeks := map[accountSeq]types.Seek{}
	for acc, seeks := range newLockedSeeks {
		for _, s := range seeks {
			newSeeks[accountSeq{acc, s.Sequence}] = s
		}
	}
	if err := diffLockHistory(tx, e, cycle, oldSeeks, newSeeks, func(d types.Seek) types.Msat { return d.Amount }); err != nil {
		return err
	}

	newProvides := map[accountSeq]types.Provide{}
	for acc, provides := range newLockedProvides {
		for _, p := range provides {
			newProvides[accountSeq{acc, p.Sequence}] = p
		}
	}
	return diffLockHistory(tx, e, cycle, oldProvides, newProvides, func(d types.Provide) types.Msat { return d.Amount })
}

// diffLockHistory is the generic half of emitTurnoverHistory, shared
// between the Seek and Provide monomorphizations of Deposit[M].
func diffLockHistory[M any](tx *bolt.Tx, e *Engine, cycle types.CycleInfo, old map[accountSeq]types.Msat, next map[accountSeq]types.Deposit[M], amountOf func(types.Deposit[M]) types.Msat) error {
	seen := make(map[accountSeq]bool, len(old)+len(next))
	for key := range old {
		seen[key] = true
	}
	for key := range next {
		seen[key] = true
	}
	keys := make([]accountSeq, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sortAccountSeqs(keys)

	for _, key := range keys {
		oldAmount, wasLocked := old[key]
		newDeposit, isLocked := next[key]
		newAmount := amountOf(newDeposit)
		switch {
		case !wasLocked && isLocked:
			if err := e.appendHistory(tx, key.Account, cycle, newDeposit.TxID, key.Sequence, newAmount, types.HistoryStagedToLocked, "", nil); err != nil {
				return err
			}
		case wasLocked && !isLocked:
			if err := e.appendHistory(tx, key.Account, cycle, types.TxID{}, key.Sequence, oldAmount, types.HistoryLockedToStaged, "", nil); err != nil {
				return err
			}
		case wasLocked && isLocked && oldAmount != newAmount:
			if newAmount > oldAmount {
				if err := e.appendHistory(tx, key.Account, cycle, newDeposit.TxID, key.Sequence, newAmount-oldAmount, types.HistoryStagedToLocked, "", nil); err != nil {
					return err
				}
			} else {
				if err := e.appendHistory(tx, key.Account, cycle, newDeposit.TxID, key.Sequence, oldAmount-newAmount, types.HistoryLockedToStaged, "", nil); err != nil {
					return err
				}
			}
		}
		// wasLocked && isLocked && oldAmount == newAmount: auto-renewal,
		// emits nothing (spec §4.7).
	}
	return nil
}

func sortAccountSeqs(keys []accountSeq) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Account != keys[j].Account {
			return keys[i].Account < keys[j].Account
		}
		return keys[i].Sequence < keys[j].Sequence
	})
}
