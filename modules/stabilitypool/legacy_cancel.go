package stabilitypool

import (
	bolt "github.com/rivine/bbolt"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/types"
)

// registerLegacyCancel implements the RegisterLegacyCancel output (spec
// SUPPLEMENT 1): the guardian-side entry point a migration tool uses to
// mark an account as still carrying a pre-UnlockRequest legacy
// cancellation intention, so the next turnover's
// applyLegacyCancelRenewals pass picks it up. Restricted to the two
// account types that path knows how to drain; a seeker or provider with
// a pending UnlockRequest already supersedes the legacy path, so
// registration is refused rather than racing the two mechanisms.
func (e *Engine) registerLegacyCancel(tx *bolt.Tx, id types.AccountID, accType types.AccountType, req modules.RegisterLegacyCancelRequest) error {
	if accType != types.AccountSeeker && accType != types.AccountProvider {
		return types.ErrInvalidAccountTypeForOperation
	}
	if _, pending, err := getUnlockRequest(tx, id); err != nil {
		return err
	} else if pending {
		return types.ErrPreviousIntentionNotFullyProcessed
	}
	return putLegacyCancelRenewal(tx, id, legacyCancelRenewal{BasisPoints: req.BasisPoints})
}

// applyLegacyCancelRenewals implements the legacy cancellation-renewal
// path recovered from the original Rust source (spec SUPPLEMENT 1,
// resolving spec.md §9's open question by keeping both paths available
// but clearly separated): an account still carrying a pre-UnlockRequest
// legacy intention has its locked position reduced by a fixed
// basis-points fraction each turnover, independent of and run before the
// newer UnlockRequest phase. Off by default: a zero
// MinAllowedCancellationBPS config disables the whole path, since it
// exists only to support guardians migrating away from the legacy
// intention format.
func (e *Engine) applyLegacyCancelRenewals(tx *bolt.Tx, cycleIndex types.CycleIndex, newPrice types.FiatAmount, settledSeeks map[types.AccountID][]types.Seek, settledProvides map[types.AccountID][]types.Provide) error {
	if e.cfg.MinAllowedCancellationBPS == 0 {
		return nil
	}

	var accounts []types.AccountID
	if err := forEachLegacyCancelRenewal(tx, func(id types.AccountID, _ legacyCancelRenewal) error {
		accounts = append(accounts, id)
		return nil
	}); err != nil {
		return err
	}

	cycle := types.CycleInfo{Index: cycleIndex, Price: newPrice}
	for _, id := range accounts {
		renewal, ok := getLegacyCancelRenewal(tx, id)
		if !ok {
			continue
		}
		bps := renewal.BasisPoints
		if bps < e.cfg.MinAllowedCancellationBPS {
			// Below the configured floor: treat as fully retired,
			// remove the legacy record without cancelling anything.
			if err := deleteLegacyCancelRenewal(tx, id); err != nil {
				return err
			}
			continue
		}

		acc, ok, err := getAccount(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		switch acc.AccType {
		case types.AccountSeeker:
			locked := settledSeeks[id]
			total := sumSeeks(locked)
			target := types.Msat(types.CeilDivUint64(uint64(total)*uint64(bps), 10_000))
			res := drainNewestFirst(locked, target)
			settledSeeks[id] = res.Remaining
			if err := e.creditIdleAndRecordDrain(tx, id, res.Drained, res.Touched, cycle); err != nil {
				return err
			}
		case types.AccountProvider:
			locked := settledProvides[id]
			total := sumProvides(locked)
			target := types.Msat(types.CeilDivUint64(uint64(total)*uint64(bps), 10_000))
			res := drainNewestFirst(locked, target)
			settledProvides[id] = res.Remaining
			if err := e.creditIdleAndRecordDrainProvide(tx, id, res.Drained, res.Touched, cycle); err != nil {
				return err
			}
		}
	}
	return nil
}

// creditIdleAndRecordDrainProvide is creditIdleAndRecordDrain's
// Provide-typed analogue; Go's method-on-generic-type restriction means
// these two small monomorphizations can't share a single method, the
// same constraint documented on types.Provide.
func (e *Engine) creditIdleAndRecordDrainProvide(tx *bolt.Tx, id types.AccountID, drained types.Msat, touched []types.Provide, cycle types.CycleInfo) error {
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
