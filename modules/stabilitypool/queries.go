package stabilitypool

import (
	"context"
	"errors"

	bolt "github.com/rivine/bbolt"

	"github.com/threefoldtech/stabilitypool/build"
	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/types"
)

// AverageFeeRate implements the average_fee_rate(n) read endpoint
// (SUPPLEMENT 3): the fee rate of the last n cycles, weighted by each
// cycle's total locked seek principal, so a cycle that barely turned over
// doesn't sway the average as much as one with deep liquidity.
func (e *Engine) AverageFeeRate(ctx context.Context, n int) (types.FeeRatePPB, error) {
	if n <= 0 {
		return 0, nil
	}
	var result types.FeeRatePPB
	err := e.view(func(tx *bolt.Tx) error {
		current, hasCurrent, err := getCurrentCycle(tx)
		if err != nil {
			return err
		}
		if !hasCurrent {
			return nil
		}

		var weightedSum, totalWeight uint64
		cycles := 0
		for idx := current.Index; cycles < n; cycles++ {
			var c types.Cycle
			if idx == current.Index {
				c = current
			} else {
				past, ok, err := getPastCycle(tx, idx)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				c = past
			}
			weight := uint64(c.TotalLockedSeeks())
			weightedSum += weight * uint64(c.FeeRate)
			totalWeight += weight
			if idx == 0 {
				break
			}
			idx--
		}
		if totalWeight == 0 {
			result = current.FeeRate
			return nil
		}
		result = types.FeeRatePPB(weightedSum / totalWeight)
		return nil
	})
	return result, err
}

// ActiveDeposits implements the active_deposits(account_id) read endpoint:
// an account's current staged and locked seeks.
func (e *Engine) ActiveDeposits(ctx context.Context, accountID types.AccountID) (modules.ActiveDeposits, error) {
	var out modules.ActiveDeposits
	err := e.view(func(tx *bolt.Tx) error {
		staged, err := getStagedSeeks(tx, accountID)
		if err != nil {
			return err
		}
		out.Staged = staged
		current, hasCurrent, err := getCurrentCycle(tx)
		if err != nil {
			return err
		}
		if hasCurrent {
			out.Locked = current.LockedSeeks[accountID]
		}
		return nil
	})
	return out, err
}

// ActiveProvides is ActiveDeposits' provider-side analogue.
func (e *Engine) ActiveProvides(ctx context.Context, accountID types.AccountID) (modules.ActiveProvides, error) {
	var out modules.ActiveProvides
	err := e.view(func(tx *bolt.Tx) error {
		staged, err := getStagedProvides(tx, accountID)
		if err != nil {
			return err
		}
		out.Staged = staged
		current, hasCurrent, err := getCurrentCycle(tx)
		if err != nil {
			return err
		}
		if hasCurrent {
			out.Locked = current.LockedProvides[accountID]
		}
		return nil
	})
	return out, err
}

// LiquidityStats implements the liquidity_stats read endpoint: the
// federation-wide totals across every account (spec §6).
func (e *Engine) LiquidityStats(ctx context.Context) (modules.LiquidityStats, error) {
	var out modules.LiquidityStats
	err := e.view(func(tx *bolt.Tx) error {
		current, hasCurrent, err := getCurrentCycle(tx)
		if err != nil {
			return err
		}
		if hasCurrent {
			out.LockedSeeksSum = current.TotalLockedSeeks()
			out.LockedProvidesSum = current.TotalLockedProvides()
		}
		if err := forEachStagedSeeks(tx, func(_ types.AccountID, seeks []types.Seek) error {
			out.StagedSeeksSum += sumSeeks(seeks)
			return nil
		}); err != nil {
			return err
		}
		return forEachStagedProvides(tx, func(_ types.AccountID, provides []types.Provide) error {
			out.StagedProvidesSum += sumProvides(provides)
			return nil
		})
	})
	return out, err
}

// UnlockRequestStatus implements the unlock_request_status(account_id)
// read endpoint (spec §4.8, §6).
func (e *Engine) UnlockRequestStatus(ctx context.Context, accountID types.AccountID) (modules.UnlockRequestStatus, error) {
	var out modules.UnlockRequestStatus
	err := e.view(func(tx *bolt.Tx) error {
		_, pending, err := getUnlockRequest(tx, accountID)
		if err != nil {
			return err
		}
		out.Pending = pending
		if pending {
			current, hasCurrent, err := getCurrentCycle(tx)
			if err != nil {
				return err
			}
			if hasCurrent {
				out.NextCycleStartTimeUnixNano = current.StartTime.Add(e.cfg.CycleDuration).UnixNano()
			}
			return nil
		}
		out.IdleBalance = getIdleBalance(tx, accountID)
		return nil
	})
	return out, err
}

// AccountHistory implements the account_history(account_id, start, limit)
// read endpoint, a thin wrapper over the store's cursor-based pagination
// (spec SUPPLEMENT 4).
func (e *Engine) AccountHistory(ctx context.Context, accountID types.AccountID, start uint64, limit int) ([]types.AccountHistoryItem, error) {
	var items []types.AccountHistoryItem
	err := e.view(func(tx *bolt.Tx) error {
		var err error
		items, err = historyRange(tx, accountID, start, limit)
		return err
	})
	return items, err
}

// Audit implements the on-demand audit call (spec §4.10): it sums every
// account's idle balance, staged seeks/provides, and locked seeks/provides
// and reports the total as a negative liability, the federation's sign
// convention for "this module owes this much to its users". A guardian
// whose own bookkeeping has drifted (e.g. from a bug in the turnover math)
// is expected to halt rather than report a silently wrong number, hence
// build.Critical and an error when the total does not fit in int64.
func (e *Engine) Audit(ctx context.Context) (modules.AuditResult, error) {
	var total uint64
	err := e.view(func(tx *bolt.Tx) error {
		if err := forEachIdleBalance(tx, func(_ types.AccountID, amount types.Msat) error {
			total += uint64(amount)
			return nil
		}); err != nil {
			return err
		}
		if err := forEachStagedSeeks(tx, func(_ types.AccountID, seeks []types.Seek) error {
			total += uint64(sumSeeks(seeks))
			return nil
		}); err != nil {
			return err
		}
		if err := forEachStagedProvides(tx, func(_ types.AccountID, provides []types.Provide) error {
			total += uint64(sumProvides(provides))
			return nil
		}); err != nil {
			return err
		}
		current, hasCurrent, err := getCurrentCycle(tx)
		if err != nil {
			return err
		}
		if hasCurrent {
			total += uint64(current.TotalLockedSeeks())
			total += uint64(current.TotalLockedProvides())
		}
		return nil
	})
	if err != nil {
		return modules.AuditResult{}, err
	}
	if total > 1<<63-1 {
		build.Critical("stabilitypool: audit total overflows int64", total)
		return modules.AuditResult{}, errors.New("stabilitypool: audit total overflows int64")
	}
	return modules.AuditResult{LiabilitiesMsat: -int64(total)}, nil
}
