package stabilitypool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	bolt "github.com/rivine/bbolt"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/types"
)

// proposerState is the per-guardian bookkeeping of spec §4.4: "each
// guardian holds its last proposed item and the current cycle (if any)".
// The current cycle itself lives in the store; only the last-proposal
// half is kept in memory here, matching the teacher's habit of keeping
// transient consensus bookkeeping off the persisted DB when it is
// reconstructible (a guardian that restarts simply re-proposes sooner,
// which is harmless per spec §4.4's failure model).
type proposerState struct {
	mu            sync.Mutex
	lastProposal  *types.ConsensusItem
	lastProposedAt time.Time
}

// ProposeConsensusItem implements modules.StabilityPoolServer (spec
// §4.4's proposal predicate table).
func (e *Engine) ProposeConsensusItem(ctx context.Context) (types.ConsensusItem, bool) {
	obs, ok := e.cachedPrice.Load()
	if !ok {
		// "A proposal is only emitted if the prefetched price is
		// present; otherwise abstain."
		return types.ConsensusItem{}, false
	}

	var current types.Cycle
	var hasCurrent bool
	if err := e.view(func(tx *bolt.Tx) error {
		var err error
		current, hasCurrent, err = getCurrentCycle(tx)
		return err
	}); err != nil {
		e.log.Severe("propose consensus item: read current cycle:", err)
		return types.ConsensusItem{}, false
	}

	e.proposer.mu.Lock()
	last := e.proposer.lastProposal
	lastAt := e.proposer.lastProposedAt
	e.proposer.mu.Unlock()

	now := time.Now()
	enough := e.cfg.enoughDuration()

	shouldPropose := func() bool {
		switch {
		case !hasCurrent && last == nil:
			return true
		case !hasCurrent && last != nil:
			return now.Sub(lastAt) > enough
		case hasCurrent && last == nil:
			return now.Sub(current.StartTime) > e.cfg.CycleDuration
		default: // hasCurrent && last != nil
			cycleAged := now.Sub(current.StartTime) > e.cfg.CycleDuration
			if !cycleAged {
				return false
			}
			return last.NextCycleIndex != current.Index+1 || now.Sub(lastAt) > enough
		}
	}()
	if !shouldPropose {
		return types.ConsensusItem{}, false
	}

	nextIndex := types.CycleIndex(0)
	if hasCurrent {
		nextIndex = current.Index + 1
	}
	item := types.ConsensusItem{NextCycleIndex: nextIndex, Time: obs.Time, Price: obs.Price}

	e.proposer.mu.Lock()
	e.proposer.lastProposal = &item
	e.proposer.lastProposedAt = now
	e.proposer.mu.Unlock()

	return item, true
}

// ProcessConsensusItem implements modules.StabilityPoolServer (spec
// §4.4: vote recording and threshold-triggered turnover).
func (e *Engine) ProcessConsensusItem(ctx context.Context, peer modules.PeerID, item types.ConsensusItem) error {
	return e.update(func(tx *bolt.Tx) error {
		current, hasCurrent, err := getCurrentCycle(tx)
		if err != nil {
			return err
		}
		if hasCurrent && item.NextCycleIndex != current.Index+1 {
			return fmt.Errorf("stabilitypool: vote for cycle %d rejected: current cycle is %d", item.NextCycleIndex, current.Index)
		}
		if hasVote(tx, item.NextCycleIndex, peer) {
			return fmt.Errorf("stabilitypool: duplicate vote from peer %d for cycle %d", peer, item.NextCycleIndex)
		}
		if err := putVote(tx, item.NextCycleIndex, peer, item); err != nil {
			return err
		}

		votes, err := votesForCycle(tx, item.NextCycleIndex)
		if err != nil {
			return err
		}
		if len(votes) < e.cfg.ConsensusThreshold {
			return nil
		}

		newTime := medianTime(votes)
		newPrice := medianFiat(votesPrices(votes))
		randomness := uint64(newTime.Nanosecond())

		if err := e.turnover(tx, item.NextCycleIndex, newTime, newPrice, randomness); err != nil {
			return fmt.Errorf("turnover: %w", err)
		}
		return deleteVotesForCycle(tx, item.NextCycleIndex)
	})
}

func votesPrices(votes []types.ConsensusItem) []types.FiatAmount {
	prices := make([]types.FiatAmount, len(votes))
	for i, v := range votes {
		prices[i] = v.Price
	}
	return prices
}

// medianTime reduces vote times independently of price, matching the
// original's two separate unstable-sorted medians (spec §9 Open
// Question: "Median selection across votes uses unstable sort by time
// and then by price separately... this appears intentional but is worth
// flagging"). This repo preserves that behavior rather than coupling the
// two medians, since spec §9 explicitly asks not to guess intent here.
func medianTime(votes []types.ConsensusItem) time.Time {
	times := make([]time.Time, len(votes))
	for i, v := range votes {
		times[i] = v.Time
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	n := len(times)
	if n%2 == 1 {
		return times[n/2]
	}
	return times[n/2-1]
}
