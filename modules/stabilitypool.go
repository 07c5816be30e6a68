package modules

import (
	"context"

	"github.com/threefoldtech/stabilitypool/types"
)

// PeerID identifies one guardian within the federation, for the purposes
// of counting distinct-peer votes on a cycle turnover (spec §4.4).
type PeerID uint64

const (
	// StabilityPoolDir is the name of the directory used for the module's
	// persistent files, matching the teacher's <Module>Dir convention
	// (modules.WalletDir, modules.TransactionPoolDir, ...).
	StabilityPoolDir = "stabilitypool"
)

// LiquidityStats answers the liquidity_stats read endpoint (spec §6).
type LiquidityStats struct {
	LockedSeeksSum    types.Msat
	LockedProvidesSum types.Msat
	StagedSeeksSum    types.Msat
	StagedProvidesSum types.Msat
}

// ActiveDeposits answers the active_deposits(account_id) read endpoint.
type ActiveDeposits struct {
	Staged []types.Seek
	Locked []types.Seek
}

// ActiveProvides is the provider-side analogue of ActiveDeposits, for
// provider accounts.
type ActiveProvides struct {
	Staged []types.Provide
	Locked []types.Provide
}

// UnlockRequestStatus answers the unlock_request_status(account_id) read
// endpoint (spec §4.8, §6): either there is nothing pending and the
// account's current idle balance is reported, or a request is pending and
// the time of the next cycle turnover is reported.
type UnlockRequestStatus struct {
	// Pending is true when an UnlockRequest is outstanding.
	Pending bool
	// NextCycleStartTimeUnixNano is meaningful only when Pending is true.
	NextCycleStartTimeUnixNano int64
	// IdleBalance is meaningful only when Pending is false.
	IdleBalance types.Msat
}

// AuditResult is the output of the on-demand audit call (spec §4.10):
// liabilities are reported as a negative amount, the federation's sign
// convention for "this module owes this much to its users".
type AuditResult struct {
	LiabilitiesMsat int64
}

// StabilityPoolServer is the core engine's external surface (spec §6). It
// is consumed by the surrounding federation's consensus applier (inputs,
// outputs, consensus items) and by the read-only HTTP API.
type StabilityPoolServer interface {
	// ProcessOutput applies a DepositToSeek / DepositToProvide / Transfer
	// output atomically, in a database transaction the engine opens for
	// this call (spec §4.6). The
	// full Account is supplied by the caller (the surrounding federation
	// transaction always carries it) and is recorded the first time this
	// AccountID is seen, so later operations that only carry an
	// AccountID (e.g. a Transfer's `to`) can still resolve it.
	ProcessOutput(ctx context.Context, account types.Account, output Output) error

	// ProcessInput applies an UnlockForWithdrawal / Withdrawal input
	// atomically, in a database transaction the engine opens for this call
	// (spec §4.6).
	ProcessInput(ctx context.Context, account types.Account, input Input) (TransactionItemAmount, InputAttribution, error)

	// ProcessConsensusItem records a guardian's vote for a cycle
	// turnover, executing the turnover itself once threshold is reached
	// (spec §4.4).
	ProcessConsensusItem(ctx context.Context, peer PeerID, item types.ConsensusItem) error

	// ProposeConsensusItem returns the item this guardian should propose
	// right now, or ok=false if the proposal predicate (spec §4.4) says
	// to abstain.
	ProposeConsensusItem(ctx context.Context) (item types.ConsensusItem, ok bool)

	AverageFeeRate(ctx context.Context, n int) (types.FeeRatePPB, error)
	ActiveDeposits(ctx context.Context, accountID types.AccountID) (ActiveDeposits, error)
	ActiveProvides(ctx context.Context, accountID types.AccountID) (ActiveProvides, error)
	LiquidityStats(ctx context.Context) (LiquidityStats, error)
	UnlockRequestStatus(ctx context.Context, accountID types.AccountID) (UnlockRequestStatus, error)
	AccountHistory(ctx context.Context, accountID types.AccountID, start uint64, limit int) ([]types.AccountHistoryItem, error)

	// Audit sums all liabilities for the surrounding federation's
	// cross-module asset/liability check (spec §4.10).
	Audit(ctx context.Context) (AuditResult, error)
}
