package stabilitypool

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	bolt "github.com/rivine/bbolt"

	"github.com/threefoldtech/stabilitypool/crypto"
	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/persist"
	"github.com/threefoldtech/stabilitypool/types"
)

func newTestEngine(t *testing.T, cfg Config, oracle modules.Oracle) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "consensus.db")
	e, err := NewEngine(dbPath, oracle, cfg, persist.NewNopLogger())
	if err != nil {
		t.Fatalf("NewEngine() = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// bootstrapCycle starts the first cycle directly through the turnover
// engine, the way a fresh federation's first threshold-voted consensus
// item would (spec §4.4/§4.5): there is no current cycle to settle yet.
func bootstrapCycle(t *testing.T, e *Engine, price types.FiatAmount) {
	t.Helper()
	if err := e.update(func(tx *bolt.Tx) error {
		return e.turnover(tx, 0, time.Unix(1700000000, 0).UTC(), price, 1)
	}); err != nil {
		t.Fatalf("bootstrap turnover: %v", err)
	}
}

func turnoverTo(t *testing.T, e *Engine, nextIndex types.CycleIndex, price types.FiatAmount, randomness uint64) {
	t.Helper()
	if err := e.update(func(tx *bolt.Tx) error {
		return e.turnover(tx, nextIndex, time.Unix(1700000000, 0).UTC().Add(time.Duration(nextIndex)*time.Minute), price, randomness)
	}); err != nil {
		t.Fatalf("turnover to %d: %v", nextIndex, err)
	}
}

func currentCycleIndex(t *testing.T, e *Engine) types.CycleIndex {
	t.Helper()
	var idx types.CycleIndex
	if err := e.view(func(tx *bolt.Tx) error {
		c, ok, err := getCurrentCycle(tx)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("no current cycle")
		}
		idx = c.Index
		return nil
	}); err != nil {
		t.Fatalf("view current cycle: %v", err)
	}
	return idx
}

func testAccount(accType types.AccountType) (types.Account, types.AccountID) {
	_, pub := crypto.GenerateKeyPair()
	acc := types.Account{AccType: accType, PubKeys: []crypto.PublicKey{pub}, Threshold: 1}
	id, err := acc.AccountID()
	if err != nil {
		panic(err)
	}
	return acc, id
}

func TestEngineDepositAndTurnoverConservesAudit(t *testing.T) {
	cfg := DefaultConfig()
	e := newTestEngine(t, cfg, NewFixedMockOracle(5_000_000))
	ctx := context.Background()
	bootstrapCycle(t, e, 5_000_000)

	seeker, _ := testAccount(types.AccountSeeker)
	provider, _ := testAccount(types.AccountProvider)

	if err := e.ProcessOutput(ctx, seeker, modules.NewDepositToSeek(10_000)); err != nil {
		t.Fatalf("deposit seek: %v", err)
	}
	if err := e.ProcessOutput(ctx, provider, modules.NewDepositToProvide(10_000, 0)); err != nil {
		t.Fatalf("deposit provide: %v", err)
	}

	auditBefore, err := e.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit() = %v", err)
	}
	if auditBefore.LiabilitiesMsat != -20_000 {
		t.Fatalf("Audit() before turnover = %d, want -20000", auditBefore.LiabilitiesMsat)
	}

	turnoverTo(t, e, 1, 5_000_000, 1)

	stats, err := e.LiquidityStats(ctx)
	if err != nil {
		t.Fatalf("LiquidityStats() = %v", err)
	}
	if stats.LockedSeeksSum+stats.LockedProvidesSum != 20_000 {
		t.Fatalf("locked total after turnover = %d, want 20000", stats.LockedSeeksSum+stats.LockedProvidesSum)
	}

	auditAfter, err := e.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit() = %v", err)
	}
	if auditAfter.LiabilitiesMsat != auditBefore.LiabilitiesMsat {
		t.Fatalf("Audit() changed across turnover with no withdrawals: before=%d after=%d", auditBefore.LiabilitiesMsat, auditAfter.LiabilitiesMsat)
	}

	// A second turnover with an unchanged price must re-lock the same
	// total: settling, restaging, and relocking is a no-op round trip.
	turnoverTo(t, e, 2, 5_000_000, 2)
	stats2, err := e.LiquidityStats(ctx)
	if err != nil {
		t.Fatalf("LiquidityStats() = %v", err)
	}
	if stats2.LockedSeeksSum+stats2.LockedProvidesSum != 20_000 {
		t.Fatalf("locked total after second turnover = %d, want 20000", stats2.LockedSeeksSum+stats2.LockedProvidesSum)
	}
}

func TestEngineDepositToSeekRejectsBelowMinimum(t *testing.T) {
	cfg := DefaultConfig()
	e := newTestEngine(t, cfg, NewFixedMockOracle(5_000_000))
	ctx := context.Background()
	bootstrapCycle(t, e, 5_000_000)

	seeker, _ := testAccount(types.AccountSeeker)
	err := e.ProcessOutput(ctx, seeker, modules.NewDepositToSeek(cfg.MinAllowedSeek-1))
	if !errors.Is(err, types.ErrAmountTooLow) {
		t.Fatalf("ProcessOutput() = %v, want wrapping ErrAmountTooLow", err)
	}
}

func TestEngineDepositToProvideRejectsFeeRateTooHigh(t *testing.T) {
	cfg := DefaultConfig()
	e := newTestEngine(t, cfg, NewFixedMockOracle(5_000_000))
	ctx := context.Background()
	bootstrapCycle(t, e, 5_000_000)

	provider, _ := testAccount(types.AccountProvider)
	err := e.ProcessOutput(ctx, provider, modules.NewDepositToProvide(10_000, cfg.MaxAllowedProvideFeeRatePPB+1))
	if !errors.Is(err, types.ErrFeeRateTooHigh) {
		t.Fatalf("ProcessOutput() = %v, want wrapping ErrFeeRateTooHigh", err)
	}
}

func TestEngineDuplicateUnlockRequestRejected(t *testing.T) {
	cfg := DefaultConfig()
	e := newTestEngine(t, cfg, NewFixedMockOracle(5_000_000))
	ctx := context.Background()
	bootstrapCycle(t, e, 5_000_000)

	seeker, _ := testAccount(types.AccountSeeker)
	if err := e.ProcessOutput(ctx, seeker, modules.NewDepositToSeek(10_000)); err != nil {
		t.Fatalf("deposit seek: %v", err)
	}
	provider, _ := testAccount(types.AccountProvider)
	if err := e.ProcessOutput(ctx, provider, modules.NewDepositToProvide(10_000, 0)); err != nil {
		t.Fatalf("deposit provide: %v", err)
	}
	turnoverTo(t, e, 1, 5_000_000, 1)

	_, _, err := e.ProcessInput(ctx, seeker, modules.NewUnlockForWithdrawal(types.TransferAmount{All: true}))
	if err != nil {
		t.Fatalf("first unlock request: %v", err)
	}
	_, _, err = e.ProcessInput(ctx, seeker, modules.NewUnlockForWithdrawal(types.TransferAmount{All: true}))
	if !errors.Is(err, types.ErrDuplicateUnlockRequest) {
		t.Fatalf("second unlock request = %v, want ErrDuplicateUnlockRequest", err)
	}
}

func TestEngineWithdrawalFlowEndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	e := newTestEngine(t, cfg, NewFixedMockOracle(5_000_000))
	ctx := context.Background()
	bootstrapCycle(t, e, 5_000_000)

	seeker, seekerID := testAccount(types.AccountSeeker)
	if err := e.ProcessOutput(ctx, seeker, modules.NewDepositToSeek(10_000)); err != nil {
		t.Fatalf("deposit seek: %v", err)
	}
	provider, _ := testAccount(types.AccountProvider)
	if err := e.ProcessOutput(ctx, provider, modules.NewDepositToProvide(10_000, 0)); err != nil {
		t.Fatalf("deposit provide: %v", err)
	}
	turnoverTo(t, e, 1, 5_000_000, 1)

	if _, _, err := e.ProcessInput(ctx, seeker, modules.NewUnlockForWithdrawal(types.TransferAmount{All: true})); err != nil {
		t.Fatalf("unlock for withdrawal: %v", err)
	}

	status, err := e.UnlockRequestStatus(ctx, seekerID)
	if err != nil {
		t.Fatalf("UnlockRequestStatus() = %v", err)
	}
	if !status.Pending {
		t.Fatal("UnlockRequestStatus().Pending = false, want true before the next turnover")
	}

	turnoverTo(t, e, 2, 5_000_000, 2)

	status, err = e.UnlockRequestStatus(ctx, seekerID)
	if err != nil {
		t.Fatalf("UnlockRequestStatus() = %v", err)
	}
	if status.Pending {
		t.Fatal("UnlockRequestStatus().Pending = true, want false after turnover drains it to idle")
	}
	if status.IdleBalance != 10_000 {
		t.Fatalf("IdleBalance = %d, want 10000", status.IdleBalance)
	}

	amount, _, err := e.ProcessInput(ctx, seeker, modules.NewWithdrawal(10_000))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Amount != 10_000 {
		t.Fatalf("withdrawal amount = %d, want 10000", amount.Amount)
	}

	if _, _, err := e.ProcessInput(ctx, seeker, modules.NewWithdrawal(1)); !errors.Is(err, types.ErrInsufficientBalance) {
		t.Fatalf("withdraw from drained idle balance = %v, want ErrInsufficientBalance", err)
	}
}

func TestEngineTransferSignedWithSchnorrKey(t *testing.T) {
	cfg := DefaultConfig()
	e := newTestEngine(t, cfg, NewFixedMockOracle(5_000_000))
	ctx := context.Background()
	bootstrapCycle(t, e, 5_000_000)

	skA, pkA, err := crypto.GenerateSchnorrKeyPair()
	if err != nil {
		t.Fatalf("GenerateSchnorrKeyPair() = %v", err)
	}
	var accPubA crypto.PublicKey
	copy(accPubA[:], pkA[:])
	accountA := types.Account{AccType: types.AccountSeeker, PubKeys: []crypto.PublicKey{accPubA}, Threshold: 1}
	idA, err := accountA.AccountID()
	if err != nil {
		t.Fatalf("AccountID() = %v", err)
	}

	_, idB := testAccount(types.AccountSeeker)

	if err := e.ProcessOutput(ctx, accountA, modules.NewDepositToSeek(10_000)); err != nil {
		t.Fatalf("deposit seek: %v", err)
	}
	provider, _ := testAccount(types.AccountProvider)
	if err := e.ProcessOutput(ctx, provider, modules.NewDepositToProvide(10_000, 0)); err != nil {
		t.Fatalf("deposit provide: %v", err)
	}
	turnoverTo(t, e, 1, 5_000_000, 1)

	req := types.TransferRequest{
		From:            idA,
		To:              idB,
		Amount:          types.TransferAmount{All: true},
		ValidUntilCycle: currentCycleIndex(t, e),
	}
	hash := crypto.HashBytes(req.CanonicalEncoding())
	sig, err := crypto.SignSchnorr(hash, skA)
	if err != nil {
		t.Fatalf("SignSchnorr() = %v", err)
	}
	signed := types.SignedTransferRequest{
		Request:    req,
		Signatures: []types.KeyIndexSignature{{KeyIndex: 0, Signature: sig}},
	}

	if err := e.ProcessOutput(ctx, accountA, modules.NewTransfer(signed)); err != nil {
		t.Fatalf("ProcessOutput(Transfer) = %v", err)
	}

	depositsA, err := e.ActiveDeposits(ctx, idA)
	if err != nil {
		t.Fatalf("ActiveDeposits(A) = %v", err)
	}
	if len(depositsA.Locked) != 0 || len(depositsA.Staged) != 0 {
		t.Fatalf("account A still holds a position after transferring All: %+v", depositsA)
	}
	depositsB, err := e.ActiveDeposits(ctx, idB)
	if err != nil {
		t.Fatalf("ActiveDeposits(B) = %v", err)
	}
	var total types.Msat
	for _, s := range depositsB.Locked {
		total += s.Amount
	}
	if total != 10_000 {
		t.Fatalf("account B locked total = %d, want 10000", total)
	}

	// Replaying the same signed request must be rejected as already seen.
	if err := e.ProcessOutput(ctx, accountA, modules.NewTransfer(signed)); err == nil {
		t.Fatal("replayed transfer request was accepted a second time")
	}
}

// TestEnginePhaseEFeeEscalationAcrossProviders drives Phase E's
// ascending-by-MinFeeRate provider consumption loop (phase_e.go) through
// more than one rung: a cheap provider alone can't collateralize every
// staged seek at fee rate zero, so the engine must escalate the fee rate
// to the next provider's MinFeeRate before it has enough collateral to
// lock the full seek total.
func TestEnginePhaseEFeeEscalationAcrossProviders(t *testing.T) {
	tests := []struct {
		name           string
		seekAmount     types.Msat
		cheapProvide   types.Msat
		cheapFeeRate   types.FeeRatePPB
		richProvide    types.Msat
		richFeeRate    types.FeeRatePPB
		wantFeeRate    types.FeeRatePPB
		wantLockedSeek types.Msat
	}{
		{
			name:           "second rung required",
			seekAmount:     15_000,
			cheapProvide:   10_000,
			cheapFeeRate:   0,
			richProvide:    10_000,
			richFeeRate:    100_000_000, // 10%
			wantFeeRate:    100_000_000,
			wantLockedSeek: 13_500,
		},
		{
			name:           "cheap provider alone suffices, no escalation",
			seekAmount:     8_000,
			cheapProvide:   10_000,
			cheapFeeRate:   0,
			richProvide:    10_000,
			richFeeRate:    100_000_000,
			wantFeeRate:    0,
			wantLockedSeek: 8_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			e := newTestEngine(t, cfg, NewFixedMockOracle(5_000_000))
			ctx := context.Background()
			bootstrapCycle(t, e, 5_000_000)

			seeker, _ := testAccount(types.AccountSeeker)
			cheapProvider, _ := testAccount(types.AccountProvider)
			richProvider, _ := testAccount(types.AccountProvider)

			if err := e.ProcessOutput(ctx, seeker, modules.NewDepositToSeek(tt.seekAmount)); err != nil {
				t.Fatalf("deposit seek: %v", err)
			}
			if err := e.ProcessOutput(ctx, cheapProvider, modules.NewDepositToProvide(tt.cheapProvide, tt.cheapFeeRate)); err != nil {
				t.Fatalf("deposit cheap provide: %v", err)
			}
			if err := e.ProcessOutput(ctx, richProvider, modules.NewDepositToProvide(tt.richProvide, tt.richFeeRate)); err != nil {
				t.Fatalf("deposit rich provide: %v", err)
			}

			turnoverTo(t, e, 1, 5_000_000, 1)

			feeRate, err := e.AverageFeeRate(ctx, 1)
			if err != nil {
				t.Fatalf("AverageFeeRate() = %v", err)
			}
			if feeRate != tt.wantFeeRate {
				t.Fatalf("FeeRate = %d, want %d", feeRate, tt.wantFeeRate)
			}

			stats, err := e.LiquidityStats(ctx)
			if err != nil {
				t.Fatalf("LiquidityStats() = %v", err)
			}
			if stats.LockedSeeksSum != tt.wantLockedSeek {
				t.Fatalf("LockedSeeksSum = %d, want %d", stats.LockedSeeksSum, tt.wantLockedSeek)
			}
		})
	}
}

// TestEngineAverageFeeRateWeightsByLockedPrincipal exercises the
// weighted-average walk in queries.go: a cycle with little locked
// principal should barely move the average relative to one with deep
// liquidity, even across an equal number of cycles.
func TestEngineAverageFeeRateWeightsByLockedPrincipal(t *testing.T) {
	cfg := DefaultConfig()
	e := newTestEngine(t, cfg, NewFixedMockOracle(5_000_000))
	ctx := context.Background()
	bootstrapCycle(t, e, 5_000_000)

	seeker, _ := testAccount(types.AccountSeeker)
	cheapProvider, _ := testAccount(types.AccountProvider)
	richProvider, _ := testAccount(types.AccountProvider)

	// Cycle 1: a small seek locks against the fee-free provider only, fee
	// rate stays at zero with a small weight.
	if err := e.ProcessOutput(ctx, seeker, modules.NewDepositToSeek(1_000)); err != nil {
		t.Fatalf("deposit seek 1: %v", err)
	}
	if err := e.ProcessOutput(ctx, cheapProvider, modules.NewDepositToProvide(1_000, 0)); err != nil {
		t.Fatalf("deposit cheap provide: %v", err)
	}
	turnoverTo(t, e, 1, 5_000_000, 1)

	// Cycle 2: a much larger seek forces escalation to the rich
	// provider's fee rate, with a much larger weight.
	if err := e.ProcessOutput(ctx, seeker, modules.NewDepositToSeek(15_000)); err != nil {
		t.Fatalf("deposit seek 2: %v", err)
	}
	if err := e.ProcessOutput(ctx, richProvider, modules.NewDepositToProvide(10_000, 100_000_000)); err != nil {
		t.Fatalf("deposit rich provide: %v", err)
	}
	turnoverTo(t, e, 2, 5_000_000, 2)

	avg, err := e.AverageFeeRate(ctx, 2)
	if err != nil {
		t.Fatalf("AverageFeeRate() = %v", err)
	}
	// The second, far larger cycle dominates the weighted average, so it
	// should land much closer to the rich provider's 10% than to 0%.
	if avg < 50_000_000 {
		t.Fatalf("AverageFeeRate(2) = %d, want closer to the heavily-weighted second cycle's rate", avg)
	}

	single, err := e.AverageFeeRate(ctx, 1)
	if err != nil {
		t.Fatalf("AverageFeeRate(1) = %v", err)
	}
	if single == avg {
		t.Fatalf("AverageFeeRate(1) = AverageFeeRate(2) = %d, want the single-cycle and weighted windows to differ", single)
	}
}

// TestEngineLegacyCancelRenewalDrainsRegisteredAccount drives a
// non-empty LegacyCancelRenewals bucket through a turnover end to end:
// RegisterLegacyCancel populates the bucket, and the following
// turnover's applyLegacyCancelRenewals pass must actually drain the
// registered basis-points fraction of the account's locked seek into its
// idle balance.
func TestEngineLegacyCancelRenewalDrainsRegisteredAccount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinAllowedCancellationBPS = 2_000 // 20% floor
	e := newTestEngine(t, cfg, NewFixedMockOracle(5_000_000))
	ctx := context.Background()
	bootstrapCycle(t, e, 5_000_000)

	seeker, seekerID := testAccount(types.AccountSeeker)
	provider, _ := testAccount(types.AccountProvider)

	if err := e.ProcessOutput(ctx, seeker, modules.NewDepositToSeek(10_000)); err != nil {
		t.Fatalf("deposit seek: %v", err)
	}
	if err := e.ProcessOutput(ctx, provider, modules.NewDepositToProvide(10_000, 0)); err != nil {
		t.Fatalf("deposit provide: %v", err)
	}
	turnoverTo(t, e, 1, 5_000_000, 1)

	// Register a 25% legacy cancellation, above the configured floor, on
	// the now-locked seeker.
	if err := e.ProcessOutput(ctx, seeker, modules.NewRegisterLegacyCancel(2_500)); err != nil {
		t.Fatalf("RegisterLegacyCancel: %v", err)
	}

	turnoverTo(t, e, 2, 5_000_000, 2)

	status, err := e.UnlockRequestStatus(ctx, seekerID)
	if err != nil {
		t.Fatalf("UnlockRequestStatus() = %v", err)
	}
	// ceil_div(10_000 * 2_500, 10_000) = 2_500.
	if status.IdleBalance != 2_500 {
		t.Fatalf("IdleBalance after legacy cancel turnover = %d, want 2500", status.IdleBalance)
	}

	deposits, err := e.ActiveDeposits(ctx, seekerID)
	if err != nil {
		t.Fatalf("ActiveDeposits() = %v", err)
	}
	var lockedTotal types.Msat
	for _, s := range deposits.Locked {
		lockedTotal += s.Amount
	}
	if lockedTotal != 7_500 {
		t.Fatalf("locked seek after legacy cancel turnover = %d, want 7500", lockedTotal)
	}
}

// TestEngineRegisterLegacyCancelRejectsPendingUnlockRequest ensures the
// legacy path and the newer UnlockRequest path stay mutually exclusive:
// an account that already has a pending UnlockRequest must not also
// accept a RegisterLegacyCancel registration.
func TestEngineRegisterLegacyCancelRejectsPendingUnlockRequest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinAllowedCancellationBPS = 2_000
	e := newTestEngine(t, cfg, NewFixedMockOracle(5_000_000))
	ctx := context.Background()
	bootstrapCycle(t, e, 5_000_000)

	seeker, _ := testAccount(types.AccountSeeker)
	if err := e.ProcessOutput(ctx, seeker, modules.NewDepositToSeek(10_000)); err != nil {
		t.Fatalf("deposit seek: %v", err)
	}
	provider, _ := testAccount(types.AccountProvider)
	if err := e.ProcessOutput(ctx, provider, modules.NewDepositToProvide(10_000, 0)); err != nil {
		t.Fatalf("deposit provide: %v", err)
	}
	turnoverTo(t, e, 1, 5_000_000, 1)

	if _, _, err := e.ProcessInput(ctx, seeker, modules.NewUnlockForWithdrawal(types.TransferAmount{All: true})); err != nil {
		t.Fatalf("unlock for withdrawal: %v", err)
	}

	err := e.ProcessOutput(ctx, seeker, modules.NewRegisterLegacyCancel(2_500))
	if !errors.Is(err, types.ErrPreviousIntentionNotFullyProcessed) {
		t.Fatalf("RegisterLegacyCancel() = %v, want ErrPreviousIntentionNotFullyProcessed", err)
	}
}
