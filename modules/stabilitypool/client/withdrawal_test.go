package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/types"
)

type mockSubmitter struct {
	unlockErr error
	withdrawn types.Msat
	withdrawErr error
}

func (m *mockSubmitter) SubmitUnlockForWithdrawal(ctx context.Context, accountID types.AccountID, amount types.TransferAmount) error {
	return m.unlockErr
}

func (m *mockSubmitter) SubmitWithdrawal(ctx context.Context, accountID types.AccountID, amount types.Msat) (modules.TransactionItemAmount, error) {
	if m.withdrawErr != nil {
		return modules.TransactionItemAmount{}, m.withdrawErr
	}
	m.withdrawn = amount
	return modules.TransactionItemAmount{Amount: amount}, nil
}

type mockReader struct {
	status modules.UnlockRequestStatus
	err    error
}

func (m *mockReader) ActiveDeposits(ctx context.Context, accountID types.AccountID) (modules.ActiveDeposits, error) {
	return modules.ActiveDeposits{}, nil
}
func (m *mockReader) ActiveProvides(ctx context.Context, accountID types.AccountID) (modules.ActiveProvides, error) {
	return modules.ActiveProvides{}, nil
}
func (m *mockReader) UnlockRequestStatus(ctx context.Context, accountID types.AccountID) (modules.UnlockRequestStatus, error) {
	return m.status, m.err
}
func (m *mockReader) AccountHistory(ctx context.Context, accountID types.AccountID, start uint64, limit int) ([]types.AccountHistoryItem, error) {
	return nil, nil
}

func TestWithdrawalDriverImmediateIdleBalance(t *testing.T) {
	sub := &mockSubmitter{}
	rd := &mockReader{status: modules.UnlockRequestStatus{Pending: false, IdleBalance: 1000}}
	d := NewWithdrawalDriver(sub, rd, "sps1test", DefaultBackoff)

	state := d.Run(context.Background(), types.TransferAmount{All: true}, 5)
	if state.Phase != WithdrawalProcessed {
		t.Fatalf("expected Processed, got %s (%v)", state.Phase, state.RejectReason)
	}
	if state.ProcessedAmount != 1000 {
		t.Fatalf("expected processed amount 1000, got %d", state.ProcessedAmount)
	}
	if sub.withdrawn != 1000 {
		t.Fatalf("expected submitter to withdraw 1000, got %d", sub.withdrawn)
	}
}

func TestWithdrawalDriverZeroResidual(t *testing.T) {
	sub := &mockSubmitter{}
	rd := &mockReader{status: modules.UnlockRequestStatus{Pending: false, IdleBalance: 0}}
	d := NewWithdrawalDriver(sub, rd, "sps1test", DefaultBackoff)

	state := d.Run(context.Background(), types.TransferAmount{All: true}, 5)
	if state.Phase != WithdrawalProcessed {
		t.Fatalf("expected Processed, got %s", state.Phase)
	}
	if state.ProcessedAmount != 0 {
		t.Fatalf("expected zero processed amount, got %d", state.ProcessedAmount)
	}
}

func TestWithdrawalDriverStartRejected(t *testing.T) {
	sub := &mockSubmitter{unlockErr: errors.New("boom")}
	rd := &mockReader{}
	d := NewWithdrawalDriver(sub, rd, "sps1test", DefaultBackoff)

	state := d.Run(context.Background(), types.TransferAmount{All: true}, 5)
	if state.Phase != WithdrawalRejected {
		t.Fatalf("expected Rejected, got %s", state.Phase)
	}
}

func TestWithdrawalDriverPendingThenProcessed(t *testing.T) {
	sub := &mockSubmitter{}
	rd := &mockReader{status: modules.UnlockRequestStatus{Pending: true, NextCycleStartTimeUnixNano: time.Now().UnixNano()}}
	d := NewWithdrawalDriver(sub, rd, "sps1test", func(int) time.Duration { return time.Millisecond })

	if err := d.Start(context.Background(), types.TransferAmount{All: true}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done, err := d.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if done {
		t.Fatalf("expected Poll to report not-done while pending")
	}

	rd.status = modules.UnlockRequestStatus{Pending: false, IdleBalance: 500}
	done, err = d.Poll(context.Background())
	if err != nil || !done {
		t.Fatalf("expected second poll to complete, done=%v err=%v", done, err)
	}
	if d.State().Phase != WithdrawalProcessed {
		t.Fatalf("expected Processed, got %s", d.State().Phase)
	}
}

func TestDefaultBackoffCaps(t *testing.T) {
	if got := DefaultBackoff(0); got != time.Second {
		t.Fatalf("attempt 0: expected 1s, got %s", got)
	}
	if got := DefaultBackoff(20); got != 2*time.Minute {
		t.Fatalf("expected backoff to cap at 2m, got %s", got)
	}
}
