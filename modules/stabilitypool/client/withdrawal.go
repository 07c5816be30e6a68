package client

import (
	"context"
	"fmt"
	"time"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/types"
)

// WithdrawalPhase is the withdrawal client state machine of spec §4.8:
// Created -> Accepted -> (poll unlock_request_status) -> Processed, with
// Rejected and ProcessingError as the two terminal failure states.
type WithdrawalPhase int

const (
	WithdrawalCreated WithdrawalPhase = iota
	WithdrawalAccepted
	WithdrawalProcessed
	WithdrawalRejected
	WithdrawalProcessingError
)

func (p WithdrawalPhase) String() string {
	switch p {
	case WithdrawalCreated:
		return "Created"
	case WithdrawalAccepted:
		return "Accepted"
	case WithdrawalProcessed:
		return "Processed"
	case WithdrawalRejected:
		return "Rejected"
	case WithdrawalProcessingError:
		return "ProcessingError"
	default:
		return "Unknown"
	}
}

// WithdrawalState is the current state of one in-flight withdrawal.
type WithdrawalState struct {
	Phase WithdrawalPhase

	// RejectReason is set when Phase == WithdrawalRejected.
	RejectReason error
	// ProcessedAmount is set when Phase == WithdrawalProcessed.
	ProcessedAmount types.Msat
}

// Submitter is the surrounding federation transaction layer: it turns an
// UnlockForWithdrawal or Withdrawal input into a submitted, eventually
// accepted-or-rejected federation transaction. The stability pool module
// itself only validates and applies inputs (C6); building and broadcasting
// the enclosing transaction is the surrounding system's job, represented
// here by the minimal interface this state machine needs from it.
type Submitter interface {
	SubmitUnlockForWithdrawal(ctx context.Context, accountID types.AccountID, amount types.TransferAmount) error
	SubmitWithdrawal(ctx context.Context, accountID types.AccountID, amount types.Msat) (modules.TransactionItemAmount, error)
}

// BackoffPolicy returns how long to sleep before the next poll of
// unlock_request_status, given the number of prior polls for this
// withdrawal. Capped exponential backoff, grounded on the teacher's
// retry-with-growing-delay pattern used for gateway peer reconnection
// (modules/gateway/peers.go), adapted to a withdrawal-status poll instead
// of a network dial.
type BackoffPolicy func(attempt int) time.Duration

// DefaultBackoff doubles from 1s, capped at 2 minutes.
func DefaultBackoff(attempt int) time.Duration {
	d := time.Second
	for i := 0; i < attempt && d < 2*time.Minute; i++ {
		d *= 2
	}
	if d > 2*time.Minute {
		d = 2 * time.Minute
	}
	return d
}

// WithdrawalDriver runs one withdrawal through the two-phase state machine
// of spec §4.8 against a single account. It is not safe for concurrent use
// by multiple goroutines driving the same withdrawal.
type WithdrawalDriver struct {
	submitter Submitter
	reader    Reader
	accountID types.AccountID
	backoff   BackoffPolicy

	state WithdrawalState
}

// NewWithdrawalDriver constructs a driver for one withdrawal of an account's
// locked/staged seek balance. A nil backoff uses DefaultBackoff.
func NewWithdrawalDriver(submitter Submitter, reader Reader, accountID types.AccountID, backoff BackoffPolicy) *WithdrawalDriver {
	if backoff == nil {
		backoff = DefaultBackoff
	}
	return &WithdrawalDriver{
		submitter: submitter,
		reader:    reader,
		accountID: accountID,
		backoff:   backoff,
		state:     WithdrawalState{Phase: WithdrawalCreated},
	}
}

// State returns the driver's current state.
func (d *WithdrawalDriver) State() WithdrawalState { return d.state }

// Run drives the withdrawal to completion (Processed, Rejected, or
// ProcessingError), blocking on the caller's goroutine across the polling
// sleeps. Callers that want non-blocking progress should instead call
// Start and Poll individually against their own scheduler.
func (d *WithdrawalDriver) Run(ctx context.Context, amount types.TransferAmount, maxAttempts int) WithdrawalState {
	if err := d.Start(ctx, amount); err != nil {
		return d.state
	}
	for attempt := 0; maxAttempts <= 0 || attempt < maxAttempts; attempt++ {
		done, err := d.Poll(ctx)
		if err != nil {
			d.state = WithdrawalState{Phase: WithdrawalProcessingError, RejectReason: err}
			return d.state
		}
		if done {
			return d.state
		}
		select {
		case <-ctx.Done():
			d.state = WithdrawalState{Phase: WithdrawalProcessingError, RejectReason: ctx.Err()}
			return d.state
		case <-time.After(d.backoff(attempt)):
		}
	}
	return d.state
}

// Start submits the UnlockForWithdrawal transaction (Created -> Accepted or
// Rejected).
func (d *WithdrawalDriver) Start(ctx context.Context, amount types.TransferAmount) error {
	if err := d.submitter.SubmitUnlockForWithdrawal(ctx, d.accountID, amount); err != nil {
		d.state = WithdrawalState{Phase: WithdrawalRejected, RejectReason: err}
		return err
	}
	d.state = WithdrawalState{Phase: WithdrawalAccepted}
	return nil
}

// Poll checks unlock_request_status once. If the server reports
// NoActiveRequest (Pending == false), it submits the second, claiming
// Withdrawal transaction and transitions to Processed or ProcessingError;
// true is returned either way since the withdrawal is then finished. If the
// server reports Pending, Poll returns false so the caller sleeps (per its
// BackoffPolicy, via Run, or its own scheduler) and tries again; the
// reported next cycle start time is not used to schedule that retry.
func (d *WithdrawalDriver) Poll(ctx context.Context) (done bool, err error) {
	if d.state.Phase != WithdrawalAccepted {
		return false, fmt.Errorf("withdrawal driver: Poll called in phase %s, expected %s", d.state.Phase, WithdrawalAccepted)
	}
	status, err := d.reader.UnlockRequestStatus(ctx, d.accountID)
	if err != nil {
		return false, err
	}
	if status.Pending {
		return false, nil
	}
	if status.IdleBalance == 0 {
		// Nothing to claim: the prior staged drain already fully satisfied
		// the request with no residual, so there is no second transaction
		// to submit.
		d.state = WithdrawalState{Phase: WithdrawalProcessed, ProcessedAmount: 0}
		return true, nil
	}
	amt, err := d.submitter.SubmitWithdrawal(ctx, d.accountID, status.IdleBalance)
	if err != nil {
		d.state = WithdrawalState{Phase: WithdrawalProcessingError, RejectReason: err}
		return true, err
	}
	d.state = WithdrawalState{Phase: WithdrawalProcessed, ProcessedAmount: amt.Amount}
	return true, nil
}
