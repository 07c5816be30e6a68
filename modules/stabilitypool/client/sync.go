// Package client implements the reader-side helpers a wallet or chat client
// embeds to talk to a federation of stability pool guardians: a cached
// account snapshot, the withdrawal two-phase state machine, and transfer
// request signing.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/types"
)

// Reader is the subset of modules.StabilityPoolServer a client needs to
// keep its cache warm. Any single guardian (reached over the HTTP API) or
// the in-process engine itself satisfies this.
type Reader interface {
	ActiveDeposits(ctx context.Context, accountID types.AccountID) (modules.ActiveDeposits, error)
	ActiveProvides(ctx context.Context, accountID types.AccountID) (modules.ActiveProvides, error)
	UnlockRequestStatus(ctx context.Context, accountID types.AccountID) (modules.UnlockRequestStatus, error)
	AccountHistory(ctx context.Context, accountID types.AccountID, start uint64, limit int) ([]types.AccountHistoryItem, error)
}

// SyncResponse is the client-side snapshot described in spec §4.8: current
// cycle info, staged/locked/idle balances, unlock request, history count.
// Seeker and provider fields are mutually exclusive depending on the
// account's type; a BtcDepositor only ever populates Seeks.
type SyncResponse struct {
	AccountID types.AccountID

	Seeks    modules.ActiveDeposits
	Provides modules.ActiveProvides

	UnlockStatus modules.UnlockRequestStatus

	// HistoryCount is the number of history items observed as of this
	// snapshot; used by callers to detect whether a follow-up
	// AccountHistory(start=HistoryCount, ...) call would return anything.
	HistoryCount uint64
}

// Syncer holds the last SyncResponse fetched for one account and refreshes
// it either on demand (Refresh) or in response to an external scan-complete
// signal (NotifyScanComplete), mirroring the teacher's wallet scan-complete
// subscriber pattern used to invalidate a cached confirmed balance.
type Syncer struct {
	reader    Reader
	accountID types.AccountID

	mu   sync.RWMutex
	last SyncResponse
	have bool
}

// NewSyncer constructs a Syncer for one account against one Reader. It does
// not perform an initial fetch; call Refresh before reading Last.
func NewSyncer(reader Reader, accountID types.AccountID) *Syncer {
	return &Syncer{reader: reader, accountID: accountID}
}

// Last returns the most recently fetched SyncResponse and whether one has
// ever successfully been fetched.
func (s *Syncer) Last() (SyncResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.have
}

// Refresh fetches a fresh SyncResponse and stores it, replacing whatever was
// cached before. A partial failure (one call succeeding, the next failing)
// never corrupts the cache: on error the old snapshot is left untouched.
func (s *Syncer) Refresh(ctx context.Context) (SyncResponse, error) {
	next := SyncResponse{AccountID: s.accountID}

	var err error
	next.Seeks, err = s.reader.ActiveDeposits(ctx, s.accountID)
	if err != nil {
		return SyncResponse{}, fmt.Errorf("sync active deposits: %w", err)
	}
	next.Provides, err = s.reader.ActiveProvides(ctx, s.accountID)
	if err != nil {
		return SyncResponse{}, fmt.Errorf("sync active provides: %w", err)
	}
	next.UnlockStatus, err = s.reader.UnlockRequestStatus(ctx, s.accountID)
	if err != nil {
		return SyncResponse{}, fmt.Errorf("sync unlock request status: %w", err)
	}

	// limit=0 means unbounded (see AccountHistoryRange); there is no
	// dedicated count endpoint, so the full range is walked and counted.
	items, err := s.reader.AccountHistory(ctx, s.accountID, 0, 0)
	if err != nil {
		return SyncResponse{}, fmt.Errorf("sync account history: %w", err)
	}
	next.HistoryCount = uint64(len(items))

	s.mu.Lock()
	s.last = next
	s.have = true
	s.mu.Unlock()
	return next, nil
}

// NotifyScanComplete is the hook the surrounding wallet/chat client calls
// whenever its own transaction scan finishes, matching spec §4.8's
// "refreshed on demand and on every scan-complete event". It simply
// triggers a Refresh, swallowing the error since a scan-complete signal is
// best-effort and the caller is expected to retry on its own schedule.
func (s *Syncer) NotifyScanComplete(ctx context.Context) {
	_, _ = s.Refresh(ctx)
}
