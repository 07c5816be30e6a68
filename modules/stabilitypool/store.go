// Package stabilitypool implements the server-side consensus engine: the
// typed persistent store (C3), the cycle turnover engine (C5), the
// input/output processor (C6), the account history recorder (C7), and the
// consensus-item proposer/voter (C4).
package stabilitypool

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bolt "github.com/rivine/bbolt"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/types"
)

// Bucket names, mirroring the teacher's prefixDCO / BlockMap /
// TransactionIDMap top-level bucket convention (consensusdb.go): each
// entity in the data model gets its own bucket rather than a shared one
// with byte-prefix discrimination, since bolt buckets are cheap and this
// keeps range scans (votes for a cycle, an account's staged list) to a
// single bucket each.
var (
	bucketAccounts       = []byte("Accounts")
	bucketCurrentCycle   = []byte("CurrentCycle")
	bucketPastCycles     = []byte("PastCycles")
	bucketStagedSeeks    = []byte("StagedSeeks")
	bucketStagedProvides = []byte("StagedProvides")
	bucketIdleBalances   = []byte("IdleBalances")
	bucketUnlockRequests = []byte("UnlockRequests")
	bucketVotes          = []byte("Votes")
	bucketHistory        = []byte("History")
	bucketHistoryCounter = []byte("HistoryCounters")
	bucketSeenTransfers  = []byte("SeenTransfers")
	bucketCounters       = []byte("Counters")
	bucketLegacyCancel   = []byte("LegacyCancelRenewals")

	// keyCurrentCycle is the sole key of bucketCurrentCycle.
	keyCurrentCycle = []byte("current")
	// keyDepositSequence is the sole key of bucketCounters holding the
	// global monotonic deposit sequence counter (spec §3 invariant 2).
	keyDepositSequence = []byte("deposit_sequence")
)

var allBuckets = [][]byte{
	bucketAccounts,
	bucketCurrentCycle,
	bucketPastCycles,
	bucketStagedSeeks,
	bucketStagedProvides,
	bucketIdleBalances,
	bucketUnlockRequests,
	bucketVotes,
	bucketHistory,
	bucketHistoryCounter,
	bucketSeenTransfers,
	bucketCounters,
	bucketLegacyCancel,
}

// createBuckets initializes every bucket this module owns, the way
// createConsensusDB enumerates and creates its buckets up front.
func createBuckets(tx *bolt.Tx) error {
	for _, b := range allBuckets {
		if _, err := tx.CreateBucketIfNotExists(b); err != nil {
			return fmt.Errorf("stabilitypool: create bucket %s: %w", b, err)
		}
	}
	return nil
}

func encodeUint64(x uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], x)
	return b[:]
}

func decodeUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// historyKey packs (account id, counter) into a sortable byte key so a
// per-account range scan yields items in counter order, the teacher's
// BlockPath height-keyed pattern applied to a per-account log.
func historyKey(id types.AccountID, counter uint64) []byte {
	key := make([]byte, 0, len(id)+8)
	key = append(key, []byte(id)...)
	key = append(key, encodeUint64(counter)...)
	return key
}

func voteKey(cycleIndex types.CycleIndex, peer modules.PeerID) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(cycleIndex))
	binary.BigEndian.PutUint64(key[8:], uint64(peer))
	return key
}

// --- Accounts ---

func putAccount(tx *bolt.Tx, id types.AccountID, acc types.Account) error {
	buf := new(bytes.Buffer)
	if err := acc.MarshalSP(buf); err != nil {
		return err
	}
	return tx.Bucket(bucketAccounts).Put([]byte(id), buf.Bytes())
}

func getAccount(tx *bolt.Tx, id types.AccountID) (types.Account, bool, error) {
	raw := tx.Bucket(bucketAccounts).Get([]byte(id))
	if raw == nil {
		return types.Account{}, false, nil
	}
	var acc types.Account
	if err := acc.UnmarshalSP(bytes.NewReader(raw)); err != nil {
		return types.Account{}, false, fmt.Errorf("stabilitypool: decode account %s: %w", id, err)
	}
	return acc, true, nil
}

// --- Current / past cycles ---

func putCurrentCycle(tx *bolt.Tx, c types.Cycle) error {
	buf := new(bytes.Buffer)
	if err := c.MarshalSP(buf); err != nil {
		return err
	}
	return tx.Bucket(bucketCurrentCycle).Put(keyCurrentCycle, buf.Bytes())
}

func getCurrentCycle(tx *bolt.Tx) (types.Cycle, bool, error) {
	raw := tx.Bucket(bucketCurrentCycle).Get(keyCurrentCycle)
	if raw == nil {
		return types.Cycle{}, false, nil
	}
	var c types.Cycle
	if err := c.UnmarshalSP(bytes.NewReader(raw)); err != nil {
		return types.Cycle{}, false, fmt.Errorf("stabilitypool: decode current cycle: %w", err)
	}
	return c, true, nil
}

func putPastCycle(tx *bolt.Tx, c types.Cycle) error {
	buf := new(bytes.Buffer)
	if err := c.MarshalSP(buf); err != nil {
		return err
	}
	return tx.Bucket(bucketPastCycles).Put(encodeUint64(uint64(c.Index)), buf.Bytes())
}

func getPastCycle(tx *bolt.Tx, index types.CycleIndex) (types.Cycle, bool, error) {
	raw := tx.Bucket(bucketPastCycles).Get(encodeUint64(uint64(index)))
	if raw == nil {
		return types.Cycle{}, false, nil
	}
	var c types.Cycle
	if err := c.UnmarshalSP(bytes.NewReader(raw)); err != nil {
		return types.Cycle{}, false, fmt.Errorf("stabilitypool: decode past cycle %d: %w", index, err)
	}
	return c, true, nil
}

// --- Staged seeks / provides ---

func getStagedSeeks(tx *bolt.Tx, id types.AccountID) ([]types.Seek, error) {
	raw := tx.Bucket(bucketStagedSeeks).Get([]byte(id))
	if raw == nil {
		return nil, nil
	}
	return types.UnmarshalSeeks(bytes.NewReader(raw))
}

func putStagedSeeks(tx *bolt.Tx, id types.AccountID, seeks []types.Seek) error {
	b := tx.Bucket(bucketStagedSeeks)
	if len(seeks) == 0 {
		return b.Delete([]byte(id))
	}
	buf := new(bytes.Buffer)
	if err := types.MarshalSeeks(buf, seeks); err != nil {
		return err
	}
	return b.Put([]byte(id), buf.Bytes())
}

func getStagedProvides(tx *bolt.Tx, id types.AccountID) ([]types.Provide, error) {
	raw := tx.Bucket(bucketStagedProvides).Get([]byte(id))
	if raw == nil {
		return nil, nil
	}
	return types.UnmarshalProvides(bytes.NewReader(raw))
}

func putStagedProvides(tx *bolt.Tx, id types.AccountID, provides []types.Provide) error {
	b := tx.Bucket(bucketStagedProvides)
	if len(provides) == 0 {
		return b.Delete([]byte(id))
	}
	buf := new(bytes.Buffer)
	if err := types.MarshalProvides(buf, provides); err != nil {
		return err
	}
	return b.Put([]byte(id), buf.Bytes())
}

// forEachStagedSeeks range-scans every account with a non-empty staged
// seek list, in AccountID order (spec §5 determinism requirement).
func forEachStagedSeeks(tx *bolt.Tx, fn func(types.AccountID, []types.Seek) error) error {
	return tx.Bucket(bucketStagedSeeks).ForEach(func(k, v []byte) error {
		seeks, err := types.UnmarshalSeeks(bytes.NewReader(v))
		if err != nil {
			return err
		}
		return fn(types.AccountID(k), seeks)
	})
}

func forEachStagedProvides(tx *bolt.Tx, fn func(types.AccountID, []types.Provide) error) error {
	return tx.Bucket(bucketStagedProvides).ForEach(func(k, v []byte) error {
		provides, err := types.UnmarshalProvides(bytes.NewReader(v))
		if err != nil {
			return err
		}
		return fn(types.AccountID(k), provides)
	})
}

// --- Idle balances ---

func getIdleBalance(tx *bolt.Tx, id types.AccountID) types.Msat {
	raw := tx.Bucket(bucketIdleBalances).Get([]byte(id))
	if raw == nil {
		return 0
	}
	return types.Msat(decodeUint64(raw))
}

func putIdleBalance(tx *bolt.Tx, id types.AccountID, amount types.Msat) error {
	b := tx.Bucket(bucketIdleBalances)
	if amount == 0 {
		return b.Delete([]byte(id))
	}
	return b.Put([]byte(id), encodeUint64(uint64(amount)))
}

func addIdleBalance(tx *bolt.Tx, id types.AccountID, delta types.Msat) error {
	return putIdleBalance(tx, id, getIdleBalance(tx, id)+delta)
}

func forEachIdleBalance(tx *bolt.Tx, fn func(types.AccountID, types.Msat) error) error {
	return tx.Bucket(bucketIdleBalances).ForEach(func(k, v []byte) error {
		return fn(types.AccountID(k), types.Msat(decodeUint64(v)))
	})
}

// --- Unlock requests ---

func getUnlockRequest(tx *bolt.Tx, id types.AccountID) (types.UnlockRequest, bool, error) {
	raw := tx.Bucket(bucketUnlockRequests).Get([]byte(id))
	if raw == nil {
		return types.UnlockRequest{}, false, nil
	}
	var u types.UnlockRequest
	if err := u.UnmarshalSP(bytes.NewReader(raw)); err != nil {
		return types.UnlockRequest{}, false, err
	}
	return u, true, nil
}

func putUnlockRequest(tx *bolt.Tx, id types.AccountID, u types.UnlockRequest) error {
	buf := new(bytes.Buffer)
	if err := u.MarshalSP(buf); err != nil {
		return err
	}
	return tx.Bucket(bucketUnlockRequests).Put([]byte(id), buf.Bytes())
}

func deleteUnlockRequest(tx *bolt.Tx, id types.AccountID) error {
	return tx.Bucket(bucketUnlockRequests).Delete([]byte(id))
}

// forEachUnlockRequest range-scans every pending unlock request in
// AccountID order (spec §4.5 Phase C).
func forEachUnlockRequest(tx *bolt.Tx, fn func(types.AccountID, types.UnlockRequest) error) error {
	return tx.Bucket(bucketUnlockRequests).ForEach(func(k, v []byte) error {
		var u types.UnlockRequest
		if err := u.UnmarshalSP(bytes.NewReader(v)); err != nil {
			return err
		}
		return fn(types.AccountID(k), u)
	})
}

// --- Votes ---

func putVote(tx *bolt.Tx, cycleIndex types.CycleIndex, peer modules.PeerID, item types.ConsensusItem) error {
	buf := new(bytes.Buffer)
	if err := item.MarshalSP(buf); err != nil {
		return err
	}
	return tx.Bucket(bucketVotes).Put(voteKey(cycleIndex, peer), buf.Bytes())
}

func hasVote(tx *bolt.Tx, cycleIndex types.CycleIndex, peer modules.PeerID) bool {
	return tx.Bucket(bucketVotes).Get(voteKey(cycleIndex, peer)) != nil
}

// votesForCycle returns every distinct-peer vote recorded for cycleIndex.
func votesForCycle(tx *bolt.Tx, cycleIndex types.CycleIndex) ([]types.ConsensusItem, error) {
	prefix := encodeUint64(uint64(cycleIndex))
	c := tx.Bucket(bucketVotes).Cursor()
	var items []types.ConsensusItem
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var item types.ConsensusItem
		if err := item.UnmarshalSP(bytes.NewReader(v)); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// deleteVotesForCycle removes every vote row for cycleIndex, run after a
// successful turnover (spec §4.4: "After turnover: delete all vote rows
// for that index").
func deleteVotesForCycle(tx *bolt.Tx, cycleIndex types.CycleIndex) error {
	prefix := encodeUint64(uint64(cycleIndex))
	b := tx.Bucket(bucketVotes)
	c := b.Cursor()
	var keys [][]byte
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// --- Seen transfers (replay defense, spec §3/§9) ---

func hasSeenTransfer(tx *bolt.Tx, id types.TransferRequestID) bool {
	return tx.Bucket(bucketSeenTransfers).Get(id[:]) != nil
}

func markSeenTransfer(tx *bolt.Tx, id types.TransferRequestID) error {
	return tx.Bucket(bucketSeenTransfers).Put(id[:], []byte{1})
}

// --- Deposit sequence counter ---

// nextDepositSequence hands out the next globally monotonic sequence
// number, shared across all accounts (spec §3 invariant 2).
func nextDepositSequence(tx *bolt.Tx) (types.DepositSequence, error) {
	b := tx.Bucket(bucketCounters)
	raw := b.Get(keyDepositSequence)
	var next uint64
	if raw != nil {
		next = decodeUint64(raw) + 1
	}
	if err := b.Put(keyDepositSequence, encodeUint64(next)); err != nil {
		return 0, err
	}
	return types.DepositSequence(next), nil
}

// --- History ---

func nextHistoryCounter(tx *bolt.Tx, id types.AccountID) (uint64, error) {
	b := tx.Bucket(bucketHistoryCounter)
	raw := b.Get([]byte(id))
	var next uint64
	if raw != nil {
		next = decodeUint64(raw) + 1
	}
	if err := b.Put([]byte(id), encodeUint64(next)); err != nil {
		return 0, err
	}
	return next, nil
}

func putHistoryItem(tx *bolt.Tx, id types.AccountID, item types.AccountHistoryItem) error {
	buf := new(bytes.Buffer)
	if err := item.MarshalSP(buf); err != nil {
		return err
	}
	return tx.Bucket(bucketHistory).Put(historyKey(id, item.Counter), buf.Bytes())
}

// historyRange returns up to limit history items for id starting at
// counter start, in counter-ascending order (the original's
// (starting_index, limit) cursor, spec SUPPLEMENT 4).
func historyRange(tx *bolt.Tx, id types.AccountID, start uint64, limit int) ([]types.AccountHistoryItem, error) {
	c := tx.Bucket(bucketHistory).Cursor()
	prefix := []byte(id)
	seekKey := historyKey(id, start)
	var items []types.AccountHistoryItem
	for k, v := c.Seek(seekKey); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if limit > 0 && len(items) >= limit {
			break
		}
		var item types.AccountHistoryItem
		if err := item.UnmarshalSP(bytes.NewReader(v)); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// --- Legacy cancellation-renewal (spec SUPPLEMENT 1) ---

// legacyCancelRenewal is the old intention record superseded by
// UnlockRequest; retained only for accounts that still carry one from
// before the newer path existed.
type legacyCancelRenewal struct {
	BasisPoints uint16
}

func (r legacyCancelRenewal) marshal() []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], r.BasisPoints)
	return b[:]
}

func unmarshalLegacyCancelRenewal(b []byte) legacyCancelRenewal {
	return legacyCancelRenewal{BasisPoints: binary.BigEndian.Uint16(b)}
}

func putLegacyCancelRenewal(tx *bolt.Tx, id types.AccountID, r legacyCancelRenewal) error {
	return tx.Bucket(bucketLegacyCancel).Put([]byte(id), r.marshal())
}

func getLegacyCancelRenewal(tx *bolt.Tx, id types.AccountID) (legacyCancelRenewal, bool) {
	raw := tx.Bucket(bucketLegacyCancel).Get([]byte(id))
	if raw == nil {
		return legacyCancelRenewal{}, false
	}
	return unmarshalLegacyCancelRenewal(raw), true
}

func deleteLegacyCancelRenewal(tx *bolt.Tx, id types.AccountID) error {
	return tx.Bucket(bucketLegacyCancel).Delete([]byte(id))
}

func forEachLegacyCancelRenewal(tx *bolt.Tx, fn func(types.AccountID, legacyCancelRenewal) error) error {
	return tx.Bucket(bucketLegacyCancel).ForEach(func(k, v []byte) error {
		return fn(types.AccountID(k), unmarshalLegacyCancelRenewal(v))
	})
}
