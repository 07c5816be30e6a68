package types

// HistoryKind enumerates the exhaustive per-account state transitions
// (spec §3, "AccountHistoryItem").
type HistoryKind uint8

const (
	HistoryDepositToStaged HistoryKind = iota
	HistoryStagedToLocked
	HistoryLockedToStaged
	HistoryStagedToIdle
	HistoryLockedToIdle
	HistoryStagedTransferIn
	HistoryStagedTransferOut
	HistoryLockedTransferIn
	HistoryLockedTransferOut
)

func (k HistoryKind) String() string {
	switch k {
	case HistoryDepositToStaged:
		return "deposit_to_staged"
	case HistoryStagedToLocked:
		return "staged_to_locked"
	case HistoryLockedToStaged:
		return "locked_to_staged"
	case HistoryStagedToIdle:
		return "staged_to_idle"
	case HistoryLockedToIdle:
		return "locked_to_idle"
	case HistoryStagedTransferIn:
		return "staged_transfer_in"
	case HistoryStagedTransferOut:
		return "staged_transfer_out"
	case HistoryLockedTransferIn:
		return "locked_transfer_in"
	case HistoryLockedTransferOut:
		return "locked_transfer_out"
	default:
		return "unknown"
	}
}

// CycleInfo is the minimal cycle context stamped onto a history item, so
// a client can display "as of cycle N, at price P" without a join back to
// PastCycle.
type CycleInfo struct {
	Index CycleIndex
	Price FiatAmount
}

// AccountHistoryItem is one append-only record in an account's history
// log (spec §3, §4.7). Counter is the item's position in that account's
// log, assigned sequentially starting at 0.
type AccountHistoryItem struct {
	Counter  uint64
	Cycle    CycleInfo
	TxID     TxID
	Sequence DepositSequence
	Amount   Msat
	Kind     HistoryKind
	// Counterparty is set for the four Transfer kinds: the other side's
	// AccountID.
	Counterparty AccountID
	// Meta carries opaque bytes supplied by the operation that produced
	// this item (spec §3: "opaque meta bytes" on transfer history items).
	Meta []byte
}
