package types

import (
	"io"
	"time"

	"github.com/threefoldtech/stabilitypool/crypto"
	"github.com/threefoldtech/stabilitypool/pkg/encoding/spbin"
)

// encoding.go implements the explicit MarshalSP/UnmarshalSP pair for every
// type the store persists, following the teacher's per-type
// MarshalSia/UnmarshalSia convention (types/unlockhash.go) rather than
// reflection: each type knows exactly how to write and read itself.

// MarshalSP implements spbin.Marshaler for Account.
func (a Account) MarshalSP(w io.Writer) error {
	if err := spbin.MarshalUint8(w, uint8(a.AccType)); err != nil {
		return err
	}
	if err := spbin.MarshalUint8(w, uint8(a.Threshold)); err != nil {
		return err
	}
	keys := a.canonicalPubKeys()
	if err := spbin.MarshalUint8(w, uint8(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := w.Write(k[:]); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalSP implements spbin.Unmarshaler for Account.
func (a *Account) UnmarshalSP(r io.Reader) error {
	accType, err := spbin.UnmarshalUint8(r)
	if err != nil {
		return err
	}
	threshold, err := spbin.UnmarshalUint8(r)
	if err != nil {
		return err
	}
	n, err := spbin.UnmarshalUint8(r)
	if err != nil {
		return err
	}
	keys := make([]crypto.PublicKey, n)
	for i := range keys {
		if _, err := io.ReadFull(r, keys[i][:]); err != nil {
			return err
		}
	}
	a.AccType = AccountType(accType)
	a.Threshold = int(threshold)
	a.PubKeys = keys
	return nil
}

// MarshalSP implements spbin.Marshaler for TxID.
func (t TxID) MarshalSP(w io.Writer) error {
	_, err := w.Write(t[:])
	return err
}

// UnmarshalSP implements spbin.Unmarshaler for TxID.
func (t *TxID) UnmarshalSP(r io.Reader) error {
	_, err := io.ReadFull(r, t[:])
	return err
}

func marshalSeekMeta(io.Writer, SeekMeta) error { return nil }

func unmarshalSeekMeta(io.Reader) (SeekMeta, error) { return SeekMeta{}, nil }

func marshalFeeRateMeta(w io.Writer, m FeeRatePPB) error {
	return spbin.MarshalUint64(w, uint64(m))
}

func unmarshalFeeRateMeta(r io.Reader) (FeeRatePPB, error) {
	x, err := spbin.UnmarshalUint64(r)
	return FeeRatePPB(x), err
}

// MarshalSeek encodes a Seek deposit.
func MarshalSeek(w io.Writer, d Seek) error {
	return marshalDeposit(w, d, marshalSeekMeta)
}

// UnmarshalSeek decodes a Seek deposit.
func UnmarshalSeek(r io.Reader) (Seek, error) {
	return unmarshalDeposit(r, unmarshalSeekMeta)
}

// MarshalProvide encodes a Provide deposit.
func MarshalProvide(w io.Writer, d Provide) error {
	return marshalDeposit(w, d, marshalFeeRateMeta)
}

// UnmarshalProvide decodes a Provide deposit.
func UnmarshalProvide(r io.Reader) (Provide, error) {
	return unmarshalDeposit(r, unmarshalFeeRateMeta)
}

func marshalDeposit[M any](w io.Writer, d Deposit[M], marshalMeta func(io.Writer, M) error) error {
	if err := d.TxID.MarshalSP(w); err != nil {
		return err
	}
	if err := spbin.MarshalUint64(w, uint64(d.Sequence)); err != nil {
		return err
	}
	if err := spbin.MarshalUint64(w, uint64(d.Amount)); err != nil {
		return err
	}
	return marshalMeta(w, d.Meta)
}

func unmarshalDeposit[M any](r io.Reader, unmarshalMeta func(io.Reader) (M, error)) (Deposit[M], error) {
	var d Deposit[M]
	if err := d.TxID.UnmarshalSP(r); err != nil {
		return d, err
	}
	seq, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return d, err
	}
	amount, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return d, err
	}
	meta, err := unmarshalMeta(r)
	if err != nil {
		return d, err
	}
	d.Sequence = DepositSequence(seq)
	d.Amount = Msat(amount)
	d.Meta = meta
	return d, nil
}

// MarshalSP implements spbin.Marshaler for UnlockRequest.
func (u UnlockRequest) MarshalSP(w io.Writer) error {
	if err := spbin.MarshalBool(w, u.All); err != nil {
		return err
	}
	return spbin.MarshalUint64(w, uint64(u.Fiat))
}

// UnmarshalSP implements spbin.Unmarshaler for UnlockRequest.
func (u *UnlockRequest) UnmarshalSP(r io.Reader) error {
	all, err := spbin.UnmarshalBool(r)
	if err != nil {
		return err
	}
	fiat, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return err
	}
	u.All = all
	u.Fiat = FiatAmount(fiat)
	return nil
}

// MarshalSP implements spbin.Marshaler for ConsensusItem.
func (ci ConsensusItem) MarshalSP(w io.Writer) error {
	if err := spbin.MarshalUint64(w, uint64(ci.NextCycleIndex)); err != nil {
		return err
	}
	if err := spbin.MarshalInt64(w, ci.Time.UnixNano()); err != nil {
		return err
	}
	return spbin.MarshalUint64(w, uint64(ci.Price))
}

// UnmarshalSP implements spbin.Unmarshaler for ConsensusItem.
func (ci *ConsensusItem) UnmarshalSP(r io.Reader) error {
	idx, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return err
	}
	nanos, err := spbin.UnmarshalInt64(r)
	if err != nil {
		return err
	}
	price, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return err
	}
	ci.NextCycleIndex = CycleIndex(idx)
	ci.Time = time.Unix(0, nanos).UTC()
	ci.Price = FiatAmount(price)
	return nil
}

// MarshalSeeks encodes a length-prefixed slice of Seek deposits.
func MarshalSeeks(w io.Writer, seeks []Seek) error {
	if err := spbin.MarshalUint32(w, uint32(len(seeks))); err != nil {
		return err
	}
	for _, s := range seeks {
		if err := MarshalSeek(w, s); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalSeeks decodes a length-prefixed slice of Seek deposits.
func UnmarshalSeeks(r io.Reader) ([]Seek, error) {
	n, err := spbin.UnmarshalUint32(r)
	if err != nil {
		return nil, err
	}
	seeks := make([]Seek, n)
	for i := range seeks {
		s, err := UnmarshalSeek(r)
		if err != nil {
			return nil, err
		}
		seeks[i] = s
	}
	return seeks, nil
}

// MarshalProvides encodes a length-prefixed slice of Provide deposits.
func MarshalProvides(w io.Writer, provides []Provide) error {
	if err := spbin.MarshalUint32(w, uint32(len(provides))); err != nil {
		return err
	}
	for _, p := range provides {
		if err := MarshalProvide(w, p); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalProvides decodes a length-prefixed slice of Provide deposits.
func UnmarshalProvides(r io.Reader) ([]Provide, error) {
	n, err := spbin.UnmarshalUint32(r)
	if err != nil {
		return nil, err
	}
	provides := make([]Provide, n)
	for i := range provides {
		p, err := UnmarshalProvide(r)
		if err != nil {
			return nil, err
		}
		provides[i] = p
	}
	return provides, nil
}

// MarshalSP implements spbin.Marshaler for Cycle. Lock maps are written in
// AccountID-sorted order so the encoding is deterministic (spec §5).
func (c Cycle) MarshalSP(w io.Writer) error {
	if err := spbin.MarshalUint64(w, uint64(c.Index)); err != nil {
		return err
	}
	if err := spbin.MarshalInt64(w, c.StartTime.UnixNano()); err != nil {
		return err
	}
	if err := spbin.MarshalUint64(w, uint64(c.StartPrice)); err != nil {
		return err
	}
	if err := spbin.MarshalUint64(w, uint64(c.FeeRate)); err != nil {
		return err
	}
	seekIDs := sortedAccountIDs(c.LockedSeeks)
	if err := spbin.MarshalUint32(w, uint32(len(seekIDs))); err != nil {
		return err
	}
	for _, id := range seekIDs {
		if err := spbin.WriteString(w, string(id)); err != nil {
			return err
		}
		if err := MarshalSeeks(w, c.LockedSeeks[id]); err != nil {
			return err
		}
	}
	provideIDs := sortedAccountIDs(c.LockedProvides)
	if err := spbin.MarshalUint32(w, uint32(len(provideIDs))); err != nil {
		return err
	}
	for _, id := range provideIDs {
		if err := spbin.WriteString(w, string(id)); err != nil {
			return err
		}
		if err := MarshalProvides(w, c.LockedProvides[id]); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalSP implements spbin.Unmarshaler for Cycle.
func (c *Cycle) UnmarshalSP(r io.Reader) error {
	idx, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return err
	}
	nanos, err := spbin.UnmarshalInt64(r)
	if err != nil {
		return err
	}
	price, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return err
	}
	feeRate, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return err
	}
	nSeekAccounts, err := spbin.UnmarshalUint32(r)
	if err != nil {
		return err
	}
	lockedSeeks := make(map[AccountID][]Seek, nSeekAccounts)
	for i := uint32(0); i < nSeekAccounts; i++ {
		id, err := spbin.ReadString(r)
		if err != nil {
			return err
		}
		seeks, err := UnmarshalSeeks(r)
		if err != nil {
			return err
		}
		lockedSeeks[AccountID(id)] = seeks
	}
	nProvideAccounts, err := spbin.UnmarshalUint32(r)
	if err != nil {
		return err
	}
	lockedProvides := make(map[AccountID][]Provide, nProvideAccounts)
	for i := uint32(0); i < nProvideAccounts; i++ {
		id, err := spbin.ReadString(r)
		if err != nil {
			return err
		}
		provides, err := UnmarshalProvides(r)
		if err != nil {
			return err
		}
		lockedProvides[AccountID(id)] = provides
	}
	c.Index = CycleIndex(idx)
	c.StartTime = time.Unix(0, nanos).UTC()
	c.StartPrice = FiatAmount(price)
	c.FeeRate = FeeRatePPB(feeRate)
	c.LockedSeeks = lockedSeeks
	c.LockedProvides = lockedProvides
	return nil
}

// sortedAccountIDs is the spec §5 determinism helper for any map keyed by
// AccountID: every persisted or hashed encoding iterates accounts in
// lexical AccountID order, never map order.
func sortedAccountIDs[V any](m map[AccountID]V) []AccountID {
	ids := make([]AccountID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sortAccountIDs(ids)
	return ids
}

// MarshalSP implements spbin.Marshaler for TransferRequestID.
func (id TransferRequestID) MarshalSP(w io.Writer) error {
	_, err := w.Write(id[:])
	return err
}

// UnmarshalSP implements spbin.Unmarshaler for TransferRequestID.
func (id *TransferRequestID) UnmarshalSP(r io.Reader) error {
	_, err := io.ReadFull(r, id[:])
	return err
}

// MarshalSP implements spbin.Marshaler for AccountHistoryItem.
func (h AccountHistoryItem) MarshalSP(w io.Writer) error {
	if err := spbin.MarshalUint64(w, h.Counter); err != nil {
		return err
	}
	if err := spbin.MarshalUint64(w, uint64(h.Cycle.Index)); err != nil {
		return err
	}
	if err := spbin.MarshalUint64(w, uint64(h.Cycle.Price)); err != nil {
		return err
	}
	if err := h.TxID.MarshalSP(w); err != nil {
		return err
	}
	if err := spbin.MarshalUint64(w, uint64(h.Sequence)); err != nil {
		return err
	}
	if err := spbin.MarshalUint64(w, uint64(h.Amount)); err != nil {
		return err
	}
	if err := spbin.MarshalUint8(w, uint8(h.Kind)); err != nil {
		return err
	}
	if err := spbin.WriteString(w, string(h.Counterparty)); err != nil {
		return err
	}
	return spbin.WriteBytes(w, h.Meta)
}

// UnmarshalSP implements spbin.Unmarshaler for AccountHistoryItem.
func (h *AccountHistoryItem) UnmarshalSP(r io.Reader) error {
	counter, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return err
	}
	cycleIdx, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return err
	}
	cyclePrice, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return err
	}
	var txid TxID
	if err := txid.UnmarshalSP(r); err != nil {
		return err
	}
	seq, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return err
	}
	amount, err := spbin.UnmarshalUint64(r)
	if err != nil {
		return err
	}
	kind, err := spbin.UnmarshalUint8(r)
	if err != nil {
		return err
	}
	counterparty, err := spbin.ReadString(r)
	if err != nil {
		return err
	}
	meta, err := spbin.ReadBytes(r)
	if err != nil {
		return err
	}
	h.Counter = counter
	h.Cycle = CycleInfo{Index: CycleIndex(cycleIdx), Price: FiatAmount(cyclePrice)}
	h.TxID = txid
	h.Sequence = DepositSequence(seq)
	h.Amount = Msat(amount)
	h.Kind = HistoryKind(kind)
	h.Counterparty = AccountID(counterparty)
	h.Meta = meta
	return nil
}
