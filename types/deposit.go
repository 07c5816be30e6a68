package types

// deposit.go models spec §3's Deposit<M>: a sealed tagged union
// parameterized by its meta type, monomorphized as Seek (meta = unit) and
// Provide (meta = FeeRatePPB). Go generics express this directly, so
// unlike the teacher's pre-generics Go the two cases need no runtime type
// switch (spec §9, "avoid runtime type inspection").

// DepositSequence is the module-global, monotonically assigned priority
// number of a deposit (spec §3). Lower is older and takes priority during
// locking.
type DepositSequence uint64

// TxID identifies the external transaction that created a deposit.
type TxID [32]byte

// Deposit is a single staged or locked position of amount msat, created
// by transaction TxID, ordered by the global Sequence, carrying
// type-specific Meta (struct{} for a Seek, FeeRatePPB for a Provide).
type Deposit[M any] struct {
	TxID     TxID
	Sequence DepositSequence
	Amount   Msat
	Meta     M
}

// SeekMeta is the (empty) meta type of a Seek deposit.
type SeekMeta struct{}

// Seek is a seeker-side deposit; spec's `Deposit<()>`.
type Seek = Deposit[SeekMeta]

// Provide is a provider-side deposit; spec's `Deposit<FeeRate>`. Its
// Meta field is the provider's minimum acceptable compensation per
// locked msat (read via d.Meta rather than a method, since Go forbids
// attaching methods to an instantiated/aliased generic type).
type Provide = Deposit[FeeRatePPB]
