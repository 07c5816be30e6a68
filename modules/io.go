package modules

import "github.com/threefoldtech/stabilitypool/types"

// io.go defines the downward-facing module Output/Input variants of
// spec §6. They are sealed by the OutputKind/InputKind tag; the engine's
// wire codec frames each behind spbin's Unknown-fallback envelope
// (spec §7, §9) so a future variant never corrupts an older guardian's
// stream, only its ability to apply it.

const (
	OutputKindDepositToSeek uint8 = iota
	OutputKindDepositToProvide
	OutputKindTransfer
	OutputKindRegisterLegacyCancel
)

// SeekRequest is the body of a DepositToSeek output.
type SeekRequest struct {
	Amount types.Msat
}

// ProvideRequest is the body of a DepositToProvide output.
type ProvideRequest struct {
	Amount     types.Msat
	MinFeeRate types.FeeRatePPB
}

// RegisterLegacyCancelRequest is the body of a RegisterLegacyCancel output
// (spec SUPPLEMENT 1): a guardian-initiated migration marking an account as
// still carrying a pre-UnlockRequest legacy cancellation intention, so the
// next turnover's legacy-cancellation pass picks it up.
type RegisterLegacyCancelRequest struct {
	BasisPoints uint16
}

// Output is the sealed union of module outputs (spec §6). Exactly one of
// Seek/Provide/Transfer/RegisterLegacyCancel is meaningful, selected by
// Kind.
type Output struct {
	Kind                 uint8
	Seek                 *SeekRequest
	Provide              *ProvideRequest
	Transfer             *types.SignedTransferRequest
	RegisterLegacyCancel *RegisterLegacyCancelRequest
}

// NewDepositToSeek builds a DepositToSeek output.
func NewDepositToSeek(amount types.Msat) Output {
	return Output{Kind: OutputKindDepositToSeek, Seek: &SeekRequest{Amount: amount}}
}

// NewDepositToProvide builds a DepositToProvide output.
func NewDepositToProvide(amount types.Msat, minFeeRate types.FeeRatePPB) Output {
	return Output{Kind: OutputKindDepositToProvide, Provide: &ProvideRequest{Amount: amount, MinFeeRate: minFeeRate}}
}

// NewTransfer builds a Transfer output.
func NewTransfer(req types.SignedTransferRequest) Output {
	return Output{Kind: OutputKindTransfer, Transfer: &req}
}

// NewRegisterLegacyCancel builds a RegisterLegacyCancel output.
func NewRegisterLegacyCancel(basisPoints uint16) Output {
	return Output{Kind: OutputKindRegisterLegacyCancel, RegisterLegacyCancel: &RegisterLegacyCancelRequest{BasisPoints: basisPoints}}
}

// InputKind tags which concrete input a wire payload holds.
const (
	InputKindUnlockForWithdrawal uint8 = iota
	InputKindWithdrawal
)

// Input is the sealed union of module inputs (spec §6).
type Input struct {
	Kind               uint8
	UnlockForWithdrawal *UnlockForWithdrawalRequest
	Withdrawal         *WithdrawalRequest
}

// UnlockForWithdrawalRequest is the body of an UnlockForWithdrawal input.
type UnlockForWithdrawalRequest struct {
	Amount types.TransferAmount
}

// WithdrawalRequest is the body of a Withdrawal input.
type WithdrawalRequest struct {
	Amount types.Msat
}

// NewUnlockForWithdrawal builds an UnlockForWithdrawal input.
func NewUnlockForWithdrawal(amount types.TransferAmount) Input {
	return Input{Kind: InputKindUnlockForWithdrawal, UnlockForWithdrawal: &UnlockForWithdrawalRequest{Amount: amount}}
}

// NewWithdrawal builds a Withdrawal input.
func NewWithdrawal(amount types.Msat) Input {
	return Input{Kind: InputKindWithdrawal, Withdrawal: &WithdrawalRequest{Amount: amount}}
}
