package stabilitypool

import (
	"context"
	"fmt"

	bolt "github.com/rivine/bbolt"

	"github.com/threefoldtech/stabilitypool/crypto"
	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/types"
)

// ProcessOutput implements modules.StabilityPoolServer (spec §4.6:
// DepositToSeek / DepositToProvide / Transfer / RegisterLegacyCancel). The
// whole call runs inside one database transaction, matching the teacher's
// ConsensusSetPlugin.ApplyTransaction contract of per-transaction
// bucket-scoped atomicity.
func (e *Engine) ProcessOutput(ctx context.Context, account types.Account, output modules.Output) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidAccountTypeForOperation, err)
	}
	id, err := account.AccountID()
	if err != nil {
		return err
	}

	return e.update(func(tx *bolt.Tx) error {
		if err := ensureAccountRecorded(tx, id, account); err != nil {
			return err
		}
		switch output.Kind {
		case modules.OutputKindDepositToSeek:
			return e.depositToSeek(tx, id, account.AccType, *output.Seek)
		case modules.OutputKindDepositToProvide:
			return e.depositToProvide(tx, id, account.AccType, *output.Provide)
		case modules.OutputKindTransfer:
			return e.processTransfer(tx, *output.Transfer)
		case modules.OutputKindRegisterLegacyCancel:
			return e.registerLegacyCancel(tx, id, account.AccType, *output.RegisterLegacyCancel)
		default:
			return types.ErrUnknownOutputVariant
		}
	})
}

// ensureAccountRecorded persists account the first time its AccountID is
// referenced, so later operations that carry only an AccountID (a
// Transfer's `to`, a history lookup) can resolve the full Account.
func ensureAccountRecorded(tx *bolt.Tx, id types.AccountID, account types.Account) error {
	_, ok, err := getAccount(tx, id)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return putAccount(tx, id, account)
}

func canHoldSeek(t types.AccountType) bool {
	return t == types.AccountSeeker || t == types.AccountBtcDepositor
}

func canHoldProvide(t types.AccountType) bool {
	return t == types.AccountProvider
}

func (e *Engine) depositToSeek(tx *bolt.Tx, id types.AccountID, accType types.AccountType, req modules.SeekRequest) error {
	if !canHoldSeek(accType) {
		return types.ErrCannotSeek
	}
	current, hasCycle, err := getCurrentCycle(tx)
	if err != nil {
		return err
	}
	if !hasCycle && accType != types.AccountBtcDepositor {
		// A BtcDepositor never needs a cycle (it never locks); seekers do
		// need one to eventually price their position.
		return types.ErrNoCycle
	}
	if _, hasRequest, err := getUnlockRequest(tx, id); err != nil {
		return err
	} else if hasRequest {
		return types.ErrPreviousIntentionNotFullyProcessed
	}
	if req.Amount < e.cfg.MinAllowedSeek {
		return types.ErrAmountTooLow
	}

	seq, err := nextDepositSequence(tx)
	if err != nil {
		return err
	}
	staged, err := getStagedSeeks(tx, id)
	if err != nil {
		return err
	}
	staged = append(staged, types.Seek{Sequence: seq, Amount: req.Amount, Meta: types.SeekMeta{}})
	if err := putStagedSeeks(tx, id, staged); err != nil {
		return err
	}

	cycleInfo := types.CycleInfo{}
	if hasCycle {
		cycleInfo = types.CycleInfo{Index: current.Index, Price: current.StartPrice}
	}
	return e.appendHistory(tx, id, cycleInfo, types.TxID{}, seq, req.Amount, types.HistoryDepositToStaged, "", nil)
}

func (e *Engine) depositToProvide(tx *bolt.Tx, id types.AccountID, accType types.AccountType, req modules.ProvideRequest) error {
	if !canHoldProvide(accType) {
		return types.ErrCannotProvide
	}
	current, hasCycle, err := getCurrentCycle(tx)
	if err != nil {
		return err
	}
	if !hasCycle {
		return types.ErrNoCycle
	}
	if _, hasRequest, err := getUnlockRequest(tx, id); err != nil {
		return err
	} else if hasRequest {
		return types.ErrPreviousIntentionNotFullyProcessed
	}
	if req.Amount < e.cfg.MinAllowedProvide {
		return types.ErrAmountTooLow
	}
	if req.MinFeeRate > e.cfg.MaxAllowedProvideFeeRatePPB {
		return types.ErrFeeRateTooHigh
	}

	seq, err := nextDepositSequence(tx)
	if err != nil {
		return err
	}
	staged, err := getStagedProvides(tx, id)
	if err != nil {
		return err
	}
	staged = append(staged, types.Provide{Sequence: seq, Amount: req.Amount, Meta: req.MinFeeRate})
	if err := putStagedProvides(tx, id, staged); err != nil {
		return err
	}

	return e.appendHistory(tx, id, types.CycleInfo{Index: current.Index, Price: current.StartPrice}, types.TxID{}, seq, req.Amount, types.HistoryDepositToStaged, "", nil)
}

// processTransfer implements the Transfer output (spec §4.6).
func (e *Engine) processTransfer(tx *bolt.Tx, signed types.SignedTransferRequest) error {
	req := signed.Request
	current, hasCycle, err := getCurrentCycle(tx)
	if err != nil {
		return err
	}
	if !hasCycle {
		return types.ErrNoCycle
	}

	fromType, err := types.AccountTypeOf(req.From)
	if err != nil {
		return types.InvalidTransferRequestError{Reason: "malformed from account id"}
	}
	toType, err := types.AccountTypeOf(req.To)
	if err != nil {
		return types.InvalidTransferRequestError{Reason: "malformed to account id"}
	}
	if fromType != toType {
		return types.InvalidTransferRequestError{Reason: "from/to account type mismatch"}
	}
	if req.ValidUntilCycle < current.Index {
		return types.InvalidTransferRequestError{Reason: "expired valid_until_cycle"}
	}

	reqID := req.ID()
	if hasSeenTransfer(tx, reqID) {
		return types.InvalidTransferRequestError{Reason: "transfer request already processed"}
	}

	fromAccount, ok, err := getAccount(tx, req.From)
	if err != nil {
		return err
	}
	if !ok {
		return types.InvalidTransferRequestError{Reason: "unknown from account"}
	}
	if err := verifyThresholdSignatures(fromAccount, signed); err != nil {
		return types.InvalidTransferRequestError{Reason: err.Error()}
	}

	if fromType == types.AccountProvider {
		if req.NewFeeRate == nil || *req.NewFeeRate > e.cfg.MaxAllowedProvideFeeRatePPB {
			return types.InvalidTransferRequestError{Reason: "missing or out-of-bounds new_fee_rate"}
		}
	}

	if err := markSeenTransfer(tx, reqID); err != nil {
		return err
	}

	switch fromType {
	case types.AccountSeeker, types.AccountBtcDepositor:
		return e.transferSeeks(tx, req, current)
	case types.AccountProvider:
		return e.transferProvides(tx, req, current, *req.NewFeeRate)
	default:
		return types.InvalidTransferRequestError{Reason: "unsupported account type for transfer"}
	}
}

func (e *Engine) transferSeeks(tx *bolt.Tx, req types.TransferRequest, current types.Cycle) error {
	staged, err := getStagedSeeks(tx, req.From)
	if err != nil {
		return err
	}
	locked := current.LockedSeeks[req.From]
	totalAvailable := sumSeeks(staged) + sumSeeks(locked)
	target, err := transferTarget(req.Amount, totalAvailable, current.StartPrice)
	if err != nil {
		return err
	}

	stagedRes := drainNewestFirst(staged, target)
	remainingTarget := target - stagedRes.Drained
	lockedRes := drainNewestFirst(locked, remainingTarget)

	if err := putStagedSeeks(tx, req.From, stagedRes.Remaining); err != nil {
		return err
	}
	if current.LockedSeeks == nil {
		current.LockedSeeks = map[types.AccountID][]types.Seek{}
	}
	setOrDeleteSeeks(current.LockedSeeks, req.From, lockedRes.Remaining)

	seq, err := nextDepositSequence(tx)
	if err != nil {
		return err
	}
	cycleInfo := types.CycleInfo{Index: current.Index, Price: current.StartPrice}

	if stagedRes.Drained > 0 {
		toStaged, err := getStagedSeeks(tx, req.To)
		if err != nil {
			return err
		}
		toStaged = append(toStaged, types.Seek{Sequence: seq, Amount: stagedRes.Drained, Meta: types.SeekMeta{}})
		if err := putStagedSeeks(tx, req.To, toStaged); err != nil {
			return err
		}
		if err := e.appendHistory(tx, req.From, cycleInfo, types.TxID{}, seq, stagedRes.Drained, types.HistoryStagedTransferOut, req.To, req.Meta); err != nil {
			return err
		}
		if err := e.appendHistory(tx, req.To, cycleInfo, types.TxID{}, seq, stagedRes.Drained, types.HistoryStagedTransferIn, req.From, req.Meta); err != nil {
			return err
		}
	}
	if lockedRes.Drained > 0 {
		toLocked := append(current.LockedSeeks[req.To], types.Seek{Sequence: seq, Amount: lockedRes.Drained, Meta: types.SeekMeta{}})
		setOrDeleteSeeks(current.LockedSeeks, req.To, toLocked)
		if err := e.appendHistory(tx, req.From, cycleInfo, types.TxID{}, seq, lockedRes.Drained, types.HistoryLockedTransferOut, req.To, req.Meta); err != nil {
			return err
		}
		if err := e.appendHistory(tx, req.To, cycleInfo, types.TxID{}, seq, lockedRes.Drained, types.HistoryLockedTransferIn, req.From, req.Meta); err != nil {
			return err
		}
	}
	return putCurrentCycle(tx, current)
}

func (e *Engine) transferProvides(tx *bolt.Tx, req types.TransferRequest, current types.Cycle, newFeeRate types.FeeRatePPB) error {
	staged, err := getStagedProvides(tx, req.From)
	if err != nil {
		return err
	}
	locked := current.LockedProvides[req.From]
	totalAvailable := sumProvides(staged) + sumProvides(locked)
	target, err := transferTarget(req.Amount, totalAvailable, current.StartPrice)
	if err != nil {
		return err
	}

	stagedRes := drainNewestFirst(staged, target)
	remainingTarget := target - stagedRes.Drained
	lockedRes := drainNewestFirst(locked, remainingTarget)

	if err := putStagedProvides(tx, req.From, stagedRes.Remaining); err != nil {
		return err
	}
	if current.LockedProvides == nil {
		current.LockedProvides = map[types.AccountID][]types.Provide{}
	}
	setOrDeleteProvides(current.LockedProvides, req.From, lockedRes.Remaining)

	seq, err := nextDepositSequence(tx)
	if err != nil {
		return err
	}
	cycleInfo := types.CycleInfo{Index: current.Index, Price: current.StartPrice}

	if stagedRes.Drained > 0 {
		toStaged, err := getStagedProvides(tx, req.To)
		if err != nil {
			return err
		}
		toStaged = append(toStaged, types.Provide{Sequence: seq, Amount: stagedRes.Drained, Meta: newFeeRate})
		if err := putStagedProvides(tx, req.To, toStaged); err != nil {
			return err
		}
		if err := e.appendHistory(tx, req.From, cycleInfo, types.TxID{}, seq, stagedRes.Drained, types.HistoryStagedTransferOut, req.To, req.Meta); err != nil {
			return err
		}
		if err := e.appendHistory(tx, req.To, cycleInfo, types.TxID{}, seq, stagedRes.Drained, types.HistoryStagedTransferIn, req.From, req.Meta); err != nil {
			return err
		}
	}
	if lockedRes.Drained > 0 {
		toLocked := append(current.LockedProvides[req.To], types.Provide{Sequence: seq, Amount: lockedRes.Drained, Meta: newFeeRate})
		setOrDeleteProvides(current.LockedProvides, req.To, toLocked)
		if err := e.appendHistory(tx, req.From, cycleInfo, types.TxID{}, seq, lockedRes.Drained, types.HistoryLockedTransferOut, req.To, req.Meta); err != nil {
			return err
		}
		if err := e.appendHistory(tx, req.To, cycleInfo, types.TxID{}, seq, lockedRes.Drained, types.HistoryLockedTransferIn, req.From, req.Meta); err != nil {
			return err
		}
	}
	return putCurrentCycle(tx, current)
}

func setOrDeleteSeeks(m map[types.AccountID][]types.Seek, id types.AccountID, seeks []types.Seek) {
	if len(seeks) == 0 {
		delete(m, id)
		return
	}
	m[id] = seeks
}

func setOrDeleteProvides(m map[types.AccountID][]types.Provide, id types.AccountID, provides []types.Provide) {
	if len(provides) == 0 {
		delete(m, id)
		return
	}
	m[id] = provides
}

// transferTarget converts a TransferAmount to msat at price and checks
// it is covered by totalAvailable (spec §4.6 validation 6).
func transferTarget(amount types.TransferAmount, totalAvailable types.Msat, price types.FiatAmount) (types.Msat, error) {
	if amount.All {
		return totalAvailable, nil
	}
	target := types.MsatFromFiat(amount.Fiat, price)
	if target > totalAvailable {
		return 0, types.InvalidTransferRequestError{Reason: "amount exceeds staged+locked balance"}
	}
	return target, nil
}

// verifyThresholdSignatures checks that signed carries at least
// from.Threshold valid signatures from distinct keys in from.PubKeys
// (spec §4.6 validation 4). Account keys are reused as Schnorr public
// keys for transfer verification (same 32-byte encoding, spec §6).
func verifyThresholdSignatures(from types.Account, signed types.SignedTransferRequest) error {
	if len(signed.Signatures) < from.Threshold {
		return fmt.Errorf("insufficient signatures: have %d need %d", len(signed.Signatures), from.Threshold)
	}
	msg := crypto.HashBytes(signed.Request.CanonicalEncoding())
	seen := make(map[int]bool, len(signed.Signatures))
	valid := 0
	for _, ks := range signed.Signatures {
		if ks.KeyIndex < 0 || ks.KeyIndex >= len(from.PubKeys) {
			continue
		}
		if seen[ks.KeyIndex] {
			continue
		}
		var schnorrPub crypto.SchnorrPublicKey
		copy(schnorrPub[:], from.PubKeys[ks.KeyIndex][:])
		if err := crypto.VerifySchnorr(msg, schnorrPub, ks.Signature); err != nil {
			continue
		}
		seen[ks.KeyIndex] = true
		valid++
	}
	if valid < from.Threshold {
		return fmt.Errorf("only %d of %d required signatures verified", valid, from.Threshold)
	}
	return nil
}

// ProcessInput implements modules.StabilityPoolServer (spec §4.6:
// UnlockForWithdrawal / Withdrawal).
func (e *Engine) ProcessInput(ctx context.Context, account types.Account, input modules.Input) (modules.TransactionItemAmount, modules.InputAttribution, error) {
	id, err := account.AccountID()
	if err != nil {
		return modules.TransactionItemAmount{}, modules.InputAttribution{}, err
	}
	if len(account.PubKeys) != 1 {
		return modules.TransactionItemAmount{}, modules.InputAttribution{}, types.ErrMultiSigNotAllowed
	}
	attribution := modules.InputAttribution{PubKey: account.PubKeys[0]}

	var amount modules.TransactionItemAmount
	err = e.update(func(tx *bolt.Tx) error {
		if err := ensureAccountRecorded(tx, id, account); err != nil {
			return err
		}
		switch input.Kind {
		case modules.InputKindUnlockForWithdrawal:
			return e.unlockForWithdrawal(tx, id, *input.UnlockForWithdrawal)
		case modules.InputKindWithdrawal:
			var werr error
			amount, werr = e.withdraw(tx, id, *input.Withdrawal)
			return werr
		default:
			return types.ErrUnknownInputVariant
		}
	})
	if err != nil {
		return modules.TransactionItemAmount{}, modules.InputAttribution{}, err
	}
	return amount, attribution, nil
}

func (e *Engine) unlockForWithdrawal(tx *bolt.Tx, id types.AccountID, req modules.UnlockForWithdrawalRequest) error {
	if _, exists, err := getUnlockRequest(tx, id); err != nil {
		return err
	} else if exists {
		return types.ErrDuplicateUnlockRequest
	}

	current, hasCycle, err := getCurrentCycle(tx)
	if err != nil {
		return err
	}
	if !hasCycle {
		return types.ErrTemporaryError
	}

	staged, err := getStagedSeeks(tx, id)
	if err != nil {
		return err
	}
	stagedTotal := sumSeeks(staged)
	lockedTotal := sumSeeks(current.LockedSeeks[id])
	totalAvailable := stagedTotal + lockedTotal

	var target types.Msat
	if req.Amount.All {
		if totalAvailable == 0 {
			return types.ErrInsufficientBalance
		}
		target = totalAvailable
	} else {
		target = types.MsatFromFiat(req.Amount.Fiat, current.StartPrice)
		if target == 0 {
			return types.ErrInvalidWithdrawalAmount
		}
		if target > totalAvailable {
			target = totalAvailable
		}
	}

	res := drainNewestFirst(staged, target)
	if err := putStagedSeeks(tx, id, res.Remaining); err != nil {
		return err
	}
	cycleInfo := types.CycleInfo{Index: current.Index, Price: current.StartPrice}
	if res.Drained > 0 {
		if err := addIdleBalance(tx, id, res.Drained); err != nil {
			return err
		}
		for _, d := range res.Touched {
			if err := e.appendHistory(tx, id, cycleInfo, d.TxID, d.Sequence, d.Amount, types.HistoryStagedToIdle, "", nil); err != nil {
				return err
			}
		}
	}

	residual := target - res.Drained
	if residual == 0 {
		return nil
	}
	residualFiat := types.FiatFromMsat(residual, current.StartPrice)
	return putUnlockRequest(tx, id, types.UnlockRequest{Fiat: residualFiat, All: req.Amount.All && residual == lockedTotal})
}

func (e *Engine) withdraw(tx *bolt.Tx, id types.AccountID, req modules.WithdrawalRequest) (modules.TransactionItemAmount, error) {
	if req.Amount == 0 {
		return modules.TransactionItemAmount{}, types.ErrInvalidWithdrawalAmount
	}
	idle := getIdleBalance(tx, id)
	if req.Amount > idle {
		return modules.TransactionItemAmount{}, types.ErrInsufficientBalance
	}
	if err := putIdleBalance(tx, id, idle-req.Amount); err != nil {
		return modules.TransactionItemAmount{}, err
	}
	return modules.TransactionItemAmount{Amount: req.Amount, Fee: 0}, nil
}
