package stabilitypool

import (
	"math/big"

	bolt "github.com/rivine/bbolt"

	"github.com/threefoldtech/stabilitypool/types"
)

// computeNewLocksAndFee implements Phase E of spec §4.5: consume
// providers ascending by (min_fee_rate, sequence) until their collateral
// covers every staged seek at the resulting fee rate, then consume seeks
// in sequence order up to the admissible principal, deducting fees and
// distributing the fee pool back to the consumed providers.
func (e *Engine) computeNewLocksAndFee(tx *bolt.Tx, randomness uint64) (map[types.AccountID][]types.Seek, map[types.AccountID][]types.Provide, types.FeeRatePPB, error) {
	var allSeeks []seekItem
	if err := forEachStagedSeeks(tx, func(acc types.AccountID, seeks []types.Seek) error {
		// BtcDepositor accounts stage seeks but are never admitted into a
		// lock (spec §3 invariant 4: "a BtcDepositor only staged seeks
		// plus idle, never locked") — they sit out of cycle turnover
		// entirely, used as a custody holding area outside the peg.
		account, ok, err := getAccount(tx, acc)
		if err != nil {
			return err
		}
		if ok && account.AccType == types.AccountBtcDepositor {
			return nil
		}
		for _, s := range seeks {
			allSeeks = append(allSeeks, seekItem{Account: acc, Deposit: s})
		}
		return nil
	}); err != nil {
		return nil, nil, 0, err
	}
	var allProvides []provideItem
	if err := forEachStagedProvides(tx, func(acc types.AccountID, provides []types.Provide) error {
		for _, p := range provides {
			allProvides = append(allProvides, provideItem{Account: acc, Deposit: p})
		}
		return nil
	}); err != nil {
		return nil, nil, 0, err
	}

	sortSeekItemsBySequence(allSeeks)
	sortedProvides := provideItemsByFeeThenSequence(allProvides)

	cp := new(big.Int).SetUint64(e.cfg.Collateral.Provider)
	cs := new(big.Int).SetUint64(e.cfg.Collateral.Seeker)
	b := new(big.Int).SetUint64(uint64(types.PPBUnit))

	sTotal := new(big.Int).SetUint64(uint64(sumSeekItems(allSeeks)))

	var f types.FeeRatePPB
	pAccum := new(big.Int)
	// consumedProvides[i] is the amount consumed from sortedProvides[i];
	// zero means untouched (stays fully staged).
	consumedProvides := make([]types.Msat, len(sortedProvides))

	for i, item := range sortedProvides {
		r := requiredProviderCollateral(sTotal, pAccum, f, cp, cs, b)
		if r.Sign() <= 0 {
			break
		}
		if item.Deposit.Meta > f {
			candidateR := requiredProviderCollateral(sTotal, pAccum, item.Deposit.Meta, cp, cs, b)
			if candidateR.Sign() <= 0 {
				break
			}
			f = item.Deposit.Meta
			r = candidateR
		}
		consumeBig := new(big.Int).SetUint64(uint64(item.Deposit.Amount))
		if r.Cmp(consumeBig) < 0 {
			consumeBig = r
		}
		consume := types.Msat(consumeBig.Uint64())
		consumedProvides[i] = consume
		pAccum.Add(pAccum, consumeBig)
		if consume < item.Deposit.Amount {
			// This provide only partially covers the remaining need;
			// no further provides are required.
			break
		}
	}

	// S* = floor_div(P * C_s * B, (B - f) * C_p)
	bMinusF := new(big.Int).Sub(b, new(big.Int).SetUint64(uint64(f)))
	var admissibleSeekPrincipal types.Msat
	if bMinusF.Sign() > 0 && cp.Sign() > 0 {
		num := new(big.Int).Mul(pAccum, cs)
		num.Mul(num, b)
		den := new(big.Int).Mul(bMinusF, cp)
		admissibleSeekPrincipal = types.Msat(types.FloorDiv(num, den).Uint64())
	}

	newLockedSeeks := map[types.AccountID][]types.Seek{}
	newLockedProvides := map[types.AccountID][]types.Provide{}
	var feePool types.Msat

	var running types.Msat
	for _, item := range allSeeks {
		if running >= admissibleSeekPrincipal {
			break
		}
		capacity := admissibleSeekPrincipal - running
		consume := item.Deposit.Amount
		if consume > capacity {
			consume = capacity
		}
		running += consume
		fee := types.Msat(types.CeilDivUint64(uint64(consume)*uint64(f), uint64(types.PPBUnit)))
		if uint64(consume) > 0 && fee > consume {
			fee = consume
		}
		locked := consume - fee
		feePool += fee
		newLockedSeeks[item.Account] = append(newLockedSeeks[item.Account], types.Seek{
			TxID:     item.Deposit.TxID,
			Sequence: item.Deposit.Sequence,
			Amount:   locked,
			Meta:     types.SeekMeta{},
		})
		if consume < item.Deposit.Amount {
			if err := subtractStagedSeek(tx, item.Account, item.Deposit.Sequence, consume); err != nil {
				return nil, nil, 0, err
			}
		} else {
			if err := removeStagedSeek(tx, item.Account, item.Deposit.Sequence); err != nil {
				return nil, nil, 0, err
			}
		}
	}

	for i, item := range sortedProvides {
		consume := consumedProvides[i]
		if consume == 0 {
			continue
		}
		newLockedProvides[item.Account] = append(newLockedProvides[item.Account], types.Provide{
			TxID:     item.Deposit.TxID,
			Sequence: item.Deposit.Sequence,
			Amount:   consume,
			Meta:     item.Deposit.Meta,
		})
		if consume < item.Deposit.Amount {
			if err := subtractStagedProvide(tx, item.Account, item.Deposit.Sequence, consume); err != nil {
				return nil, nil, 0, err
			}
		} else {
			if err := removeStagedProvide(tx, item.Account, item.Deposit.Sequence); err != nil {
				return nil, nil, 0, err
			}
		}
	}

	if err := e.distributeFeePool(tx, newLockedProvides, feePool, randomness); err != nil {
		return nil, nil, 0, err
	}

	return newLockedSeeks, newLockedProvides, f, nil
}

// requiredProviderCollateral computes R from spec §4.5 Phase E:
// R = ceil_div(S*(B-f)*Cp - P*B*Cs, B*Cs), floored at 0.
func requiredProviderCollateral(sTotal, pAccum *big.Int, f types.FeeRatePPB, cp, cs, b *big.Int) *big.Int {
	bMinusF := new(big.Int).Sub(b, new(big.Int).SetUint64(uint64(f)))
	lhs := new(big.Int).Mul(sTotal, bMinusF)
	lhs.Mul(lhs, cp)
	rhs := new(big.Int).Mul(pAccum, b)
	rhs.Mul(rhs, cs)
	numerator := new(big.Int).Sub(lhs, rhs)
	if numerator.Sign() <= 0 {
		return new(big.Int)
	}
	denominator := new(big.Int).Mul(b, cs)
	return types.CeilDiv(numerator, denominator)
}

// distributeFeePool allocates the per-cycle fee pool to the consumed
// providers proportionally to their newly locked amount, residue to the
// provider at randomness mod n (spec §4.5 "Fees").
func (e *Engine) distributeFeePool(tx *bolt.Tx, newLockedProvides map[types.AccountID][]types.Provide, feePool types.Msat, randomness uint64) error {
	if feePool == 0 {
		return nil
	}
	items := flattenProvidesSorted(newLockedProvides)
	if len(items) == 0 {
		return nil
	}
	pool := make([]types.PoolItem, len(items))
	for i, it := range items {
		pool[i] = types.PoolItem{Weight: it.Deposit.Amount}
	}
	types.DistributeFromPool(pool, feePool, randomness)
	for i, it := range items {
		if pool[i].Amount == 0 {
			continue
		}
		if err := addIdleBalance(tx, it.Account, pool[i].Amount); err != nil {
			return err
		}
	}
	return nil
}

func sortSeekItemsBySequence(items []seekItem) {
	sortSeekItems(items)
}

func sumSeekItems(items []seekItem) types.Msat {
	var total types.Msat
	for _, it := range items {
		total += it.Deposit.Amount
	}
	return total
}

// subtractStagedSeek reduces one staged seek's amount by delta in place.
func subtractStagedSeek(tx *bolt.Tx, acc types.AccountID, seq types.DepositSequence, delta types.Msat) error {
	seeks, err := getStagedSeeks(tx, acc)
	if err != nil {
		return err
	}
	for i := range seeks {
		if seeks[i].Sequence == seq {
			seeks[i].Amount -= delta
			break
		}
	}
	return putStagedSeeks(tx, acc, seeks)
}

func removeStagedSeek(tx *bolt.Tx, acc types.AccountID, seq types.DepositSequence) error {
	seeks, err := getStagedSeeks(tx, acc)
	if err != nil {
		return err
	}
	out := seeks[:0]
	for _, s := range seeks {
		if s.Sequence != seq {
			out = append(out, s)
		}
	}
	return putStagedSeeks(tx, acc, out)
}

func subtractStagedProvide(tx *bolt.Tx, acc types.AccountID, seq types.DepositSequence, delta types.Msat) error {
	provides, err := getStagedProvides(tx, acc)
	if err != nil {
		return err
	}
	for i := range provides {
		if provides[i].Sequence == seq {
			provides[i].Amount -= delta
			break
		}
	}
	return putStagedProvides(tx, acc, provides)
}

func removeStagedProvide(tx *bolt.Tx, acc types.AccountID, seq types.DepositSequence) error {
	provides, err := getStagedProvides(tx, acc)
	if err != nil {
		return err
	}
	out := provides[:0]
	for _, p := range provides {
		if p.Sequence != seq {
			out = append(out, p)
		}
	}
	return putStagedProvides(tx, acc, out)
}
