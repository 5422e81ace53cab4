package trove

import "hydroclient/decimal"

// ApplyRedistribution folds the trove's share of liquidation rewards accrued
// since its last touch into its stored amounts. The pending reward is
// (currentTotals - snapshot) * stake; the ledger advances the snapshot to the
// current totals whenever the trove is touched, which makes repeated
// application idempotent.
func ApplyRedistribution(record TroveWithPendingRedistribution, totals RedistributionTotals) UserTrove {
	result := UserTrove{Owner: record.Owner, Status: record.Status}
	if record.Status != StatusOpen {
		// Closed and non-existent records carry no live amounts.
		return result
	}
	result.Trove = record.Trove
	if record.Stake.IsZero() {
		return result
	}
	collateralDelta := totals.Collateral.Sub(record.Snapshot.Collateral)
	debtDelta := totals.Debt.Sub(record.Snapshot.Debt)
	// Totals never regress; a negative delta means the snapshot outruns the
	// totals supplied by the caller and earns no reward.
	if collateralDelta.Sign() > 0 {
		result.Collateral = result.Collateral.Add(collateralDelta.Mul(record.Stake))
	}
	if debtDelta.Sign() > 0 {
		result.Debt = result.Debt.Add(debtDelta.Mul(record.Stake))
	}
	return result
}

// AdvanceSnapshot returns the record as the ledger stores it after a touch:
// pending rewards folded into the raw amounts and the snapshot moved up to
// the supplied totals.
func AdvanceSnapshot(record TroveWithPendingRedistribution, totals RedistributionTotals) TroveWithPendingRedistribution {
	applied := ApplyRedistribution(record, totals)
	return TroveWithPendingRedistribution{
		Owner:    record.Owner,
		Status:   record.Status,
		Trove:    applied.Trove,
		Stake:    record.Stake,
		Snapshot: totals,
	}
}

// PendingReward reports only the unrealised redistribution amounts for the
// record at the supplied totals.
func PendingReward(record TroveWithPendingRedistribution, totals RedistributionTotals) Trove {
	if record.Status != StatusOpen || record.Stake.IsZero() {
		return Trove{}
	}
	pending := Trove{}
	if delta := totals.Collateral.Sub(record.Snapshot.Collateral); delta.Sign() > 0 {
		pending.Collateral = delta.Mul(record.Stake)
	}
	if delta := totals.Debt.Sub(record.Snapshot.Debt); delta.Sign() > 0 {
		pending.Debt = delta.Mul(record.Stake)
	}
	return pending
}

// Stake computes a trove's weight in the redistribution pool as its share of
// the supplied total collateral. A zero total yields a zero stake.
func Stake(collateral, totalCollateral decimal.Decimal) decimal.Decimal {
	if totalCollateral.IsZero() {
		return decimal.Zero()
	}
	share, err := collateral.Div(totalCollateral)
	if err != nil {
		return decimal.Zero()
	}
	return share
}
