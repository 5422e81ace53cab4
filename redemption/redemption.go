// Package redemption simulates the ledger's redemption traversal over the
// collateral-ratio-sorted trove list so callers can preview received
// collateral, fee and slippage before submitting a transaction. The
// simulation is a deterministic greedy walk; it needs only the sorted
// sequence and scalar protocol totals, never the global accumulators.
package redemption

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"hydroclient/decimal"
	"hydroclient/trove"
)

// ErrNoValidRedemption reports that the simulated proceeds per unit redeemed
// would exceed the fair-value target ratio, a condition that cannot arise
// under correct fee application and is surfaced instead of a negative
// slippage.
var ErrNoValidRedemption = fmt.Errorf("redemption: no valid redemption")

// ProtocolTotals are the protocol-wide collateral and debt used as the
// fair-value reference for slippage.
type ProtocolTotals struct {
	Collateral decimal.Decimal
	Debt       decimal.Decimal
}

// Portion records how much of a single trove the walk consumed.
type Portion struct {
	Owner      common.Address
	Debt       decimal.Decimal
	Collateral decimal.Decimal
	// Full marks a trove whose entire debt was redeemed against.
	Full bool
}

// Result is the simulated outcome of one redemption traversal.
type Result struct {
	// AffectedDebt is the HUSD actually cancelled, never exceeding the
	// requested amount.
	AffectedDebt decimal.Decimal
	// AffectedCollateral is the collateral drawn from the walked troves
	// before the fee is taken.
	AffectedCollateral decimal.Decimal
	// ReceivedCollateral is what the redeemer keeps after the fee.
	ReceivedCollateral decimal.Decimal
	// FeeInCollateral is the portion of affected collateral paid as fee.
	FeeInCollateral decimal.Decimal
	// Slippage is 1 - realised/target collateral per unit of debt. Zero when
	// nothing was redeemed.
	Slippage decimal.Decimal
	// Portions lists the per-trove contributions in walk order.
	Portions []Portion
}

// Simulate walks the supplied troves, which must already be sorted by
// ascending collateral ratio, cancelling debt from the riskiest trove upward
// until the requested amount is exhausted or the sequence ends. Troves with
// zero remaining debt are skipped without consuming collateral.
func Simulate(sorted []trove.UserTrove, totals ProtocolTotals, amount, feeRate decimal.Decimal) (Result, error) {
	if amount.Sign() < 0 {
		return Result{}, fmt.Errorf("redemption: negative amount %s", amount)
	}
	if feeRate.Sign() < 0 || feeRate.GT(decimal.One()) {
		return Result{}, fmt.Errorf("redemption: fee rate %s outside [0, 1]", feeRate)
	}

	result := Result{}
	remaining := amount
	for _, candidate := range sorted {
		if remaining.IsZero() {
			break
		}
		if candidate.Debt.IsZero() {
			continue
		}
		if remaining.GTE(candidate.Debt) {
			result.AffectedDebt = result.AffectedDebt.Add(candidate.Debt)
			result.AffectedCollateral = result.AffectedCollateral.Add(candidate.Collateral)
			result.Portions = append(result.Portions, Portion{
				Owner:      candidate.Owner,
				Debt:       candidate.Debt,
				Collateral: candidate.Collateral,
				Full:       true,
			})
			remaining = remaining.Sub(candidate.Debt)
			continue
		}
		share, err := candidate.Collateral.MulDiv(remaining, candidate.Debt)
		if err != nil {
			return Result{}, fmt.Errorf("redemption: proportional share: %w", err)
		}
		result.AffectedDebt = result.AffectedDebt.Add(remaining)
		result.AffectedCollateral = result.AffectedCollateral.Add(share)
		result.Portions = append(result.Portions, Portion{
			Owner:      candidate.Owner,
			Debt:       remaining,
			Collateral: share,
		})
		remaining = decimal.Zero()
	}

	result.FeeInCollateral = result.AffectedCollateral.Mul(feeRate)
	result.ReceivedCollateral = result.AffectedCollateral.Sub(result.FeeInCollateral)

	if result.AffectedDebt.IsZero() {
		return result, nil
	}

	slippage, err := computeSlippage(result.ReceivedCollateral, result.AffectedDebt, totals)
	if err != nil {
		return Result{}, err
	}
	result.Slippage = slippage
	return result, nil
}

// computeSlippage compares the post-fee proceeds per unit redeemed against
// the protocol-wide collateral/debt ratio. The fee is applied before the
// comparison: the redeemer's realised exchange rate is what they actually
// keep.
func computeSlippage(received, affectedDebt decimal.Decimal, totals ProtocolTotals) (decimal.Decimal, error) {
	if totals.Debt.IsZero() {
		return decimal.Zero(), fmt.Errorf("redemption: protocol debt is zero")
	}
	target, err := totals.Collateral.Div(totals.Debt)
	if err != nil {
		return decimal.Zero(), err
	}
	if target.IsZero() {
		return decimal.Zero(), fmt.Errorf("redemption: target ratio is zero")
	}
	realised, err := received.Div(affectedDebt)
	if err != nil {
		return decimal.Zero(), err
	}
	if realised.GT(target) {
		return decimal.Zero(), ErrNoValidRedemption
	}
	fraction, err := realised.Div(target)
	if err != nil {
		return decimal.Zero(), err
	}
	return decimal.One().Sub(fraction), nil
}
