// Package trove models a single borrower position and the lazy
// redistribution accounting that keeps it in sync with pool-wide
// liquidations. All types are immutable values; mutators return new
// instances.
package trove

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"hydroclient/decimal"
	"hydroclient/protocol"
)

// ErrZeroDebt is returned when a collateral ratio is requested for a trove
// with no debt; the ratio is undefined rather than infinite.
var ErrZeroDebt = fmt.Errorf("trove: collateral ratio undefined for zero debt")

// ErrNegativeAmount is returned when a subtraction would drive collateral or
// debt below zero.
var ErrNegativeAmount = fmt.Errorf("trove: amount would become negative")

// Status tracks the lifecycle of a trove as recorded by the ledger.
type Status uint8

const (
	// StatusNonExistent marks an address that never opened a trove, and is
	// also the state after the record is fully wiped.
	StatusNonExistent Status = iota
	// StatusOpen marks an active trove accruing redistribution rewards.
	StatusOpen
	// StatusClosedByOwner marks a trove repaid and closed voluntarily.
	StatusClosedByOwner
	// StatusClosedByLiquidation marks a trove seized below the minimum
	// collateral ratio.
	StatusClosedByLiquidation
	// StatusClosedByRedemption marks a trove whose debt was fully redeemed
	// against.
	StatusClosedByRedemption
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusNonExistent:
		return "nonExistent"
	case StatusOpen:
		return "open"
	case StatusClosedByOwner:
		return "closedByOwner"
	case StatusClosedByLiquidation:
		return "closedByLiquidation"
	case StatusClosedByRedemption:
		return "closedByRedemption"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal reports whether the status admits no further transitions other
// than a fresh opening.
func (s Status) Terminal() bool {
	return s != StatusOpen
}

// Trove is a collateral/debt pair. Amounts are denominated in whole token
// units at 18-digit precision to match on-chain accounting.
type Trove struct {
	Collateral decimal.Decimal
	Debt       decimal.Decimal
}

// IsEmpty reports whether the trove carries neither collateral nor debt.
func (t Trove) IsEmpty() bool {
	return t.Collateral.IsZero() && t.Debt.IsZero()
}

// Equals reports value equality.
func (t Trove) Equals(other Trove) bool {
	return t.Collateral.Equal(other.Collateral) && t.Debt.Equal(other.Debt)
}

// NominalCollateralRatio returns collateral/debt without a price term. The
// sorted trove list is ordered by this quantity.
func (t Trove) NominalCollateralRatio() (decimal.Decimal, error) {
	if t.Debt.IsZero() {
		return decimal.Zero(), ErrZeroDebt
	}
	return t.Collateral.Div(t.Debt)
}

// CollateralRatio returns the ratio of the collateral's value at the given
// price to the trove's debt.
func (t Trove) CollateralRatio(price decimal.Decimal) (decimal.Decimal, error) {
	if t.Debt.IsZero() {
		return decimal.Zero(), ErrZeroDebt
	}
	return t.Collateral.MulDiv(price, t.Debt)
}

// IsBelowMinimumCollateralRatio reports whether the trove is eligible for
// liquidation at the given price.
func (t Trove) IsBelowMinimumCollateralRatio(price decimal.Decimal) (bool, error) {
	ratio, err := t.CollateralRatio(price)
	if err != nil {
		return false, err
	}
	return ratio.LT(protocol.MinimumCollateralRatio), nil
}

// IsBelowCriticalCollateralRatio reports whether the trove's ratio is under
// the recovery mode threshold at the given price.
func (t Trove) IsBelowCriticalCollateralRatio(price decimal.Decimal) (bool, error) {
	ratio, err := t.CollateralRatio(price)
	if err != nil {
		return false, err
	}
	return ratio.LT(protocol.CriticalCollateralRatio), nil
}

// NetDebt returns the debt excluding the HUSD gas compensation reserve. An
// open trove's debt never sits below the reserve, so a smaller value is an
// accounting error.
func (t Trove) NetDebt() (decimal.Decimal, error) {
	if t.Debt.LT(protocol.HUSDGasCompensation) {
		return decimal.Zero(), fmt.Errorf("trove: debt %s below gas compensation reserve", t.Debt)
	}
	return t.Debt.Sub(protocol.HUSDGasCompensation), nil
}

// Add returns the trove with both amounts of other folded in.
func (t Trove) Add(other Trove) Trove {
	return Trove{
		Collateral: t.Collateral.Add(other.Collateral),
		Debt:       t.Debt.Add(other.Debt),
	}
}

// AddCollateral returns the trove with extra collateral.
func (t Trove) AddCollateral(amount decimal.Decimal) Trove {
	return Trove{Collateral: t.Collateral.Add(amount), Debt: t.Debt}
}

// AddDebt returns the trove with extra debt.
func (t Trove) AddDebt(amount decimal.Decimal) Trove {
	return Trove{Collateral: t.Collateral, Debt: t.Debt.Add(amount)}
}

// SubtractCollateral returns the trove with collateral withdrawn.
func (t Trove) SubtractCollateral(amount decimal.Decimal) (Trove, error) {
	next := t.Collateral.Sub(amount)
	if next.Sign() < 0 {
		return Trove{}, ErrNegativeAmount
	}
	return Trove{Collateral: next, Debt: t.Debt}, nil
}

// SubtractDebt returns the trove with debt repaid.
func (t Trove) SubtractDebt(amount decimal.Decimal) (Trove, error) {
	next := t.Debt.Sub(amount)
	if next.Sign() < 0 {
		return Trove{}, ErrNegativeAmount
	}
	return Trove{Collateral: t.Collateral, Debt: next}, nil
}

// SetCollateral returns the trove with collateral replaced.
func (t Trove) SetCollateral(amount decimal.Decimal) Trove {
	return Trove{Collateral: amount, Debt: t.Debt}
}

// SetDebt returns the trove with debt replaced.
func (t Trove) SetDebt(amount decimal.Decimal) Trove {
	return Trove{Collateral: t.Collateral, Debt: amount}
}

// RedistributionTotals are the global accumulators advanced by every
// liquidation: the cumulative collateral and debt moved into the
// redistribution pool over the protocol's lifetime. They never decrease.
type RedistributionTotals struct {
	Collateral decimal.Decimal
	Debt       decimal.Decimal
}

// Equals reports value equality.
func (r RedistributionTotals) Equals(other RedistributionTotals) bool {
	return r.Collateral.Equal(other.Collateral) && r.Debt.Equal(other.Debt)
}

// Add folds another set of totals in.
func (r RedistributionTotals) Add(other RedistributionTotals) RedistributionTotals {
	return RedistributionTotals{
		Collateral: r.Collateral.Add(other.Collateral),
		Debt:       r.Debt.Add(other.Debt),
	}
}

// TroveWithPendingRedistribution is the raw per-trove record stored by the
// ledger: amounts as of the trove's last touch, the trove's stake in the
// redistribution pool, and the accumulator snapshot taken at that touch.
// Current true amounts are recovered with ApplyRedistribution.
type TroveWithPendingRedistribution struct {
	Owner  common.Address
	Status Status
	Trove
	Stake    decimal.Decimal
	Snapshot RedistributionTotals
}

// UserTrove is a trove with redistribution already applied; Collateral and
// Debt reflect current true values.
type UserTrove struct {
	Owner  common.Address
	Status Status
	Trove
}

// Equals reports value equality.
func (u UserTrove) Equals(other UserTrove) bool {
	return u.Owner == other.Owner && u.Status == other.Status && u.Trove.Equals(other.Trove)
}
