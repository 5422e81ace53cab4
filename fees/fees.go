// Package fees mirrors the ledger's time-decayed base rate and the borrowing
// and redemption fees derived from it. All timing is driven by block
// timestamps; using the wall clock would drift from the ledger's own fee
// state.
package fees

import (
	"time"

	"hydroclient/decimal"
	"hydroclient/protocol"
)

// State captures the fee engine inputs as stored on the ledger at the last
// fee-triggering event.
type State struct {
	// BaseRateAtLastUpdate is the base rate recorded when a borrow or
	// redemption last bumped it.
	BaseRateAtLastUpdate decimal.Decimal
	// MinuteDecayFactor is the per-minute multiplier applied to the base
	// rate between fee events.
	MinuteDecayFactor decimal.Decimal
	// Beta divides the redeemed fraction when a redemption raises the rate.
	Beta decimal.Decimal
	// LastUpdate is the block timestamp of the last fee-triggering event.
	LastUpdate time.Time
}

// Default returns a State parameterised with the deployed protocol constants
// and the supplied stored values.
func Default(baseRate decimal.Decimal, lastUpdate time.Time) State {
	return State{
		BaseRateAtLastUpdate: baseRate,
		MinuteDecayFactor:    protocol.MinuteDecayFactor,
		Beta:                 protocol.Beta,
		LastUpdate:           lastUpdate,
	}
}

// MinutesSinceLastUpdate returns the whole minutes elapsed between the last
// fee event and the supplied block timestamp. A timestamp before the last
// update clamps to zero.
func (s State) MinutesSinceLastUpdate(blockTime time.Time) uint64 {
	elapsed := blockTime.Sub(s.LastUpdate)
	if elapsed <= 0 {
		return 0
	}
	return uint64(elapsed / time.Minute)
}

// DecayedBaseRate returns the base rate decayed to the supplied block
// timestamp, clamped to [0, 1]. Decay is monotonic between fee events and
// DecayedBaseRate(LastUpdate) equals the stored rate.
func (s State) DecayedBaseRate(blockTime time.Time) decimal.Decimal {
	minutes := s.MinutesSinceLastUpdate(blockTime)
	rate := s.BaseRateAtLastUpdate.Mul(s.MinuteDecayFactor.Pow(minutes))
	if rate.Sign() < 0 {
		return decimal.Zero()
	}
	return decimal.Min(rate, decimal.One())
}

// BorrowingRate returns the fee rate applied to new debt at the supplied
// block timestamp. In recovery mode borrowing is fee-free; otherwise the
// decayed rate is floored and capped by the protocol bounds.
func (s State) BorrowingRate(blockTime time.Time, recoveryMode bool) decimal.Decimal {
	if recoveryMode {
		return decimal.Zero()
	}
	rate := decimal.Max(s.DecayedBaseRate(blockTime), protocol.MinimumBorrowingRate)
	return decimal.Min(rate, protocol.MaximumBorrowingRate)
}

// BorrowingFee returns the HUSD fee charged for borrowing the given amount.
func (s State) BorrowingFee(blockTime time.Time, recoveryMode bool, amount decimal.Decimal) decimal.Decimal {
	return s.BorrowingRate(blockTime, recoveryMode).Mul(amount)
}

// RedemptionRate returns the fee rate applied to a redemption at the supplied
// block timestamp. redeemedFraction is the share of the total HUSD supply
// being redeemed in this traversal; each unit redeemed raises the marginal
// rate by redeemedFraction/Beta. The result is capped at 1.
func (s State) RedemptionRate(blockTime time.Time, redeemedFraction decimal.Decimal) decimal.Decimal {
	rate := s.DecayedBaseRate(blockTime).Add(protocol.RedemptionFeeFloor)
	if redeemedFraction.Sign() > 0 && !s.Beta.IsZero() {
		bump, err := redeemedFraction.Div(s.Beta)
		if err == nil {
			rate = rate.Add(bump)
		}
	}
	return decimal.Min(rate, decimal.One())
}

// RedemptionFee returns the fee, denominated in the redeemed amount's units,
// for redeeming the given amount.
func (s State) RedemptionFee(blockTime time.Time, redeemedFraction, amount decimal.Decimal) decimal.Decimal {
	return s.RedemptionRate(blockTime, redeemedFraction).Mul(amount)
}
