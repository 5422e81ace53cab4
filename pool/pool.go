// Package pool holds the stability pool and staking value types. They follow
// the same accumulator-style accounting as trove redistribution: an initial
// value, the current value after pool events, and gains accrued since the
// last touch.
package pool

import (
	"github.com/ethereum/go-ethereum/common"

	"hydroclient/decimal"
)

// StabilityDeposit describes one depositor's HUSD in the stability pool.
type StabilityDeposit struct {
	// InitialHUSD is the deposit as of the depositor's last touch.
	InitialHUSD decimal.Decimal
	// CurrentHUSD is the deposit after liquidations burned part of the pool.
	CurrentHUSD decimal.Decimal
	// CollateralGain is the liquidated collateral claimable by the
	// depositor.
	CollateralGain decimal.Decimal
	// HLQTReward is the protocol token reward accrued by the deposit.
	HLQTReward decimal.Decimal
	// FrontendTag identifies the frontend the deposit is registered under;
	// the zero address means none.
	FrontendTag common.Address
}

// IsEmpty reports whether the deposit carries no value and no claims.
func (d StabilityDeposit) IsEmpty() bool {
	return d.InitialHUSD.IsZero() && d.CurrentHUSD.IsZero() &&
		d.CollateralGain.IsZero() && d.HLQTReward.IsZero()
}

// Equals reports value equality.
func (d StabilityDeposit) Equals(other StabilityDeposit) bool {
	return d.InitialHUSD.Equal(other.InitialHUSD) &&
		d.CurrentHUSD.Equal(other.CurrentHUSD) &&
		d.CollateralGain.Equal(other.CollateralGain) &&
		d.HLQTReward.Equal(other.HLQTReward) &&
		d.FrontendTag == other.FrontendTag
}

// ApplyDeposit returns the deposit after adding fresh HUSD: gains are
// claimed, the initial value resets to the new current value.
func (d StabilityDeposit) ApplyDeposit(amount decimal.Decimal) StabilityDeposit {
	next := d.CurrentHUSD.Add(amount)
	return StabilityDeposit{
		InitialHUSD: next,
		CurrentHUSD: next,
		FrontendTag: d.FrontendTag,
	}
}

// ApplyWithdrawal returns the deposit after removing HUSD. Withdrawing more
// than the current value empties the deposit.
func (d StabilityDeposit) ApplyWithdrawal(amount decimal.Decimal) StabilityDeposit {
	next := d.CurrentHUSD.Sub(amount)
	if next.Sign() < 0 {
		next = decimal.Zero()
	}
	return StabilityDeposit{
		InitialHUSD: next,
		CurrentHUSD: next,
		FrontendTag: d.FrontendTag,
	}
}

// HLQTStake describes a protocol token stake and its accrued fee revenue.
type HLQTStake struct {
	// StakedHLQT is the staked token amount.
	StakedHLQT decimal.Decimal
	// CollateralGain is the share of redemption fees accrued, in collateral.
	CollateralGain decimal.Decimal
	// HUSDGain is the share of borrowing fees accrued, in HUSD.
	HUSDGain decimal.Decimal
}

// IsEmpty reports whether the stake carries no value and no claims.
func (s HLQTStake) IsEmpty() bool {
	return s.StakedHLQT.IsZero() && s.CollateralGain.IsZero() && s.HUSDGain.IsZero()
}

// Equals reports value equality.
func (s HLQTStake) Equals(other HLQTStake) bool {
	return s.StakedHLQT.Equal(other.StakedHLQT) &&
		s.CollateralGain.Equal(other.CollateralGain) &&
		s.HUSDGain.Equal(other.HUSDGain)
}

// ApplyStake returns the stake with additional tokens and gains claimed.
func (s HLQTStake) ApplyStake(amount decimal.Decimal) HLQTStake {
	return HLQTStake{StakedHLQT: s.StakedHLQT.Add(amount)}
}

// ApplyUnstake returns the stake after removing tokens; removing more than
// staked empties the stake.
func (s HLQTStake) ApplyUnstake(amount decimal.Decimal) HLQTStake {
	next := s.StakedHLQT.Sub(amount)
	if next.Sign() < 0 {
		next = decimal.Zero()
	}
	return HLQTStake{StakedHLQT: next}
}

// FrontendStatus reports whether a frontend address registered a kickback
// rate with the stability pool.
type FrontendStatus struct {
	Registered bool
	// KickbackRate is set only for registered frontends and lies in [0, 1].
	KickbackRate *decimal.Decimal
}

// Equals reports value equality.
func (f FrontendStatus) Equals(other FrontendStatus) bool {
	if f.Registered != other.Registered {
		return false
	}
	if (f.KickbackRate == nil) != (other.KickbackRate == nil) {
		return false
	}
	if f.KickbackRate == nil {
		return true
	}
	return f.KickbackRate.Equal(*other.KickbackRate)
}
