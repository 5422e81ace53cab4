package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"hydroclient/decimal"
)

// TxKind names one of the fixed set of state-changing ledger operations.
type TxKind string

const (
	TxOpenTrove        TxKind = "openTrove"
	TxAdjustTrove      TxKind = "adjustTrove"
	TxCloseTrove       TxKind = "closeTrove"
	TxProvideToSP      TxKind = "provideToStabilityPool"
	TxWithdrawFromSP   TxKind = "withdrawFromStabilityPool"
	TxStakeHLQT        TxKind = "stakeHLQT"
	TxUnstakeHLQT      TxKind = "unstakeHLQT"
	TxRedeemHUSD       TxKind = "redeemHUSD"
	TxLiquidate        TxKind = "liquidate"
	TxRegisterFrontend TxKind = "registerFrontend"
)

// Tx is an unsigned, fully populated ledger operation ready for signing and
// submission. Params holds one of the *Params structs below, matching Kind.
type Tx struct {
	Kind   TxKind
	From   common.Address
	Params any
}

// Hints carry the sorted-list neighbours a trove mutation must be submitted
// with. Stale hints are the principal source of write rejection.
type Hints struct {
	Upper common.Address
	Lower common.Address
}

// OpenTroveParams open a new trove with the given collateral and borrowed
// HUSD.
type OpenTroveParams struct {
	Collateral decimal.Decimal
	BorrowHUSD decimal.Decimal
	MaxFeeRate decimal.Decimal
	Hints      Hints
}

// Validate rejects caller misuse before any network traffic.
func (p OpenTroveParams) Validate() error {
	if p.Collateral.Sign() <= 0 {
		return fmt.Errorf("open trove: collateral must be positive")
	}
	if p.BorrowHUSD.Sign() <= 0 {
		return fmt.Errorf("open trove: borrow amount must be positive")
	}
	if p.MaxFeeRate.Sign() < 0 || p.MaxFeeRate.GT(decimal.One()) {
		return fmt.Errorf("open trove: max fee rate outside [0, 1]")
	}
	return nil
}

// AdjustTroveParams mutate an existing trove. Zero amounts leave the
// corresponding side untouched.
type AdjustTroveParams struct {
	DepositCollateral  decimal.Decimal
	WithdrawCollateral decimal.Decimal
	BorrowHUSD         decimal.Decimal
	RepayHUSD          decimal.Decimal
	MaxFeeRate         decimal.Decimal
	Hints              Hints
}

// Validate rejects contradictory or negative adjustments.
func (p AdjustTroveParams) Validate() error {
	for label, amount := range map[string]decimal.Decimal{
		"deposit":  p.DepositCollateral,
		"withdraw": p.WithdrawCollateral,
		"borrow":   p.BorrowHUSD,
		"repay":    p.RepayHUSD,
	} {
		if amount.Sign() < 0 {
			return fmt.Errorf("adjust trove: %s amount must not be negative", label)
		}
	}
	if p.DepositCollateral.Sign() > 0 && p.WithdrawCollateral.Sign() > 0 {
		return fmt.Errorf("adjust trove: cannot deposit and withdraw collateral at once")
	}
	if p.BorrowHUSD.Sign() > 0 && p.RepayHUSD.Sign() > 0 {
		return fmt.Errorf("adjust trove: cannot borrow and repay at once")
	}
	if p.DepositCollateral.IsZero() && p.WithdrawCollateral.IsZero() &&
		p.BorrowHUSD.IsZero() && p.RepayHUSD.IsZero() {
		return fmt.Errorf("adjust trove: nothing to adjust")
	}
	return nil
}

// CloseTroveParams close the caller's trove after repaying its debt.
type CloseTroveParams struct{}

// ProvideToSPParams deposit HUSD into the stability pool, optionally tagged
// with a registered frontend.
type ProvideToSPParams struct {
	Amount      decimal.Decimal
	FrontendTag common.Address
}

// Validate rejects non-positive deposits.
func (p ProvideToSPParams) Validate() error {
	if p.Amount.Sign() <= 0 {
		return fmt.Errorf("provide to stability pool: amount must be positive")
	}
	return nil
}

// WithdrawFromSPParams withdraw HUSD from the stability pool.
type WithdrawFromSPParams struct {
	Amount decimal.Decimal
}

// Validate rejects negative withdrawals; zero withdraws only the gains.
func (p WithdrawFromSPParams) Validate() error {
	if p.Amount.Sign() < 0 {
		return fmt.Errorf("withdraw from stability pool: amount must not be negative")
	}
	return nil
}

// StakeParams stake protocol tokens for fee revenue.
type StakeParams struct {
	Amount decimal.Decimal
}

// Validate rejects non-positive stakes.
func (p StakeParams) Validate() error {
	if p.Amount.Sign() <= 0 {
		return fmt.Errorf("stake: amount must be positive")
	}
	return nil
}

// UnstakeParams withdraw staked protocol tokens.
type UnstakeParams struct {
	Amount decimal.Decimal
}

// Validate rejects non-positive unstakes.
func (p UnstakeParams) Validate() error {
	if p.Amount.Sign() <= 0 {
		return fmt.Errorf("unstake: amount must be positive")
	}
	return nil
}

// RedeemParams exchange HUSD for collateral against the sorted trove list.
// FirstHint addresses the first trove the traversal touches; the partial
// hints position the final, partially redeemed trove for reinsertion.
type RedeemParams struct {
	Amount           decimal.Decimal
	MaxFeeRate       decimal.Decimal
	FirstHint        common.Address
	PartialHints     Hints
	PartialNominalCR decimal.Decimal
}

// Validate rejects caller misuse before any network traffic.
func (p RedeemParams) Validate() error {
	if p.Amount.Sign() <= 0 {
		return fmt.Errorf("redeem: amount must be positive")
	}
	if p.MaxFeeRate.Sign() < 0 || p.MaxFeeRate.GT(decimal.One()) {
		return fmt.Errorf("redeem: max fee rate outside [0, 1]")
	}
	return nil
}

// LiquidateParams liquidate a specific undercollateralised trove.
type LiquidateParams struct {
	Borrower common.Address
}

// Validate rejects the zero address.
func (p LiquidateParams) Validate() error {
	if p.Borrower == (common.Address{}) {
		return fmt.Errorf("liquidate: borrower address required")
	}
	return nil
}

// RegisterFrontendParams register the caller as a stability pool frontend
// with the given kickback rate.
type RegisterFrontendParams struct {
	KickbackRate decimal.Decimal
}

// Validate enforces a kickback rate within [0, 1].
func (p RegisterFrontendParams) Validate() error {
	if p.KickbackRate.Sign() < 0 || p.KickbackRate.GT(decimal.One()) {
		return fmt.Errorf("register frontend: kickback rate outside [0, 1]")
	}
	return nil
}
