package client

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"hydroclient/decimal"
	"hydroclient/ledger"
	"hydroclient/pool"
	"hydroclient/protocol"
	"hydroclient/redemption"
	"hydroclient/trove"
)

// Populated pairs a ready-to-submit transaction with everything Send needs
// to recover from a stale-hint rejection: the repopulate hook rebuilds the
// transaction with freshly searched hints against the new chain head.
type Populated struct {
	Tx ledger.Tx

	repopulate func(ctx context.Context) (ledger.Tx, error)
}

// PopulatedOpenTrove carries the simulated outcome of opening a trove.
type PopulatedOpenTrove struct {
	Populated
	// NewTrove is the trove as it will exist after the transaction,
	// including fee and gas compensation in the debt.
	NewTrove trove.Trove
	// Fee is the borrowing fee in HUSD at the current decayed rate.
	Fee decimal.Decimal
	// BorrowingRate is the rate the fee was computed at.
	BorrowingRate decimal.Decimal
}

// PopulatedAdjustTrove carries the simulated outcome of a trove adjustment.
type PopulatedAdjustTrove struct {
	Populated
	NewTrove      trove.Trove
	Fee           decimal.Decimal
	BorrowingRate decimal.Decimal
}

// PopulatedCloseTrove carries what closing the trove returns to the user.
type PopulatedCloseTrove struct {
	Populated
	// RepaidHUSD is the net debt the user must hold to close.
	RepaidHUSD decimal.Decimal
	// WithdrawnCollateral is the full collateral returned on closure.
	WithdrawnCollateral decimal.Decimal
}

// PopulatedRedemption carries the simulated redemption traversal.
type PopulatedRedemption struct {
	Populated
	Result redemption.Result
	// FeeRate is the redemption rate the simulation charged.
	FeeRate decimal.Decimal
}

// PopulatedStabilityDeposit carries the deposit as it will stand after a
// stability pool operation, with pending gains claimed.
type PopulatedStabilityDeposit struct {
	Populated
	NewDeposit pool.StabilityDeposit
	// ClaimedCollateral and ClaimedHLQT are the gains paid out alongside.
	ClaimedCollateral decimal.Decimal
	ClaimedHLQT       decimal.Decimal
}

// PopulatedStake carries the stake as it will stand after a staking
// operation, with pending fee revenue claimed.
type PopulatedStake struct {
	Populated
	NewStake pool.HLQTStake
	// ClaimedCollateral and ClaimedHUSD are the fee gains paid out.
	ClaimedCollateral decimal.Decimal
	ClaimedHUSD       decimal.Decimal
}

// PopulateOpenTrove simulates opening a trove and populates the transaction
// with searched insertion hints. The fee is charged at the current decayed
// borrowing rate; populating fails if that rate exceeds the caller's
// maximum, if the resulting net debt is under the protocol minimum or if
// the trove would open undercollateralized.
func (c *Client) PopulateOpenTrove(ctx context.Context, params ledger.OpenTroveParams) (PopulatedOpenTrove, error) {
	if err := params.Validate(); err != nil {
		return PopulatedOpenTrove{}, err
	}
	view, err := c.market(ctx, ledger.Latest())
	if err != nil {
		return PopulatedOpenTrove{}, err
	}

	rate := view.fees.BorrowingRate(view.blockTime, view.state.RecoveryMode)
	if rate.GT(params.MaxFeeRate) {
		return PopulatedOpenTrove{}, fmt.Errorf("%w: borrowing rate %s > max %s",
			ErrFeeRateExceeded, rate, params.MaxFeeRate)
	}
	fee := params.BorrowHUSD.Mul(rate)
	opened := trove.Trove{
		Collateral: params.Collateral,
		Debt:       params.BorrowHUSD.Add(fee).Add(protocol.HUSDGasCompensation),
	}
	if err := checkTroveBounds(opened, view.state.Price); err != nil {
		return PopulatedOpenTrove{}, err
	}
	target, err := opened.NominalCollateralRatio()
	if err != nil {
		return PopulatedOpenTrove{}, err
	}

	populate := func(ctx context.Context, tag ledger.BlockTag) (ledger.Tx, error) {
		found, err := c.searchHints(ctx, tag, target, view.state.NumberOfTroves+1)
		if err != nil {
			return ledger.Tx{}, err
		}
		params.Hints = found
		return ledger.Tx{Kind: ledger.TxOpenTrove, From: c.user, Params: params}, nil
	}
	tx, err := populate(ctx, view.tag())
	if err != nil {
		return PopulatedOpenTrove{}, err
	}
	return PopulatedOpenTrove{
		Populated:     Populated{Tx: tx, repopulate: retag(populate)},
		NewTrove:      opened,
		Fee:           fee,
		BorrowingRate: rate,
	}, nil
}

// PopulateAdjustTrove simulates adjusting the user's trove and populates the
// transaction with hints for its new list position.
func (c *Client) PopulateAdjustTrove(ctx context.Context, params ledger.AdjustTroveParams) (PopulatedAdjustTrove, error) {
	if err := params.Validate(); err != nil {
		return PopulatedAdjustTrove{}, err
	}
	view, err := c.market(ctx, ledger.Latest())
	if err != nil {
		return PopulatedAdjustTrove{}, err
	}
	current, err := c.UserTrove(ctx, view.tag(), ledger.ForCurrentUser())
	if err != nil {
		return PopulatedAdjustTrove{}, err
	}
	if current.Status != trove.StatusOpen {
		return PopulatedAdjustTrove{}, fmt.Errorf("%w: status %s", ErrNoTrove, current.Status)
	}

	rate := decimal.Zero()
	fee := decimal.Zero()
	if params.BorrowHUSD.Sign() > 0 {
		rate = view.fees.BorrowingRate(view.blockTime, view.state.RecoveryMode)
		if rate.GT(params.MaxFeeRate) {
			return PopulatedAdjustTrove{}, fmt.Errorf("%w: borrowing rate %s > max %s",
				ErrFeeRateExceeded, rate, params.MaxFeeRate)
		}
		fee = params.BorrowHUSD.Mul(rate)
	}

	adjusted := current.Trove.
		AddCollateral(params.DepositCollateral).
		AddDebt(params.BorrowHUSD.Add(fee))
	adjusted, err = adjusted.SubtractCollateral(params.WithdrawCollateral)
	if err != nil {
		return PopulatedAdjustTrove{}, fmt.Errorf("client: withdraw collateral: %w", err)
	}
	adjusted, err = adjusted.SubtractDebt(params.RepayHUSD)
	if err != nil {
		return PopulatedAdjustTrove{}, fmt.Errorf("client: repay debt: %w", err)
	}
	if err := checkTroveBounds(adjusted, view.state.Price); err != nil {
		return PopulatedAdjustTrove{}, err
	}
	target, err := adjusted.NominalCollateralRatio()
	if err != nil {
		return PopulatedAdjustTrove{}, err
	}

	populate := func(ctx context.Context, tag ledger.BlockTag) (ledger.Tx, error) {
		found, err := c.searchHints(ctx, tag, target, view.state.NumberOfTroves)
		if err != nil {
			return ledger.Tx{}, err
		}
		params.Hints = found
		return ledger.Tx{Kind: ledger.TxAdjustTrove, From: c.user, Params: params}, nil
	}
	tx, err := populate(ctx, view.tag())
	if err != nil {
		return PopulatedAdjustTrove{}, err
	}
	return PopulatedAdjustTrove{
		Populated:     Populated{Tx: tx, repopulate: retag(populate)},
		NewTrove:      adjusted,
		Fee:           fee,
		BorrowingRate: rate,
	}, nil
}

// PopulateCloseTrove populates closing the user's trove. The user must hold
// the trove's net debt in HUSD; the gas compensation reserve is refunded by
// the ledger.
func (c *Client) PopulateCloseTrove(ctx context.Context) (PopulatedCloseTrove, error) {
	current, err := c.UserTrove(ctx, ledger.Latest(), ledger.ForCurrentUser())
	if err != nil {
		return PopulatedCloseTrove{}, err
	}
	if current.Status != trove.StatusOpen {
		return PopulatedCloseTrove{}, fmt.Errorf("%w: status %s", ErrNoTrove, current.Status)
	}
	netDebt, err := current.NetDebt()
	if err != nil {
		return PopulatedCloseTrove{}, err
	}
	return PopulatedCloseTrove{
		Populated: Populated{Tx: ledger.Tx{
			Kind:   ledger.TxCloseTrove,
			From:   c.user,
			Params: ledger.CloseTroveParams{},
		}},
		RepaidHUSD:          netDebt,
		WithdrawnCollateral: current.Collateral,
	}, nil
}

// PopulateRedeem simulates the redemption traversal against the current
// sorted trove list and populates the transaction with the traversal's first
// hint and, when the final trove is only partially redeemed, the reinsertion
// hints for its remainder.
func (c *Client) PopulateRedeem(ctx context.Context, params ledger.RedeemParams) (PopulatedRedemption, error) {
	if err := params.Validate(); err != nil {
		return PopulatedRedemption{}, err
	}
	view, err := c.market(ctx, ledger.Latest())
	if err != nil {
		return PopulatedRedemption{}, err
	}
	if view.state.TotalDebt.IsZero() {
		return PopulatedRedemption{}, fmt.Errorf("client: nothing to redeem against")
	}

	sorted, err := c.collectRiskiest(ctx, view, params.Amount)
	if err != nil {
		return PopulatedRedemption{}, err
	}

	fraction, err := params.Amount.Div(view.state.TotalDebt)
	if err != nil {
		return PopulatedRedemption{}, err
	}
	rate := view.fees.RedemptionRate(view.blockTime, fraction)
	if rate.GT(params.MaxFeeRate) {
		return PopulatedRedemption{}, fmt.Errorf("%w: redemption rate %s > max %s",
			ErrFeeRateExceeded, rate, params.MaxFeeRate)
	}

	result, err := redemption.Simulate(sorted, redemption.ProtocolTotals{
		Collateral: view.state.TotalCollateral,
		Debt:       view.state.TotalDebt,
	}, params.Amount, rate)
	if err != nil {
		return PopulatedRedemption{}, err
	}
	if len(result.Portions) == 0 {
		return PopulatedRedemption{}, fmt.Errorf("client: no redeemable debt found")
	}

	partial, hasPartial, err := partialRemainder(sorted, result)
	if err != nil {
		return PopulatedRedemption{}, err
	}

	populate := func(ctx context.Context, tag ledger.BlockTag) (ledger.Tx, error) {
		params.FirstHint = result.Portions[0].Owner
		if hasPartial {
			target, err := partial.NominalCollateralRatio()
			if err != nil {
				return ledger.Tx{}, err
			}
			found, err := c.searchHints(ctx, tag, target, view.state.NumberOfTroves)
			if err != nil {
				return ledger.Tx{}, err
			}
			params.PartialHints = found
			params.PartialNominalCR = target
		}
		return ledger.Tx{Kind: ledger.TxRedeemHUSD, From: c.user, Params: params}, nil
	}
	tx, err := populate(ctx, view.tag())
	if err != nil {
		return PopulatedRedemption{}, err
	}
	return PopulatedRedemption{
		Populated: Populated{Tx: tx, repopulate: retag(populate)},
		Result:    result,
		FeeRate:   rate,
	}, nil
}

// PopulateProvideToSP populates a stability pool deposit tagged with the
// client's frontend unless the params name one explicitly.
func (c *Client) PopulateProvideToSP(ctx context.Context, params ledger.ProvideToSPParams) (PopulatedStabilityDeposit, error) {
	if params.FrontendTag == (common.Address{}) {
		params.FrontendTag = c.frontend
	}
	if err := params.Validate(); err != nil {
		return PopulatedStabilityDeposit{}, err
	}
	current, err := c.StabilityDeposit(ctx, ledger.Latest(), ledger.ForCurrentUser())
	if err != nil {
		return PopulatedStabilityDeposit{}, err
	}
	return PopulatedStabilityDeposit{
		Populated: Populated{Tx: ledger.Tx{
			Kind:   ledger.TxProvideToSP,
			From:   c.user,
			Params: params,
		}},
		NewDeposit:        current.ApplyDeposit(params.Amount),
		ClaimedCollateral: current.CollateralGain,
		ClaimedHLQT:       current.HLQTReward,
	}, nil
}

// PopulateWithdrawFromSP populates a stability pool withdrawal. A zero
// amount claims only the pending gains.
func (c *Client) PopulateWithdrawFromSP(ctx context.Context, params ledger.WithdrawFromSPParams) (PopulatedStabilityDeposit, error) {
	if err := params.Validate(); err != nil {
		return PopulatedStabilityDeposit{}, err
	}
	current, err := c.StabilityDeposit(ctx, ledger.Latest(), ledger.ForCurrentUser())
	if err != nil {
		return PopulatedStabilityDeposit{}, err
	}
	return PopulatedStabilityDeposit{
		Populated: Populated{Tx: ledger.Tx{
			Kind:   ledger.TxWithdrawFromSP,
			From:   c.user,
			Params: params,
		}},
		NewDeposit:        current.ApplyWithdrawal(params.Amount),
		ClaimedCollateral: current.CollateralGain,
		ClaimedHLQT:       current.HLQTReward,
	}, nil
}

// PopulateStake populates staking protocol tokens for fee revenue.
func (c *Client) PopulateStake(ctx context.Context, params ledger.StakeParams) (PopulatedStake, error) {
	if err := params.Validate(); err != nil {
		return PopulatedStake{}, err
	}
	current, err := c.HLQTStake(ctx, ledger.Latest(), ledger.ForCurrentUser())
	if err != nil {
		return PopulatedStake{}, err
	}
	return PopulatedStake{
		Populated: Populated{Tx: ledger.Tx{
			Kind:   ledger.TxStakeHLQT,
			From:   c.user,
			Params: params,
		}},
		NewStake:          current.ApplyStake(params.Amount),
		ClaimedCollateral: current.CollateralGain,
		ClaimedHUSD:       current.HUSDGain,
	}, nil
}

// PopulateUnstake populates withdrawing staked protocol tokens.
func (c *Client) PopulateUnstake(ctx context.Context, params ledger.UnstakeParams) (PopulatedStake, error) {
	if err := params.Validate(); err != nil {
		return PopulatedStake{}, err
	}
	current, err := c.HLQTStake(ctx, ledger.Latest(), ledger.ForCurrentUser())
	if err != nil {
		return PopulatedStake{}, err
	}
	return PopulatedStake{
		Populated: Populated{Tx: ledger.Tx{
			Kind:   ledger.TxUnstakeHLQT,
			From:   c.user,
			Params: params,
		}},
		NewStake:          current.ApplyUnstake(params.Amount),
		ClaimedCollateral: current.CollateralGain,
		ClaimedHUSD:       current.HUSDGain,
	}, nil
}

// PopulateLiquidate populates liquidating a specific borrower's trove.
func (c *Client) PopulateLiquidate(_ context.Context, params ledger.LiquidateParams) (Populated, error) {
	if err := params.Validate(); err != nil {
		return Populated{}, err
	}
	return Populated{Tx: ledger.Tx{
		Kind:   ledger.TxLiquidate,
		From:   c.user,
		Params: params,
	}}, nil
}

// PopulateRegisterFrontend populates registering the user as a stability
// pool frontend.
func (c *Client) PopulateRegisterFrontend(_ context.Context, params ledger.RegisterFrontendParams) (Populated, error) {
	if err := params.Validate(); err != nil {
		return Populated{}, err
	}
	return Populated{Tx: ledger.Tx{
		Kind:   ledger.TxRegisterFrontend,
		From:   c.user,
		Params: params,
	}}, nil
}

// checkTroveBounds enforces the minimum net debt and the minimum collateral
// ratio on a prospective trove.
func checkTroveBounds(t trove.Trove, price decimal.Decimal) error {
	netDebt, err := t.NetDebt()
	if err != nil {
		return err
	}
	if netDebt.LT(protocol.MinimumNetDebt) {
		return fmt.Errorf("%w: net debt %s < %s", ErrBelowMinimumDebt, netDebt, protocol.MinimumNetDebt)
	}
	below, err := t.IsBelowMinimumCollateralRatio(price)
	if err != nil {
		return err
	}
	if below {
		ratio, _ := t.CollateralRatio(price)
		return fmt.Errorf("%w: ratio %s < %s", ErrUndercollateralized, ratio, protocol.MinimumCollateralRatio)
	}
	return nil
}

// collectRiskiest pages through the ascending-ratio trove list until the
// collected net debt covers the redemption amount or the list ends.
func (c *Client) collectRiskiest(ctx context.Context, view marketView, amount decimal.Decimal) ([]trove.UserTrove, error) {
	var collected []trove.UserTrove
	covered := decimal.Zero()
	for start := 0; ; start += trovePageSize {
		page, err := c.reader.Troves(ctx, view.tag(), start, trovePageSize, ledger.AscendingCollateralRatio)
		if err != nil {
			return nil, fmt.Errorf("client: list troves: %w", err)
		}
		for _, record := range page {
			applied := trove.ApplyRedistribution(record, view.state.Redistributed)
			collected = append(collected, applied)
			covered = covered.Add(applied.Debt)
		}
		if covered.GTE(amount) || len(page) < trovePageSize {
			return collected, nil
		}
	}
}

// partialRemainder returns the final trove's state after a partial
// redemption, when the traversal ends mid-trove.
func partialRemainder(sorted []trove.UserTrove, result redemption.Result) (trove.Trove, bool, error) {
	last := result.Portions[len(result.Portions)-1]
	if last.Full {
		return trove.Trove{}, false, nil
	}
	for _, candidate := range sorted {
		if candidate.Owner != last.Owner {
			continue
		}
		remainder, err := candidate.Trove.SubtractCollateral(last.Collateral)
		if err != nil {
			return trove.Trove{}, false, err
		}
		remainder, err = remainder.SubtractDebt(last.Debt)
		if err != nil {
			return trove.Trove{}, false, err
		}
		return remainder, true, nil
	}
	return trove.Trove{}, false, fmt.Errorf("client: partial trove %s not in walked set", last.Owner)
}
