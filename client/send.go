package client

import (
	"context"
	"errors"
	"fmt"

	"hydroclient/decimal"
	"hydroclient/ledger"
	"hydroclient/store"
	"hydroclient/trove"
)

// Send submits the populated transaction and waits for its receipt. A
// rejection caused by stale insertion hints triggers repopulation against
// the current head and a resubmission, up to the configured retry budget;
// any other rejection is terminal. On success the store, when present, is
// patched optimistically and scheduled for a reconciling refresh.
func (c *Client) Send(ctx context.Context, populated Populated) (ledger.Receipt, error) {
	tx := populated.Tx
	for attempt := 0; ; attempt++ {
		handle, err := c.transactor.Submit(ctx, tx)
		if err != nil {
			return ledger.Receipt{}, fmt.Errorf("client: submit %s: %w", tx.Kind, err)
		}
		receipt, err := handle.WaitForReceipt(ctx)
		if err != nil {
			return ledger.Receipt{}, fmt.Errorf("client: wait for %s: %w", tx.Kind, err)
		}

		if receipt.Status == ledger.ReceiptFailed && errors.Is(receipt.Err, ledger.ErrStaleHint) &&
			populated.repopulate != nil {
			if attempt >= c.maxRetries {
				return receipt, fmt.Errorf("%w: %s failed %d times: %w",
					ErrStaleRetriesExhausted, tx.Kind, attempt+1, receipt.Err)
			}
			c.logger.Warn("hints went stale; repopulating and resubmitting",
				"kind", tx.Kind, "attempt", attempt+1)
			tx, err = populated.repopulate(ctx)
			if err != nil {
				return receipt, fmt.Errorf("client: repopulate %s: %w", populated.Tx.Kind, err)
			}
			continue
		}

		if receipt.Status == ledger.ReceiptSucceeded {
			c.patchStore(tx)
		}
		return receipt, nil
	}
}

// ConfirmedTrove reads the user's trove at the block a successful receipt
// landed in, replacing populate-time simulation with the applied values.
func (c *Client) ConfirmedTrove(ctx context.Context, receipt ledger.Receipt) (trove.UserTrove, error) {
	if receipt.Status != ledger.ReceiptSucceeded {
		return trove.UserTrove{}, fmt.Errorf("client: receipt did not succeed")
	}
	return c.UserTrove(ctx, ledger.AtHeight(receipt.BlockNumber), ledger.ForCurrentUser())
}

// patchStore applies the optimistic single-quantity adjustment a confirmed
// transaction is known to cause, for the operations whose local effect is
// unambiguous. The store's forced refresh reconciles everything else.
func (c *Client) patchStore(tx ledger.Tx) {
	if c.store == nil {
		return
	}
	switch params := tx.Params.(type) {
	case ledger.ProvideToSPParams:
		c.store.Patch(func(s *store.Snapshot) {
			s.Balances.HUSD = floorZero(s.Balances.HUSD.Sub(params.Amount))
			s.Balances.Collateral = s.Balances.Collateral.Add(s.StabilityDeposit.CollateralGain)
			s.Balances.HLQT = s.Balances.HLQT.Add(s.StabilityDeposit.HLQTReward)
			s.StabilityDeposit = s.StabilityDeposit.ApplyDeposit(params.Amount)
		})
	case ledger.WithdrawFromSPParams:
		c.store.Patch(func(s *store.Snapshot) {
			withdrawn := decimal.Min(params.Amount, s.StabilityDeposit.CurrentHUSD)
			s.Balances.HUSD = s.Balances.HUSD.Add(withdrawn)
			s.Balances.Collateral = s.Balances.Collateral.Add(s.StabilityDeposit.CollateralGain)
			s.Balances.HLQT = s.Balances.HLQT.Add(s.StabilityDeposit.HLQTReward)
			s.StabilityDeposit = s.StabilityDeposit.ApplyWithdrawal(params.Amount)
		})
	case ledger.StakeParams:
		c.store.Patch(func(s *store.Snapshot) {
			s.Balances.HLQT = floorZero(s.Balances.HLQT.Sub(params.Amount))
			s.Balances.Collateral = s.Balances.Collateral.Add(s.Stake.CollateralGain)
			s.Balances.HUSD = s.Balances.HUSD.Add(s.Stake.HUSDGain)
			s.Stake = s.Stake.ApplyStake(params.Amount)
		})
	case ledger.UnstakeParams:
		c.store.Patch(func(s *store.Snapshot) {
			unstaked := decimal.Min(params.Amount, s.Stake.StakedHLQT)
			s.Balances.HLQT = s.Balances.HLQT.Add(unstaked)
			s.Balances.Collateral = s.Balances.Collateral.Add(s.Stake.CollateralGain)
			s.Balances.HUSD = s.Balances.HUSD.Add(s.Stake.HUSDGain)
			s.Stake = s.Stake.ApplyUnstake(params.Amount)
		})
	}
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.Sign() < 0 {
		return decimal.Zero()
	}
	return d
}
