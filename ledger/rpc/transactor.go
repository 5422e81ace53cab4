package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"hydroclient/decimal"
	"hydroclient/ledger"
)

var _ ledger.Transactor = (*Client)(nil)

// codeStaleHint is the node's error code for submissions rejected because
// the supplied sorted-list hints no longer match.
const codeStaleHint = -38001

type submitParams struct {
	Kind   string         `json:"kind"`
	From   common.Address `json:"from"`
	Params map[string]any `json:"params"`
}

func wireAmount(fields map[string]any, key string, value decimal.Decimal) error {
	wire, err := decToWire(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	fields[key] = wire
	return nil
}

func wireParams(tx ledger.Tx) (map[string]any, error) {
	fields := map[string]any{}
	switch params := tx.Params.(type) {
	case ledger.OpenTroveParams:
		for key, value := range map[string]decimal.Decimal{
			"collateral": params.Collateral,
			"borrowHUSD": params.BorrowHUSD,
			"maxFeeRate": params.MaxFeeRate,
		} {
			if err := wireAmount(fields, key, value); err != nil {
				return nil, err
			}
		}
		fields["upperHint"] = params.Hints.Upper
		fields["lowerHint"] = params.Hints.Lower
	case ledger.AdjustTroveParams:
		for key, value := range map[string]decimal.Decimal{
			"depositCollateral":  params.DepositCollateral,
			"withdrawCollateral": params.WithdrawCollateral,
			"borrowHUSD":         params.BorrowHUSD,
			"repayHUSD":          params.RepayHUSD,
			"maxFeeRate":         params.MaxFeeRate,
		} {
			if err := wireAmount(fields, key, value); err != nil {
				return nil, err
			}
		}
		fields["upperHint"] = params.Hints.Upper
		fields["lowerHint"] = params.Hints.Lower
	case ledger.CloseTroveParams:
	case ledger.ProvideToSPParams:
		if err := wireAmount(fields, "amount", params.Amount); err != nil {
			return nil, err
		}
		fields["frontendTag"] = params.FrontendTag
	case ledger.WithdrawFromSPParams:
		if err := wireAmount(fields, "amount", params.Amount); err != nil {
			return nil, err
		}
	case ledger.StakeParams:
		if err := wireAmount(fields, "amount", params.Amount); err != nil {
			return nil, err
		}
	case ledger.UnstakeParams:
		if err := wireAmount(fields, "amount", params.Amount); err != nil {
			return nil, err
		}
	case ledger.RedeemParams:
		for key, value := range map[string]decimal.Decimal{
			"amount":           params.Amount,
			"maxFeeRate":       params.MaxFeeRate,
			"partialNominalCR": params.PartialNominalCR,
		} {
			if err := wireAmount(fields, key, value); err != nil {
				return nil, err
			}
		}
		fields["firstHint"] = params.FirstHint
		fields["upperPartialHint"] = params.PartialHints.Upper
		fields["lowerPartialHint"] = params.PartialHints.Lower
	case ledger.LiquidateParams:
		fields["borrower"] = params.Borrower
	case ledger.RegisterFrontendParams:
		if err := wireAmount(fields, "kickbackRate", params.KickbackRate); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported params type %T for %s", tx.Params, tx.Kind)
	}
	return fields, nil
}

// Submit signs and submits the populated transaction, returning a handle
// that polls for the confirmation receipt.
func (c *Client) Submit(ctx context.Context, tx ledger.Tx) (ledger.Handle, error) {
	fields, err := wireParams(tx)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", tx.Kind, err)
	}
	var result submitResult
	params := []any{submitParams{Kind: string(tx.Kind), From: tx.From, Params: fields}}
	if err := c.Call(ctx, "hydro_submitTx", params, &result); err != nil {
		return nil, fmt.Errorf("submit %s: %w", tx.Kind, err)
	}
	return &pendingTx{client: c, hash: result.Hash}, nil
}

type pendingTx struct {
	client *Client
	hash   common.Hash
}

// Hash returns the submitted transaction's hash.
func (p *pendingTx) Hash() common.Hash { return p.hash }

// WaitForReceipt polls the node until the transaction confirms or the
// context ends.
func (p *pendingTx) WaitForReceipt(ctx context.Context) (ledger.Receipt, error) {
	ticker := time.NewTicker(p.client.pollInterval)
	defer ticker.Stop()
	for {
		var result receiptResult
		err := p.client.Call(ctx, "hydro_getTransactionReceipt", []any{p.hash}, &result)
		if err != nil {
			return ledger.Receipt{}, fmt.Errorf("get receipt: %w", err)
		}
		switch result.Status {
		case "succeeded":
			return ledger.Receipt{Status: ledger.ReceiptSucceeded, BlockNumber: uint64(result.BlockNumber)}, nil
		case "failed":
			receipt := ledger.Receipt{Status: ledger.ReceiptFailed, BlockNumber: uint64(result.BlockNumber)}
			if result.ErrorCode == codeStaleHint {
				receipt.Err = ledger.ErrStaleHint
			} else {
				receipt.Err = fmt.Errorf("%w: %s", ledger.ErrRejected, result.ErrorReason)
			}
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return ledger.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
