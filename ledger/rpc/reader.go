package rpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"hydroclient/decimal"
	"hydroclient/ledger"
	"hydroclient/pool"
	"hydroclient/trove"
)

var _ ledger.Reader = (*Client)(nil)

// ProtocolState fetches the batched global quantities at the given block.
func (c *Client) ProtocolState(ctx context.Context, tag ledger.BlockTag) (*ledger.ProtocolState, error) {
	var result protocolStateResult
	if err := c.Call(ctx, "hydro_getProtocolState", []any{wireTag(tag)}, &result); err != nil {
		return nil, fmt.Errorf("get protocol state: %w", err)
	}
	return result.toState(), nil
}

// BlockHeader fetches block metadata for the given tag.
func (c *Client) BlockHeader(ctx context.Context, tag ledger.BlockTag) (ledger.BlockHeader, error) {
	var result blockHeaderResult
	if err := c.Call(ctx, "hydro_getBlockHeader", []any{wireTag(tag)}, &result); err != nil {
		return ledger.BlockHeader{}, fmt.Errorf("get block header: %w", err)
	}
	return result.toHeader(), nil
}

// Trove fetches the stored per-trove record for an owner.
func (c *Client) Trove(ctx context.Context, tag ledger.BlockTag, owner common.Address) (trove.TroveWithPendingRedistribution, error) {
	var result troveResult
	if err := c.Call(ctx, "hydro_getTrove", []any{wireTag(tag), owner}, &result); err != nil {
		return trove.TroveWithPendingRedistribution{}, fmt.Errorf("get trove: %w", err)
	}
	record, err := result.toTrove()
	if err != nil {
		return trove.TroveWithPendingRedistribution{}, fmt.Errorf("get trove: %w", err)
	}
	return record, nil
}

// Troves fetches an ordered batch of trove records. Pagination parameters
// are validated before any network call.
func (c *Client) Troves(ctx context.Context, tag ledger.BlockTag, start, count int, order ledger.SortOrder) ([]trove.TroveWithPendingRedistribution, error) {
	if start < 0 || count < 0 {
		return nil, ledger.ErrNegativeCount
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	var results []troveResult
	params := []any{wireTag(tag), hexutil.Uint64(start), hexutil.Uint64(count), string(order)}
	if err := c.Call(ctx, "hydro_getTroves", params, &results); err != nil {
		return nil, fmt.Errorf("get troves: %w", err)
	}
	records := make([]trove.TroveWithPendingRedistribution, 0, len(results))
	for _, result := range results {
		record, err := result.toTrove()
		if err != nil {
			return nil, fmt.Errorf("get troves: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// ApproxHint runs one randomized sampling round on the ledger.
func (c *Client) ApproxHint(ctx context.Context, tag ledger.BlockTag, target decimal.Decimal, trials int, seed uint64) (ledger.HintCandidate, error) {
	if trials < 0 {
		return ledger.HintCandidate{}, ledger.ErrNegativeCount
	}
	wireTarget, err := decToWire(target)
	if err != nil {
		return ledger.HintCandidate{}, fmt.Errorf("approx hint: %w", err)
	}
	var result hintCandidateResult
	params := []any{wireTag(tag), wireTarget, hexutil.Uint64(trials), hexutil.Uint64(seed)}
	if err := c.Call(ctx, "hydro_getApproxHint", params, &result); err != nil {
		return ledger.HintCandidate{}, fmt.Errorf("approx hint: %w", err)
	}
	return ledger.HintCandidate{
		Address:  result.Address,
		Diff:     decFromWire(result.Diff),
		NextSeed: uint64(result.NextSeed),
	}, nil
}

// FindInsertPosition resolves the exact neighbours from an approximate hint.
func (c *Client) FindInsertPosition(ctx context.Context, tag ledger.BlockTag, target decimal.Decimal, approx common.Address) (common.Address, common.Address, error) {
	wireTarget, err := decToWire(target)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("find insert position: %w", err)
	}
	var result insertPositionResult
	params := []any{wireTag(tag), wireTarget, approx}
	if err := c.Call(ctx, "hydro_findInsertPosition", params, &result); err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("find insert position: %w", err)
	}
	return result.Prev, result.Next, nil
}

// StabilityDeposit fetches an owner's stability pool deposit.
func (c *Client) StabilityDeposit(ctx context.Context, tag ledger.BlockTag, owner common.Address) (pool.StabilityDeposit, error) {
	var result stabilityDepositResult
	if err := c.Call(ctx, "hydro_getStabilityDeposit", []any{wireTag(tag), owner}, &result); err != nil {
		return pool.StabilityDeposit{}, fmt.Errorf("get stability deposit: %w", err)
	}
	return pool.StabilityDeposit{
		InitialHUSD:    decFromWire(result.InitialHUSD),
		CurrentHUSD:    decFromWire(result.CurrentHUSD),
		CollateralGain: decFromWire(result.CollateralGain),
		HLQTReward:     decFromWire(result.HLQTReward),
		FrontendTag:    result.FrontendTag,
	}, nil
}

// HLQTStake fetches an owner's protocol token stake.
func (c *Client) HLQTStake(ctx context.Context, tag ledger.BlockTag, owner common.Address) (pool.HLQTStake, error) {
	var result stakeResult
	if err := c.Call(ctx, "hydro_getStake", []any{wireTag(tag), owner}, &result); err != nil {
		return pool.HLQTStake{}, fmt.Errorf("get stake: %w", err)
	}
	return pool.HLQTStake{
		StakedHLQT:     decFromWire(result.StakedHLQT),
		CollateralGain: decFromWire(result.CollateralGain),
		HUSDGain:       decFromWire(result.HUSDGain),
	}, nil
}

// FrontendStatus fetches a frontend's registration state.
func (c *Client) FrontendStatus(ctx context.Context, tag ledger.BlockTag, frontend common.Address) (pool.FrontendStatus, error) {
	var result frontendStatusResult
	if err := c.Call(ctx, "hydro_getFrontendStatus", []any{wireTag(tag), frontend}, &result); err != nil {
		return pool.FrontendStatus{}, fmt.Errorf("get frontend status: %w", err)
	}
	status := pool.FrontendStatus{Registered: result.Registered}
	if result.KickbackRate != nil {
		rate := decimal.FromWire((*uint256.Int)(result.KickbackRate))
		status.KickbackRate = &rate
	}
	return status, nil
}

// Balances fetches the token balances for an owner.
func (c *Client) Balances(ctx context.Context, tag ledger.BlockTag, owner common.Address) (ledger.TokenBalances, error) {
	var result balancesResult
	if err := c.Call(ctx, "hydro_getBalances", []any{wireTag(tag), owner}, &result); err != nil {
		return ledger.TokenBalances{}, fmt.Errorf("get balances: %w", err)
	}
	return ledger.TokenBalances{
		HUSD:       decFromWire(result.HUSD),
		HLQT:       decFromWire(result.HLQT),
		Collateral: decFromWire(result.Collateral),
	}, nil
}
