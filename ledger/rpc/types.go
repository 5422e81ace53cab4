package rpc

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"hydroclient/decimal"
	"hydroclient/ledger"
	"hydroclient/trove"
)

// Wire quantities are 256-bit hex strings at the ledger's native 18-digit
// scale; hexutil.U256 keeps the decoding overflow-checked.

func decFromWire(q hexutil.U256) decimal.Decimal {
	return decimal.FromWire((*uint256.Int)(&q))
}

func decToWire(d decimal.Decimal) (hexutil.U256, error) {
	q, err := d.Wire()
	if err != nil {
		return hexutil.U256{}, err
	}
	return hexutil.U256(*q), nil
}

func wireTag(tag ledger.BlockTag) string {
	if tag.IsLatest() {
		return "latest"
	}
	return hexutil.Uint64(tag.Height()).String()
}

type protocolStateResult struct {
	Price                            hexutil.U256   `json:"price"`
	NumberOfTroves                   hexutil.Uint64 `json:"numberOfTroves"`
	TotalCollateral                  hexutil.U256   `json:"totalCollateral"`
	TotalDebt                        hexutil.U256   `json:"totalDebt"`
	RedistributedCollateral          hexutil.U256   `json:"redistributedCollateral"`
	RedistributedDebt                hexutil.U256   `json:"redistributedDebt"`
	BaseRate                         hexutil.U256   `json:"baseRate"`
	LastFeeUpdate                    hexutil.Uint64 `json:"lastFeeUpdate"`
	RecoveryMode                     bool           `json:"recoveryMode"`
	HUSDInStabilityPool              hexutil.U256   `json:"husdInStabilityPool"`
	TotalStakedHLQT                  hexutil.U256   `json:"totalStakedHLQT"`
	RemainingStabilityPoolHLQTReward hexutil.U256   `json:"remainingStabilityPoolHLQTReward"`
}

func (r protocolStateResult) toState() *ledger.ProtocolState {
	return &ledger.ProtocolState{
		Price:           decFromWire(r.Price),
		NumberOfTroves:  uint64(r.NumberOfTroves),
		TotalCollateral: decFromWire(r.TotalCollateral),
		TotalDebt:       decFromWire(r.TotalDebt),
		Redistributed: trove.RedistributionTotals{
			Collateral: decFromWire(r.RedistributedCollateral),
			Debt:       decFromWire(r.RedistributedDebt),
		},
		BaseRate:                         decFromWire(r.BaseRate),
		LastFeeUpdate:                    time.Unix(int64(r.LastFeeUpdate), 0).UTC(),
		RecoveryMode:                     r.RecoveryMode,
		HUSDInStabilityPool:              decFromWire(r.HUSDInStabilityPool),
		TotalStakedHLQT:                  decFromWire(r.TotalStakedHLQT),
		RemainingStabilityPoolHLQTReward: decFromWire(r.RemainingStabilityPoolHLQTReward),
	}
}

type blockHeaderResult struct {
	Number    hexutil.Uint64 `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
	Hash      common.Hash    `json:"hash"`
}

func (r blockHeaderResult) toHeader() ledger.BlockHeader {
	return ledger.BlockHeader{
		Number: uint64(r.Number),
		Time:   time.Unix(int64(r.Timestamp), 0).UTC(),
		Hash:   r.Hash,
	}
}

type troveResult struct {
	Owner              common.Address `json:"owner"`
	Status             string         `json:"status"`
	Collateral         hexutil.U256   `json:"collateral"`
	Debt               hexutil.U256   `json:"debt"`
	Stake              hexutil.U256   `json:"stake"`
	SnapshotCollateral hexutil.U256   `json:"snapshotCollateral"`
	SnapshotDebt       hexutil.U256   `json:"snapshotDebt"`
}

func parseStatus(s string) (trove.Status, error) {
	switch s {
	case "nonExistent":
		return trove.StatusNonExistent, nil
	case "open":
		return trove.StatusOpen, nil
	case "closedByOwner":
		return trove.StatusClosedByOwner, nil
	case "closedByLiquidation":
		return trove.StatusClosedByLiquidation, nil
	case "closedByRedemption":
		return trove.StatusClosedByRedemption, nil
	default:
		return trove.StatusNonExistent, fmt.Errorf("unknown trove status %q", s)
	}
}

func (r troveResult) toTrove() (trove.TroveWithPendingRedistribution, error) {
	status, err := parseStatus(r.Status)
	if err != nil {
		return trove.TroveWithPendingRedistribution{}, err
	}
	return trove.TroveWithPendingRedistribution{
		Owner:  r.Owner,
		Status: status,
		Trove: trove.Trove{
			Collateral: decFromWire(r.Collateral),
			Debt:       decFromWire(r.Debt),
		},
		Stake: decFromWire(r.Stake),
		Snapshot: trove.RedistributionTotals{
			Collateral: decFromWire(r.SnapshotCollateral),
			Debt:       decFromWire(r.SnapshotDebt),
		},
	}, nil
}

type hintCandidateResult struct {
	Address  common.Address `json:"address"`
	Diff     hexutil.U256   `json:"diff"`
	NextSeed hexutil.Uint64 `json:"nextSeed"`
}

type insertPositionResult struct {
	Prev common.Address `json:"prev"`
	Next common.Address `json:"next"`
}

type stabilityDepositResult struct {
	InitialHUSD    hexutil.U256   `json:"initialHUSD"`
	CurrentHUSD    hexutil.U256   `json:"currentHUSD"`
	CollateralGain hexutil.U256   `json:"collateralGain"`
	HLQTReward     hexutil.U256   `json:"hlqtReward"`
	FrontendTag    common.Address `json:"frontendTag"`
}

type stakeResult struct {
	StakedHLQT     hexutil.U256 `json:"stakedHLQT"`
	CollateralGain hexutil.U256 `json:"collateralGain"`
	HUSDGain       hexutil.U256 `json:"husdGain"`
}

type frontendStatusResult struct {
	Registered   bool          `json:"registered"`
	KickbackRate *hexutil.U256 `json:"kickbackRate,omitempty"`
}

type balancesResult struct {
	HUSD       hexutil.U256 `json:"husd"`
	HLQT       hexutil.U256 `json:"hlqt"`
	Collateral hexutil.U256 `json:"collateral"`
}

type submitResult struct {
	Hash common.Hash `json:"hash"`
}

type receiptResult struct {
	Status      string         `json:"status"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	ErrorCode   int            `json:"errorCode,omitempty"`
	ErrorReason string         `json:"errorReason,omitempty"`
}
