// Package ledger defines the interfaces through which the client reads and
// writes protocol state on the chain. The concrete JSON-RPC implementation
// lives in ledger/rpc; tests substitute in-memory fakes.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"hydroclient/decimal"
	"hydroclient/pool"
	"hydroclient/trove"
)

// Sentinel errors shared across ledger implementations.
var (
	// ErrStaleHint reports a submission rejected because the supplied
	// insertion hints no longer match the ledger's sorted list.
	ErrStaleHint = fmt.Errorf("ledger: stale insertion hint")
	// ErrRejected reports a submission that failed the ledger's own
	// invariant checks; retrying without changed inputs cannot succeed.
	ErrRejected = fmt.Errorf("ledger: transaction rejected")
	// ErrUnknownSortOrder reports an unrecognised trove list ordering.
	ErrUnknownSortOrder = fmt.Errorf("ledger: unknown sort order")
	// ErrNegativeCount reports a negative pagination parameter.
	ErrNegativeCount = fmt.Errorf("ledger: negative count")
)

// BlockTag identifies the ledger state snapshot a read should be served
// from. The zero value means the latest block.
type BlockTag struct {
	height uint64
	pinned bool
}

// Latest addresses the most recent block.
func Latest() BlockTag { return BlockTag{} }

// AtHeight addresses an explicit historic block.
func AtHeight(height uint64) BlockTag { return BlockTag{height: height, pinned: true} }

// IsLatest reports whether the tag floats with the chain head.
func (t BlockTag) IsLatest() bool { return !t.pinned }

// Height returns the pinned height; valid only when IsLatest is false.
func (t BlockTag) Height() uint64 { return t.height }

// String implements fmt.Stringer.
func (t BlockTag) String() string {
	if t.IsLatest() {
		return "latest"
	}
	return fmt.Sprintf("%d", t.height)
}

// BlockHeader is the subset of block metadata the client tracks.
type BlockHeader struct {
	Number uint64
	Time   time.Time
	Hash   common.Hash
}

// SortOrder selects the direction of a trove list query.
type SortOrder string

const (
	// AscendingCollateralRatio walks from the riskiest trove upward.
	AscendingCollateralRatio SortOrder = "ascendingCollateralRatio"
	// DescendingCollateralRatio walks from the safest trove downward.
	DescendingCollateralRatio SortOrder = "descendingCollateralRatio"
)

// Validate rejects unknown orderings before any network call is made.
func (o SortOrder) Validate() error {
	switch o {
	case AscendingCollateralRatio, DescendingCollateralRatio:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSortOrder, string(o))
	}
}

// Scope selects whose state a read refers to: an explicit address or the
// connection's current user. It is resolved exactly once at the call
// boundary, never defaulted inside a computation.
type Scope struct {
	address common.Address
	current bool
}

// ForAddress scopes a read to an explicit owner address.
func ForAddress(address common.Address) Scope { return Scope{address: address} }

// ForCurrentUser scopes a read to the connection's configured user.
func ForCurrentUser() Scope { return Scope{current: true} }

// IsCurrentUser reports whether the scope refers to the connection's user.
func (s Scope) IsCurrentUser() bool { return s.current }

// Resolve returns the concrete address the scope refers to.
func (s Scope) Resolve(currentUser common.Address) common.Address {
	if s.current {
		return currentUser
	}
	return s.address
}

// ProtocolState is the batched set of global quantities the client tracks
// per block.
type ProtocolState struct {
	// Price is the collateral price in HUSD.
	Price decimal.Decimal
	// NumberOfTroves is the current open trove count.
	NumberOfTroves uint64
	// TotalCollateral and TotalDebt aggregate every open trove including
	// pending redistribution.
	TotalCollateral decimal.Decimal
	TotalDebt       decimal.Decimal
	// Redistributed are the global liquidation accumulators.
	Redistributed trove.RedistributionTotals
	// BaseRate and LastFeeUpdate are the fee engine inputs stored on the
	// ledger.
	BaseRate      decimal.Decimal
	LastFeeUpdate time.Time
	// RecoveryMode flags a system-wide collateral ratio under the critical
	// threshold.
	RecoveryMode bool
	// HUSDInStabilityPool is the pool's total deposit balance.
	HUSDInStabilityPool decimal.Decimal
	// TotalStakedHLQT is the protocol token amount staked for fee revenue.
	TotalStakedHLQT decimal.Decimal
	// RemainingStabilityPoolHLQTReward is the undistributed reward budget.
	RemainingStabilityPoolHLQTReward decimal.Decimal
}

// TokenBalances groups the per-address balances the client displays.
type TokenBalances struct {
	HUSD       decimal.Decimal
	HLQT       decimal.Decimal
	Collateral decimal.Decimal
}

// HintCandidate is one sampling round's best approximate neighbour.
type HintCandidate struct {
	// Address is the sampled trove closest to the target ratio so far.
	Address common.Address
	// Diff is the absolute difference between the candidate's nominal
	// collateral ratio and the target's.
	Diff decimal.Decimal
	// NextSeed must feed the following sampling round so rounds draw
	// distinct candidates.
	NextSeed uint64
}

// Reader is the asynchronous read side of the ledger. Every call accepts a
// block tag for point-in-time consistency; implementations must not fall
// back to the wall clock for any time-derived quantity.
type Reader interface {
	ProtocolState(ctx context.Context, tag BlockTag) (*ProtocolState, error)
	BlockHeader(ctx context.Context, tag BlockTag) (BlockHeader, error)

	Trove(ctx context.Context, tag BlockTag, owner common.Address) (trove.TroveWithPendingRedistribution, error)
	Troves(ctx context.Context, tag BlockTag, start, count int, order SortOrder) ([]trove.TroveWithPendingRedistribution, error)

	ApproxHint(ctx context.Context, tag BlockTag, target decimal.Decimal, trials int, seed uint64) (HintCandidate, error)
	FindInsertPosition(ctx context.Context, tag BlockTag, target decimal.Decimal, approx common.Address) (prev, next common.Address, err error)

	StabilityDeposit(ctx context.Context, tag BlockTag, owner common.Address) (pool.StabilityDeposit, error)
	HLQTStake(ctx context.Context, tag BlockTag, owner common.Address) (pool.HLQTStake, error)
	FrontendStatus(ctx context.Context, tag BlockTag, frontend common.Address) (pool.FrontendStatus, error)
	Balances(ctx context.Context, tag BlockTag, owner common.Address) (TokenBalances, error)
}

// BlockWatcher delivers block advancement notifications.
type BlockWatcher interface {
	// SubscribeBlocks starts delivering new block headers. The returned
	// cancel function releases the subscription and is safe to call more
	// than once.
	SubscribeBlocks(ctx context.Context) (<-chan BlockHeader, func(), error)
}

// ReceiptStatus is the terminal outcome of a submitted transaction.
type ReceiptStatus uint8

const (
	// ReceiptPending means the transaction has not been included yet.
	ReceiptPending ReceiptStatus = iota
	// ReceiptSucceeded means the ledger applied the state change.
	ReceiptSucceeded
	// ReceiptFailed means the ledger rejected the state change.
	ReceiptFailed
)

// Receipt is the confirmed outcome of a submission.
type Receipt struct {
	Status      ReceiptStatus
	BlockNumber uint64
	// Err carries the rejection cause for failed receipts; ErrStaleHint
	// marks rejections that a refreshed hint may cure.
	Err error
}

// Handle tracks a submitted transaction until confirmation.
type Handle interface {
	Hash() common.Hash
	WaitForReceipt(ctx context.Context) (Receipt, error)
}

// Transactor is the write side of the ledger: it signs and submits the fixed
// set of state-changing operations.
type Transactor interface {
	Submit(ctx context.Context, tx Tx) (Handle, error)
}
