// Package client is the high-level entry point: it wires the ledger reader
// and transactor, the block-synchronized store and the hint search into one
// API that populates, simulates, submits and confirms protocol operations.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"hydroclient/decimal"
	"hydroclient/fees"
	"hydroclient/hints"
	"hydroclient/ledger"
	"hydroclient/pool"
	"hydroclient/store"
	"hydroclient/trove"
)

// DefaultMaxStaleRetries bounds resubmissions after stale-hint rejections.
const DefaultMaxStaleRetries = 3

// trovePageSize is the page length used when walking the sorted trove list.
const trovePageSize = 100

var (
	// ErrFeeRateExceeded reports that the current fee rate is above the
	// caller's acceptable maximum; the populated transaction would be
	// rejected on chain, so it is refused locally.
	ErrFeeRateExceeded = fmt.Errorf("client: current fee rate exceeds maximum")
	// ErrBelowMinimumDebt reports a trove that would end up under the
	// protocol's minimum net debt.
	ErrBelowMinimumDebt = fmt.Errorf("client: trove net debt below minimum")
	// ErrUndercollateralized reports a trove that would end up under the
	// minimum collateral ratio.
	ErrUndercollateralized = fmt.Errorf("client: trove below minimum collateral ratio")
	// ErrNoTrove reports an operation that needs an open trove when the user
	// has none.
	ErrNoTrove = fmt.Errorf("client: user has no open trove")
	// ErrStaleRetriesExhausted reports a submission that kept being rejected
	// for stale hints after the configured number of repopulations.
	ErrStaleRetriesExhausted = fmt.Errorf("client: stale hint retries exhausted")
)

// Config wires the client's collaborators.
type Config struct {
	Reader     ledger.Reader
	Transactor ledger.Transactor
	// Store is optional; when set, reads prefer its cached snapshot and
	// confirmed writes patch it optimistically.
	Store *store.Store
	// User is the address transactions are populated for.
	User common.Address
	// Frontend tags stability pool deposits; the zero address leaves them
	// untagged.
	Frontend common.Address
	// MaxStaleRetries bounds resubmission after stale-hint rejections.
	// Zero means DefaultMaxStaleRetries.
	MaxStaleRetries int
	Logger          *slog.Logger
}

// Client populates, simulates and submits protocol operations for one user.
type Client struct {
	reader     ledger.Reader
	transactor ledger.Transactor
	store      *store.Store
	user       common.Address
	frontend   common.Address
	maxRetries int
	logger     *slog.Logger
}

// New constructs a client.
func New(cfg Config) (*Client, error) {
	if cfg.Reader == nil {
		return nil, fmt.Errorf("client: reader is required")
	}
	if cfg.Transactor == nil {
		return nil, fmt.Errorf("client: transactor is required")
	}
	retries := cfg.MaxStaleRetries
	if retries <= 0 {
		retries = DefaultMaxStaleRetries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		reader:     cfg.Reader,
		transactor: cfg.Transactor,
		store:      cfg.Store,
		user:       cfg.User,
		frontend:   cfg.Frontend,
		maxRetries: retries,
		logger:     logger,
	}, nil
}

// User returns the address the client populates transactions for.
func (c *Client) User() common.Address { return c.user }

// ProtocolState reads the global protocol quantities, from the store's
// cached snapshot when one covers the tag.
func (c *Client) ProtocolState(ctx context.Context, tag ledger.BlockTag) (*ledger.ProtocolState, error) {
	if snapshot := c.cachedSnapshot(tag); snapshot != nil {
		state := snapshot.Protocol
		return &state, nil
	}
	return c.reader.ProtocolState(ctx, tag)
}

// UserTrove reads the scoped owner's trove with pending redistribution
// applied.
func (c *Client) UserTrove(ctx context.Context, tag ledger.BlockTag, scope ledger.Scope) (trove.UserTrove, error) {
	if c.store != nil {
		return c.store.UserTrove(ctx, tag, scope)
	}
	record, err := c.reader.Trove(ctx, tag, scope.Resolve(c.user))
	if err != nil {
		return trove.UserTrove{}, err
	}
	state, err := c.reader.ProtocolState(ctx, tag)
	if err != nil {
		return trove.UserTrove{}, err
	}
	return trove.ApplyRedistribution(record, state.Redistributed), nil
}

// Troves pages through the sorted trove list with redistribution applied.
func (c *Client) Troves(ctx context.Context, tag ledger.BlockTag, start, count int, order ledger.SortOrder) ([]trove.UserTrove, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if start < 0 || count < 0 {
		return nil, fmt.Errorf("%w: start %d count %d", ledger.ErrNegativeCount, start, count)
	}
	state, err := c.ProtocolState(ctx, tag)
	if err != nil {
		return nil, err
	}
	records, err := c.reader.Troves(ctx, tag, start, count, order)
	if err != nil {
		return nil, err
	}
	applied := make([]trove.UserTrove, 0, len(records))
	for _, record := range records {
		applied = append(applied, trove.ApplyRedistribution(record, state.Redistributed))
	}
	return applied, nil
}

// StabilityDeposit reads the scoped owner's stability deposit.
func (c *Client) StabilityDeposit(ctx context.Context, tag ledger.BlockTag, scope ledger.Scope) (pool.StabilityDeposit, error) {
	if c.store != nil {
		return c.store.StabilityDeposit(ctx, tag, scope)
	}
	return c.reader.StabilityDeposit(ctx, tag, scope.Resolve(c.user))
}

// HLQTStake reads the scoped owner's protocol token stake.
func (c *Client) HLQTStake(ctx context.Context, tag ledger.BlockTag, scope ledger.Scope) (pool.HLQTStake, error) {
	if c.store != nil {
		return c.store.HLQTStake(ctx, tag, scope)
	}
	return c.reader.HLQTStake(ctx, tag, scope.Resolve(c.user))
}

// Balances reads the scoped owner's token balances.
func (c *Client) Balances(ctx context.Context, tag ledger.BlockTag, scope ledger.Scope) (ledger.TokenBalances, error) {
	if c.store != nil {
		return c.store.Balances(ctx, tag, scope)
	}
	return c.reader.Balances(ctx, tag, scope.Resolve(c.user))
}

// FrontendStatus reads a frontend address's registration.
func (c *Client) FrontendStatus(ctx context.Context, tag ledger.BlockTag, frontend common.Address) (pool.FrontendStatus, error) {
	return c.reader.FrontendStatus(ctx, tag, frontend)
}

// cachedSnapshot returns the store snapshot when it can serve the tag.
func (c *Client) cachedSnapshot(tag ledger.BlockTag) *store.Snapshot {
	if c.store == nil {
		return nil
	}
	snapshot := c.store.Snapshot()
	if snapshot == nil {
		return nil
	}
	if !tag.IsLatest() && tag.Height() != snapshot.BlockNumber {
		return nil
	}
	return snapshot
}

// marketView bundles the per-block inputs every populate step needs: the
// protocol state, the block the view is pinned at and the block timestamp
// the fee decay is evaluated at.
type marketView struct {
	state       ledger.ProtocolState
	fees        fees.State
	blockNumber uint64
	blockTime   time.Time
}

// tag pins subsequent reads to the view's block.
func (v marketView) tag() ledger.BlockTag { return ledger.AtHeight(v.blockNumber) }

func (c *Client) market(ctx context.Context, tag ledger.BlockTag) (marketView, error) {
	if snapshot := c.cachedSnapshot(tag); snapshot != nil {
		return marketView{
			state:       snapshot.Protocol,
			fees:        snapshot.Fees,
			blockNumber: snapshot.BlockNumber,
			blockTime:   snapshot.BlockTime,
		}, nil
	}
	head, err := c.reader.BlockHeader(ctx, tag)
	if err != nil {
		return marketView{}, fmt.Errorf("client: block header: %w", err)
	}
	state, err := c.reader.ProtocolState(ctx, ledger.AtHeight(head.Number))
	if err != nil {
		return marketView{}, fmt.Errorf("client: protocol state: %w", err)
	}
	return marketView{
		state:       *state,
		fees:        fees.Default(state.BaseRate, state.LastFeeUpdate),
		blockNumber: head.Number,
		blockTime:   head.Time,
	}, nil
}

// retag adapts a tag-parameterised populate step into the hook Send invokes
// after a stale-hint rejection, so hints are searched again at the head the
// resubmission will land on.
func retag(populate func(context.Context, ledger.BlockTag) (ledger.Tx, error)) func(context.Context) (ledger.Tx, error) {
	return func(ctx context.Context) (ledger.Tx, error) {
		return populate(ctx, ledger.Latest())
	}
}

// searchHints locates the sorted-list neighbours for a trove with the given
// nominal collateral ratio. The initial sampling seed derives from the
// target itself; the ledger chains fresh seeds between rounds.
func (c *Client) searchHints(ctx context.Context, tag ledger.BlockTag, target decimal.Decimal, numTroves uint64) (ledger.Hints, error) {
	seed := target.BigInt().Uint64()
	found, err := hints.Search(ctx, c.reader, tag, target, numTroves, seed)
	if err != nil {
		return ledger.Hints{}, err
	}
	return ledger.Hints{Upper: found.Prev, Lower: found.Next}, nil
}
