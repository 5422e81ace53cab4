// Package store maintains a block-synchronized cache of all protocol state
// the client tracks. It subscribes to block advancement, refreshes a
// consistent snapshot per block, serves reads from cache, and applies
// optimistic local patches after transactions until the next full refresh
// reconciles them with ledger truth.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"hydroclient/fees"
	"hydroclient/ledger"
	"hydroclient/pool"
	"hydroclient/trove"
)

// State is the lifecycle phase of the store.
type State uint8

const (
	// Unstarted means Start has not been called.
	Unstarted State = iota
	// Loading means the initial fetch is in flight.
	Loading
	// Loaded means a snapshot is published and refreshing per block.
	Loaded
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Snapshot is one consistent view of everything the store tracks, read at a
// single block. Snapshots are immutable once published; refreshes replace
// them wholesale.
type Snapshot struct {
	BlockNumber uint64
	BlockTime   time.Time

	Protocol ledger.ProtocolState
	Fees     fees.State

	User             common.Address
	TroveRecord      trove.TroveWithPendingRedistribution
	UserTrove        trove.UserTrove
	StabilityDeposit pool.StabilityDeposit
	Stake            pool.HLQTStake
	Balances         ledger.TokenBalances
	FrontendStatus   pool.FrontendStatus
}

// Update carries the previous and the freshly published snapshot to
// subscribers. Old is nil for the initial load.
type Update struct {
	Old *Snapshot
	New *Snapshot
}

// Listener receives updates synchronously on every publish.
type Listener func(Update)

// Config wires the store's collaborators.
type Config struct {
	Reader  ledger.Reader
	Watcher ledger.BlockWatcher
	// User is the address whose per-account state the snapshot tracks.
	User common.Address
	// Frontend is the frontend tag whose registration the snapshot tracks;
	// the zero address skips the lookup.
	Frontend common.Address
	// MinRefreshInterval throttles block-driven refreshes. Zero means one
	// second.
	MinRefreshInterval time.Duration
	Logger             *slog.Logger
}

// Store is the block-synchronized cache.
type Store struct {
	reader   ledger.Reader
	watcher  ledger.BlockWatcher
	user     common.Address
	frontend common.Address
	logger   *slog.Logger
	limiter  *rate.Limiter
	metrics  *storeMetrics

	mu          sync.Mutex
	state       State
	snapshot    *Snapshot
	listeners   map[uuid.UUID]Listener
	loadedCh    chan struct{}
	cancelWatch func()
	refreshCh   chan struct{}
	quit        chan struct{}
	stopped     bool

	wg sync.WaitGroup
}

// New constructs an unstarted store.
func New(cfg Config) (*Store, error) {
	if cfg.Reader == nil {
		return nil, fmt.Errorf("store: reader is required")
	}
	if cfg.Watcher == nil {
		return nil, fmt.Errorf("store: block watcher is required")
	}
	interval := cfg.MinRefreshInterval
	if interval <= 0 {
		interval = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		reader:    cfg.Reader,
		watcher:   cfg.Watcher,
		user:      cfg.User,
		frontend:  cfg.Frontend,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		metrics:   Metrics(),
		listeners: map[uuid.UUID]Listener{},
		loadedCh:  make(chan struct{}),
		refreshCh: make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}, nil
}

// State returns the current lifecycle phase.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loaded returns a channel closed once the initial snapshot is published.
func (s *Store) Loaded() <-chan struct{} {
	return s.loadedCh
}

// Start transitions Unstarted -> Loading, subscribes to block advancement
// and kicks off the initial full fetch. It is an error to start twice.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Unstarted {
		s.mu.Unlock()
		return fmt.Errorf("store: already started (state %s)", s.state)
	}
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("store: stopped")
	}
	s.state = Loading
	s.mu.Unlock()

	headers, cancel, err := s.watcher.SubscribeBlocks(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = Unstarted
		s.mu.Unlock()
		return fmt.Errorf("store: subscribe blocks: %w", err)
	}
	s.mu.Lock()
	s.cancelWatch = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, headers)
	return nil
}

// Stop cancels the block subscription and waits for the refresh loop to
// exit. The watcher is only required to release the subscription on cancel,
// not to close the headers channel, so the loop is told to quit directly.
// Stop is safe to call multiple times and from any state.
func (s *Store) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.quit)
	}
	cancel := s.cancelWatch
	s.cancelWatch = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Subscribe registers a listener invoked synchronously on every published
// update. The returned function removes the registration and is idempotent.
func (s *Store) Subscribe(listener Listener) func() {
	id := uuid.New()
	s.mu.Lock()
	s.listeners[id] = listener
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Snapshot returns the latest published snapshot, or nil before load.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Store) run(ctx context.Context, headers <-chan ledger.BlockHeader) {
	defer s.wg.Done()

	if err := s.refresh(ctx); err != nil {
		s.logger.Error("initial snapshot fetch failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case _, ok := <-headers:
			if !ok {
				return
			}
			if !s.limiter.Allow() {
				// Bound request volume; the next block retries.
				continue
			}
			if err := s.refresh(ctx); err != nil {
				s.logger.Warn("snapshot refresh failed; keeping previous snapshot", "err", err)
			}
		case <-s.refreshCh:
			if err := s.refresh(ctx); err != nil {
				s.logger.Warn("forced refresh failed; keeping previous snapshot", "err", err)
			}
		}
	}
}

// refresh performs one full fetch pinned at the current head and publishes
// the result. A failed sub-fetch discards the whole attempt; readers keep
// the previous snapshot.
func (s *Store) refresh(ctx context.Context) error {
	start := time.Now()
	snapshot, err := s.fetch(ctx)
	s.metrics.observeFetch(start, err)
	if err != nil {
		return err
	}
	s.publish(snapshot)
	return nil
}

// fetch reads every tracked quantity at a single block tag. Independent
// reads are issued concurrently and joined before the snapshot is built.
func (s *Store) fetch(ctx context.Context) (*Snapshot, error) {
	head, err := s.reader.BlockHeader(ctx, ledger.Latest())
	if err != nil {
		return nil, fmt.Errorf("block header: %w", err)
	}
	tag := ledger.AtHeight(head.Number)

	snapshot := &Snapshot{
		BlockNumber: head.Number,
		BlockTime:   head.Time,
		User:        s.user,
	}

	var wg sync.WaitGroup
	errs := make([]error, 0, 6)
	var errMu sync.Mutex
	collect := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		errs = append(errs, err)
		errMu.Unlock()
	}
	spawn := func(read func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collect(read())
		}()
	}

	spawn(func() error {
		state, err := s.reader.ProtocolState(ctx, tag)
		if err != nil {
			return fmt.Errorf("protocol state: %w", err)
		}
		snapshot.Protocol = *state
		return nil
	})
	spawn(func() error {
		record, err := s.reader.Trove(ctx, tag, s.user)
		if err != nil {
			return fmt.Errorf("trove: %w", err)
		}
		snapshot.TroveRecord = record
		return nil
	})
	spawn(func() error {
		deposit, err := s.reader.StabilityDeposit(ctx, tag, s.user)
		if err != nil {
			return fmt.Errorf("stability deposit: %w", err)
		}
		snapshot.StabilityDeposit = deposit
		return nil
	})
	spawn(func() error {
		stake, err := s.reader.HLQTStake(ctx, tag, s.user)
		if err != nil {
			return fmt.Errorf("stake: %w", err)
		}
		snapshot.Stake = stake
		return nil
	})
	spawn(func() error {
		balances, err := s.reader.Balances(ctx, tag, s.user)
		if err != nil {
			return fmt.Errorf("balances: %w", err)
		}
		snapshot.Balances = balances
		return nil
	})
	if s.frontend != (common.Address{}) {
		spawn(func() error {
			status, err := s.reader.FrontendStatus(ctx, tag, s.frontend)
			if err != nil {
				return fmt.Errorf("frontend status: %w", err)
			}
			snapshot.FrontendStatus = status
			return nil
		})
	}
	wg.Wait()
	if len(errs) > 0 {
		return nil, errs[0]
	}

	snapshot.Fees = fees.Default(snapshot.Protocol.BaseRate, snapshot.Protocol.LastFeeUpdate)
	snapshot.UserTrove = trove.ApplyRedistribution(snapshot.TroveRecord, snapshot.Protocol.Redistributed)
	return snapshot, nil
}

// publish installs the snapshot if it is newer than the current one and
// notifies subscribers. Completions arriving out of order are discarded; a
// published snapshot is never replaced by an older block's view.
func (s *Store) publish(snapshot *Snapshot) {
	s.mu.Lock()
	// Same-height refetches are accepted so a forced refresh can supersede
	// an optimistic patch within the same block.
	if s.snapshot != nil && snapshot.BlockNumber < s.snapshot.BlockNumber {
		s.mu.Unlock()
		s.metrics.observeStaleDiscard()
		s.logger.Debug("discarding stale fetch completion",
			"fetched", snapshot.BlockNumber, "published", s.snapshot.BlockNumber)
		return
	}
	old := s.snapshot
	s.snapshot = snapshot
	firstLoad := s.state == Loading
	if firstLoad {
		s.state = Loaded
	}
	listeners := s.copyListenersLocked()
	s.mu.Unlock()

	if firstLoad {
		close(s.loadedCh)
	}
	for _, listener := range listeners {
		listener(Update{Old: old, New: snapshot})
	}
}

func (s *Store) copyListenersLocked() []Listener {
	listeners := make([]Listener, 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	return listeners
}

// Patch applies an optimistic local update for the single field a confirmed
// transaction is known to affect, publishing a synthetic snapshot at the
// same block tag, then schedules an unconditional full refresh whose result
// supersedes the patch.
func (s *Store) Patch(mutate func(*Snapshot)) {
	s.mu.Lock()
	if s.snapshot == nil {
		s.mu.Unlock()
		return
	}
	old := s.snapshot
	patched := *old
	mutate(&patched)
	s.snapshot = &patched
	listeners := s.copyListenersLocked()
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(Update{Old: old, New: &patched})
	}

	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// cacheHit reports whether a read for the given tag and owner can be served
// from the published snapshot.
func (s *Store) cacheHit(tag ledger.BlockTag, owner common.Address) (*Snapshot, bool) {
	s.mu.Lock()
	snapshot := s.snapshot
	s.mu.Unlock()
	if snapshot == nil {
		s.metrics.observeLookup(false)
		return nil, false
	}
	if owner != snapshot.User {
		s.metrics.observeLookup(false)
		return nil, false
	}
	if !tag.IsLatest() && tag.Height() != snapshot.BlockNumber {
		s.metrics.observeLookup(false)
		return nil, false
	}
	s.metrics.observeLookup(true)
	return snapshot, true
}

// UserTrove returns the scoped owner's trove with redistribution applied,
// from cache when possible and falling through to a direct fetch otherwise.
func (s *Store) UserTrove(ctx context.Context, tag ledger.BlockTag, scope ledger.Scope) (trove.UserTrove, error) {
	owner := scope.Resolve(s.user)
	if snapshot, ok := s.cacheHit(tag, owner); ok {
		return snapshot.UserTrove, nil
	}
	record, err := s.reader.Trove(ctx, tag, owner)
	if err != nil {
		return trove.UserTrove{}, err
	}
	state, err := s.reader.ProtocolState(ctx, tag)
	if err != nil {
		return trove.UserTrove{}, err
	}
	return trove.ApplyRedistribution(record, state.Redistributed), nil
}

// StabilityDeposit returns the scoped owner's stability deposit.
func (s *Store) StabilityDeposit(ctx context.Context, tag ledger.BlockTag, scope ledger.Scope) (pool.StabilityDeposit, error) {
	owner := scope.Resolve(s.user)
	if snapshot, ok := s.cacheHit(tag, owner); ok {
		return snapshot.StabilityDeposit, nil
	}
	return s.reader.StabilityDeposit(ctx, tag, owner)
}

// HLQTStake returns the scoped owner's protocol token stake.
func (s *Store) HLQTStake(ctx context.Context, tag ledger.BlockTag, scope ledger.Scope) (pool.HLQTStake, error) {
	owner := scope.Resolve(s.user)
	if snapshot, ok := s.cacheHit(tag, owner); ok {
		return snapshot.Stake, nil
	}
	return s.reader.HLQTStake(ctx, tag, owner)
}

// Balances returns the scoped owner's token balances.
func (s *Store) Balances(ctx context.Context, tag ledger.BlockTag, scope ledger.Scope) (ledger.TokenBalances, error) {
	owner := scope.Resolve(s.user)
	if snapshot, ok := s.cacheHit(tag, owner); ok {
		return snapshot.Balances, nil
	}
	return s.reader.Balances(ctx, tag, owner)
}
