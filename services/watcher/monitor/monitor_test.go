package monitor

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"hydroclient/decimal"
	"hydroclient/fees"
	"hydroclient/ledger"
	"hydroclient/pool"
	"hydroclient/store"
	"hydroclient/trove"
)

type scriptedReader struct {
	troves []trove.TroveWithPendingRedistribution
}

func (s *scriptedReader) BlockHeader(context.Context, ledger.BlockTag) (ledger.BlockHeader, error) {
	return ledger.BlockHeader{Number: 7, Time: time.Unix(1700000000, 0)}, nil
}

func (s *scriptedReader) ProtocolState(context.Context, ledger.BlockTag) (*ledger.ProtocolState, error) {
	return &ledger.ProtocolState{}, nil
}

func (s *scriptedReader) Trove(_ context.Context, _ ledger.BlockTag, owner common.Address) (trove.TroveWithPendingRedistribution, error) {
	return trove.TroveWithPendingRedistribution{Owner: owner}, nil
}

func (s *scriptedReader) Troves(_ context.Context, _ ledger.BlockTag, start, count int, _ ledger.SortOrder) ([]trove.TroveWithPendingRedistribution, error) {
	if start >= len(s.troves) {
		return nil, nil
	}
	end := start + count
	if end > len(s.troves) {
		end = len(s.troves)
	}
	return s.troves[start:end], nil
}

func (s *scriptedReader) ApproxHint(_ context.Context, _ ledger.BlockTag, _ decimal.Decimal, _ int, seed uint64) (ledger.HintCandidate, error) {
	return ledger.HintCandidate{NextSeed: seed}, nil
}

func (s *scriptedReader) FindInsertPosition(context.Context, ledger.BlockTag, decimal.Decimal, common.Address) (common.Address, common.Address, error) {
	return common.Address{}, common.Address{}, nil
}

func (s *scriptedReader) StabilityDeposit(context.Context, ledger.BlockTag, common.Address) (pool.StabilityDeposit, error) {
	return pool.StabilityDeposit{}, nil
}

func (s *scriptedReader) HLQTStake(context.Context, ledger.BlockTag, common.Address) (pool.HLQTStake, error) {
	return pool.HLQTStake{}, nil
}

func (s *scriptedReader) FrontendStatus(context.Context, ledger.BlockTag, common.Address) (pool.FrontendStatus, error) {
	return pool.FrontendStatus{}, nil
}

func (s *scriptedReader) Balances(context.Context, ledger.BlockTag, common.Address) (ledger.TokenBalances, error) {
	return ledger.TokenBalances{}, nil
}

func (s *scriptedReader) SubscribeBlocks(context.Context) (<-chan ledger.BlockHeader, func(), error) {
	return make(chan ledger.BlockHeader), func() {}, nil
}

// recordingHandler collects emitted log messages for assertions.
type recordingHandler struct {
	mu       sync.Mutex
	messages []string
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	h.messages = append(h.messages, record.Message)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) count(message string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.messages {
		if m == message {
			n++
		}
	}
	return n
}

func openTrove(owner byte, collateral, debt uint64) trove.TroveWithPendingRedistribution {
	return trove.TroveWithPendingRedistribution{
		Owner:  common.BytesToAddress([]byte{owner}),
		Status: trove.StatusOpen,
		Trove: trove.Trove{
			Collateral: decimal.FromUint64(collateral),
			Debt:       decimal.FromUint64(debt),
		},
	}
}

func newTestMonitor(t *testing.T, reader *scriptedReader, preview decimal.Decimal) (*Monitor, *recordingHandler) {
	t.Helper()
	handler := &recordingHandler{}
	s, err := store.New(store.Config{Reader: reader, Watcher: reader})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m, err := New(Config{
		Reader:        reader,
		Store:         s,
		Logger:        slog.New(handler),
		PreviewAmount: preview,
	})
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	return m, handler
}

func snapshotAt(price uint64, recovery bool) *store.Snapshot {
	return &store.Snapshot{
		BlockNumber: 7,
		BlockTime:   time.Unix(1700000000, 0),
		Protocol: ledger.ProtocolState{
			Price:           decimal.FromUint64(price),
			TotalCollateral: decimal.FromUint64(17),
			TotalDebt:       decimal.FromUint64(300),
			RecoveryMode:    recovery,
		},
		Fees: fees.Default(decimal.Zero(), time.Unix(1700000000, 0)),
	}
}

func TestInspectFlagsLiquidatableTroves(t *testing.T) {
	reader := &scriptedReader{troves: []trove.TroveWithPendingRedistribution{
		openTrove(1, 2, 100),  // ratio 1.0 at price 50
		openTrove(2, 5, 100),  // ratio 2.5
		openTrove(3, 10, 100), // ratio 5.0
	}}
	m, handler := newTestMonitor(t, reader, decimal.Zero())

	m.Inspect(context.Background(), store.Update{New: snapshotAt(50, false)})

	if got := handler.count("trove below minimum collateral ratio"); got != 1 {
		t.Fatalf("liquidatable troves logged = %d, want 1", got)
	}
}

func TestInspectLogsRecoveryModeTransition(t *testing.T) {
	reader := &scriptedReader{}
	m, handler := newTestMonitor(t, reader, decimal.Zero())

	m.Inspect(context.Background(), store.Update{
		Old: snapshotAt(2000, false),
		New: snapshotAt(2000, true),
	})
	if got := handler.count("recovery mode changed"); got != 1 {
		t.Fatalf("recovery transitions logged = %d, want 1", got)
	}

	// No transition, no log.
	m.Inspect(context.Background(), store.Update{
		Old: snapshotAt(2000, true),
		New: snapshotAt(2000, true),
	})
	if got := handler.count("recovery mode changed"); got != 1 {
		t.Fatalf("unchanged mode must not log, got %d", got)
	}
}

func TestInspectPreviewsRedemption(t *testing.T) {
	reader := &scriptedReader{troves: []trove.TroveWithPendingRedistribution{
		openTrove(1, 2, 100),
		openTrove(2, 5, 100),
		openTrove(3, 10, 100),
	}}
	m, handler := newTestMonitor(t, reader, decimal.FromUint64(150))

	m.Inspect(context.Background(), store.Update{New: snapshotAt(2000, false)})

	if got := handler.count("redemption preview"); got != 1 {
		t.Fatalf("previews logged = %d, want 1", got)
	}
}

func TestScanStopsAtFirstHealthyTrove(t *testing.T) {
	reader := &scriptedReader{troves: []trove.TroveWithPendingRedistribution{
		openTrove(1, 1, 100), // 0.5 at price 50
		openTrove(2, 2, 100), // 1.0
		openTrove(3, 5, 100), // 2.5, healthy: scan must stop here
		openTrove(4, 1, 100), // never reached
	}}
	m, _ := newTestMonitor(t, reader, decimal.Zero())

	risky, err := m.scanLiquidatable(context.Background(), snapshotAt(50, false))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(risky) != 2 {
		t.Fatalf("risky troves = %d, want 2", len(risky))
	}
}
