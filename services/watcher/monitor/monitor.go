// Package monitor inspects every published store snapshot: it flags troves
// that have fallen below the minimum collateral ratio, tracks recovery mode
// transitions and previews what a redemption of a configured size would
// return at the current list state.
package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"hydroclient/decimal"
	"hydroclient/ledger"
	"hydroclient/redemption"
	"hydroclient/store"
	"hydroclient/trove"
)

// scanPageSize bounds one trove list read while walking the risky end.
const scanPageSize = 100

// Config wires the monitor's collaborators.
type Config struct {
	Reader ledger.Reader
	Store  *store.Store
	Logger *slog.Logger
	// PreviewAmount, when positive, simulates redeeming that much HUSD on
	// every inspected block and logs the projected proceeds and slippage.
	PreviewAmount decimal.Decimal
}

// Monitor consumes store updates and reports risk findings.
type Monitor struct {
	reader  ledger.Reader
	store   *store.Store
	logger  *slog.Logger
	preview decimal.Decimal
	metrics *monitorMetrics
}

// New constructs a monitor.
func New(cfg Config) (*Monitor, error) {
	if cfg.Reader == nil {
		return nil, fmt.Errorf("monitor: reader is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("monitor: store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		reader:  cfg.Reader,
		store:   cfg.Store,
		logger:  logger,
		preview: cfg.PreviewAmount,
		metrics: metrics(),
	}, nil
}

// Run subscribes to the store and inspects each published snapshot until the
// context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	updates := make(chan store.Update, 16)
	unsubscribe := m.store.Subscribe(func(u store.Update) {
		select {
		case updates <- u:
		default:
			// Inspection lagging a block behind is fine; never block the
			// store's publish path.
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			m.Inspect(ctx, update)
		}
	}
}

// Inspect examines one snapshot transition.
func (m *Monitor) Inspect(ctx context.Context, update store.Update) {
	snapshot := update.New
	if snapshot == nil {
		return
	}
	m.metrics.blockHeight.Set(float64(snapshot.BlockNumber))
	m.metrics.price.Set(snapshot.Protocol.Price.Float64())

	if snapshot.Protocol.RecoveryMode {
		m.metrics.recoveryMode.Set(1)
	} else {
		m.metrics.recoveryMode.Set(0)
	}
	if update.Old != nil && update.Old.Protocol.RecoveryMode != snapshot.Protocol.RecoveryMode {
		m.logger.Warn("recovery mode changed",
			"block", snapshot.BlockNumber,
			"recoveryMode", snapshot.Protocol.RecoveryMode)
	}

	risky, err := m.scanLiquidatable(ctx, snapshot)
	if err != nil {
		m.metrics.scanFailures.Inc()
		m.logger.Warn("trove scan failed", "block", snapshot.BlockNumber, "err", err)
		return
	}
	m.metrics.liquidatable.Set(float64(len(risky)))
	for _, candidate := range risky {
		ratio, err := candidate.CollateralRatio(snapshot.Protocol.Price)
		if err != nil {
			continue
		}
		m.logger.Info("trove below minimum collateral ratio",
			"block", snapshot.BlockNumber,
			"owner", candidate.Owner,
			"collateralRatio", ratio.String(),
			"debt", candidate.Debt.String())
	}

	if m.preview.Sign() > 0 {
		m.previewRedemption(ctx, snapshot)
	}
}

// scanLiquidatable walks the ascending-ratio list from the risky end and
// returns the troves under the minimum collateral ratio. The walk stops at
// the first trove at or above the minimum, relying on the list ordering.
func (m *Monitor) scanLiquidatable(ctx context.Context, snapshot *store.Snapshot) ([]trove.UserTrove, error) {
	tag := ledger.AtHeight(snapshot.BlockNumber)
	var risky []trove.UserTrove
	for start := 0; ; start += scanPageSize {
		page, err := m.reader.Troves(ctx, tag, start, scanPageSize, ledger.AscendingCollateralRatio)
		if err != nil {
			return nil, err
		}
		for _, record := range page {
			applied := trove.ApplyRedistribution(record, snapshot.Protocol.Redistributed)
			below, err := applied.IsBelowMinimumCollateralRatio(snapshot.Protocol.Price)
			if err != nil {
				continue
			}
			if !below {
				return risky, nil
			}
			risky = append(risky, applied)
		}
		if len(page) < scanPageSize {
			return risky, nil
		}
	}
}

// previewRedemption simulates redeeming the configured amount against the
// current list and logs the projected outcome.
func (m *Monitor) previewRedemption(ctx context.Context, snapshot *store.Snapshot) {
	if snapshot.Protocol.TotalDebt.IsZero() {
		return
	}
	tag := ledger.AtHeight(snapshot.BlockNumber)
	var sorted []trove.UserTrove
	covered := decimal.Zero()
	for start := 0; ; start += scanPageSize {
		page, err := m.reader.Troves(ctx, tag, start, scanPageSize, ledger.AscendingCollateralRatio)
		if err != nil {
			m.logger.Warn("redemption preview scan failed", "block", snapshot.BlockNumber, "err", err)
			return
		}
		for _, record := range page {
			applied := trove.ApplyRedistribution(record, snapshot.Protocol.Redistributed)
			sorted = append(sorted, applied)
			covered = covered.Add(applied.Debt)
		}
		if covered.GTE(m.preview) || len(page) < scanPageSize {
			break
		}
	}

	fraction, err := m.preview.Div(snapshot.Protocol.TotalDebt)
	if err != nil {
		return
	}
	rate := snapshot.Fees.RedemptionRate(snapshot.BlockTime, fraction)
	result, err := redemption.Simulate(sorted, redemption.ProtocolTotals{
		Collateral: snapshot.Protocol.TotalCollateral,
		Debt:       snapshot.Protocol.TotalDebt,
	}, m.preview, rate)
	if err != nil {
		m.logger.Info("redemption preview unavailable",
			"block", snapshot.BlockNumber, "amount", m.preview.String(), "err", err)
		return
	}
	m.logger.Info("redemption preview",
		"block", snapshot.BlockNumber,
		"amount", m.preview.String(),
		"affectedDebt", result.AffectedDebt.String(),
		"receivedCollateral", result.ReceivedCollateral.String(),
		"feeRate", rate.String(),
		"slippage", result.Slippage.String(),
		"trovesTouched", len(result.Portions))
}
