package fees

import (
	"testing"
	"time"

	"hydroclient/decimal"
	"hydroclient/protocol"
)

var anchor = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func testState(t *testing.T, baseRate, decayFactor string) State {
	t.Helper()
	return State{
		BaseRateAtLastUpdate: decimal.MustParse(baseRate),
		MinuteDecayFactor:    decimal.MustParse(decayFactor),
		Beta:                 protocol.Beta,
		LastUpdate:           anchor,
	}
}

func TestDecayedBaseRateAtUpdateTime(t *testing.T) {
	state := testState(t, "0.01", "0.9998")
	if got := state.DecayedBaseRate(anchor); !got.Equal(decimal.MustParse("0.01")) {
		t.Fatalf("decay at t=0 must equal the stored rate, got %s", got)
	}
}

func TestDecayedBaseRateAfterDay(t *testing.T) {
	state := testState(t, "0.01", "0.9998")
	got := state.DecayedBaseRate(anchor.Add(1440 * time.Minute))

	// 0.01 * 0.9998^1440 ~= 0.0074976
	low := decimal.MustParse("0.00748")
	high := decimal.MustParse("0.00751")
	if got.LT(low) || got.GT(high) {
		t.Fatalf("decayed rate after 24h out of range: %s", got)
	}
}

func TestDecayIsMonotonic(t *testing.T) {
	state := testState(t, "0.04", "0.9998")
	previous := state.DecayedBaseRate(anchor)
	for _, minutes := range []time.Duration{1, 10, 60, 720, 1440, 10080} {
		current := state.DecayedBaseRate(anchor.Add(minutes * time.Minute))
		if current.GT(previous) {
			t.Fatalf("decay must be non-increasing, rose to %s after %v", current, minutes)
		}
		previous = current
	}
}

func TestDecayClampsNegativeElapsed(t *testing.T) {
	state := testState(t, "0.01", "0.9998")
	if got := state.DecayedBaseRate(anchor.Add(-time.Hour)); !got.Equal(decimal.MustParse("0.01")) {
		t.Fatalf("timestamps before the last update must clamp to zero minutes, got %s", got)
	}
}

func TestDecayClampsToOne(t *testing.T) {
	state := testState(t, "5", "0.9998")
	if got := state.DecayedBaseRate(anchor); !got.Equal(decimal.One()) {
		t.Fatalf("rate must be clamped to 1, got %s", got)
	}
}

func TestBorrowingRateBounds(t *testing.T) {
	// A fully decayed base rate is floored at the minimum borrowing rate.
	floored := testState(t, "0", "0.9998")
	if got := floored.BorrowingRate(anchor, false); !got.Equal(protocol.MinimumBorrowingRate) {
		t.Fatalf("expected floor %s, got %s", protocol.MinimumBorrowingRate, got)
	}

	// A spiked base rate is capped at the maximum borrowing rate.
	spiked := testState(t, "0.9", "0.9998")
	if got := spiked.BorrowingRate(anchor, false); !got.Equal(protocol.MaximumBorrowingRate) {
		t.Fatalf("expected cap %s, got %s", protocol.MaximumBorrowingRate, got)
	}
}

func TestBorrowingFreeInRecoveryMode(t *testing.T) {
	state := testState(t, "0.02", "0.9998")
	if got := state.BorrowingRate(anchor, true); !got.IsZero() {
		t.Fatalf("recovery mode borrowing must be fee-free, got %s", got)
	}
	if got := state.BorrowingFee(anchor, true, decimal.FromUint64(5000)); !got.IsZero() {
		t.Fatalf("recovery mode fee must be zero, got %s", got)
	}
}

func TestBorrowingFee(t *testing.T) {
	state := testState(t, "0.01", "0.9998")
	fee := state.BorrowingFee(anchor, false, decimal.FromUint64(1000))
	if !fee.Equal(decimal.FromUint64(10)) {
		t.Fatalf("unexpected borrowing fee: %s", fee)
	}
}

func TestRedemptionRateRisesWithinTraversal(t *testing.T) {
	state := testState(t, "0.01", "0.9998")

	base := state.RedemptionRate(anchor, decimal.Zero())
	if !base.Equal(decimal.MustParse("0.015")) { // 0.01 + 0.005 floor
		t.Fatalf("unexpected base redemption rate: %s", base)
	}

	raised := state.RedemptionRate(anchor, decimal.MustParse("0.1"))
	if !raised.Equal(decimal.MustParse("0.065")) { // + 0.1/2
		t.Fatalf("unexpected raised redemption rate: %s", raised)
	}
	if !raised.GT(base) {
		t.Fatalf("marginal redemption cost must increase")
	}
}

func TestRedemptionRateCap(t *testing.T) {
	state := testState(t, "0.9", "0.9998")
	if got := state.RedemptionRate(anchor, decimal.FromUint64(4)); !got.Equal(decimal.One()) {
		t.Fatalf("redemption rate must cap at 1, got %s", got)
	}
}

func TestWholeMinuteTruncation(t *testing.T) {
	state := testState(t, "0.01", "0.9998")
	if got := state.MinutesSinceLastUpdate(anchor.Add(119 * time.Second)); got != 1 {
		t.Fatalf("expected 1 whole minute, got %d", got)
	}
	if got := state.MinutesSinceLastUpdate(anchor.Add(59 * time.Second)); got != 0 {
		t.Fatalf("expected 0 whole minutes, got %d", got)
	}
}
