package redemption

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"hydroclient/decimal"
	"hydroclient/trove"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func userTrove(t *testing.T, owner byte, collateral, debt string) trove.UserTrove {
	t.Helper()
	return trove.UserTrove{
		Owner:  common.BytesToAddress([]byte{owner}),
		Status: trove.StatusOpen,
		Trove:  trove.Trove{Collateral: dec(t, collateral), Debt: dec(t, debt)},
	}
}

func TestSimulatePartialWalk(t *testing.T) {
	// Ascending collateral ratio: 0.02, 0.05, 0.1.
	sorted := []trove.UserTrove{
		userTrove(t, 1, "2", "100"),
		userTrove(t, 2, "5", "100"),
		userTrove(t, 3, "10", "100"),
	}
	totals := ProtocolTotals{Collateral: dec(t, "17"), Debt: dec(t, "300")}

	result, err := Simulate(sorted, totals, dec(t, "150"), dec(t, "0.005"))
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	if !result.AffectedDebt.Equal(dec(t, "150")) {
		t.Fatalf("affected debt: %s", result.AffectedDebt)
	}
	if !result.AffectedCollateral.Equal(dec(t, "4.5")) { // 2 full + 2.5 partial
		t.Fatalf("affected collateral: %s", result.AffectedCollateral)
	}
	if !result.ReceivedCollateral.Equal(dec(t, "4.4775")) { // 4.5 * 0.995
		t.Fatalf("received collateral: %s", result.ReceivedCollateral)
	}
	if !result.FeeInCollateral.Equal(dec(t, "0.0225")) {
		t.Fatalf("fee: %s", result.FeeInCollateral)
	}

	if len(result.Portions) != 2 {
		t.Fatalf("expected 2 portions, got %d", len(result.Portions))
	}
	first, second := result.Portions[0], result.Portions[1]
	if !first.Full || !first.Debt.Equal(dec(t, "100")) || !first.Collateral.Equal(dec(t, "2")) {
		t.Fatalf("first portion: %+v", first)
	}
	if second.Full || !second.Debt.Equal(dec(t, "50")) || !second.Collateral.Equal(dec(t, "2.5")) {
		t.Fatalf("second portion: %+v", second)
	}
}

func TestSimulateConservation(t *testing.T) {
	sorted := []trove.UserTrove{
		userTrove(t, 1, "2", "100"),
		userTrove(t, 2, "5", "100"),
	}
	totals := ProtocolTotals{Collateral: dec(t, "7"), Debt: dec(t, "200")}

	// Requesting more than the sequence holds consumes the whole sequence.
	result, err := Simulate(sorted, totals, dec(t, "100000"), decimal.Zero())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !result.AffectedDebt.Equal(dec(t, "200")) {
		t.Fatalf("expected total sequence debt, got %s", result.AffectedDebt)
	}
	if !result.AffectedCollateral.Equal(dec(t, "7")) {
		t.Fatalf("expected total sequence collateral, got %s", result.AffectedCollateral)
	}

	// The sum of per-portion debt always matches the total affected debt.
	sum := decimal.Zero()
	for _, portion := range result.Portions {
		sum = sum.Add(portion.Debt)
	}
	if !sum.Equal(result.AffectedDebt) {
		t.Fatalf("portion sum %s != affected %s", sum, result.AffectedDebt)
	}
}

func TestSimulateSkipsZeroDebtTroves(t *testing.T) {
	sorted := []trove.UserTrove{
		userTrove(t, 1, "3", "0"),
		userTrove(t, 2, "2", "100"),
	}
	totals := ProtocolTotals{Collateral: dec(t, "5"), Debt: dec(t, "100")}

	result, err := Simulate(sorted, totals, dec(t, "100"), decimal.Zero())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !result.AffectedCollateral.Equal(dec(t, "2")) {
		t.Fatalf("zero-debt trove must not contribute collateral, got %s", result.AffectedCollateral)
	}
	if len(result.Portions) != 1 {
		t.Fatalf("zero-debt trove must not appear in portions")
	}
}

func TestSimulateNoValidRedemption(t *testing.T) {
	// A trove paying out far more collateral per unit of debt than the
	// protocol average would imply negative slippage.
	sorted := []trove.UserTrove{userTrove(t, 1, "50", "100")}
	totals := ProtocolTotals{Collateral: dec(t, "60"), Debt: dec(t, "1000")}

	_, err := Simulate(sorted, totals, dec(t, "100"), decimal.Zero())
	if !errors.Is(err, ErrNoValidRedemption) {
		t.Fatalf("expected ErrNoValidRedemption, got %v", err)
	}
}

func TestSimulateSlippageValue(t *testing.T) {
	sorted := []trove.UserTrove{userTrove(t, 1, "2", "100")}
	totals := ProtocolTotals{Collateral: dec(t, "40"), Debt: dec(t, "1000")}

	result, err := Simulate(sorted, totals, dec(t, "100"), decimal.Zero())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	// Realised 0.02 per unit vs target 0.04: slippage 0.5.
	if !result.Slippage.Equal(dec(t, "0.5")) {
		t.Fatalf("unexpected slippage: %s", result.Slippage)
	}
}

func TestSimulateZeroAmount(t *testing.T) {
	sorted := []trove.UserTrove{userTrove(t, 1, "2", "100")}
	totals := ProtocolTotals{Collateral: dec(t, "2"), Debt: dec(t, "100")}

	result, err := Simulate(sorted, totals, decimal.Zero(), dec(t, "0.005"))
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !result.AffectedDebt.IsZero() || !result.Slippage.IsZero() || len(result.Portions) != 0 {
		t.Fatalf("zero amount must produce an empty result: %+v", result)
	}
}

func TestSimulateValidation(t *testing.T) {
	totals := ProtocolTotals{Collateral: dec(t, "1"), Debt: dec(t, "1")}
	if _, err := Simulate(nil, totals, dec(t, "-1"), decimal.Zero()); err == nil {
		t.Fatalf("negative amount must be rejected")
	}
	if _, err := Simulate(nil, totals, decimal.Zero(), dec(t, "1.5")); err == nil {
		t.Fatalf("fee rate above 1 must be rejected")
	}
	if _, err := Simulate(nil, totals, decimal.Zero(), dec(t, "-0.1")); err == nil {
		t.Fatalf("negative fee rate must be rejected")
	}
}
