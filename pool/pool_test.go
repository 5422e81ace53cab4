package pool

import (
	"testing"

	"hydroclient/decimal"
)

func TestApplyDepositClaimsGainsAndResets(t *testing.T) {
	deposit := StabilityDeposit{
		InitialHUSD:    decimal.FromUint64(100),
		CurrentHUSD:    decimal.FromUint64(80),
		CollateralGain: decimal.MustParse("0.5"),
		HLQTReward:     decimal.FromUint64(4),
	}
	next := deposit.ApplyDeposit(decimal.FromUint64(20))
	if !next.CurrentHUSD.Equal(decimal.FromUint64(100)) {
		t.Fatalf("current = %s, want 100", next.CurrentHUSD)
	}
	if !next.InitialHUSD.Equal(next.CurrentHUSD) {
		t.Fatalf("initial must reset to current")
	}
	if !next.CollateralGain.IsZero() || !next.HLQTReward.IsZero() {
		t.Fatalf("gains must be claimed on deposit")
	}
}

func TestApplyWithdrawalClampsAtZero(t *testing.T) {
	deposit := StabilityDeposit{CurrentHUSD: decimal.FromUint64(50)}
	next := deposit.ApplyWithdrawal(decimal.FromUint64(80))
	if !next.CurrentHUSD.IsZero() {
		t.Fatalf("overdrawn withdrawal must empty the deposit, got %s", next.CurrentHUSD)
	}
}

func TestStakeLifecycle(t *testing.T) {
	stake := HLQTStake{
		StakedHLQT:     decimal.FromUint64(10),
		CollateralGain: decimal.FromUint64(1),
		HUSDGain:       decimal.FromUint64(2),
	}
	staked := stake.ApplyStake(decimal.FromUint64(5))
	if !staked.StakedHLQT.Equal(decimal.FromUint64(15)) {
		t.Fatalf("staked = %s, want 15", staked.StakedHLQT)
	}
	if !staked.CollateralGain.IsZero() || !staked.HUSDGain.IsZero() {
		t.Fatalf("gains must be claimed on stake")
	}

	unstaked := staked.ApplyUnstake(decimal.FromUint64(20))
	if !unstaked.StakedHLQT.IsZero() {
		t.Fatalf("overdrawn unstake must empty the stake, got %s", unstaked.StakedHLQT)
	}
}

func TestFrontendStatusEquals(t *testing.T) {
	rate := decimal.MustParse("0.8")
	otherRate := decimal.MustParse("0.8")
	a := FrontendStatus{Registered: true, KickbackRate: &rate}
	b := FrontendStatus{Registered: true, KickbackRate: &otherRate}
	if !a.Equals(b) {
		t.Fatalf("equal kickback rates must compare equal")
	}
	if a.Equals(FrontendStatus{}) {
		t.Fatalf("registered and unregistered must differ")
	}
}
