// Package protocol holds the protocol-wide parameters mirrored from the
// ledger deployment. The values here must track the deployed contracts
// exactly; the client recomputes ledger state with them and any drift shows
// up as rejected transactions.
package protocol

import "hydroclient/decimal"

var (
	// MinimumCollateralRatio is the ratio below which an individual trove
	// becomes eligible for liquidation.
	MinimumCollateralRatio = decimal.MustParse("1.1")

	// CriticalCollateralRatio is the system-wide ratio below which the
	// protocol enters recovery mode.
	CriticalCollateralRatio = decimal.MustParse("1.5")

	// HUSDGasCompensation is the flat HUSD reserve added to every trove's
	// debt at opening and refunded at closure. It pays the liquidator's gas
	// when the trove is liquidated.
	HUSDGasCompensation = decimal.FromUint64(200)

	// MinimumNetDebt is the smallest debt, excluding the gas compensation
	// reserve, a trove may carry.
	MinimumNetDebt = decimal.FromUint64(1800)

	// MinimumBorrowingRate is the floor applied to the decayed base rate when
	// charging a borrowing fee.
	MinimumBorrowingRate = decimal.MustParse("0.005")

	// MaximumBorrowingRate caps the borrowing fee rate regardless of base
	// rate spikes.
	MaximumBorrowingRate = decimal.MustParse("0.05")

	// RedemptionFeeFloor is the minimum fee rate applied to redemptions on
	// top of the decayed base rate.
	RedemptionFeeFloor = decimal.MustParse("0.005")

	// MinuteDecayFactor is the per-minute multiplier applied to the base
	// rate, tuned for a twelve hour half life.
	MinuteDecayFactor = decimal.MustParse("0.999037758833783")

	// Beta divides the redeemed fraction when the redemption rate is raised
	// within a single traversal.
	Beta = decimal.FromUint64(2)
)
