// Package policy implements the Allocation Policy: pure functions over
// target ratios, drift thresholds, float bounds and rebalance urgency
// Nothing in this package performs I/O or holds mutable state.
package policy

import (
	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/money"
	"github.com/tonsurance/btcfloat/pkg/apperrors"
)

// Urgency drift bands, fixed protocol constants.
var (
	criticalBand = money.NewRatio(250_000) // 0.25
	highBand     = money.NewRatio(180_000) // 0.18
	mediumBand   = money.NewRatio(120_000) // 0.12
)

// Validate checks the policy's configuration invariants: no rebalance may
// proceed with an invalid policy.
func Validate(p core.AllocationPolicy) error {
	if p.TargetUSDRatio.Num <= 0 || p.TargetUSDRatio.Num >= money.RatioScale {
		return apperrors.ErrInvalidRatio
	}
	if p.RebalanceThreshold.Num <= 0 || p.RebalanceThreshold.Num >= money.RatioScale {
		return apperrors.ErrInvalidRatio
	}
	if p.MinFloatBTC >= p.MaxFloatBTC {
		return apperrors.ErrInvalidFloor
	}
	if p.HedgeLeverage < 1 || p.HedgeLeverage > 20 {
		return apperrors.ErrInvalidLeverage
	}
	return nil
}

// TargetUSDRatio exposes the policy's target ratio.
func TargetUSDRatio(p core.AllocationPolicy) money.Ratio {
	return p.TargetUSDRatio
}

// CurrentUSDRatio computes usd_reserves / total_reserves(price), returning
// the zero ratio when total reserves are zero.
func CurrentUSDRatio(state core.ReserveState, price money.Price) money.Ratio {
	total := state.TotalReserves(price)
	if total == 0 {
		return money.Ratio{}
	}
	return money.RatioOf(int64(state.USDReserves), int64(total))
}

// Drift returns |usd_ratio - target_usd_ratio|.
func Drift(state core.ReserveState, price money.Price, p core.AllocationPolicy) money.Ratio {
	return CurrentUSDRatio(state, price).Sub(p.TargetUSDRatio).Abs()
}

// NeedsRebalance reports drift beyond the threshold, or false when
// total reserves are zero.
func NeedsRebalance(state core.ReserveState, price money.Price, p core.AllocationPolicy) bool {
	if state.TotalReserves(price) == 0 {
		return false
	}
	return Drift(state, price, p).GreaterThan(p.RebalanceThreshold)
}

// UrgencyOf classifies drift magnitude into the fixed bands.
func UrgencyOf(state core.ReserveState, price money.Price, p core.AllocationPolicy) core.Urgency {
	drift := Drift(state, price, p)
	switch {
	case drift.GreaterThan(criticalBand):
		return core.UrgencyCritical
	case drift.GreaterThan(highBand):
		return core.UrgencyHigh
	case drift.GreaterThan(mediumBand):
		return core.UrgencyMedium
	default:
		return core.UrgencyLow
	}
}

// SplitSurplus splits an incoming surplus by the target USD ratio, used
// when allocating premium inflows. A non-positive surplus is returned
// unsplit on the USD side; any 1-cent rounding residual is attributed to
// USD.
func SplitSurplus(surplus money.USDCents, p core.AllocationPolicy) (toUSD money.USDCents, toBTC money.USDCents) {
	if surplus <= 0 {
		return surplus, 0
	}
	toBTC = money.MulRatioUSD(surplus, money.Ratio{Num: money.RatioScale - p.TargetUSDRatio.Num})
	toUSD = surplus - toBTC
	return toUSD, toBTC
}
