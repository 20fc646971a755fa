// Package signal implements the Signal Generator: given a
// reserve state, a spot price and the Allocation Policy, it produces a
// single TradeSignal. Deterministic and side-effect free.
package signal

import (
	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/money"
	"github.com/tonsurance/btcfloat/internal/policy"
)

// Generate derives the TradeSignal for the current reserve state: Buy when
// USD is overweight, Sell when underweight and the floor permits, Hold
// otherwise.
func Generate(state core.ReserveState, price money.Price, p core.AllocationPolicy) core.TradeSignal {
	total := state.TotalReserves(price)
	if total == 0 {
		return core.HoldSignal
	}
	if !policy.NeedsRebalance(state, price, p) {
		return core.HoldSignal
	}

	currentRatio := policy.CurrentUSDRatio(state, price)

	if currentRatio.GreaterThan(p.TargetUSDRatio) {
		excessRatio := currentRatio.Sub(p.TargetUSDRatio)
		excessUSD := money.MulRatioUSD(total, excessRatio)
		if excessUSD > 0 {
			return core.TradeSignal{Kind: core.BuyBTC, USD: excessUSD}
		}
		return core.HoldSignal
	}

	deficitRatio := p.TargetUSDRatio.Sub(currentRatio)
	deficitUSD := money.MulRatioUSD(total, deficitRatio)
	excessBTCSats := money.SatsForUSD(deficitUSD, price)

	if excessBTCSats <= 0 {
		return core.HoldSignal
	}
	if state.BTCSats-excessBTCSats < p.MinFloatBTC {
		// Floor invariant dominates: selling this much BTC would breach the
		// protocol floor, so the signal degrades to Hold rather than
		// proposing a partial sell the Executor would reject anyway.
		return core.HoldSignal
	}

	return core.TradeSignal{Kind: core.SellBTC, BTCSats: excessBTCSats}
}
