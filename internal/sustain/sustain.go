// Package sustain implements the Sustainability Engine: deterministic
// projections of how long the float's yield obligation can be met from
// premium inflow, and the inverse break-even price question.
package sustain

import (
	"errors"

	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/money"
)

// ErrZeroYieldTarget is returned by BreakEvenPrice when the target yield is
// zero: the ratio is undefined, not merely large.
var ErrZeroYieldTarget = errors.New("sustain: target yield btc is zero, break-even price is undefined")

// Periods computes sustainability_periods(state, price, required_yield,
// annual_premiums): how many periods the current BTC float can cover the
// yield obligation once premium inflow alone falls short of it.
func Periods(state core.ReserveState, price money.Price, requiredYieldBTCPerPeriod money.Sats, annualPremiumsUSD money.USDCents) int64 {
	requiredUSDPerPeriod := money.BTCValueUSDCents(requiredYieldBTCPerPeriod, price)
	shortfall := int64(requiredUSDPerPeriod) - int64(annualPremiumsUSD)
	if shortfall <= 0 {
		return core.UnboundedPeriods
	}
	btcValue := int64(state.BTCValueUSD(price))
	return btcValue / shortfall
}

// SimulateAccumulation runs simulate_accumulation(initial_state, scenario):
// a deterministic, restartable period-by-period projection of BTC float
// accumulation or depletion under a fixed per-period appreciation rate.
// Appreciation is applied before computing the period's obligation
// (period-end pricing). Once the float reaches zero it is
// floored there rather than going negative, documenting exhaustion.
func SimulateAccumulation(initialBTCSats money.Sats, initialPrice money.Price, scenario core.SustainabilityScenario) []core.SimulationRow {
	rows := make([]core.SimulationRow, 0, scenario.Periods+1)

	btc := initialBTCSats
	price := initialPrice
	rows = append(rows, core.SimulationRow{
		Period:   0,
		BTCSats:  btc,
		BTCValue: money.BTCValueUSDCents(btc, price),
		Price:    price,
	})

	for period := 1; period <= scenario.Periods; period++ {
		price = appreciate(price, scenario.BTCAppreciationPerPeriod)

		requiredUSD := money.BTCValueUSDCents(scenario.TargetYieldBTCPerPeriod, price)
		surplus := int64(scenario.AnnualPremiumsUSD) - int64(requiredUSD)

		if surplus >= 0 {
			btc += money.SatsForUSD(money.USDCents(surplus), price)
		} else {
			deficitSats := money.SatsForUSD(money.USDCents(-surplus), price)
			if deficitSats >= btc {
				btc = 0
			} else {
				btc -= deficitSats
			}
		}

		rows = append(rows, core.SimulationRow{
			Period:   period,
			BTCSats:  btc,
			BTCValue: money.BTCValueUSDCents(btc, price),
			Price:    price,
		})
	}
	return rows
}

// appreciate applies a per-period appreciation ratio to a price, flooring
// the integer result the same way the rest of the fixed-point ledger does.
func appreciate(price money.Price, rate money.Ratio) money.Price {
	delta := money.MulRatioUSD(money.USDCents(price), rate)
	return price + money.Price(delta)
}

// BreakEvenPrice implements break_even_price(annual_premiums_usd,
// target_yield_btc) = annual_premiums_usd / target_yield_btc. Undefined when
// the target yield is zero.
func BreakEvenPrice(annualPremiumsUSD money.USDCents, targetYieldBTCSats money.Sats) (money.Price, error) {
	if targetYieldBTCSats == 0 {
		return 0, ErrZeroYieldTarget
	}
	// annual_premiums_usd is expressed per-annum in cents; target_yield_btc
	// is in sats, so scale by SatsPerBTC to keep the price in
	// cents-per-whole-BTC, matching the Price type's convention.
	numerator := int64(annualPremiumsUSD) * money.SatsPerBTC
	return money.Price(numerator / int64(targetYieldBTCSats)), nil
}
