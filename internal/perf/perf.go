// Package perf implements the Performance Tracker: cumulative cost
// basis from buy executions, and the derived performance metrics query.
package perf

import (
	"sync"

	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/money"
	"github.com/tonsurance/btcfloat/internal/sustain"
)

// Tracker accumulates cost_basis_usd and btc_purchased_sats from buy
// executions only — sells never adjust cost basis, matching the repo's
// intent of a pure cost basis of what was bought.
type Tracker struct {
	mu           sync.Mutex
	costBasisUSD money.USDCents
	btcPurchased money.Sats
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record folds a TradeExecution into the running cost basis. Sells are
// ignored; Holds carry no BTC amount and are a no-op.
func (t *Tracker) Record(exec core.TradeExecution) {
	if exec.Signal.Kind != core.BuyBTC {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.costBasisUSD += exec.USDAmountCents
	t.btcPurchased += exec.BTCAmountSats
}

// PurchasedSats returns the cumulative btc_purchased_sats tracked from buy
// executions, independent of the Performance Tracker's other metrics.
func (t *Tracker) PurchasedSats() money.Sats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.btcPurchased
}

// Metrics implements metrics(state, price, annual_premiums_usd,
// required_yield_btc_per_period) -> PerformanceMetrics.
func (t *Tracker) Metrics(state core.ReserveState, price money.Price, annualPremiumsUSD money.USDCents, requiredYieldBTCPerPeriod money.Sats) core.PerformanceMetrics {
	t.mu.Lock()
	costBasis := t.costBasisUSD
	t.mu.Unlock()

	currentValue := state.BTCValueUSD(price)

	var gainRatio money.Ratio
	if costBasis != 0 {
		gainRatio = money.RatioOf(int64(currentValue)-int64(costBasis), int64(costBasis))
	}

	var avgPurchasePrice money.Price
	if state.BTCSats != 0 {
		// average_purchase_price = cost_basis_usd / total_btc, expressed in
		// the Price type's cents-per-whole-BTC convention.
		avgPurchasePrice = money.Price((int64(costBasis) * money.SatsPerBTC) / int64(state.BTCSats))
	}

	return core.PerformanceMetrics{
		TotalBTCSats:           state.BTCSats,
		CurrentValueUSD:        currentValue,
		CostBasisUSD:           costBasis,
		UnrealizedGainUSD:      int64(currentValue) - int64(costBasis),
		UnrealizedGainRatio:    gainRatio,
		AveragePurchasePrice:   avgPurchasePrice,
		PeriodsOfYieldCoverage: sustain.Periods(state, price, requiredYieldBTCPerPeriod, annualPremiumsUSD),
	}
}
