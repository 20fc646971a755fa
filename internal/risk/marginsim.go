// Package risk provides precision margin simulation for the hedge position.
// All quantities here are approximate and informational: the decimal math
// estimates venue-side margin state for alerting and health checks, and is
// never fed back into the reserve ledger's exact fixed-point accounting.
package risk

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/money"
)

// MarginSim estimates margin headroom for the active short hedge.
type MarginSim struct {
	mu sync.RWMutex

	maintenanceMarginRate decimal.Decimal
	safetyBuffer          decimal.Decimal // e.g., 0.20 for 20%
}

// Profile is a margin snapshot for one short position.
type Profile struct {
	CollateralUSD        decimal.Decimal
	EquityUSD            decimal.Decimal
	MaintenanceMarginUSD decimal.Decimal
	AvailableHeadroomUSD decimal.Decimal
	HealthScore          decimal.Decimal // 1 = fully healthy, 0 = at or past liquidation
	EstLiquidationPrice  decimal.Decimal // mark price at which equity meets maintenance margin
	WouldLiquidate       bool
}

func NewMarginSim() *MarginSim {
	return &MarginSim{
		maintenanceMarginRate: decimal.NewFromFloat(0.05),
		safetyBuffer:          decimal.NewFromFloat(0.20),
	}
}

func (s *MarginSim) SetMaintenanceMarginRate(rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maintenanceMarginRate = rate
}

func (s *MarginSim) SetSafetyBuffer(buffer decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.safetyBuffer = buffer
}

func satsToBTC(sats money.Sats) decimal.Decimal {
	return decimal.NewFromInt(int64(sats)).Div(decimal.NewFromInt(money.SatsPerBTC))
}

func priceToUSD(p money.Price) decimal.Decimal {
	return decimal.NewFromInt(int64(p)).Div(decimal.NewFromInt(100))
}

// Profile estimates the margin state of a short hedge opened at the
// position's entry price and marked at its last mark, assuming isolated
// margin with collateral of notional/leverage posted at open.
func (s *MarginSim) Profile(pos core.HedgePosition, leverage uint8) Profile {
	s.mu.RLock()
	mmr := s.maintenanceMarginRate
	buffer := s.safetyBuffer
	s.mu.RUnlock()

	qty := satsToBTC(pos.ShortSizeBTCSats)
	entry := priceToUSD(pos.EntryPrice)
	mark := priceToUSD(pos.LastMark)
	if mark.IsZero() {
		mark = entry
	}

	notional := qty.Mul(entry)
	if leverage == 0 {
		leverage = 1
	}
	collateral := notional.Div(decimal.NewFromInt(int64(leverage)))

	// Short PnL: gains when mark < entry.
	unrealized := qty.Mul(entry.Sub(mark))
	equity := collateral.Add(unrealized)

	maintMargin := qty.Mul(mark).Mul(mmr)

	headroom := equity.Sub(maintMargin)
	if headroom.IsNegative() {
		headroom = decimal.Zero
	}
	safeHeadroom := headroom.Mul(decimal.NewFromInt(1).Sub(buffer))

	// Equity meets maintenance margin where
	// collateral + qty*(entry - mark) = qty*mark*mmr.
	var liqPrice decimal.Decimal
	if qty.IsPositive() {
		liqPrice = collateral.Add(qty.Mul(entry)).Div(qty.Mul(decimal.NewFromInt(1).Add(mmr)))
	}

	profile := Profile{
		CollateralUSD:        collateral,
		EquityUSD:            equity,
		MaintenanceMarginUSD: maintMargin,
		AvailableHeadroomUSD: safeHeadroom,
		EstLiquidationPrice:  liqPrice,
	}

	if !equity.IsPositive() {
		profile.HealthScore = decimal.Zero
		profile.WouldLiquidate = true
		return profile
	}

	// HealthScore = 1 - (maintMargin * (1 + safetyBuffer) / equity)
	safeMaint := maintMargin.Mul(decimal.NewFromInt(1).Add(buffer))
	health := decimal.NewFromInt(1).Sub(safeMaint.Div(equity))
	if health.IsNegative() {
		profile.HealthScore = decimal.Zero
		profile.WouldLiquidate = true
		return profile
	}
	if health.GreaterThan(decimal.NewFromInt(1)) {
		health = decimal.NewFromInt(1)
	}
	profile.HealthScore = health
	return profile
}

// SimulateOpen estimates whether a proposed short of qty at price fits the
// given free collateral, applying the same buffered maintenance margin the
// live profile uses.
func (s *MarginSim) SimulateOpen(qty money.Sats, price money.Price, leverage uint8, freeCollateralUSD money.USDCents) Profile {
	pos := core.HedgePosition{
		ShortSizeBTCSats: qty,
		EntryPrice:       price,
		LastMark:         price,
	}
	profile := s.Profile(pos, leverage)

	free := decimal.NewFromInt(int64(freeCollateralUSD)).Div(decimal.NewFromInt(100))
	if profile.CollateralUSD.GreaterThan(free) {
		profile.WouldLiquidate = true
		profile.HealthScore = decimal.Zero
	}
	return profile
}
