package perf

import (
	"testing"

	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/money"
)

func TestRecordIgnoresSellsAndHolds(t *testing.T) {
	tr := NewTracker()
	tr.Record(core.TradeExecution{Signal: core.TradeSignal{Kind: core.SellBTC}, BTCAmountSats: 5 * money.SatsPerBTC, USDAmountCents: 250_000_00})
	tr.Record(core.TradeExecution{Signal: core.HoldSignal})
	if tr.PurchasedSats() != 0 {
		t.Fatalf("sell must not affect cost basis, got %d sats purchased", tr.PurchasedSats())
	}
}

func TestRecordAccumulatesBuys(t *testing.T) {
	tr := NewTracker()
	tr.Record(core.TradeExecution{Signal: core.TradeSignal{Kind: core.BuyBTC}, BTCAmountSats: 2 * money.SatsPerBTC, USDAmountCents: 100_000_00})
	tr.Record(core.TradeExecution{Signal: core.TradeSignal{Kind: core.BuyBTC}, BTCAmountSats: 1 * money.SatsPerBTC, USDAmountCents: 60_000_00})

	if tr.PurchasedSats() != 3*money.SatsPerBTC {
		t.Fatalf("purchased sats = %d, want %d", tr.PurchasedSats(), 3*money.SatsPerBTC)
	}
}

func TestMetricsZeroCostBasis(t *testing.T) {
	tr := NewTracker()
	state := core.ReserveState{BTCSats: 0, USDReserves: 1_000_000_00}
	m := tr.Metrics(state, money.Price(50_000_00), 0, 0)

	if m.UnrealizedGainRatio.Num != 0 {
		t.Fatalf("gain ratio should be zero when cost basis is zero, got %+v", m.UnrealizedGainRatio)
	}
	if m.AveragePurchasePrice != 0 {
		t.Fatalf("average purchase price should be zero when total_btc is zero, got %d", m.AveragePurchasePrice)
	}
}

func TestMetricsComputesGainAndAveragePrice(t *testing.T) {
	tr := NewTracker()
	tr.Record(core.TradeExecution{Signal: core.TradeSignal{Kind: core.BuyBTC}, BTCAmountSats: 2 * money.SatsPerBTC, USDAmountCents: 80_000_00})

	state := core.ReserveState{BTCSats: 2 * money.SatsPerBTC}
	price := money.Price(50_000_00) // $50,000/BTC
	m := tr.Metrics(state, price, 0, 0)

	wantValue := money.USDCents(100_000_00) // 2 BTC * $50k
	if m.CurrentValueUSD != wantValue {
		t.Fatalf("current value = %d, want %d", m.CurrentValueUSD, wantValue)
	}
	if m.UnrealizedGainUSD != int64(wantValue)-80_000_00 {
		t.Fatalf("unrealized gain = %d, want %d", m.UnrealizedGainUSD, int64(wantValue)-80_000_00)
	}
	wantAvg := money.Price(40_000_00) // cost basis $80k / 2 BTC
	if m.AveragePurchasePrice != wantAvg {
		t.Fatalf("average purchase price = %d, want %d", m.AveragePurchasePrice, wantAvg)
	}
}
