package sustain

import (
	"testing"

	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/money"
)

func TestPeriodsUnboundedWhenPremiumsCoverYield(t *testing.T) {
	state := core.ReserveState{BTCSats: 100 * money.SatsPerBTC}
	price := money.Price(50_000_00)
	// required_usd_per_period = 10 BTC * $50k = $500k; premiums of $1M cover it.
	got := Periods(state, price, 10*money.SatsPerBTC, 1_000_000_00)
	if got != core.UnboundedPeriods {
		t.Fatalf("got %d, want UnboundedPeriods", got)
	}
}

func TestPeriodsFloorDivision(t *testing.T) {
	state := core.ReserveState{BTCSats: 100 * money.SatsPerBTC}
	price := money.Price(50_000_00)
	// required_usd_per_period = 10 BTC * $50k = $500k; premiums $200k ->
	// shortfall $300k; btc_value = 100*$50k = $5,000,000 -> 5,000,000/300,000 = 16.
	got := Periods(state, price, 10*money.SatsPerBTC, 200_000_00)
	if got != 16 {
		t.Fatalf("got %d, want 16", got)
	}
}

// Periods is non-increasing in required yield and
// non-decreasing in annual premiums, for a fixed state and price.
func TestPeriodsMonotonicity(t *testing.T) {
	state := core.ReserveState{BTCSats: 100 * money.SatsPerBTC}
	price := money.Price(50_000_00)

	lowYield := Periods(state, price, 5*money.SatsPerBTC, 100_000_00)
	highYield := Periods(state, price, 20*money.SatsPerBTC, 100_000_00)
	if highYield > lowYield {
		t.Fatalf("higher required yield gave more periods: low=%d high=%d", lowYield, highYield)
	}

	lowPremiums := Periods(state, price, 10*money.SatsPerBTC, 50_000_00)
	highPremiums := Periods(state, price, 10*money.SatsPerBTC, 300_000_00)
	if highPremiums < lowPremiums {
		t.Fatalf("higher premiums gave fewer periods: low=%d high=%d", lowPremiums, highPremiums)
	}
}

// At the break-even price, the per-period USD obligation equals
// annual_premiums_usd exactly (the identity the break-even price defines).
func TestBreakEvenIdentity(t *testing.T) {
	premiums := money.USDCents(500_000_00)
	targetYield := money.Sats(10 * money.SatsPerBTC)

	price, err := BreakEvenPrice(premiums, targetYield)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	requiredUSD := money.BTCValueUSDCents(targetYield, price)
	if requiredUSD != premiums {
		t.Fatalf("required_usd_per_period = %d, want %d (break-even identity)", requiredUSD, premiums)
	}
}

func TestBreakEvenPriceZeroYieldIsError(t *testing.T) {
	_, err := BreakEvenPrice(1_000_00, 0)
	if err != ErrZeroYieldTarget {
		t.Fatalf("err = %v, want ErrZeroYieldTarget", err)
	}
}

// Bounded case: a deficit scenario should monotonically exhaust the
// float and floor at zero rather than going negative.
func TestSimulateAccumulationBoundedExhaustion(t *testing.T) {
	scenario := core.SustainabilityScenario{
		BTCAppreciationPerPeriod: money.NewRatio(0),
		AnnualPremiumsUSD:        0,
		TargetYieldBTCPerPeriod:  1 * money.SatsPerBTC,
		Periods:                  20,
	}
	rows := SimulateAccumulation(5*money.SatsPerBTC, money.Price(50_000_00), scenario)

	if len(rows) != 21 {
		t.Fatalf("got %d rows, want 21", len(rows))
	}
	last := rows[len(rows)-1]
	if last.BTCSats != 0 {
		t.Fatalf("btc_sats should floor at zero once exhausted, got %d", last.BTCSats)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].BTCSats > rows[i-1].BTCSats {
			t.Fatalf("btc_sats increased under a pure-deficit scenario at row %d", i)
		}
	}
}

// Unbounded case: a surplus scenario should accumulate BTC every
// period without bound, never going negative.
func TestSimulateAccumulationUnboundedGrowth(t *testing.T) {
	scenario := core.SustainabilityScenario{
		BTCAppreciationPerPeriod: money.NewRatio(10_000), // 1% per period
		AnnualPremiumsUSD:        1_000_000_00,
		TargetYieldBTCPerPeriod:  1 * money.SatsPerBTC,
		Periods:                  10,
	}
	rows := SimulateAccumulation(5*money.SatsPerBTC, money.Price(50_000_00), scenario)

	for i := 1; i < len(rows); i++ {
		if rows[i].BTCSats < rows[i-1].BTCSats {
			t.Fatalf("btc_sats decreased under a surplus scenario at row %d", i)
		}
		if rows[i].BTCSats < 0 {
			t.Fatalf("btc_sats went negative at row %d", i)
		}
	}
}

func TestSimulateAccumulationRestartableFromAnyRow(t *testing.T) {
	scenario := core.SustainabilityScenario{
		BTCAppreciationPerPeriod: money.NewRatio(5_000),
		AnnualPremiumsUSD:        400_000_00,
		TargetYieldBTCPerPeriod:  2 * money.SatsPerBTC,
		Periods:                  6,
	}
	full := SimulateAccumulation(10*money.SatsPerBTC, money.Price(50_000_00), scenario)

	mid := full[3]
	restartScenario := scenario
	restartScenario.Periods = 3
	restarted := SimulateAccumulation(mid.BTCSats, mid.Price, restartScenario)

	if restarted[len(restarted)-1].BTCSats != full[len(full)-1].BTCSats {
		t.Fatalf("restart from row 3 diverged: restarted=%d full=%d", restarted[len(restarted)-1].BTCSats, full[len(full)-1].BTCSats)
	}
}
