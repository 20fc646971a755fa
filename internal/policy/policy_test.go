package policy

import (
	"testing"

	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/money"
)

func defaultPolicy() core.AllocationPolicy {
	return core.DefaultAllocationPolicy()
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	p := defaultPolicy()
	p.TargetUSDRatio = money.NewRatio(0)
	if err := Validate(p); err == nil {
		t.Fatal("expected error for zero target ratio")
	}

	p = defaultPolicy()
	p.MinFloatBTC = p.MaxFloatBTC
	if err := Validate(p); err == nil {
		t.Fatal("expected error for min==max float")
	}

	p = defaultPolicy()
	p.HedgeLeverage = 0
	if err := Validate(p); err == nil {
		t.Fatal("expected error for zero leverage")
	}
}

func TestNeedsRebalanceZeroReserves(t *testing.T) {
	p := defaultPolicy()
	state := core.ReserveState{}
	if NeedsRebalance(state, money.Price(50_000_00), p) {
		t.Fatal("expected no rebalance when reserves are zero")
	}
}

func TestDriftTriggersBuy(t *testing.T) {
	p := defaultPolicy()
	state := core.ReserveState{
		BTCSats:     100 * money.SatsPerBTC,
		USDReserves: 95_000_000_00,
	}
	price := money.Price(50_000_00)
	if !NeedsRebalance(state, price, p) {
		t.Fatal("expected rebalance: drift is 55pp")
	}
	if UrgencyOf(state, price, p) != core.UrgencyCritical {
		t.Fatalf("expected Critical urgency for 55pp drift, got %s", UrgencyOf(state, price, p))
	}
}

func TestSplitSurplusNonPositive(t *testing.T) {
	p := defaultPolicy()
	toUSD, toBTC := SplitSurplus(-500, p)
	if toUSD != -500 || toBTC != 0 {
		t.Fatalf("expected (-500, 0), got (%d, %d)", toUSD, toBTC)
	}
}

func TestSplitSurplusPositiveNonNegativeParts(t *testing.T) {
	p := defaultPolicy()
	toUSD, toBTC := SplitSurplus(money.USDCents(101), p)
	if toUSD < 0 || toBTC < 0 {
		t.Fatalf("expected non-negative parts, got (%d, %d)", toUSD, toBTC)
	}
	if toUSD+toBTC != 101 {
		t.Fatalf("expected parts to sum to surplus, got %d+%d", toUSD, toBTC)
	}
}
