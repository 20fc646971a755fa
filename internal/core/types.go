package core

import (
	"time"

	"github.com/tonsurance/btcfloat/internal/money"
)

// ReserveState is owned exclusively by the Executor and mutated only
// through its transitions.
type ReserveState struct {
	BTCSats         money.Sats
	USDReserves     money.USDCents
	LastRebalanceAt time.Time
	RebalanceCount  uint32
}

// BTCValueUSD returns the USD value of the BTC holdings at the given price.
func (s ReserveState) BTCValueUSD(price money.Price) money.USDCents {
	return money.BTCValueUSDCents(s.BTCSats, price)
}

// TotalReserves returns usd_reserves + btc_value_usd(price).
func (s ReserveState) TotalReserves(price money.Price) money.USDCents {
	return s.USDReserves + s.BTCValueUSD(price)
}

// AllocationPolicy is immutable per decision cycle; it may be reloaded
// between cycles but is never mutated mid-tick.
type AllocationPolicy struct {
	MinFloatBTC        money.Sats
	MaxFloatBTC        money.Sats
	TargetUSDRatio     money.Ratio
	RebalanceThreshold money.Ratio
	DCAEnabled         bool
	DCAPeriod          time.Duration
	HedgeLeverage      uint8
	VenueTimeout       time.Duration
}

// DefaultAllocationPolicy returns the protocol defaults.
func DefaultAllocationPolicy() AllocationPolicy {
	return AllocationPolicy{
		MinFloatBTC:        50 * money.SatsPerBTC,
		MaxFloatBTC:        10_000 * money.SatsPerBTC,
		TargetUSDRatio:     money.NewRatio(400_000), // 0.40
		RebalanceThreshold: money.NewRatio(100_000), // 0.10
		DCAEnabled:         false,
		DCAPeriod:          24 * time.Hour,
		HedgeLeverage:      5,
		VenueTimeout:       30 * time.Second,
	}
}

// SignalKind discriminates the TradeSignal tagged variant.
type SignalKind int

const (
	Hold SignalKind = iota
	BuyBTC
	SellBTC
)

func (k SignalKind) String() string {
	switch k {
	case Hold:
		return "Hold"
	case BuyBTC:
		return "BuyBTC"
	case SellBTC:
		return "SellBTC"
	default:
		return "Unknown"
	}
}

// TradeSignal is the tagged variant { Hold | BuyBTC{usd} | SellBTC{btc} }
// emitted by the Signal Generator. Both payload variants carry
// strictly positive amounts by construction — see internal/signal.
type TradeSignal struct {
	Kind    SignalKind
	USD     money.USDCents // populated only when Kind == BuyBTC
	BTCSats money.Sats     // populated only when Kind == SellBTC
}

// HoldSignal is the canonical Hold value.
var HoldSignal = TradeSignal{Kind: Hold}

// Urgency classifies rebalance urgency by drift magnitude.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyMedium
	UrgencyHigh
	UrgencyCritical
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "Low"
	case UrgencyMedium:
		return "Medium"
	case UrgencyHigh:
		return "High"
	case UrgencyCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// HedgePosition is owned by the Hedge Coordinator; at most one is active at
// a time.
type HedgePosition struct {
	VenuePositionID  string
	ShortSizeBTCSats money.Sats
	EntryPrice       money.Price
	OpenedAt         time.Time
	LastMark         money.Price
	UnrealizedPnLUSD int64
}

// HedgeCloseReport is the result of successfully closing a hedge position.
type HedgeCloseReport struct {
	RealizedPnLUSD int64
	FeesUSD        int64
	NetPnLUSD      int64
	ClosedAt       time.Time
}

// HedgeOutcomeKind discriminates the HedgeOutcome tagged variant attached to
// a TradeExecution.
type HedgeOutcomeKind int

const (
	HedgeOutcomeNone HedgeOutcomeKind = iota
	HedgeOutcomeHedgedAt
	HedgeOutcomeHedgeFailed
	HedgeOutcomeHedgeClosed
)

// HedgeOutcome annotates a TradeExecution with what happened to the hedge
// side of the transition: { None | HedgedAt | HedgeFailed | HedgeClosed }.
type HedgeOutcome struct {
	Kind        HedgeOutcomeKind
	EntryPrice  money.Price       // populated when Kind == HedgeOutcomeHedgedAt
	Err         error             // populated when Kind == HedgeOutcomeHedgeFailed
	CloseReport *HedgeCloseReport // populated when Kind == HedgeOutcomeHedgeClosed
}

// NoHedgeOutcome is the canonical "hedging did not apply" value.
var NoHedgeOutcome = HedgeOutcome{Kind: HedgeOutcomeNone}

// TradeExecution is an append-only audit record emitted by the Executor.
// TradeExecutions are immutable once emitted and ordered by At (ties
// broken by insertion order).
type TradeExecution struct {
	Signal         TradeSignal
	Price          money.Price
	BTCAmountSats  money.Sats
	USDAmountCents money.USDCents
	At             time.Time
	Reason         string
	HedgeOutcome   HedgeOutcome
}

// HedgeState tracks the at-most-one active hedge and the execution history.
type HedgeState struct {
	Active               *HedgePosition
	CumulativeHedgedSats money.Sats
	History              []TradeExecution
}

// SustainabilityScenario is the input to an accumulation simulation.
type SustainabilityScenario struct {
	BTCAppreciationPerPeriod money.Ratio
	AnnualPremiumsUSD        money.USDCents
	TargetYieldBTCPerPeriod  money.Sats
	Periods                  int
}

// SimulationRow is one row emitted by simulate_accumulation.
type SimulationRow struct {
	Period   int
	BTCSats  money.Sats
	BTCValue money.USDCents
	Price    money.Price
}

// PerformanceMetrics is the output of the Performance Tracker.
type PerformanceMetrics struct {
	TotalBTCSats           money.Sats
	CurrentValueUSD        money.USDCents
	CostBasisUSD           money.USDCents
	UnrealizedGainUSD      int64
	UnrealizedGainRatio    money.Ratio
	AveragePurchasePrice   money.Price
	PeriodsOfYieldCoverage int64
}

// Recommendation is the advisory decision record produced by the Rebalance
// Scheduler.
type Recommendation struct {
	ShouldRebalance  bool
	Signal           TradeSignal
	Urgency          Urgency
	Reason           string
	EstimatedCostUSD money.USDCents
}

// UnboundedPeriods is the sentinel returned when premium inflow already
// covers the yield obligation indefinitely.
const UnboundedPeriods int64 = 1<<63 - 1
