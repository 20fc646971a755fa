// Package reserve implements the Executor: the sole mutator of ReserveState.
// It orchestrates the Signal -> Hedge -> State transition so that callers
// observe it atomically, following a two-phase compute-intent / venue I/O /
// validate-and-mutate discipline that never holds the reserve lock across a
// network call.
package reserve

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/hedge"
	"github.com/tonsurance/btcfloat/internal/money"
	"github.com/tonsurance/btcfloat/internal/policy"
	"github.com/tonsurance/btcfloat/internal/signal"
	"github.com/tonsurance/btcfloat/pkg/apperrors"
)

// maxRetries bounds the optimistic-locking path: the executor retries from
// signal regeneration at most twice before abandoning the tick with
// ErrStaleSnapshot.
const maxRetries = 2

// baselineFeeRateBp is the 0.1% fee estimate logged with every execution
// record; the estimate is not stored on the TradeExecution itself.
const baselineFeeRateBp = 10

// Executor owns ReserveState and coordinates the Hedge Coordinator. All
// mutation happens with the mutex held; venue I/O happens with it released.
type Executor struct {
	mu          sync.Mutex
	state       core.ReserveState
	coordinator *hedge.Coordinator
	logger      core.ILogger
	history     []core.TradeExecution
	observers   []func(core.TradeExecution)

	tickGroup singleflight.Group
}

// NewExecutor constructs an Executor over an initial ReserveState.
func NewExecutor(initial core.ReserveState, coordinator *hedge.Coordinator, logger core.ILogger) *Executor {
	return &Executor{
		state:       initial,
		coordinator: coordinator,
		logger:      logger.WithField("component", "executor"),
	}
}

// AddObserver registers a callback invoked after every committed execution,
// outside the reserve lock. The performance tracker and the persistence
// adapter both attach this way; observers must tolerate being called from
// concurrent ticks.
func (e *Executor) AddObserver(fn func(core.TradeExecution)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Snapshot returns a read-only copy of the current ReserveState. Readers
// never block writers: the snapshot is copied under a brief lock, never
// held across I/O.
func (e *Executor) Snapshot() core.ReserveState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// History returns a copy of the execution history.
func (e *Executor) History() []core.TradeExecution {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.TradeExecution, len(e.history))
	copy(out, e.history)
	return out
}

// Tick regenerates the signal against the latest snapshot and, if it is
// non-Hold, executes one rebalance. Concurrent callers collapse onto a
// single in-flight rebalance via singleflight.
func (e *Executor) Tick(ctx context.Context, price money.Price, p core.AllocationPolicy) (*core.TradeExecution, error) {
	v, err, _ := e.tickGroup.Do("tick", func() (interface{}, error) {
		// The rebalance itself and a housekeeping refresh of any active
		// hedge's mark both want the venue and neither depends on the
		// other's result, so they run concurrently: an errgroup joins
		// them and surfaces only the rebalance's error, since Reconcile
		// is best-effort and already logs its own failures.
		g, gctx := errgroup.WithContext(ctx)
		var result interface{}
		var resultErr error
		g.Go(func() error {
			result, resultErr = e.executeFromSignal(gctx, price, p, "scheduled rebalance tick")
			return nil
		})
		g.Go(func() error {
			if !e.coordinator.IsActive() {
				return nil
			}
			if rerr := e.coordinator.Reconcile(gctx); rerr != nil {
				e.logger.Warn("hedge mark reconcile failed", "error", rerr)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return result, resultErr
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	exec := v.(core.TradeExecution)
	return &exec, nil
}

// ApplyPremiumInflow splits incoming premium USD per the Allocation Policy
// and issues a Buy for the BTC-destined portion.
func (e *Executor) ApplyPremiumInflow(ctx context.Context, usdAmount money.USDCents, price money.Price, p core.AllocationPolicy) (*core.TradeExecution, error) {
	_, toBTC := policy.SplitSurplus(usdAmount, p)

	e.mu.Lock()
	e.state.USDReserves += usdAmount
	e.mu.Unlock()

	if toBTC <= 0 {
		return nil, nil
	}
	exec, err := e.execute(ctx, core.TradeSignal{Kind: core.BuyBTC, USD: toBTC}, price, "premium inflow allocation", p)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, nil
	}
	return exec, nil
}

// executeFromSignal regenerates the signal against the current snapshot and
// executes it if non-Hold. Each attempt recomputes the signal from a fresh
// snapshot, so a stale-snapshot retry re-derives a fresh intent rather than
// replaying a decision made against superseded state.
func (e *Executor) executeFromSignal(ctx context.Context, price money.Price, p core.AllocationPolicy, reason string) (interface{}, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		snap := e.Snapshot()
		sig := signal.Generate(snap, price, p)
		if sig.Kind == core.Hold {
			return nil, nil
		}

		exec, err := e.execute(ctx, sig, price, reason, p)
		if err == nil {
			if exec == nil {
				return nil, nil
			}
			return *exec, nil
		}
		if err != apperrors.ErrStaleSnapshot {
			return nil, err
		}
		// retry: loop again with a fresh snapshot and signal
	}
	return nil, apperrors.ErrStaleSnapshot
}

// execute applies one TradeSignal as the two-phase compute/IO/validate/mutate
// sequence: compute intent under a brief lock, release, perform the venue
// call, then re-acquire the lock, validate rebalance_count hasn't drifted,
// and mutate. No external side effect is ever issued with the lock held.
func (e *Executor) execute(ctx context.Context, sig core.TradeSignal, price money.Price, reason string, p core.AllocationPolicy) (*core.TradeExecution, error) {
	switch sig.Kind {
	case core.Hold:
		return nil, nil
	case core.BuyBTC:
		return e.executeBuy(ctx, sig.USD, price, reason, p)
	case core.SellBTC:
		return e.executeSell(ctx, sig.BTCSats, price, reason, p)
	default:
		return nil, nil
	}
}

func (e *Executor) executeBuy(ctx context.Context, usd money.USDCents, price money.Price, reason string, p core.AllocationPolicy) (*core.TradeExecution, error) {
	// Phase 1: compute intent under lock.
	e.mu.Lock()
	if e.state.USDReserves < usd {
		e.mu.Unlock()
		return nil, apperrors.ErrInsufficientUsd
	}
	expectedCount := e.state.RebalanceCount
	e.mu.Unlock()

	btcSats := money.SatsForUSD(usd, price)

	// A Buy while a hedge is already Active is a caller-contract error:
	// never open a second hedge, and never accumulate unhedged spot on top
	// of a hedged position — the whole transition degrades to Hold. The
	// reserve stays where it is until a Sell closes the hedge.
	if e.coordinator.IsActive() {
		e.logger.Warn("buy requested while hedge active; holding", "usd_cents", int64(usd))
		return nil, nil
	}

	// Phase 2: venue I/O with no lock held.
	outcome := e.coordinator.OpenForBuy(ctx, btcSats, p.HedgeLeverage)

	// Phase 3: re-acquire, validate, mutate.
	e.mu.Lock()
	if e.state.RebalanceCount != expectedCount {
		e.mu.Unlock()
		return nil, apperrors.ErrStaleSnapshot
	}

	e.state.USDReserves -= usd
	e.state.BTCSats += btcSats
	e.state.LastRebalanceAt = time.Now()
	e.state.RebalanceCount++

	exec := core.TradeExecution{
		Signal:         core.TradeSignal{Kind: core.BuyBTC, USD: usd},
		Price:          price,
		BTCAmountSats:  btcSats,
		USDAmountCents: usd,
		At:             e.state.LastRebalanceAt,
		Reason:         reason,
		HedgeOutcome:   outcome,
	}
	e.history = append(e.history, exec)
	observers := e.observers
	e.mu.Unlock()

	e.logExecution(exec)
	for _, fn := range observers {
		fn(exec)
	}
	return &exec, nil
}

func (e *Executor) executeSell(ctx context.Context, btc money.Sats, price money.Price, reason string, p core.AllocationPolicy) (*core.TradeExecution, error) {
	// Phase 1: compute intent and pre-checks under lock.
	e.mu.Lock()
	if e.state.BTCSats < btc {
		e.mu.Unlock()
		return nil, apperrors.ErrInsufficientBtc
	}
	if e.state.BTCSats-btc < p.MinFloatBTC {
		e.mu.Unlock()
		return nil, apperrors.ErrFloorViolation
	}
	expectedCount := e.state.RebalanceCount
	e.mu.Unlock()

	usd := money.USDForSats(btc, price)

	// Phase 2: venue I/O with no lock held.
	outcome := e.coordinator.CloseForSell(ctx)

	// Phase 3: re-acquire, validate, mutate.
	e.mu.Lock()
	if e.state.RebalanceCount != expectedCount {
		e.mu.Unlock()
		return nil, apperrors.ErrStaleSnapshot
	}

	e.state.BTCSats -= btc
	e.state.USDReserves += usd
	e.state.LastRebalanceAt = time.Now()
	e.state.RebalanceCount++

	exec := core.TradeExecution{
		Signal:         core.TradeSignal{Kind: core.SellBTC, BTCSats: btc},
		Price:          price,
		BTCAmountSats:  btc,
		USDAmountCents: usd,
		At:             e.state.LastRebalanceAt,
		Reason:         reason,
		HedgeOutcome:   outcome,
	}
	e.history = append(e.history, exec)
	observers := e.observers
	e.mu.Unlock()

	e.logExecution(exec)
	for _, fn := range observers {
		fn(exec)
	}
	return &exec, nil
}

// logExecution logs one structured record per TradeExecution.
func (e *Executor) logExecution(exec core.TradeExecution) {
	estimatedFee := (int64(exec.USDAmountCents) * baselineFeeRateBp) / 10_000
	e.logger.Info("trade execution",
		"signal", exec.Signal.Kind.String(),
		"btc_sats", int64(exec.BTCAmountSats),
		"usd_cents", int64(exec.USDAmountCents),
		"price_cents_per_btc", int64(exec.Price),
		"reason", exec.Reason,
		"hedge_outcome", hedgeOutcomeLabel(exec.HedgeOutcome),
		"estimated_fee_usd_cents", estimatedFee,
	)
}

func hedgeOutcomeLabel(o core.HedgeOutcome) string {
	switch o.Kind {
	case core.HedgeOutcomeNone:
		return "none"
	case core.HedgeOutcomeHedgedAt:
		return "hedged"
	case core.HedgeOutcomeHedgeFailed:
		return "failed"
	case core.HedgeOutcomeHedgeClosed:
		return "closed"
	default:
		return "unknown"
	}
}
