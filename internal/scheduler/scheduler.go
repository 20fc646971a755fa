// Package scheduler implements the Rebalance Scheduler: the advisory
// recommend query, plus the three periodic task kinds that drive the
// Executor and Hedge Coordinator against a live clock — rebalance ticks,
// premium intake, and hedge mark refreshes — off a bounded worker pool.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/tonsurance/btcfloat/internal/alert"
	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/hedge"
	"github.com/tonsurance/btcfloat/internal/money"
	"github.com/tonsurance/btcfloat/internal/policy"
	"github.com/tonsurance/btcfloat/internal/reserve"
	"github.com/tonsurance/btcfloat/internal/signal"
	"github.com/tonsurance/btcfloat/pkg/apperrors"
	"github.com/tonsurance/btcfloat/pkg/concurrency"
	"github.com/tonsurance/btcfloat/pkg/telemetry"
)

// feeRateEstimate is the trading-fee heuristic applied to the proposed
// notional when estimating rebalance cost.
const feeRateEstimate = 0.001

// Recommend produces the advisory Recommendation for the given snapshot:
// read-only, side-effect-free, and safe to call from any goroutine.
func Recommend(state core.ReserveState, price money.Price, p core.AllocationPolicy) core.Recommendation {
	sig := signal.Generate(state, price, p)
	needsRebalance := policy.NeedsRebalance(state, price, p)
	urgency := policy.UrgencyOf(state, price, p)
	drift := policy.Drift(state, price, p)

	var notional money.USDCents
	switch sig.Kind {
	case core.BuyBTC:
		notional = sig.USD
	case core.SellBTC:
		notional = money.USDForSats(sig.BTCSats, price)
	}
	estimatedCost := money.USDCents(float64(notional) * feeRateEstimate)

	return core.Recommendation{
		ShouldRebalance:  needsRebalance && sig.Kind != core.Hold,
		Signal:           sig,
		Urgency:          urgency,
		Reason:           fmt.Sprintf("drift=%.4f target=%.4f threshold=%.4f urgency=%s", drift.Float64(), p.TargetUSDRatio.Float64(), p.RebalanceThreshold.Float64(), urgency),
		EstimatedCostUSD: estimatedCost,
	}
}

// Config sizes the scheduler's worker pool. Zero values fall back to
// defaults suitable for a single-reserve deployment.
type Config struct {
	PoolSize   int
	PoolBuffer int
}

// Scheduler owns the worker pool that drives the periodic task kinds
// against an Executor and Hedge Coordinator, raising alerts on critical
// urgency, execution failure, and degraded hedge outcomes.
type Scheduler struct {
	executor    *reserve.Executor
	coordinator *hedge.Coordinator
	pool        *concurrency.WorkerPool
	alerts      *alert.Manager
	logger      core.ILogger
}

// New constructs a Scheduler backed by a bounded worker pool.
func New(cfg Config, executor *reserve.Executor, coordinator *hedge.Coordinator, alerts *alert.Manager, logger core.ILogger) *Scheduler {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.PoolBuffer <= 0 {
		cfg.PoolBuffer = 64
	}
	logger = logger.WithField("component", "scheduler")
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:       "reserve-scheduler",
		Workers:    cfg.PoolSize,
		QueueDepth: cfg.PoolBuffer,
	}, logger)
	return &Scheduler{
		executor:    executor,
		coordinator: coordinator,
		pool:        pool,
		alerts:      alerts,
		logger:      logger,
	}
}

// Stop drains the worker pool.
func (s *Scheduler) Stop() {
	s.pool.Stop()
}

// RunRebalanceTask runs one periodic rebalance: it calls Tick on the
// Executor off the worker pool, raises a Critical alert when the pre-tick
// urgency was Critical, and raises a Warning when the tick executed but its
// hedge side degraded. A failed close leaves the hedge Active, and the next
// Sell execution attempts the close again; a failed open is not retried.
func (s *Scheduler) RunRebalanceTask(ctx context.Context, price money.Price, p core.AllocationPolicy) {
	state := s.executor.Snapshot()
	rec := Recommend(state, price, p)

	m := telemetry.GetGlobalMetrics()
	m.SetReserveGauges(
		policy.CurrentUSDRatio(state, price).Float64(),
		policy.Drift(state, price, p).Float64(),
		int64(rec.Urgency),
	)

	if rec.Urgency == core.UrgencyCritical {
		s.alerts.Alert(ctx, "critical rebalance drift", rec.Reason, alert.Critical, map[string]string{
			"urgency": rec.Urgency.String(),
		})
	}

	_ = s.pool.Submit(func() {
		exec, err := s.executor.Tick(ctx, price, p)
		if err != nil {
			s.logger.Error("rebalance tick failed", "error", err)
			s.alerts.Alert(ctx, "rebalance tick failed", err.Error(), alert.Error, nil)
			return
		}
		if exec == nil {
			return
		}
		s.logger.Info("rebalance tick executed", "signal", exec.Signal.Kind.String())
		m.IncRebalance(ctx)
		switch exec.HedgeOutcome.Kind {
		case core.HedgeOutcomeHedgeFailed:
			m.IncVenueError(ctx, venueErrorKind(exec.HedgeOutcome.Err))
			msg := "hedge degraded"
			if exec.HedgeOutcome.Err != nil {
				msg = exec.HedgeOutcome.Err.Error()
			}
			s.alerts.TradeAlert(ctx, "hedge degraded on rebalance", msg, alert.Warning, *exec)
		case core.HedgeOutcomeHedgeClosed:
			if r := exec.HedgeOutcome.CloseReport; r != nil {
				m.AddRealizedPnL(ctx, float64(r.NetPnLUSD)/100)
			}
		}
	})
}

// SubmitPremiumIntake runs one premium intake task: an inflow from the
// surrounding collateral system, split and allocated independently of other
// concurrent inflows.
func (s *Scheduler) SubmitPremiumIntake(ctx context.Context, usdAmount money.USDCents, price money.Price, p core.AllocationPolicy) error {
	return s.pool.Submit(func() {
		exec, err := s.executor.ApplyPremiumInflow(ctx, usdAmount, price, p)
		if err != nil {
			s.logger.Error("premium intake failed", "error", err, "usd_amount", int64(usdAmount))
			s.alerts.Alert(ctx, "premium intake failed", err.Error(), alert.Error, nil)
			return
		}
		if exec != nil {
			s.logger.Info("premium intake allocated", "btc_sats", int64(exec.BTCAmountSats))
		}
	})
}

// SubmitHedgeMarkTask runs one hedge mark task: a periodic, best-effort
// refresh of the active hedge's unrealized PnL. It is a no-op when no
// hedge is active.
func (s *Scheduler) SubmitHedgeMarkTask(ctx context.Context) error {
	return s.pool.Submit(func() {
		m := telemetry.GetGlobalMetrics()
		if !s.coordinator.IsActive() {
			m.SetHedgeGauges(false, 0, 0)
			return
		}
		if err := s.coordinator.Reconcile(ctx); err != nil {
			s.logger.Warn("hedge mark task failed", "error", err)
		}
		if pos := s.coordinator.ActiveSnapshot(); pos != nil {
			m.SetHedgeGauges(true,
				float64(pos.ShortSizeBTCSats)/float64(money.SatsPerBTC),
				float64(pos.UnrealizedPnLUSD)/100,
			)
		} else {
			m.SetHedgeGauges(false, 0, 0)
		}
	})
}

// venueErrorKind extracts the VenueError kind label for metrics, defaulting
// to "unknown" for untyped errors.
func venueErrorKind(err error) string {
	var venueErr *apperrors.VenueError
	if errors.As(err, &venueErr) {
		return string(venueErr.Kind)
	}
	return "unknown"
}
