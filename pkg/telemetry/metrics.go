package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names, mirroring the naming convention of the stack this module is
// grounded on: btcfloat_<noun> for gauges and counters alike.
const (
	MetricUSDRatio              = "btcfloat_usd_ratio"
	MetricDrift                 = "btcfloat_drift"
	MetricUrgency               = "btcfloat_urgency"
	MetricHedgeNotionalBTC      = "btcfloat_hedge_notional_btc"
	MetricHedgeActive           = "btcfloat_hedge_active"
	MetricPnLRealizedTotal      = "btcfloat_pnl_realized_total"
	MetricPnLUnrealized         = "btcfloat_pnl_unrealized"
	MetricRebalanceCount        = "btcfloat_rebalance_count_total"
	MetricVenueErrorsTotal      = "btcfloat_venue_errors_total"
	MetricSustainabilityPeriods = "btcfloat_sustainability_periods"
	MetricCircuitBreakerOpen    = "btcfloat_circuit_breaker_open"
)

// MetricsHolder holds initialized instruments.
type MetricsHolder struct {
	USDRatio              metric.Float64ObservableGauge
	Drift                 metric.Float64ObservableGauge
	Urgency               metric.Int64ObservableGauge
	HedgeNotionalBTC      metric.Float64ObservableGauge
	HedgeActive           metric.Int64ObservableGauge
	PnLRealizedTotal      metric.Float64Counter
	PnLUnrealized         metric.Float64ObservableGauge
	RebalanceCount        metric.Int64Counter
	VenueErrorsTotal      metric.Int64Counter
	SustainabilityPeriods metric.Int64ObservableGauge
	CircuitBreakerOpen    metric.Int64ObservableGauge

	mu                    sync.RWMutex
	usdRatio              float64
	drift                 float64
	urgency               int64
	hedgeNotionalBTC      float64
	hedgeActive           int64
	unrealizedPnL         float64
	sustainabilityPeriods int64
	circuitBreakerOpen    int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter.
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.PnLRealizedTotal, err = meter.Float64Counter(MetricPnLRealizedTotal, metric.WithDescription("Cumulative realized hedge PnL in USD"))
	if err != nil {
		return err
	}

	m.RebalanceCount, err = meter.Int64Counter(MetricRebalanceCount, metric.WithDescription("Total number of rebalance executions"))
	if err != nil {
		return err
	}

	m.VenueErrorsTotal, err = meter.Int64Counter(MetricVenueErrorsTotal, metric.WithDescription("Total futures venue errors by kind"))
	if err != nil {
		return err
	}

	m.USDRatio, err = meter.Float64ObservableGauge(MetricUSDRatio, metric.WithDescription("Current usd_reserves / total_reserves ratio"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.usdRatio)
			return nil
		}))
	if err != nil {
		return err
	}

	m.Drift, err = meter.Float64ObservableGauge(MetricDrift, metric.WithDescription("Absolute drift from target_usd_ratio"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.drift)
			return nil
		}))
	if err != nil {
		return err
	}

	m.Urgency, err = meter.Int64ObservableGauge(MetricUrgency, metric.WithDescription("Current rebalance urgency band (0=Low..3=Critical)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.urgency)
			return nil
		}))
	if err != nil {
		return err
	}

	m.HedgeNotionalBTC, err = meter.Float64ObservableGauge(MetricHedgeNotionalBTC, metric.WithDescription("Notional BTC size of the active hedge, 0 when none"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.hedgeNotionalBTC)
			return nil
		}))
	if err != nil {
		return err
	}

	m.HedgeActive, err = meter.Int64ObservableGauge(MetricHedgeActive, metric.WithDescription("Whether a hedge position is currently active (1) or not (0)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.hedgeActive)
			return nil
		}))
	if err != nil {
		return err
	}

	m.PnLUnrealized, err = meter.Float64ObservableGauge(MetricPnLUnrealized, metric.WithDescription("Unrealized PnL on the active hedge"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.unrealizedPnL)
			return nil
		}))
	if err != nil {
		return err
	}

	m.SustainabilityPeriods, err = meter.Int64ObservableGauge(MetricSustainabilityPeriods, metric.WithDescription("Periods of yield coverage remaining, capped for gauge export"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.sustainabilityPeriods)
			return nil
		}))
	if err != nil {
		return err
	}

	m.CircuitBreakerOpen, err = meter.Int64ObservableGauge(MetricCircuitBreakerOpen, metric.WithDescription("Venue HTTP client circuit breaker open state (1=open, 0=closed)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.circuitBreakerOpen)
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// SetReserveGauges updates the observable reserve-state gauges in one call,
// matching the single snapshot the Executor hands a caller per tick.
func (m *MetricsHolder) SetReserveGauges(usdRatio, drift float64, urgency int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usdRatio = usdRatio
	m.drift = drift
	m.urgency = urgency
}

// SetHedgeGauges updates the observable hedge-state gauges.
func (m *MetricsHolder) SetHedgeGauges(active bool, notionalBTC, unrealizedPnL float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hedgeActive = boolToInt64(active)
	m.hedgeNotionalBTC = notionalBTC
	m.unrealizedPnL = unrealizedPnL
}

// SetSustainabilityPeriods updates the sustainability gauge, capping the
// "unbounded" sentinel to a large-but-finite value for gauge export.
func (m *MetricsHolder) SetSustainabilityPeriods(periods int64) {
	const gaugeCap = 1_000_000
	if periods > gaugeCap {
		periods = gaugeCap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sustainabilityPeriods = periods
}

// SetCircuitBreakerOpen updates the venue HTTP client's circuit breaker gauge.
func (m *MetricsHolder) SetCircuitBreakerOpen(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitBreakerOpen = boolToInt64(open)
}

// IncRebalance bumps the rebalance counter. Safe to call before InitMetrics
// has run (a no-op then), so domain code never has to care whether
// telemetry is enabled.
func (m *MetricsHolder) IncRebalance(ctx context.Context) {
	if m.RebalanceCount != nil {
		m.RebalanceCount.Add(ctx, 1)
	}
}

// AddRealizedPnL records realized hedge PnL in whole USD.
func (m *MetricsHolder) AddRealizedPnL(ctx context.Context, usd float64) {
	if m.PnLRealizedTotal != nil {
		m.PnLRealizedTotal.Add(ctx, usd)
	}
}

// IncVenueError bumps the venue error counter, labeled by error kind.
func (m *MetricsHolder) IncVenueError(ctx context.Context, kind string) {
	if m.VenueErrorsTotal != nil {
		m.VenueErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
