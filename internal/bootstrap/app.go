// Package bootstrap assembles the reserve manager from configuration: the
// logger, telemetry, venue, hedge coordinator, executor, trackers, alerting,
// health checks and scheduler, wired in dependency order.
package bootstrap

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonsurance/btcfloat/internal/alert"
	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/hedge"
	"github.com/tonsurance/btcfloat/internal/infrastructure/health"
	"github.com/tonsurance/btcfloat/internal/infrastructure/metrics"
	"github.com/tonsurance/btcfloat/internal/perf"
	"github.com/tonsurance/btcfloat/internal/persistence/sqlitestore"
	"github.com/tonsurance/btcfloat/internal/reserve"
	"github.com/tonsurance/btcfloat/internal/risk"
	"github.com/tonsurance/btcfloat/internal/scheduler"
	"github.com/tonsurance/btcfloat/internal/venue/httpvenue"
	"github.com/tonsurance/btcfloat/internal/venue/mockvenue"
	"github.com/tonsurance/btcfloat/pkg/telemetry"
)

// App holds the assembled reserve manager and its supporting services.
type App struct {
	Cfg         *Config
	Logger      core.ILogger
	Venue       hedge.FuturesVenue
	Coordinator *hedge.Coordinator
	Executor    *reserve.Executor
	Scheduler   *scheduler.Scheduler
	Perf        *perf.Tracker
	Alerts      *alert.Manager
	Health      *health.HealthManager
	MarginSim   *risk.MarginSim

	store     *sqlitestore.Store
	metricsrv *metrics.Server
	otel      *telemetry.Telemetry
}

// NewApp creates a new App instance by bootstrapping all dependencies.
func NewApp(configPath string) (*App, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	app := &App{Cfg: cfg, Logger: logger}

	if cfg.Telemetry.EnableMetrics {
		otelStack, err := telemetry.Setup("btcfloat-reserve-manager")
		if err != nil {
			logger.Warn("telemetry setup failed; continuing without metrics", "error", err)
		} else {
			app.otel = otelStack
		}
	}

	app.Venue = buildVenue(cfg)
	app.Coordinator = hedge.NewCoordinator(cfg.Venue.Symbol, app.Venue, logger)

	initial := core.ReserveState{}
	if cfg.Persistence.Enabled {
		store, err := sqlitestore.Open(cfg.Persistence.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("persistence: %w", err)
		}
		app.store = store
		if snap, err := store.LoadSnapshot(context.Background()); err != nil {
			return nil, fmt.Errorf("persistence: load snapshot: %w", err)
		} else if snap != nil {
			initial = *snap
			logger.Info("restored reserve snapshot",
				"btc_sats", int64(snap.BTCSats),
				"usd_cents", int64(snap.USDReserves),
				"rebalance_count", snap.RebalanceCount,
			)
		}
	}

	app.Executor = reserve.NewExecutor(initial, app.Coordinator, logger)

	app.Perf = perf.NewTracker()
	app.Executor.AddObserver(app.Perf.Record)

	if app.store != nil {
		store := app.store
		executor := app.Executor
		app.Executor.AddObserver(func(exec core.TradeExecution) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.AppendExecution(ctx, exec); err != nil {
				logger.Error("failed to persist execution", "error", err)
			}
			if err := store.SaveSnapshot(ctx, executor.Snapshot()); err != nil {
				logger.Error("failed to persist reserve snapshot", "error", err)
			}
		})
	}

	app.Alerts = alert.NewManager(logger)
	if cfg.Alerting.SlackWebhookURL != "" {
		app.Alerts.Add(alert.NewSlackChannel(string(cfg.Alerting.SlackWebhookURL)))
	}
	if cfg.Alerting.TelegramBotToken != "" {
		app.Alerts.Add(alert.NewTelegramChannel(string(cfg.Alerting.TelegramBotToken), cfg.Alerting.TelegramChatID))
	}

	app.MarginSim = risk.NewMarginSim()
	app.Health = health.NewHealthManager(logger)
	app.registerHealthChecks()

	if app.otel != nil {
		app.metricsrv = metrics.NewServer(cfg.Telemetry.MetricsPort, app.Health, logger)
	}

	app.Scheduler = scheduler.New(scheduler.Config{
		PoolSize:   cfg.Concurrency.SchedulerPoolSize,
		PoolBuffer: cfg.Concurrency.SchedulerPoolBuffer,
	}, app.Executor, app.Coordinator, app.Alerts, logger)

	return app, nil
}

func buildVenue(cfg *Config) hedge.FuturesVenue {
	if cfg.Venue.Type == "mock" {
		return mockvenue.New(0)
	}
	return httpvenue.New(httpvenue.Config{
		BaseURL:           cfg.Venue.BaseURL,
		Symbol:            cfg.Venue.Symbol,
		RequestsPerSecond: cfg.Venue.RequestsPerSecond,
		Burst:             cfg.Venue.Burst,
		Signer:            &hmacSigner{apiKey: string(cfg.Venue.APIKey), secret: string(cfg.Venue.SecretKey)},
	}, cfg.VenueTimeout())
}

// hmacSigner signs venue requests with an HMAC-SHA256 of timestamp and path.
type hmacSigner struct {
	apiKey string
	secret string
}

func (s *hmacSigner) SignRequest(req *http.Request) error {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(req.Method))
	mac.Write([]byte(req.URL.Path))
	req.Header.Set("X-API-Key", s.apiKey)
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
	return nil
}

// registerHealthChecks wires the reserve manager's own checks: the reserve
// ledger's non-negativity, and the hedge's margin headroom as a warn-only
// advisory signal.
func (a *App) registerHealthChecks() {
	a.Health.Register("reserve_state", func() error {
		snap := a.Executor.Snapshot()
		if snap.BTCSats < 0 || snap.USDReserves < 0 {
			return fmt.Errorf("reserve ledger negative: btc_sats=%d usd_cents=%d", snap.BTCSats, snap.USDReserves)
		}
		return nil
	})
	a.Health.RegisterWarnOnly("hedge_margin", func() error {
		pos := a.Coordinator.ActiveSnapshot()
		if pos == nil {
			return nil
		}
		profile := a.MarginSim.Profile(*pos, a.Cfg.ToPolicy().HedgeLeverage)
		if profile.WouldLiquidate {
			return fmt.Errorf("hedge margin exhausted: health=%s est_liquidation_price=%s", profile.HealthScore, profile.EstLiquidationPrice)
		}
		return nil
	})
}

// Runner is an interface for components that can be run and stopped gracefully.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Run orchestrates the application lifecycle, including signal handling.
func (a *App) Run(runners ...Runner) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	a.Logger.Info("starting reserve manager",
		"venue", a.Cfg.Venue.Type,
		"symbol", a.Cfg.Venue.Symbol,
		"persistence", a.Cfg.Persistence.Enabled,
	)

	if a.metricsrv != nil {
		a.metricsrv.Start()
	}

	for _, runner := range runners {
		r := runner
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() == nil {
			a.Logger.Error("reserve manager stopped with error", "error", err)
			return err
		}
	}

	a.Logger.Info("reserve manager shut down gracefully")
	return nil
}

// Shutdown handles cleanup: drains the scheduler pool, stops the metrics
// server, flushes telemetry, and closes the persistence store.
func (a *App) Shutdown(timeout time.Duration) {
	a.Logger.Info("cleaning up resources", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.metricsrv != nil {
		if err := a.metricsrv.Stop(ctx); err != nil {
			a.Logger.Warn("metrics server stop failed", "error", err)
		}
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			a.Logger.Warn("telemetry shutdown failed", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Logger.Warn("persistence store close failed", "error", err)
		}
	}
}
