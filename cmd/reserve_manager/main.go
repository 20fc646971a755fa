package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tonsurance/btcfloat/internal/bootstrap"
	"github.com/tonsurance/btcfloat/internal/money"
	"github.com/tonsurance/btcfloat/internal/venue/mockvenue"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/reserve_manager.yaml", "Path to configuration file")
	spotPrice := flag.Float64("spot", 0, "Static BTC spot price in USD (demo price source; a production deployment feeds prices from the oracle pipeline)")
	tickInterval := flag.Duration("tick", time.Minute, "Rebalance tick interval")
	markInterval := flag.Duration("mark", 15*time.Second, "Hedge mark refresh interval")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("reserve_manager version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	app, err := bootstrap.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Shutdown(10 * time.Second)

	if *spotPrice <= 0 {
		fmt.Fprintln(os.Stderr, "A positive -spot price is required; this runner has no oracle feed")
		os.Exit(1)
	}
	price := money.Price(*spotPrice * 100)

	// The mock venue marks against the same demo price.
	if mv, ok := app.Venue.(*mockvenue.Venue); ok {
		mv.SetMarkPrice(price)
	}

	policy := app.Cfg.ToPolicy()

	app.Logger.Info("starting reserve manager runner",
		"version", version,
		"spot_usd", *spotPrice,
		"tick_interval", tickInterval.String(),
	)

	rebalanceLoop := bootstrap.RunnerFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(*tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				app.Scheduler.RunRebalanceTask(ctx, price, policy)
			}
		}
	})

	markLoop := bootstrap.RunnerFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(*markInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := app.Scheduler.SubmitHedgeMarkTask(ctx); err != nil {
					app.Logger.Warn("hedge mark submit failed", "error", err)
				}
			}
		}
	})

	statusLoop := bootstrap.RunnerFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				snap := app.Executor.Snapshot()
				m := app.Perf.Metrics(snap, price, 0, 0)
				app.Logger.Info("reserve status",
					"btc_sats", int64(snap.BTCSats),
					"usd_cents", int64(snap.USDReserves),
					"cost_basis_cents", int64(m.CostBasisUSD),
					"unrealized_gain_cents", m.UnrealizedGainUSD,
					"healthy", app.Health.IsHealthy(),
				)
			}
		}
	})

	if err := app.Run(rebalanceLoop, markLoop, statusLoop); err != nil {
		os.Exit(1)
	}
}
