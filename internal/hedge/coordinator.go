// Package hedge implements the Hedge Coordinator: the
// at-most-one delta-hedge state machine driving the FuturesVenue capability.
// It never mutates ReserveState directly — it only ever returns a
// core.HedgeOutcome for the Executor to attach to a TradeExecution.
package hedge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/money"
	"github.com/tonsurance/btcfloat/pkg/apperrors"
)

type phase int

const (
	phaseIdle phase = iota
	phaseOpening
	phaseActive
	phaseClosing
)

// Coordinator drives the hedge state machine. Its own mutex is
// separate from the Executor's reserve lock: the venue call happens with
// Coordinator's lock released, so a concurrent Mark (Hedge Mark Task) can
// still read the last-known position while an open/close is in flight.
type Coordinator struct {
	mu     sync.Mutex
	phase  phase
	venue  FuturesVenue
	logger core.ILogger

	symbol               string
	active               *core.HedgePosition
	cumulativeHedgedSats money.Sats
}

// NewCoordinator constructs a Coordinator for the given symbol and venue.
func NewCoordinator(symbol string, venue FuturesVenue, logger core.ILogger) *Coordinator {
	return &Coordinator{
		venue:  venue,
		logger: logger.WithField("component", "hedge_coordinator"),
		symbol: symbol,
	}
}

// IsActive reports whether a hedge position is currently Active. The
// Executor consults this before calling OpenForBuy: per the state table's
// "Active | BuyBTC signal -> Active (do not open a second hedge)" row, a
// second Buy while hedged is a caller-contract error the Executor resolves
// by treating the signal as Hold rather than ever invoking OpenForBuy.
func (c *Coordinator) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == phaseActive
}

// ActiveSnapshot returns a copy of the active position, or nil if none.
func (c *Coordinator) ActiveSnapshot() *core.HedgePosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	cp := *c.active
	return &cp
}

// CumulativeHedgedSats returns the running total of BTC ever hedged.
func (c *Coordinator) CumulativeHedgedSats() money.Sats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cumulativeHedgedSats
}

// OpenForBuy drives Idle -> Opening -> {Active, Idle} for a BuyBTC signal.
// Leverage is the fixed protocol constant from the AllocationPolicy.
// Failure to open surfaces as HedgeFailed; the caller still executes the
// spot side (refusing to buy because hedging failed would drift the
// reserve further from target).
func (c *Coordinator) OpenForBuy(ctx context.Context, qtyBTC money.Sats, leverage uint8) core.HedgeOutcome {
	c.mu.Lock()
	switch c.phase {
	case phaseActive:
		c.mu.Unlock()
		return core.HedgeOutcome{Kind: core.HedgeOutcomeHedgeFailed, Err: apperrors.ErrAlreadyHedged}
	case phaseOpening, phaseClosing:
		c.mu.Unlock()
		return core.HedgeOutcome{Kind: core.HedgeOutcomeHedgeFailed, Err: apperrors.ErrHedgeInFlight}
	}
	c.phase = phaseOpening
	c.mu.Unlock()

	res, err := c.venue.OpenShort(ctx, c.symbol, qtyBTC, leverage)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.phase = phaseIdle
		c.logger.Warn("open_short failed; hedge degraded", "qty_sats", int64(qtyBTC), "error", err)
		return core.HedgeOutcome{Kind: core.HedgeOutcomeHedgeFailed, Err: err}
	}

	c.active = &core.HedgePosition{
		VenuePositionID:  res.PositionID,
		ShortSizeBTCSats: qtyBTC,
		EntryPrice:       res.EntryPrice,
		OpenedAt:         time.Now(),
		LastMark:         res.EntryPrice,
		UnrealizedPnLUSD: res.InitialUnrealizedPnL,
	}
	c.phase = phaseActive
	c.cumulativeHedgedSats += qtyBTC
	return core.HedgeOutcome{Kind: core.HedgeOutcomeHedgedAt, EntryPrice: res.EntryPrice}
}

// CloseForSell drives Active -> Closing -> {Idle, Active} for a SellBTC
// signal. If no hedge is Active it returns NoHedgeOutcome and the
// sell proceeds unhedged. A close failure retains the position as Active
// and surfaces the venue error — the spot side still executes (reserve
// correctness over hedge consistency).
func (c *Coordinator) CloseForSell(ctx context.Context) core.HedgeOutcome {
	c.mu.Lock()
	if c.phase != phaseActive || c.active == nil {
		c.mu.Unlock()
		return core.NoHedgeOutcome
	}
	positionID := c.active.VenuePositionID
	c.phase = phaseClosing
	c.mu.Unlock()

	res, err := c.venue.ClosePosition(ctx, positionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.phase = phaseActive
		c.logger.Warn("close_position failed; hedge remains active", "position_id", positionID, "error", err)
		return core.HedgeOutcome{Kind: core.HedgeOutcomeHedgeFailed, Err: err}
	}

	c.active = nil
	c.phase = phaseIdle
	report := &core.HedgeCloseReport{
		RealizedPnLUSD: res.RealizedPnLUSD,
		FeesUSD:        res.FeesUSD,
		NetPnLUSD:      res.NetPnLUSD,
		ClosedAt:       time.Now(),
	}
	return core.HedgeOutcome{Kind: core.HedgeOutcomeHedgeClosed, CloseReport: report}
}

// Reconcile probes the venue for the Active position's current mark and
// reconciles local state when the venue reports the position gone. It does
// nothing unless a hedge is Active, so it does not discover a position the
// venue may have opened after an open_short timeout left the coordinator
// Idle. Executor.Tick runs it best-effort alongside each rebalance; its
// errors never fail the tick.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != phaseActive || c.active == nil {
		c.mu.Unlock()
		return nil
	}
	positionID := c.active.VenuePositionID
	c.mu.Unlock()

	res, err := c.venue.Mark(ctx, positionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		var venueErr *apperrors.VenueError
		if errors.As(err, &venueErr) && venueErr.Kind == apperrors.VenueNotFound {
			c.logger.Warn("hedge position missing at venue; reconciling to idle", "position_id", positionID)
			c.active = nil
			c.phase = phaseIdle
			return nil
		}
		return err
	}

	if c.active != nil {
		c.active.LastMark = res.MarkPrice
		c.active.UnrealizedPnLUSD = res.UnrealizedPnL
	}
	return nil
}
