// Package mockvenue is a deterministic in-memory FuturesVenue, useful for
// local development and for the cmd/reserve_manager demo runner when no
// real venue credentials are configured.
package mockvenue

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tonsurance/btcfloat/internal/hedge"
	"github.com/tonsurance/btcfloat/internal/money"
)

type position struct {
	qty        money.Sats
	entryPrice money.Price
}

// Venue is a mock FuturesVenue. MarkPrice is read on each Mark call and may
// be updated by the caller between ticks to simulate price movement.
type Venue struct {
	mu        sync.Mutex
	positions map[string]position
	MarkPrice money.Price
	FeeRateBp int64 // fee in basis points of notional, applied on close
}

// New constructs a mock venue seeded with the given initial mark price.
func New(initialPrice money.Price) *Venue {
	return &Venue{
		positions: make(map[string]position),
		MarkPrice: initialPrice,
		FeeRateBp: 10, // 0.10%, matching the Executor's baseline fee estimate
	}
}

func (v *Venue) OpenShort(ctx context.Context, symbol string, qty money.Sats, leverage uint8) (hedge.OpenShortResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := uuid.NewString()
	v.positions[id] = position{qty: qty, entryPrice: v.MarkPrice}
	return hedge.OpenShortResult{
		PositionID:           id,
		EntryPrice:           v.MarkPrice,
		InitialUnrealizedPnL: 0,
	}, nil
}

func (v *Venue) ClosePosition(ctx context.Context, positionID string) (hedge.CloseResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	pos, ok := v.positions[positionID]
	if !ok {
		return hedge.CloseResult{}, notFound(positionID)
	}
	delete(v.positions, positionID)

	// Short PnL: profit when mark falls below entry.
	notionalEntry := money.BTCValueUSDCents(pos.qty, pos.entryPrice)
	notionalMark := money.BTCValueUSDCents(pos.qty, v.MarkPrice)
	realized := int64(notionalEntry) - int64(notionalMark)
	fees := (int64(notionalMark) * v.FeeRateBp) / 10_000
	return hedge.CloseResult{
		RealizedPnLUSD: realized,
		FeesUSD:        fees,
		NetPnLUSD:      realized - fees,
	}, nil
}

func (v *Venue) Mark(ctx context.Context, positionID string) (hedge.MarkResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	pos, ok := v.positions[positionID]
	if !ok {
		return hedge.MarkResult{}, notFound(positionID)
	}
	notionalEntry := money.BTCValueUSDCents(pos.qty, pos.entryPrice)
	notionalMark := money.BTCValueUSDCents(pos.qty, v.MarkPrice)
	return hedge.MarkResult{
		MarkPrice:     v.MarkPrice,
		UnrealizedPnL: int64(notionalEntry) - int64(notionalMark),
	}, nil
}

// SetMarkPrice updates the simulated spot/mark price.
func (v *Venue) SetMarkPrice(p money.Price) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.MarkPrice = p
}
