package hedge

import (
	"context"

	"github.com/tonsurance/btcfloat/internal/money"
)

// FuturesVenue is the outbound capability contract an integrator supplies.
// Implementations must be safe for concurrent use — the
// Hedge Coordinator issues calls outside any lock it holds, but a venue may
// still be shared with other callers.
type FuturesVenue interface {
	OpenShort(ctx context.Context, symbol string, qtyBTC money.Sats, leverage uint8) (OpenShortResult, error)
	ClosePosition(ctx context.Context, positionID string) (CloseResult, error)
	Mark(ctx context.Context, positionID string) (MarkResult, error)
}

// OpenShortResult is the success payload of FuturesVenue.OpenShort.
type OpenShortResult struct {
	PositionID           string
	EntryPrice           money.Price
	InitialUnrealizedPnL int64
}

// CloseResult is the success payload of FuturesVenue.ClosePosition.
type CloseResult struct {
	RealizedPnLUSD int64
	FeesUSD        int64
	NetPnLUSD      int64
}

// MarkResult is the success payload of FuturesVenue.Mark.
type MarkResult struct {
	MarkPrice     money.Price
	UnrealizedPnL int64
}
