package hedge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonsurance/btcfloat/internal/money"
	"github.com/tonsurance/btcfloat/pkg/apperrors"
	"github.com/tonsurance/btcfloat/pkg/logging"
)

type fakeVenue struct {
	openErr  error
	closeErr error
	openRes  OpenShortResult
	closeRes CloseResult
	markRes  MarkResult
	markErr  error
}

func (f *fakeVenue) OpenShort(ctx context.Context, symbol string, qty money.Sats, lev uint8) (OpenShortResult, error) {
	if f.openErr != nil {
		return OpenShortResult{}, f.openErr
	}
	return f.openRes, nil
}

func (f *fakeVenue) ClosePosition(ctx context.Context, positionID string) (CloseResult, error) {
	if f.closeErr != nil {
		return CloseResult{}, f.closeErr
	}
	return f.closeRes, nil
}

func (f *fakeVenue) Mark(ctx context.Context, positionID string) (MarkResult, error) {
	if f.markErr != nil {
		return MarkResult{}, f.markErr
	}
	return f.markRes, nil
}

func testLogger() *logging.ZapLogger {
	l, _ := logging.NewZapLogger("ERROR")
	return l
}

func TestOpenForBuySuccess(t *testing.T) {
	v := &fakeVenue{openRes: OpenShortResult{PositionID: "pos-1", EntryPrice: money.Price(50_000_00)}}
	c := NewCoordinator("BTC-USD", v, testLogger())

	outcome := c.OpenForBuy(context.Background(), 10*money.SatsPerBTC, 5)
	require.Equal(t, "pos-1", c.ActiveSnapshot().VenuePositionID)
	assert.Equal(t, money.Price(50_000_00), outcome.EntryPrice)
	assert.True(t, c.IsActive())
	assert.NotNil(t, c.ActiveSnapshot())
	assert.Equal(t, money.Sats(10*money.SatsPerBTC), c.CumulativeHedgedSats())
}

func TestOpenForBuyFailureDegradesToIdle(t *testing.T) {
	v := &fakeVenue{openErr: apperrors.NewVenueError(apperrors.VenueTimeout, "deadline exceeded", nil)}
	c := NewCoordinator("BTC-USD", v, testLogger())

	outcome := c.OpenForBuy(context.Background(), 10*money.SatsPerBTC, 5)
	assert.False(t, c.IsActive())
	assert.Nil(t, c.ActiveSnapshot())
	if outcome.Err == nil {
		t.Fatal("expected outcome.Err to be set on HedgeFailed")
	}
}

func TestCloseForSellNoActiveHedge(t *testing.T) {
	v := &fakeVenue{}
	c := NewCoordinator("BTC-USD", v, testLogger())
	outcome := c.CloseForSell(context.Background())
	if outcome.CloseReport != nil || outcome.Err != nil {
		t.Fatalf("expected NoHedgeOutcome, got %+v", outcome)
	}
}

func TestCloseForSellFailureRetainsActive(t *testing.T) {
	v := &fakeVenue{openRes: OpenShortResult{PositionID: "pos-1", EntryPrice: money.Price(50_000_00)}}
	c := NewCoordinator("BTC-USD", v, testLogger())
	c.OpenForBuy(context.Background(), 10*money.SatsPerBTC, 5)

	v.closeErr = apperrors.NewVenueError(apperrors.VenueTransport, "connection reset", nil)
	outcome := c.CloseForSell(context.Background())
	assert.True(t, c.IsActive(), "hedge should remain active after a failed close")
	if outcome.Err == nil {
		t.Fatal("expected error on failed close")
	}
}

func TestCloseForSellSuccess(t *testing.T) {
	v := &fakeVenue{
		openRes:  OpenShortResult{PositionID: "pos-1", EntryPrice: money.Price(48_000_00)},
		closeRes: CloseResult{RealizedPnLUSD: -40000, FeesUSD: 20, NetPnLUSD: -40020},
	}
	c := NewCoordinator("BTC-USD", v, testLogger())
	c.OpenForBuy(context.Background(), 10*money.SatsPerBTC, 5)

	outcome := c.CloseForSell(context.Background())
	assert.False(t, c.IsActive())
	require.NotNil(t, outcome.CloseReport)
	assert.Equal(t, int64(-40020), outcome.CloseReport.NetPnLUSD)
}

func TestReconcileClearsOnNotFound(t *testing.T) {
	v := &fakeVenue{
		openRes: OpenShortResult{PositionID: "pos-1", EntryPrice: money.Price(50_000_00)},
		markErr: apperrors.NewVenueError(apperrors.VenueNotFound, "no such position", nil),
	}
	c := NewCoordinator("BTC-USD", v, testLogger())
	c.OpenForBuy(context.Background(), 10*money.SatsPerBTC, 5)

	err := c.Reconcile(context.Background())
	require.NoError(t, err)
	assert.False(t, c.IsActive())
}

// At-most-one hedge. Attempting to open while Active must never be
// reachable via OpenForBuy from the Executor's perspective (enforced by
// IsActive gating in the Executor), but the coordinator itself must never
// report two concurrently Active positions either way.
func TestAtMostOneActiveHedge(t *testing.T) {
	v := &fakeVenue{openRes: OpenShortResult{PositionID: "pos-1", EntryPrice: money.Price(50_000_00)}}
	c := NewCoordinator("BTC-USD", v, testLogger())
	c.OpenForBuy(context.Background(), 10*money.SatsPerBTC, 5)
	if !c.IsActive() {
		t.Fatal("expected active after first open")
	}
	snap := c.ActiveSnapshot()
	if snap == nil {
		t.Fatal("expected non-nil active snapshot")
	}

	// A second open while Active must be refused without touching the
	// existing position.
	outcome := c.OpenForBuy(context.Background(), 5*money.SatsPerBTC, 5)
	assert.Equal(t, apperrors.ErrAlreadyHedged, outcome.Err)
	assert.Equal(t, "pos-1", c.ActiveSnapshot().VenuePositionID)
	assert.Equal(t, money.Sats(10*money.SatsPerBTC), c.CumulativeHedgedSats())
}
