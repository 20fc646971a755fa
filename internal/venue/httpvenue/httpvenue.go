// Package httpvenue implements the FuturesVenue capability over
// a JSON/HTTP futures venue API, wrapping pkg/http's failsafe-go retry and
// circuit-breaker pipeline and adding client-side rate limiting so a single
// runaway Rebalance Task cannot exceed the venue's request budget.
package httpvenue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/tonsurance/btcfloat/internal/hedge"
	"github.com/tonsurance/btcfloat/internal/money"
	"github.com/tonsurance/btcfloat/pkg/apperrors"
	httpclient "github.com/tonsurance/btcfloat/pkg/http"
)

// Venue implements hedge.FuturesVenue against a REST-ish JSON API. The
// wire shapes below are this module's own contract, not a named exchange's,
// since the FuturesVenue contract is venue-agnostic by design.
type Venue struct {
	client  *httpclient.Client
	limiter *rate.Limiter
	symbol  string
}

// Config configures an httpvenue.Venue.
type Config struct {
	BaseURL           string
	Symbol            string
	RequestsPerSecond float64
	Burst             int
	Signer            httpclient.Signer
}

// New constructs an httpvenue.Venue. timeout is applied to the underlying
// http.Client, so every venue call carries a deadline at the transport
// layer.
func New(cfg Config, timeout time.Duration) *Venue {
	return &Venue{
		client:  httpclient.NewClient(cfg.BaseURL, timeout, cfg.Signer),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		symbol:  cfg.Symbol,
	}
}

type openShortRequest struct {
	Symbol   string `json:"symbol"`
	QtyBTC   int64  `json:"qty_btc_sats"`
	Leverage uint8  `json:"leverage"`
}

type openShortResponse struct {
	PositionID           string `json:"position_id"`
	EntryPriceCents      int64  `json:"entry_price_cents_per_btc"`
	InitialUnrealizedPnL int64  `json:"initial_unrealized_pnl_usd_cents"`
	ErrorKind            string `json:"error_kind,omitempty"`
	ErrorMessage         string `json:"error_message,omitempty"`
}

type closePositionResponse struct {
	RealizedPnLUSD int64  `json:"realized_pnl_usd_cents"`
	FeesUSD        int64  `json:"fees_usd_cents"`
	NetPnLUSD      int64  `json:"net_pnl_usd_cents"`
	ErrorKind      string `json:"error_kind,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

type markResponse struct {
	MarkPriceCents int64  `json:"mark_price_cents_per_btc"`
	UnrealizedPnL  int64  `json:"unrealized_pnl_usd_cents"`
	ErrorKind      string `json:"error_kind,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// OpenShort implements hedge.FuturesVenue.OpenShort.
func (v *Venue) OpenShort(ctx context.Context, symbol string, qty money.Sats, leverage uint8) (hedge.OpenShortResult, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return hedge.OpenShortResult{}, wrapVenueErr(apperrors.VenueTimeout, "rate limiter wait", err)
	}

	if symbol == "" {
		symbol = v.symbol
	}
	reqBody := openShortRequest{Symbol: symbol, QtyBTC: int64(qty), Leverage: leverage}
	body, err := v.client.Post(ctx, "/v1/short", reqBody)
	if err != nil {
		return hedge.OpenShortResult{}, classifyTransportErr(err)
	}

	var resp openShortResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return hedge.OpenShortResult{}, wrapVenueErr(apperrors.VenueUnknown, "decode open_short response", err)
	}
	if resp.ErrorKind != "" {
		return hedge.OpenShortResult{}, wrapVenueErr(apperrors.VenueErrorKind(resp.ErrorKind), resp.ErrorMessage, nil)
	}

	return hedge.OpenShortResult{
		PositionID:           resp.PositionID,
		EntryPrice:           money.Price(resp.EntryPriceCents),
		InitialUnrealizedPnL: resp.InitialUnrealizedPnL,
	}, nil
}

// ClosePosition implements hedge.FuturesVenue.ClosePosition.
func (v *Venue) ClosePosition(ctx context.Context, positionID string) (hedge.CloseResult, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return hedge.CloseResult{}, wrapVenueErr(apperrors.VenueTimeout, "rate limiter wait", err)
	}

	body, err := v.client.Post(ctx, fmt.Sprintf("/v1/position/%s/close", positionID), nil)
	if err != nil {
		return hedge.CloseResult{}, classifyTransportErr(err)
	}

	var resp closePositionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return hedge.CloseResult{}, wrapVenueErr(apperrors.VenueUnknown, "decode close_position response", err)
	}
	if resp.ErrorKind != "" {
		return hedge.CloseResult{}, wrapVenueErr(apperrors.VenueErrorKind(resp.ErrorKind), resp.ErrorMessage, nil)
	}

	return hedge.CloseResult{
		RealizedPnLUSD: resp.RealizedPnLUSD,
		FeesUSD:        resp.FeesUSD,
		NetPnLUSD:      resp.NetPnLUSD,
	}, nil
}

// Mark implements hedge.FuturesVenue.Mark.
func (v *Venue) Mark(ctx context.Context, positionID string) (hedge.MarkResult, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return hedge.MarkResult{}, wrapVenueErr(apperrors.VenueTimeout, "rate limiter wait", err)
	}

	body, err := v.client.Get(ctx, fmt.Sprintf("/v1/position/%s/mark", positionID), nil)
	if err != nil {
		return hedge.MarkResult{}, classifyTransportErr(err)
	}

	var resp markResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return hedge.MarkResult{}, wrapVenueErr(apperrors.VenueUnknown, "decode mark response", err)
	}
	if resp.ErrorKind != "" {
		return hedge.MarkResult{}, wrapVenueErr(apperrors.VenueErrorKind(resp.ErrorKind), resp.ErrorMessage, nil)
	}

	return hedge.MarkResult{
		MarkPrice:     money.Price(resp.MarkPriceCents),
		UnrealizedPnL: resp.UnrealizedPnL,
	}, nil
}

// classifyTransportErr maps a pkg/http failure into the VenueError
// taxonomy: an *httpclient.APIError carries a real status code (mapped by
// code), anything else — including the retry/circuit-breaker pipeline's own
// failure and a deadline-exceeded context — is treated as a timeout, since
// pkg/http does not distinguish them from the caller's side.
func classifyTransportErr(err error) error {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 404:
			return wrapVenueErr(apperrors.VenueNotFound, apiErr.Error(), err)
		case 429:
			return wrapVenueErr(apperrors.VenueRateLimited, apiErr.Error(), err)
		case 409:
			return wrapVenueErr(apperrors.VenueInsufficientMargin, apiErr.Error(), err)
		default:
			return wrapVenueErr(apperrors.VenueTransport, apiErr.Error(), err)
		}
	}
	return wrapVenueErr(apperrors.VenueTimeout, "venue request failed", err)
}

func wrapVenueErr(kind apperrors.VenueErrorKind, message string, cause error) error {
	return apperrors.NewVenueError(kind, message, cause)
}
