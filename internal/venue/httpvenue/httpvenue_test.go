package httpvenue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tonsurance/btcfloat/internal/money"
	"github.com/tonsurance/btcfloat/pkg/apperrors"
)

func TestOpenShortSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openShortResponse{
			PositionID:      "pos-1",
			EntryPriceCents: 50_000_00,
		})
	}))
	defer server.Close()

	v := New(Config{BaseURL: server.URL, Symbol: "BTC-USD", RequestsPerSecond: 100, Burst: 10}, 5*time.Second)
	res, err := v.OpenShort(context.Background(), "", 10*money.SatsPerBTC, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PositionID != "pos-1" || res.EntryPrice != money.Price(50_000_00) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestOpenShortVenueErrorKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openShortResponse{
			ErrorKind:    "insufficient_margin",
			ErrorMessage: "not enough margin",
		})
	}))
	defer server.Close()

	v := New(Config{BaseURL: server.URL, RequestsPerSecond: 100, Burst: 10}, 5*time.Second)
	_, err := v.OpenShort(context.Background(), "BTC-USD", 10*money.SatsPerBTC, 5)
	if err == nil {
		t.Fatal("expected error")
	}
	var venueErr *apperrors.VenueError
	if !asVenueErr(err, &venueErr) {
		t.Fatalf("expected *apperrors.VenueError, got %T", err)
	}
	if venueErr.Kind != apperrors.VenueInsufficientMargin {
		t.Fatalf("kind = %v, want VenueInsufficientMargin", venueErr.Kind)
	}
}

func TestClosePositionNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}))
	defer server.Close()

	v := New(Config{BaseURL: server.URL, RequestsPerSecond: 100, Burst: 10}, 5*time.Second)
	_, err := v.ClosePosition(context.Background(), "does-not-exist")
	if err == nil {
		t.Fatal("expected error")
	}
	var venueErr *apperrors.VenueError
	if !asVenueErr(err, &venueErr) {
		t.Fatalf("expected *apperrors.VenueError, got %T", err)
	}
	if venueErr.Kind != apperrors.VenueNotFound {
		t.Fatalf("kind = %v, want VenueNotFound", venueErr.Kind)
	}
}

func asVenueErr(err error, target **apperrors.VenueError) bool {
	ve, ok := err.(*apperrors.VenueError)
	if ok {
		*target = ve
		return true
	}
	return false
}
