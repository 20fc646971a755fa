package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRetriesTransientVenueFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"position_id":"pos-1"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	body, err := client.Get(context.Background(), "/v1/position/pos-1/mark", nil)
	if err != nil {
		t.Fatalf("request failed after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(body) == 0 {
		t.Error("expected response body from the successful attempt")
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such position"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	_, err := client.Get(context.Background(), "/v1/position/gone/mark", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("a 404 must not be retried, got %d attempts", attempts)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)

	// Breaker threshold is 5 failures out of 10; each call retries, so a
	// handful of calls trips it.
	for i := 0; i < 6; i++ {
		_, _ = client.Post(context.Background(), "/v1/short", nil)
	}

	// Once open, calls fail fast without touching the venue.
	before := attempts
	_, err := client.Post(context.Background(), "/v1/short", nil)
	if err == nil {
		t.Error("expected error while breaker is open")
	}
	if attempts != before {
		t.Errorf("venue was reached with the breaker open: %d -> %d attempts", before, attempts)
	}
}

type headerSigner struct{}

func (headerSigner) SignRequest(req *http.Request) error {
	req.Header.Set("X-API-Key", "test-key")
	return nil
}

func TestSignerRunsBeforeEachRequest(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, headerSigner{})
	if _, err := client.Get(context.Background(), "/v1/position/p/mark", nil); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if gotKey != "test-key" {
		t.Errorf("signer did not run: X-API-Key = %q", gotKey)
	}
}
