package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tonsurance/btcfloat/internal/infrastructure/health"
	"github.com/tonsurance/btcfloat/pkg/logging"
)

func TestHealthzReportsComponentStatus(t *testing.T) {
	hm := health.NewHealthManager(nil)
	hm.Register("venue", func() error { return nil })

	s := NewServer(0, hm, logging.NewNop())

	rec := httptest.NewRecorder()
	s.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if status["venue"] != "Healthy" {
		t.Errorf("venue status = %q, want Healthy", status["venue"])
	}

	hm.Register("reserve_state", func() error { return errors.New("ledger negative") })
	rec = httptest.NewRecorder()
	s.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when a critical check fails", rec.Code)
	}
}

func TestReadyzFollowsHealth(t *testing.T) {
	hm := health.NewHealthManager(nil)
	s := NewServer(0, hm, logging.NewNop())

	rec := httptest.NewRecorder()
	s.handleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("empty health manager should be ready, got %d", rec.Code)
	}

	hm.Register("venue", func() error { return errors.New("unreachable") })
	rec = httptest.NewRecorder()
	s.handleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing check should make readyz 503, got %d", rec.Code)
	}
}

func TestProbesWithoutHealthManager(t *testing.T) {
	s := NewServer(0, nil, logging.NewNop())

	rec := httptest.NewRecorder()
	s.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("nil health manager should report ok, got %d", rec.Code)
	}
}
