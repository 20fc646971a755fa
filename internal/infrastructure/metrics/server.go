// Package metrics serves the reserve manager's observability surface over
// one HTTP listener: the Prometheus scrape endpoint plus the liveness and
// readiness probes backed by the health manager.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/infrastructure/health"
)

// Server exposes /metrics, /healthz and /readyz.
type Server struct {
	port   int
	health *health.HealthManager
	logger core.ILogger
	srv    *http.Server
}

// NewServer builds the observability server. The health manager may be nil,
// in which case the probe endpoints always report ok.
func NewServer(port int, hm *health.HealthManager, logger core.ILogger) *Server {
	return &Server{
		port:   port,
		health: hm,
		logger: logger.WithField("component", "metrics_server"),
	}
}

// Start begins serving in the background.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("observability server listening", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("observability server failed", "error", err)
		}
	}()
}

// handleHealthz reports per-component status as JSON, 503 when any
// critical check fails.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.health == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
		return
	}

	status := s.health.GetStatus()
	if !s.health.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// handleReadyz is the bare probe for orchestrators: 200 or 503, no body
// worth parsing.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil && !s.health.IsHealthy() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ok"))
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("stopping observability server")
	return s.srv.Shutdown(ctx)
}
