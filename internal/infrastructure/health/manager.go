// Package health aggregates component health for a caller's readiness probe.
// The reserve manager registers a reserve-ledger non-negativity check and a
// warn-only hedge margin check here; integrators may add their own.
package health

import (
	"sync"

	"github.com/tonsurance/btcfloat/internal/core"
)

// HealthManager aggregates health status from different components
type HealthManager struct {
	logger   core.ILogger
	mu       sync.RWMutex
	checks   map[string]func() error
	warnOnly map[string]bool
}

// NewHealthManager creates a new health manager
func NewHealthManager(logger core.ILogger) *HealthManager {
	hm := &HealthManager{
		checks:   make(map[string]func() error),
		warnOnly: make(map[string]bool),
	}
	if logger != nil {
		hm.logger = logger.WithField("component", "health_manager")
	}
	return hm
}

// Register adds a new health check for a component
func (hm *HealthManager) Register(component string, check func() error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[component] = check
}

// RegisterWarnOnly adds a check that is reported in GetStatus but never
// fails IsHealthy. Used for advisory signals like hedge margin headroom,
// where degradation warrants an alert but not a restart.
func (hm *HealthManager) RegisterWarnOnly(component string, check func() error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[component] = check
	hm.warnOnly[component] = true
}

// GetStatus returns the current status of all registered components
func (hm *HealthManager) GetStatus() map[string]string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := make(map[string]string)
	for component, check := range hm.checks {
		if err := check(); err != nil {
			status[component] = "Unhealthy: " + err.Error()
		} else {
			status[component] = "Healthy"
		}
	}
	return status
}

// IsHealthy returns true if all critical components are healthy
func (hm *HealthManager) IsHealthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	for component, check := range hm.checks {
		if hm.warnOnly[component] {
			continue
		}
		if err := check(); err != nil {
			if hm.logger != nil {
				hm.logger.Warn("health check failed", "component", component, "error", err)
			}
			return false
		}
	}
	return true
}
