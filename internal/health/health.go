// Package health provides liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pinger is any dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

// Ping calls the wrapped function.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthCheck probes named dependencies. Probes run concurrently; one slow
// dependency must not mask the status of the others.
type HealthCheck struct {
	deps   map[string]Pinger
	logger *zap.Logger

	mu        sync.RWMutex
	ready     bool
	lastCheck time.Time
}

// NewHealthCheck creates a new HealthCheck over the given dependencies.
func NewHealthCheck(deps map[string]Pinger, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		deps:   deps,
		logger: logger,
	}
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status: "healthy",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// ReadinessHandler handles GET /ready requests.
// Returns 200 OK when every registered dependency answers its probe. The
// local mirror counts as a dependency; the remote store does not, since the
// daemon deliberately keeps serving from the mirror while offline.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks, healthy := hc.Probe(ctx)

	hc.mu.Lock()
	hc.ready = healthy
	hc.lastCheck = time.Now()
	hc.mu.Unlock()

	resp := ReadinessResponse{
		Status: "ready",
		Checks: checks,
	}
	statusCode := http.StatusOK
	if !healthy {
		resp.Status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// Probe runs all dependency probes concurrently and reports per-dependency
// status plus overall health.
func (hc *HealthCheck) Probe(ctx context.Context) (map[string]string, bool) {
	var mu sync.Mutex
	checks := make(map[string]string, len(hc.deps))
	healthy := true

	g, ctx := errgroup.WithContext(ctx)
	for name, dep := range hc.deps {
		g.Go(func() error {
			err := dep.Ping(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[name] = "unhealthy"
				healthy = false
				hc.logger.Warn("Dependency probe failed",
					zap.String("dependency", name),
					zap.Error(err))
				return nil
			}
			checks[name] = "healthy"
			return nil
		})
	}
	g.Wait()

	return checks, healthy
}

// Ready reports the result of the most recent readiness probe.
func (hc *HealthCheck) Ready() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.ready
}
