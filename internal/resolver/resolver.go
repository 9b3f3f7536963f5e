// Package resolver turns an opaque tenant key into the tenant's isolated
// configuration. Resolution runs once per session bootstrap; its readiness
// signal is the sole trigger for sync engine initialization.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/magadhlabs/lmsync/internal/metrics"
	"github.com/magadhlabs/lmsync/internal/model"
	"github.com/magadhlabs/lmsync/internal/store"
	"go.uber.org/zap"
)

// QueryParam is the query parameter selecting the tenant.
const QueryParam = "client"

// Resolver resolves tenant keys against the shared directory store. The
// directory connection is short-lived from the session's point of view: it
// serves this one read path and is never reused for tenant data.
type Resolver struct {
	directory store.DirectoryStore
	cache     store.Cache
	cacheTTL  time.Duration
	waitBound time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu       sync.RWMutex
	resolved *model.TenantConfig

	readyOnce sync.Once
	ready     chan *model.TenantConfig
}

// NewResolver creates a new tenant resolver
func NewResolver(
	directory store.DirectoryStore,
	cache store.Cache,
	cacheTTL time.Duration,
	waitBound time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		directory: directory,
		cache:     cache,
		cacheTTL:  cacheTTL,
		waitBound: waitBound,
		metrics:   m,
		logger:    logger,
		ready:     make(chan *model.TenantConfig, 1),
	}
}

// Ready delivers the resolved TenantConfig exactly once per process,
// regardless of how many manual retries preceded the first success.
func (r *Resolver) Ready() <-chan *model.TenantConfig {
	return r.ready
}

// Current returns the resolved config for the session, if any
func (r *Resolver) Current() (*model.TenantConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved, r.resolved != nil
}

// ResolveFromQuery extracts the tenant key from query parameters and
// resolves it. An absent parameter is the terminal MissingTenant condition.
func (r *Resolver) ResolveFromQuery(ctx context.Context, values url.Values) (*model.TenantConfig, error) {
	return r.Resolve(ctx, values.Get(QueryParam))
}

// Resolve performs one directory read for key. Failures are terminal for
// this attempt; the caller may trigger a full re-resolution manually.
func (r *Resolver) Resolve(ctx context.Context, key string) (*model.TenantConfig, error) {
	if key == "" {
		r.metrics.ResolutionsTotal.WithLabelValues("missing_tenant").Inc()
		return nil, model.ErrMissingTenant
	}

	start := time.Now()

	// Try cache first, like any repeated bootstrap within the session.
	cacheKey := r.cacheKey(key)
	if cached, err := r.cache.Get(ctx, cacheKey); err == nil && cached != nil {
		if cfg, ok := cached.(*model.TenantConfig); ok {
			r.logger.Debug("Tenant config retrieved from cache",
				zap.String("client_id", key))
			r.finish(cfg, start)
			return cfg, nil
		}
	}

	type result struct {
		cfg *model.TenantConfig
		err error
	}
	resultCh := make(chan result, 1)

	// The read is not cancelled on timeout; the wait stops and a late
	// result is discarded.
	go func() {
		cfg, err := r.directory.GetClient(context.WithoutCancel(ctx), key)
		resultCh <- result{cfg, err}
	}()

	timer := time.NewTimer(r.waitBound)
	defer timer.Stop()

	select {
	case <-timer.C:
		r.metrics.ResolutionsTotal.WithLabelValues("timeout").Inc()
		r.logger.Warn("Tenant resolution timed out",
			zap.String("client_id", key),
			zap.Duration("wait_bound", r.waitBound))
		return nil, model.ErrResolutionTimeout

	case res := <-resultCh:
		if errors.Is(res.err, store.ErrNotFound) {
			r.metrics.ResolutionsTotal.WithLabelValues("not_found").Inc()
			r.logger.Warn("Tenant not found", zap.String("client_id", key))
			return nil, fmt.Errorf("%w: %s", model.ErrTenantNotFound, key)
		}
		if res.err != nil {
			r.metrics.ResolutionsTotal.WithLabelValues("load_error").Inc()
			r.logger.Error("Failed to load tenant config",
				zap.String("client_id", key),
				zap.Error(res.err))
			return nil, fmt.Errorf("%w: %v", model.ErrConfigLoad, res.err)
		}

		if err := r.cache.Set(ctx, cacheKey, res.cfg, r.cacheTTL); err != nil {
			r.logger.Warn("Failed to cache tenant config",
				zap.String("client_id", key),
				zap.Error(err))
		}

		r.logger.Info("Client config loaded",
			zap.String("client_id", res.cfg.ClientID),
			zap.String("name", res.cfg.Name))
		r.finish(res.cfg, start)
		return res.cfg, nil
	}
}

// finish records the resolved config and fires the readiness signal at most
// once per process.
func (r *Resolver) finish(cfg *model.TenantConfig, start time.Time) {
	r.mu.Lock()
	r.resolved = cfg
	r.mu.Unlock()

	r.metrics.ResolutionsTotal.WithLabelValues("success").Inc()
	r.metrics.ResolutionDuration.Observe(time.Since(start).Seconds())

	r.readyOnce.Do(func() {
		r.ready <- cfg
		close(r.ready)
	})
}

// cacheKey generates a cache key for a tenant config
func (r *Resolver) cacheKey(key string) string {
	return "tenant:config:" + key
}
