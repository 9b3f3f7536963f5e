// Package directory implements the privileged admin editor for the tenant
// directory. It is not part of the end-tenant runtime path; it shares only
// the directory's shape.
package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/magadhlabs/lmsync/internal/metrics"
	"github.com/magadhlabs/lmsync/internal/model"
	"github.com/magadhlabs/lmsync/internal/store"
	"go.uber.org/zap"
)

// Editor performs create/update/delete against the tenant directory.
// Failures surface directly to the admin operator; there is no fallback
// path for directory mutation.
type Editor struct {
	store   store.DirectoryStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewEditor creates a new directory editor
func NewEditor(s store.DirectoryStore, m *metrics.Metrics, logger *zap.Logger) *Editor {
	return &Editor{store: s, metrics: m, logger: logger}
}

// Upsert writes the full TenantConfig at its key, unconditionally
// overwriting any existing entry. No merge, no optimistic-concurrency
// check.
func (e *Editor) Upsert(ctx context.Context, cfg *model.TenantConfig) error {
	if err := validateClientConfig(cfg); err != nil {
		e.metrics.DirectoryOpsTotal.WithLabelValues("upsert", "invalid").Inc()
		return err
	}

	for i := range cfg.Halls {
		if cfg.Halls[i].ID == "" {
			cfg.Halls[i].ID = "hall_" + uuid.New().String()
		}
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}

	if err := e.store.UpsertClient(ctx, cfg); err != nil {
		e.metrics.DirectoryOpsTotal.WithLabelValues("upsert", "error").Inc()
		return fmt.Errorf("failed to save client: %w", err)
	}

	e.metrics.DirectoryOpsTotal.WithLabelValues("upsert", "ok").Inc()
	e.logger.Info("Client saved",
		zap.String("client_id", cfg.ClientID),
		zap.String("name", cfg.Name),
		zap.Int("halls", len(cfg.Halls)))
	return nil
}

// Delete removes the entry for key. Irreversible; no soft-delete, no orphan
// cleanup of session data already provisioned for the tenant.
func (e *Editor) Delete(ctx context.Context, clientID string) error {
	clientID = NormalizeClientID(clientID)
	if clientID == "" {
		return fmt.Errorf("%w: clientId is required", model.ErrConfigParse)
	}

	if err := e.store.DeleteClient(ctx, clientID); err != nil {
		e.metrics.DirectoryOpsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}

	e.metrics.DirectoryOpsTotal.WithLabelValues("delete", "ok").Inc()
	e.logger.Info("Client deleted", zap.String("client_id", clientID))
	return nil
}

// Get retrieves one directory entry, for edit-form population.
func (e *Editor) Get(ctx context.Context, clientID string) (*model.TenantConfig, error) {
	return e.store.GetClient(ctx, NormalizeClientID(clientID))
}

// List returns the current full directory snapshot.
func (e *Editor) List(ctx context.Context) ([]*model.TenantConfig, error) {
	return e.store.ListClients(ctx)
}

// Watch delivers a new full snapshot on every directory change; each update
// replaces the prior snapshot wholesale.
func (e *Editor) Watch(ctx context.Context) (<-chan []*model.TenantConfig, error) {
	return e.store.WatchClients(ctx)
}
