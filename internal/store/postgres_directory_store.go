package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/magadhlabs/lmsync/internal/model"
	"go.uber.org/zap"
)

const clientsChannel = "lms_clients"

// PostgresDirectoryStore implements DirectoryStore for PostgreSQL
type PostgresDirectoryStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresDirectoryStore creates a new PostgreSQL directory store
func NewPostgresDirectoryStore(
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	logger *zap.Logger,
) (*PostgresDirectoryStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresDirectoryStore{pool: pool, logger: logger}
	if err := s.ensureSchema(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresDirectoryStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS clients (
			client_id        TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			theme            JSONB NOT NULL,
			remote_store     JSONB,
			halls            JSONB NOT NULL,
			enabled_features JSONB NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure clients table: %w", err)
	}
	return nil
}

// GetClient retrieves one directory entry
func (s *PostgresDirectoryStore) GetClient(ctx context.Context, clientID string) (*model.TenantConfig, error) {
	query := `
		SELECT client_id, name, theme, remote_store, halls, enabled_features, created_at
		FROM clients
		WHERE client_id = $1
	`

	cfg, err := scanClient(s.pool.QueryRow(ctx, query, clientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return cfg, nil
}

// UpsertClient writes the full entry, unconditionally overwriting any
// existing one. No merge, no optimistic-concurrency check.
func (s *PostgresDirectoryStore) UpsertClient(ctx context.Context, cfg *model.TenantConfig) error {
	theme, err := json.Marshal(cfg.Theme)
	if err != nil {
		return fmt.Errorf("failed to encode theme: %w", err)
	}
	halls, err := json.Marshal(cfg.Halls)
	if err != nil {
		return fmt.Errorf("failed to encode halls: %w", err)
	}
	features, err := json.Marshal(cfg.EnabledFeatures)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	query := `
		INSERT INTO clients (client_id, name, theme, remote_store, halls, enabled_features, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (client_id) DO UPDATE SET
			name = excluded.name,
			theme = excluded.theme,
			remote_store = excluded.remote_store,
			halls = excluded.halls,
			enabled_features = excluded.enabled_features
	`

	_, err = s.pool.Exec(ctx, query,
		cfg.ClientID,
		cfg.Name,
		theme,
		[]byte(cfg.RemoteStore),
		halls,
		features,
		cfg.CreatedAt,
	)
	if err != nil {
		return err
	}

	s.notifyClients(ctx, cfg.ClientID)
	return nil
}

// DeleteClient removes the entry; irreversible, no orphan cleanup
func (s *PostgresDirectoryStore) DeleteClient(ctx context.Context, clientID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM clients WHERE client_id = $1`, clientID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.notifyClients(ctx, clientID)
	return nil
}

// ListClients retrieves all directory entries
func (s *PostgresDirectoryStore) ListClients(ctx context.Context) ([]*model.TenantConfig, error) {
	query := `
		SELECT client_id, name, theme, remote_store, halls, enabled_features, created_at
		FROM clients
		ORDER BY client_id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]*model.TenantConfig, 0)
	for rows.Next() {
		cfg, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, cfg)
	}

	return clients, rows.Err()
}

// WatchClients delivers a full snapshot after every directory change, driven
// by LISTEN/NOTIFY on a dedicated connection.
func (s *PostgresDirectoryStore) WatchClients(ctx context.Context) (<-chan []*model.TenantConfig, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire watch connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+clientsChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on %s: %w", clientsChannel, err)
	}

	out := make(chan []*model.TenantConfig, 1)

	// Initial snapshot so consumers render immediately.
	snapshot, err := s.ListClients(ctx)
	if err != nil {
		conn.Release()
		return nil, err
	}
	out <- snapshot

	go func() {
		defer conn.Release()
		defer close(out)

		for {
			if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("Directory watch interrupted", zap.Error(err))
				}
				return
			}

			snapshot, err := s.ListClients(ctx)
			if err != nil {
				s.logger.Warn("Failed to refresh directory snapshot", zap.Error(err))
				continue
			}

			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// notifyClients wakes directory watchers. Failure is logged only; the
// mutation itself already committed.
func (s *PostgresDirectoryStore) notifyClients(ctx context.Context, clientID string) {
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, clientsChannel, clientID); err != nil {
		s.logger.Warn("Failed to notify directory watchers",
			zap.String("client_id", clientID),
			zap.Error(err))
	}
}

// Ping checks the database connection
func (s *PostgresDirectoryStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresDirectoryStore) Close() {
	s.pool.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*model.TenantConfig, error) {
	var cfg model.TenantConfig
	var theme, remoteStore, halls, features []byte

	if err := row.Scan(
		&cfg.ClientID,
		&cfg.Name,
		&theme,
		&remoteStore,
		&halls,
		&features,
		&cfg.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(theme, &cfg.Theme); err != nil {
		return nil, fmt.Errorf("failed to decode theme: %w", err)
	}
	if err := json.Unmarshal(halls, &cfg.Halls); err != nil {
		return nil, fmt.Errorf("failed to decode halls: %w", err)
	}
	if err := json.Unmarshal(features, &cfg.EnabledFeatures); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}
	cfg.RemoteStore = remoteStore

	return &cfg, nil
}
