package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/magadhlabs/lmsync/internal/model"
)

// ErrNotFound is returned when a key or directory entry is not found
var ErrNotFound = errors.New("not found")

// DirectoryStore is the single shared store mapping tenant keys to
// TenantConfig. The tenant application only reads it; the admin editor owns
// all mutation.
type DirectoryStore interface {
	GetClient(ctx context.Context, clientID string) (*model.TenantConfig, error)
	UpsertClient(ctx context.Context, cfg *model.TenantConfig) error
	DeleteClient(ctx context.Context, clientID string) error
	ListClients(ctx context.Context) ([]*model.TenantConfig, error)

	// WatchClients delivers a full directory snapshot on every change until
	// ctx is done. Each snapshot replaces the prior one wholesale.
	WatchClients(ctx context.Context) (<-chan []*model.TenantConfig, error)

	// Health check
	Ping(ctx context.Context) error
	Close()
}

// RemoteStore is one tenant's remote document store. Paths are slash-joined
// and already scoped by the caller (users/<uid>/<collection>).
type RemoteStore interface {
	// Get returns the document at path, merging any granular child records
	// over the last bulk value. ErrNotFound when the path is empty.
	Get(ctx context.Context, path string) (json.RawMessage, error)

	// Set overwrites the whole document at path, discarding child records.
	Set(ctx context.Context, path string, value json.RawMessage) error

	// Delete removes the document and all child records at path.
	Delete(ctx context.Context, path string) error

	// SetChild writes one record under path without touching siblings.
	SetChild(ctx context.Context, path, childID string, value json.RawMessage) error

	// DeleteChild removes one record under path.
	DeleteChild(ctx context.Context, path, childID string) error

	// Subscribe calls deliver with the current document and again after
	// every change at path. present is false when the path is empty.
	// The returned cancel func is idempotent.
	Subscribe(path string, deliver func(value json.RawMessage, present bool)) (cancel func(), err error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// LocalMirror is the durable local key-value shim. Implementations apply the
// fixed namespace prefix; callers use logical collection keys. A later write
// unconditionally replaces an earlier one.
type LocalMirror interface {
	Load(key string) (json.RawMessage, error)
	Save(key string, value json.RawMessage) error
	Remove(key string) error
	Keys() ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Cache interface for in-memory caching of resolved tenant configs
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MirrorPrefix is the fixed namespace prefix for local mirror entries.
const MirrorPrefix = "lms_"
