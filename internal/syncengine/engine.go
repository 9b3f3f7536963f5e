// Package syncengine owns the authenticated connection to a tenant's remote
// store. It exposes per-collection save/load/listen/remove with automatic
// online/offline fallback through the local mirror, which only this package
// writes, and only as a side effect of an explicit save or load.
package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/magadhlabs/lmsync/internal/metrics"
	"github.com/magadhlabs/lmsync/internal/model"
	"github.com/magadhlabs/lmsync/internal/session"
	"github.com/magadhlabs/lmsync/internal/store"
	"go.uber.org/zap"
)

// RemoteOpener opens a tenant's remote store from the opaque descriptor in
// its TenantConfig.
type RemoteOpener func(descriptor json.RawMessage) (store.RemoteStore, error)

// Callback receives a collection value on each listener delivery. present is
// false when the remote path is empty.
type Callback func(value json.RawMessage, present bool)

// Engine is the per-session sync engine. All operations gate on the current
// session identity and degrade to the local mirror instead of blocking.
type Engine struct {
	openRemote RemoteOpener
	mirror     store.LocalMirror
	session    *session.Manager
	metrics    *metrics.Metrics
	logger     *zap.Logger

	mu         sync.Mutex
	remote     store.RemoteStore
	configured bool
	listeners  map[string]func()
}

// NewEngine creates an unconfigured engine. Until Initialize succeeds every
// operation serves the local mirror only.
func NewEngine(
	openRemote RemoteOpener,
	mirror store.LocalMirror,
	sess *session.Manager,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		openRemote: openRemote,
		mirror:     mirror,
		session:    sess,
		metrics:    m,
		logger:     logger,
		listeners:  make(map[string]func()),
	}
}

// Initialize opens the remote connection from the resolved TenantConfig. It
// fails silently into the unconfigured state: a malformed descriptor or an
// unreachable store is logged, never thrown.
func (e *Engine) Initialize(cfg *model.TenantConfig) bool {
	remote, err := e.openRemote(cfg.RemoteStore)
	if err != nil {
		e.logger.Error("Remote store initialization failed, staying local-only",
			zap.String("client_id", cfg.ClientID),
			zap.Error(err))
		e.mu.Lock()
		e.configured = false
		e.mu.Unlock()
		return false
	}

	e.mu.Lock()
	e.remote = remote
	e.configured = true
	e.mu.Unlock()

	e.logger.Info("Sync engine initialized",
		zap.String("client_id", cfg.ClientID),
		zap.String("name", cfg.Name))
	return true
}

// Configured reports whether a remote connection is established
func (e *Engine) Configured() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configured
}

// online returns the remote store and scoped-path prefix when both a
// connection and a session identity are present.
func (e *Engine) online() (store.RemoteStore, string, bool) {
	e.mu.Lock()
	remote, configured := e.remote, e.configured
	e.mu.Unlock()

	if !configured {
		return nil, "", false
	}
	uid, ok := e.session.Identity()
	if !ok {
		return nil, "", false
	}
	return remote, "users/" + uid + "/", true
}

// Save writes value for key. The local mirror is written unconditionally
// regardless of remote outcome; a remote failure is logged, not surfaced.
func (e *Engine) Save(ctx context.Context, key string, value json.RawMessage) bool {
	remote, prefix, ok := e.online()
	if !ok {
		e.metrics.MirrorFallbacks.WithLabelValues("save").Inc()
		return e.mirrorSave(key, value)
	}

	if err := remote.Set(ctx, prefix+key, value); err != nil {
		e.logger.Error("Remote save failed, kept locally",
			zap.String("collection", key),
			zap.Error(err))
		e.metrics.SyncOpsTotal.WithLabelValues("save", key, "mirror").Inc()
		e.mirrorSave(key, value)
		return false
	}

	e.metrics.SyncOpsTotal.WithLabelValues("save", key, "remote").Inc()
	e.mirrorSave(key, value)
	return true
}

// Load reads key, preferring the remote store. An empty remote path falls
// back to the mirror and, when the mirrored value differs from defaultValue,
// pushes it up so a freshly re-authenticated session reconciles with
// pre-existing offline data.
func (e *Engine) Load(ctx context.Context, key string, defaultValue json.RawMessage) json.RawMessage {
	remote, prefix, ok := e.online()
	if !ok {
		e.metrics.MirrorFallbacks.WithLabelValues("load").Inc()
		return e.mirrorLoad(key, defaultValue)
	}

	value, err := remote.Get(ctx, prefix+key)
	switch {
	case err == nil:
		e.metrics.SyncOpsTotal.WithLabelValues("load", key, "remote").Inc()
		e.mirrorSave(key, value)
		return value

	case errors.Is(err, store.ErrNotFound):
		local, lerr := e.mirror.Load(key)
		if lerr != nil {
			return defaultValue
		}
		if !jsonEqual(local, defaultValue) {
			// Upload-on-first-sight. This can overwrite a legitimately
			// empty remote path with stale local data after a credential
			// change on the same device; logged loudly for that reason.
			e.logger.Warn("Pushing mirrored value to empty remote path",
				zap.String("collection", key),
				zap.Int("bytes", len(local)))
			e.metrics.UploadOnFirstSight.WithLabelValues(key).Inc()
			if serr := remote.Set(ctx, prefix+key, local); serr != nil {
				e.logger.Error("Upload of mirrored value failed",
					zap.String("collection", key),
					zap.Error(serr))
			}
		}
		return local

	default:
		e.logger.Error("Remote load failed, serving mirror",
			zap.String("collection", key),
			zap.Error(err))
		e.metrics.MirrorFallbacks.WithLabelValues("load").Inc()
		return e.mirrorLoad(key, defaultValue)
	}
}

// Listen attaches a standing subscription for key, detaching any existing
// one first: at most one live subscription per key per session. List-shaped
// collections are normalized to a canonical deduplicated sequence before the
// callback runs.
func (e *Engine) Listen(key string, cb Callback) {
	remote, prefix, ok := e.online()
	if !ok {
		return
	}

	e.DetachListener(key)

	deliver := func(raw json.RawMessage, present bool) {
		e.metrics.ListenerEvents.WithLabelValues(key).Inc()

		if !present {
			cb(nil, false)
			return
		}

		if model.IsListShaped(key) {
			seq, dropped := normalizeList(raw)
			if dropped > 0 {
				e.metrics.DedupDropped.WithLabelValues(key).Add(float64(dropped))
			}
			cb(marshalSequence(seq), true)
			return
		}

		cb(raw, true)
	}

	cancel, err := remote.Subscribe(prefix+key, deliver)
	if err != nil {
		e.logger.Error("Failed to attach listener",
			zap.String("collection", key),
			zap.Error(err))
		return
	}

	e.mu.Lock()
	e.listeners[key] = cancel
	e.mu.Unlock()
	e.metrics.ActiveListeners.Inc()
}

// DetachListener cancels the subscription for key, if any. Idempotent.
func (e *Engine) DetachListener(key string) {
	e.mu.Lock()
	cancel, ok := e.listeners[key]
	delete(e.listeners, key)
	e.mu.Unlock()

	if ok {
		cancel()
		e.metrics.ActiveListeners.Dec()
	}
}

// DetachAllListeners cancels every standing subscription. Idempotent.
func (e *Engine) DetachAllListeners() {
	e.mu.Lock()
	listeners := e.listeners
	e.listeners = make(map[string]func())
	e.mu.Unlock()

	for _, cancel := range listeners {
		cancel()
		e.metrics.ActiveListeners.Dec()
	}
}

// SaveItem writes one record at its granular path, bypassing the
// whole-collection overwrite that would race with concurrent granular
// writers. Returns false when offline or the record carries no id.
func (e *Engine) SaveItem(ctx context.Context, key string, item json.RawMessage) bool {
	rec, ok := model.ParseRecord(item)
	if !ok {
		return false
	}

	remote, prefix, online := e.online()
	if !online {
		return false
	}

	if err := remote.SetChild(ctx, prefix+key, rec.ID, item); err != nil {
		e.logger.Error("Remote item save failed",
			zap.String("collection", key),
			zap.String("id", rec.ID),
			zap.Error(err))
		return false
	}

	e.metrics.SyncOpsTotal.WithLabelValues("save_item", key, "remote").Inc()
	return true
}

// RemoveItem deletes one record by id. Returns false when offline or id is
// empty.
func (e *Engine) RemoveItem(ctx context.Context, key, itemID string) bool {
	if itemID == "" {
		return false
	}

	remote, prefix, online := e.online()
	if !online {
		return false
	}

	if err := remote.DeleteChild(ctx, prefix+key, itemID); err != nil {
		e.logger.Error("Remote item delete failed",
			zap.String("collection", key),
			zap.String("id", itemID),
			zap.Error(err))
		return false
	}

	e.metrics.SyncOpsTotal.WithLabelValues("remove_item", key, "remote").Inc()
	return true
}

// SyncLocalToCloud bulk-pushes mirrored values for the non-record-heavy
// collections, sequentially, in a fixed order. Students and payments stay
// out of this path so a stale bulk write cannot clobber concurrent granular
// writes.
func (e *Engine) SyncLocalToCloud(ctx context.Context) bool {
	remote, prefix, ok := e.online()
	if !ok {
		return false
	}

	for _, key := range model.BulkPushCollections {
		local, err := e.mirror.Load(key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			e.logger.Error("Mirror read failed during bulk push",
				zap.String("collection", key),
				zap.Error(err))
			return false
		}
		if err := remote.Set(ctx, prefix+key, local); err != nil {
			e.logger.Error("Bulk push failed",
				zap.String("collection", key),
				zap.Error(err))
			return false
		}
		e.metrics.SyncOpsTotal.WithLabelValues("bulk_push", key, "remote").Inc()
	}
	return true
}

// SyncCloudToLocal bulk-pulls every collection into the mirror,
// sequentially. List-shaped values are converted to sequences before
// mirroring.
func (e *Engine) SyncCloudToLocal(ctx context.Context) bool {
	remote, prefix, ok := e.online()
	if !ok {
		return false
	}

	for _, key := range model.AllCollections {
		value, err := remote.Get(ctx, prefix+key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			e.logger.Error("Bulk pull failed",
				zap.String("collection", key),
				zap.Error(err))
			return false
		}

		if model.IsListShaped(key) && !isArray(value) {
			value = marshalSequence(toSequence(value))
		}

		e.mirrorSave(key, value)
		e.metrics.SyncOpsTotal.WithLabelValues("bulk_pull", key, "remote").Inc()
	}
	return true
}

// SignOut detaches every standing subscription before the session identity
// is cleared, so no stale callback can fire against an invalid scope.
func (e *Engine) SignOut() {
	e.DetachAllListeners()
	e.session.SignOut()
}

func (e *Engine) mirrorSave(key string, value json.RawMessage) bool {
	if err := e.mirror.Save(key, value); err != nil {
		e.logger.Error("Mirror save failed",
			zap.String("collection", key),
			zap.Error(err))
		return false
	}
	return true
}

func (e *Engine) mirrorLoad(key string, defaultValue json.RawMessage) json.RawMessage {
	value, err := e.mirror.Load(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b == '['
		}
	}
	return false
}
