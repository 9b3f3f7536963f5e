// Package handler provides HTTP request handlers for the tenant session
// daemon and the admin directory editor.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/magadhlabs/lmsync/internal/apierrors"
	"github.com/magadhlabs/lmsync/internal/model"
	"github.com/magadhlabs/lmsync/internal/resolver"
	"github.com/magadhlabs/lmsync/internal/session"
	"github.com/magadhlabs/lmsync/internal/syncengine"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

// Handlers contains the tenant-facing HTTP handlers and their dependencies.
type Handlers struct {
	resolver     *resolver.Resolver
	engine       *syncengine.Engine
	session      *session.Manager
	exporter     *syncengine.Exporter
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	timeout      time.Duration
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	res *resolver.Resolver,
	engine *syncengine.Engine,
	sess *session.Manager,
	exporter *syncengine.Exporter,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
	timeout time.Duration,
) *Handlers {
	return &Handlers{
		resolver:     res,
		engine:       engine,
		session:      sess,
		exporter:     exporter,
		errorHandler: errorHandler,
		logger:       logger,
		timeout:      timeout,
	}
}

// bootstrapResponse is the session bootstrap payload.
type bootstrapResponse struct {
	ClientID        string       `json:"clientId"`
	Name            string       `json:"name"`
	Title           string       `json:"title"`
	Theme           model.Theme  `json:"theme"`
	Halls           []model.Hall `json:"halls"`
	EnabledFeatures []string     `json:"enabledFeatures,omitempty"`
}

// Bootstrap handles GET /v1/bootstrap?client=<key> requests. It resolves the
// tenant key and binds the session daemon to the resolved configuration.
func (h *Handlers) Bootstrap(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	key := r.URL.Query().Get(resolver.QueryParam)

	cfg, err := h.resolver.ResolveFromQuery(r.Context(), r.URL.Query())
	if err != nil {
		if errors.Is(err, model.ErrTenantNotFound) {
			h.errorHandler.WriteErrorResponse(w, http.StatusNotFound,
				apierrors.ErrorCodeTenantNotFound,
				fmt.Sprintf("Client not found: %s", key), requestID)
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, bootstrapResponse{
		ClientID:        cfg.ClientID,
		Name:            cfg.Name,
		Title:           cfg.Title(),
		Theme:           cfg.Theme,
		Halls:           cfg.Halls,
		EnabledFeatures: cfg.EnabledFeatures,
	})
}

// GetCollection handles GET /v1/collections/{key} requests. The local mirror
// answers whenever the remote store cannot, so the response is always 200 for
// a known collection.
func (h *Handlers) GetCollection(w http.ResponseWriter, r *http.Request) {
	key, ok := h.collectionKey(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	value := h.engine.Load(ctx, key, defaultValueFor(key))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(value)
}

// PutCollection handles PUT /v1/collections/{key} requests with a full
// collection value in the body.
func (h *Handlers) PutCollection(w http.ResponseWriter, r *http.Request) {
	key, ok := h.collectionKey(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || !json.Valid(body) {
		h.errorHandler.WriteBadRequest(w, r, "request body must be a valid JSON document")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	saved := h.engine.Save(ctx, key, body)

	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"saved":  saved,
	})
}

// PutItem handles PUT /v1/collections/{key}/items/{id} requests. The record
// body must carry an "id" field matching the path.
func (h *Handlers) PutItem(w http.ResponseWriter, r *http.Request) {
	key, ok := h.collectionKey(w, r)
	if !ok {
		return
	}
	itemID := mux.Vars(r)["id"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.errorHandler.WriteBadRequest(w, r, "failed to read request body")
		return
	}

	rec, parsed := model.ParseRecord(body)
	if !parsed {
		h.errorHandler.WriteBadRequest(w, r, "record body must be a JSON object with an id")
		return
	}
	if rec.ID != itemID {
		h.errorHandler.WriteBadRequest(w, r, "record id does not match path")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	remote := h.engine.SaveItem(ctx, key, body)

	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"remote": remote,
	})
}

// DeleteItem handles DELETE /v1/collections/{key}/items/{id} requests.
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	key, ok := h.collectionKey(w, r)
	if !ok {
		return
	}
	itemID := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	remote := h.engine.RemoveItem(ctx, key, itemID)

	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"remote": remote,
	})
}

// WatchCollection handles GET /v1/collections/{key}/watch as a server-sent
// event stream. Each event carries the full normalized collection value.
// Attaching replaces any previous watcher on the same collection.
func (h *Handlers) WatchCollection(w http.ResponseWriter, r *http.Request) {
	key, ok := h.collectionKey(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		h.errorHandler.WriteErrorResponse(w, http.StatusInternalServerError,
			apierrors.ErrorCodeInternalError, "streaming unsupported", r.Header.Get("X-Request-ID"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	type event struct {
		value   json.RawMessage
		present bool
	}
	events := make(chan event, 16)

	h.engine.Listen(key, func(value json.RawMessage, present bool) {
		select {
		case events <- event{value: value, present: present}:
		default:
			h.logger.Warn("Watch stream backlogged, dropping event",
				zap.String("collection", key))
		}
	})
	defer h.engine.DetachListener(key)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			payload := ev.value
			if !ev.present {
				payload = json.RawMessage("null")
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// signInRequest is the session sign-in body.
type signInRequest struct {
	UserID string `json:"userId"`
}

// SignIn handles POST /v1/session/sign-in requests.
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil || req.UserID == "" {
		h.errorHandler.WriteBadRequest(w, r, "userId is required")
		return
	}

	h.session.Begin()
	h.session.SignIn(req.UserID)

	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"state":  h.session.State().String(),
	})
}

// SignOut handles POST /v1/session/sign-out requests. Standing listeners are
// detached before the identity is dropped.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	h.engine.SignOut()

	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"state":  h.session.State().String(),
	})
}

// SessionState handles GET /v1/session requests.
func (h *Handlers) SessionState(w http.ResponseWriter, r *http.Request) {
	userID, signedIn := h.session.Identity()

	resp := map[string]any{
		"state":    h.session.State().String(),
		"signedIn": signedIn,
	}
	if signedIn {
		resp["userId"] = userID
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

// SyncPush handles POST /v1/sync/push requests, bulk-pushing mirrored values
// to the remote store.
func (h *Handlers) SyncPush(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !h.engine.SyncLocalToCloud(ctx) {
		h.errorHandler.HandleError(w, r, model.ErrRemoteUnavailable)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
}

// SyncPull handles POST /v1/sync/pull requests, refreshing the local mirror
// from the remote store.
func (h *Handlers) SyncPull(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !h.engine.SyncCloudToLocal(ctx) {
		h.errorHandler.HandleError(w, r, model.ErrRemoteUnavailable)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ExportBackup handles GET /v1/backup/export requests, returning the full
// mirrored dataset as a downloadable document.
func (h *Handlers) ExportBackup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	backup, err := h.exporter.Export(ctx)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", h.exporter.Filename(backup)))
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(backup)
}

// collectionKey extracts and validates the {key} path variable.
func (h *Handlers) collectionKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := mux.Vars(r)["key"]
	if !model.IsKnownCollection(key) {
		h.errorHandler.WriteBadRequest(w, r, fmt.Sprintf("unknown collection: %s", key))
		return "", false
	}
	return key, true
}

// defaultValueFor returns the empty value handed to loads when neither the
// remote store nor the mirror has the collection.
func defaultValueFor(key string) json.RawMessage {
	if model.IsListShaped(key) {
		return json.RawMessage("[]")
	}
	return json.RawMessage("{}")
}

// writeJSONResponse writes a JSON response with the given status code.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
