package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/magadhlabs/lmsync/internal/apierrors"
	"github.com/magadhlabs/lmsync/internal/directory"
	"go.uber.org/zap"
)

// AdminHandlers contains the privileged directory editor handlers.
type AdminHandlers struct {
	editor       *directory.Editor
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	timeout      time.Duration
}

// NewAdminHandlers creates a new AdminHandlers instance.
func NewAdminHandlers(
	editor *directory.Editor,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
	timeout time.Duration,
) *AdminHandlers {
	return &AdminHandlers{
		editor:       editor,
		errorHandler: errorHandler,
		logger:       logger,
		timeout:      timeout,
	}
}

// ListClients handles GET /v1/clients requests.
func (h *AdminHandlers) ListClients(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	clients, err := h.editor.List(ctx)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"clients": clients,
		"count":   len(clients),
	})
}

// GetClient handles GET /v1/clients/{client_id} requests.
func (h *AdminHandlers) GetClient(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	client, err := h.editor.Get(ctx, mux.Vars(r)["client_id"])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, client)
}

// PutClient handles PUT /v1/clients requests. The body is a full
// TenantConfig document, parsed strictly; unknown fields are rejected rather
// than silently dropped.
func (h *AdminHandlers) PutClient(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.errorHandler.WriteBadRequest(w, r, "failed to read request body")
		return
	}

	cfg, err := directory.ParseClientConfig(body)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.editor.Upsert(ctx, cfg); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"client_id": cfg.ClientID,
	})
}

// DeleteClient handles DELETE /v1/clients/{client_id} requests.
func (h *AdminHandlers) DeleteClient(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.editor.Delete(ctx, mux.Vars(r)["client_id"]); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// WatchClients handles GET /v1/clients/watch as a server-sent event stream.
// Every directory change delivers a full replacement snapshot.
func (h *AdminHandlers) WatchClients(w http.ResponseWriter, r *http.Request) {
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		h.errorHandler.WriteErrorResponse(w, http.StatusInternalServerError,
			apierrors.ErrorCodeInternalError, "streaming unsupported", r.Header.Get("X-Request-ID"))
		return
	}

	snapshots, err := h.editor.Watch(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, open := <-snapshots:
			if !open {
				return
			}
			payload, err := json.Marshal(snapshot)
			if err != nil {
				h.logger.Error("Failed to encode directory snapshot", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (h *AdminHandlers) writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
