// Package apierrors provides error handling and HTTP status code mapping for
// the session daemon and admin API surfaces.
package apierrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/magadhlabs/lmsync/internal/model"
	"github.com/magadhlabs/lmsync/internal/store"
	"go.uber.org/zap"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	// General errors
	ErrorCodeUnknown        ErrorCode = "UNKNOWN"
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"

	// Tenant resolution errors
	ErrorCodeMissingTenant     ErrorCode = "MISSING_TENANT"
	ErrorCodeTenantNotFound    ErrorCode = "TENANT_NOT_FOUND"
	ErrorCodeResolutionTimeout ErrorCode = "RESOLUTION_TIMEOUT"
	ErrorCodeConfigLoad        ErrorCode = "CONFIG_LOAD_ERROR"
	ErrorCodeConfigParse       ErrorCode = "CONFIG_PARSE_ERROR"

	// Sync errors
	ErrorCodeRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrorCodeNotFound          ErrorCode = "NOT_FOUND"

	// Auth errors
	ErrorCodeAuthFailure  ErrorCode = "AUTH_FAILURE"
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler provides error handling functionality.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// HandleError processes an error and writes an appropriate HTTP response.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := HTTPStatus(err)
	errorCode := Code(err)

	requestID := r.Header.Get("X-Request-ID")

	h.WriteErrorResponse(w, statusCode, errorCode, err.Error(), requestID)
}

// HTTPStatus converts a domain error to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, model.ErrMissingTenant):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrConfigParse):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrTenantNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrResolutionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrConfigLoad):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrAuthFailure):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Code converts a domain error to an application error code.
func Code(err error) ErrorCode {
	switch {
	case err == nil:
		return ErrorCodeUnknown
	case errors.Is(err, model.ErrMissingTenant):
		return ErrorCodeMissingTenant
	case errors.Is(err, model.ErrConfigParse):
		return ErrorCodeConfigParse
	case errors.Is(err, model.ErrTenantNotFound):
		return ErrorCodeTenantNotFound
	case errors.Is(err, store.ErrNotFound):
		return ErrorCodeNotFound
	case errors.Is(err, model.ErrResolutionTimeout):
		return ErrorCodeResolutionTimeout
	case errors.Is(err, model.ErrRemoteUnavailable):
		return ErrorCodeRemoteUnavailable
	case errors.Is(err, model.ErrConfigLoad):
		return ErrorCodeConfigLoad
	case errors.Is(err, model.ErrAuthFailure):
		return ErrorCodeAuthFailure
	default:
		return ErrorCodeInternalError
	}
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// WriteBadRequest is a convenience for malformed request bodies.
func (h *Handler) WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, r.Header.Get("X-Request-ID"))
}
