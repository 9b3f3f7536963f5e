// Package server provides the HTTP server for both the tenant session daemon
// and the admin directory editor.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/magadhlabs/lmsync/internal/apierrors"
	"github.com/magadhlabs/lmsync/internal/config"
	"github.com/magadhlabs/lmsync/internal/handler"
	"github.com/magadhlabs/lmsync/internal/health"
	"github.com/magadhlabs/lmsync/internal/middleware"
	"go.uber.org/zap"
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	healthCheck  *health.HealthCheck
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server with the shared middleware chain and
// health endpoints installed. Routes are mounted separately per binary.
func NewServer(cfg *config.Config, healthCheck *health.HealthCheck, logger *zap.Logger) *Server {
	router := mux.NewRouter()
	errorHandler := apierrors.NewHandler(logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	s := &Server{
		router:       router,
		httpServer:   httpServer,
		healthCheck:  healthCheck,
		errorHandler: errorHandler,
		logger:       logger,
		cfg:          cfg,
	}
	s.setupBase()
	return s
}

// ErrorHandler returns the server's shared error handler.
func (s *Server) ErrorHandler() *apierrors.Handler {
	return s.errorHandler
}

func (s *Server) setupBase() {
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.CORS([]string{"*"}),
	}

	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apierrors.ErrorCodeInvalidRequest, "endpoint not found", requestID)
	})

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apierrors.ErrorCodeInvalidRequest, "method not allowed", requestID)
	})
}

// SetupTenantRoutes mounts the tenant session daemon API.
func (s *Server) SetupTenantRoutes(h *handler.Handlers) {
	v1 := s.router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/bootstrap", h.Bootstrap).Methods(http.MethodGet)

	v1.HandleFunc("/collections/{key}", h.GetCollection).Methods(http.MethodGet)
	v1.HandleFunc("/collections/{key}", h.PutCollection).Methods(http.MethodPut)
	v1.HandleFunc("/collections/{key}/watch", h.WatchCollection).Methods(http.MethodGet)
	v1.HandleFunc("/collections/{key}/items/{id}", h.PutItem).Methods(http.MethodPut)
	v1.HandleFunc("/collections/{key}/items/{id}", h.DeleteItem).Methods(http.MethodDelete)

	v1.HandleFunc("/session", h.SessionState).Methods(http.MethodGet)
	v1.HandleFunc("/session/sign-in", h.SignIn).Methods(http.MethodPost)
	v1.HandleFunc("/session/sign-out", h.SignOut).Methods(http.MethodPost)

	v1.HandleFunc("/sync/push", h.SyncPush).Methods(http.MethodPost)
	v1.HandleFunc("/sync/pull", h.SyncPull).Methods(http.MethodPost)

	v1.HandleFunc("/backup/export", h.ExportBackup).Methods(http.MethodGet)
}

// SetupAdminRoutes mounts the privileged directory editor API behind bearer
// token auth.
func (s *Server) SetupAdminRoutes(h *handler.AdminHandlers) {
	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.BearerAuth(s.cfg.Server.AdminToken, s.logger))

	v1.HandleFunc("/clients", h.ListClients).Methods(http.MethodGet)
	v1.HandleFunc("/clients", h.PutClient).Methods(http.MethodPut)
	v1.HandleFunc("/clients/watch", h.WatchClients).Methods(http.MethodGet)
	v1.HandleFunc("/clients/{client_id}", h.GetClient).Methods(http.MethodGet)
	v1.HandleFunc("/clients/{client_id}", h.DeleteClient).Methods(http.MethodDelete)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("host", s.cfg.Server.Host),
		zap.Int("port", s.cfg.Server.Port),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the http.Handler for the server, for tests.
func (s *Server) GetHandler() http.Handler {
	return s.router
}
