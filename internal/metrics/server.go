package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsServer exposes the Prometheus scrape endpoint on its own listener,
// separate from the API surface.
type MetricsServer struct {
	server *http.Server
	path   string
	logger *zap.Logger
}

// NewMetricsServer creates a metrics server on the given port.
func NewMetricsServer(port int, path string, logger *zap.Logger) *MetricsServer {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		path:   path,
		logger: logger,
	}
}

// Start blocks serving scrapes until Shutdown.
func (ms *MetricsServer) Start() error {
	ms.logger.Info("starting metrics server",
		zap.String("addr", ms.server.Addr),
		zap.String("path", ms.path))
	return ms.server.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	ms.logger.Info("shutting down metrics server")
	return ms.server.Shutdown(ctx)
}
