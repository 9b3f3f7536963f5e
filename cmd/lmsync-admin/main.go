// Package main provides the entry point for the privileged directory editor.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/magadhlabs/lmsync/internal/config"
	"github.com/magadhlabs/lmsync/internal/directory"
	"github.com/magadhlabs/lmsync/internal/handler"
	"github.com/magadhlabs/lmsync/internal/health"
	"github.com/magadhlabs/lmsync/internal/metrics"
	"github.com/magadhlabs/lmsync/internal/server"
	"github.com/magadhlabs/lmsync/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Initialize logger
	logger := initLogger()
	defer logger.Sync()

	logger.Info("starting directory editor")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	if cfg.Server.AdminToken == "" {
		logger.Fatal("admin token must be configured")
	}

	// Connect to the tenant directory
	directoryStore, err := store.NewPostgresDirectoryStore(
		cfg.Directory.Host,
		cfg.Directory.Port,
		cfg.Directory.Database,
		cfg.Directory.User,
		cfg.Directory.Password,
		cfg.Directory.MaxConnections,
		cfg.Directory.MinConnections,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to connect to directory", zap.Error(err))
	}
	defer directoryStore.Close()

	// Initialize metrics
	m := metrics.NewMetrics()

	editor := directory.NewEditor(directoryStore, m, logger)

	// Health checks
	healthCheck := health.NewHealthCheck(map[string]health.Pinger{
		"directory": health.PingerFunc(directoryStore.Ping),
	}, logger)

	// Start metrics server if enabled
	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	// Initialize HTTP server
	httpServer := server.NewServer(cfg, healthCheck, logger)
	adminHandlers := handler.NewAdminHandlers(editor, httpServer.ErrorHandler(), logger, cfg.Remote.ReadTimeout)
	httpServer.SetupAdminRoutes(adminHandlers)

	// Start HTTP server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	logger.Info("HTTP server started", zap.Int("port", cfg.Server.Port))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	logger.Info("directory editor shutdown complete")
}

// initLogger initializes the zap logger.
func initLogger() *zap.Logger {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var level zapcore.Level
	switch logLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var config zap.Config
	if os.Getenv("LOG_FORMAT") == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
