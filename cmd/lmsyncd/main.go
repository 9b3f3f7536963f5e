// Package main provides the entry point for the tenant session daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/magadhlabs/lmsync/internal/blob"
	"github.com/magadhlabs/lmsync/internal/config"
	"github.com/magadhlabs/lmsync/internal/handler"
	"github.com/magadhlabs/lmsync/internal/health"
	"github.com/magadhlabs/lmsync/internal/metrics"
	"github.com/magadhlabs/lmsync/internal/resolver"
	"github.com/magadhlabs/lmsync/internal/server"
	"github.com/magadhlabs/lmsync/internal/session"
	"github.com/magadhlabs/lmsync/internal/store"
	"github.com/magadhlabs/lmsync/internal/syncengine"
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

	logger.Info("starting session daemon")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("mirror_path", cfg.Mirror.Path),
	)

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

	// Open the local mirror
	mirror, err := store.NewSQLiteMirror(cfg.Mirror.Path, logger)
	if err != nil {
		logger.Fatal("failed to open local mirror", zap.Error(err))
	}
	defer mirror.Close()

	// Initialize metrics
	m := metrics.NewMetrics()

	// Tenant resolution
	cache := store.NewInMemoryCache(cfg.Cache.MaxSize, logger)
	res := resolver.NewResolver(directoryStore, cache, cfg.Cache.TenantConfigTTL, cfg.Resolver.WaitBound, m, logger)

	// Session identity and sync engine
	sess := session.NewManager(logger)
	openRemote := func(descriptor json.RawMessage) (store.RemoteStore, error) {
		desc, err := store.ParseRemoteDescriptor(descriptor)
		if err != nil {
			return nil, err
		}
		return store.NewRedisRemoteStore(desc, cfg.Remote.DialTimeout, cfg.Remote.ReadTimeout, cfg.Remote.WriteTimeout, logger)
	}
	engine := syncengine.NewEngine(openRemote, mirror, sess, m, logger)

	// Bind the engine to the tenant once the first resolution succeeds
	go func() {
		tenantCfg := <-res.Ready()
		engine.Initialize(tenantCfg)
	}()

	// Backup archive
	archive, err := blob.Open(context.Background(), blob.Options{
		Driver: blob.Driver(cfg.Backup.Driver),
		Root:   cfg.Backup.Root,
		S3: blob.S3Config{
			Region: cfg.Backup.S3Region,
			Bucket: cfg.Backup.S3Bucket,
			Prefix: cfg.Backup.S3Prefix,
		},
	})
	if err != nil {
		logger.Fatal("failed to open backup archive", zap.Error(err))
	}
	exporter := syncengine.NewExporter(engine, archive, logger)

	// Health checks
	healthCheck := health.NewHealthCheck(map[string]health.Pinger{
		"directory": health.PingerFunc(directoryStore.Ping),
		"mirror":    health.PingerFunc(mirror.Ping),
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
	handlers := handler.NewHandlers(res, engine, sess, exporter, httpServer.ErrorHandler(), logger, cfg.Remote.ReadTimeout)
	httpServer.SetupTenantRoutes(handlers)

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

	engine.DetachAllListeners()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	logger.Info("session daemon shutdown complete")
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
