package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zgpcy/worldclock/internal/collector"
	"github.com/zgpcy/worldclock/internal/config"
	"github.com/zgpcy/worldclock/internal/devices"
	"github.com/zgpcy/worldclock/internal/logger"
	"github.com/zgpcy/worldclock/internal/server"
	"github.com/zgpcy/worldclock/internal/timeapi"
	"github.com/zgpcy/worldclock/internal/version"
)

const (
	// DefaultShutdownTimeout is the maximum time to wait for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second
)

var (
	configPath = flag.String("config", "", "Path to configuration file (empty = defaults and environment only)")
	envFile    = flag.String("env-file", ".env", "Optional dotenv file with WORLDCLOCK_* variables")
)

func main() {
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}

	// Load configuration first (need log level from config)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("World clock starting",
		"version", version.Version,
		"git_commit", version.GitCommit,
		"config_path", *configPath)

	logger.Info("Configuration loaded successfully",
		"base_url", cfg.TimeService.BaseURL,
		"zones", len(cfg.Zones),
		"refresh_interval_seconds", cfg.RefreshInterval,
		"display_policy", string(cfg.DisplayPolicy()),
		"retry_max_elapsed_seconds", cfg.Retry.MaxElapsed,
		"http_port", cfg.HTTPPort,
		"api_timeout_seconds", cfg.TimeService.APITimeout)

	client, err := timeapi.NewClient(cfg.TimeService.BaseURL, logger,
		timeapi.WithTimeout(cfg.APITimeoutDuration()),
		timeapi.WithRequestsPerMinute(cfg.TimeService.RequestsPerMinute))
	if err != nil {
		logger.Error("Failed to create time service client", "error", err)
		os.Exit(1)
	}

	registry := devices.NewMockRegistry(cfg.DevicesList())
	logger.Info("Mock device registry ready", "devices", len(registry.ListAvailable()))

	clockCollector := collector.NewClockCollector(client, registry, cfg, logger)

	if err := prometheus.Register(clockCollector); err != nil {
		logger.Error("Failed to register collector", "error", err)
		os.Exit(1)
	}
	logger.Info("Collector registered with Prometheus")

	// Register Go runtime metrics (memory, goroutines, GC stats)
	if err := prometheus.Register(prometheus.NewGoCollector()); err != nil {
		logger.Warn("Failed to register Go collector", "error", err)
	}

	// Register process metrics (CPU, memory, file descriptors)
	if err := prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		logger.Warn("Failed to register process collector", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Starting background clock refresh")
	clockCollector.StartBackgroundRefresh(ctx)

	srv := server.NewServer(cfg, clockCollector, client, registry, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}

	case sig := <-shutdown:
		logger.Info("Received shutdown signal, starting graceful shutdown", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during server shutdown", "error", err)
			os.Exit(1)
		}

		logger.Info("Server stopped gracefully")
	}
}
