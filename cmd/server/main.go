// Package main implements the entry point for the asynqq server, which runs
// the task engine and exposes it over a small HTTP admin API.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/asynqq/internal/config"
	"github.com/phrazzld/asynqq/internal/platform/logger"
)

// main initializes configuration and logging, wires the engine and HTTP
// server, and runs until SIGINT or SIGTERM.
func main() {
	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := app.run(ctx); err != nil {
		appLogger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	logConfig(l, cfg)

	return cfg, l, nil
}

// logConfig records the effective configuration.
func logConfig(l *slog.Logger, cfg *config.Config) {
	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"max_workers", cfg.Engine.MaxWorkers,
		"queue_size", cfg.Engine.QueueSize,
		"admission_backoff", cfg.Engine.AdmissionBackoff.String(),
		"id_format", cfg.Engine.IDFormat)
}
