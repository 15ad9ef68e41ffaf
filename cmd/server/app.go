package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/phrazzld/asynqq/internal/api"
	"github.com/phrazzld/asynqq/internal/config"
	"github.com/phrazzld/asynqq/internal/engine"
	"github.com/phrazzld/asynqq/internal/metrics"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	registry *prometheus.Registry
	metrics  *metrics.Collector
	engine   *engine.Engine
	server   *api.Server
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var err error
	app.metrics, err = metrics.NewCollector(app.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	app.engine, err = engine.New(cfg.Engine, logger, engine.WithMetrics(app.metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := app.metrics.TrackQueue(app.engine); err != nil {
		return nil, fmt.Errorf("failed to initialize queue metrics: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	app.server, err = api.NewServer(addr, app.engine, app.registry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return app, nil
}

// run starts the engine and serves HTTP until ctx is done. The engine is
// closed on the way out; tasks still pending are stopped.
func (app *application) run(ctx context.Context) error {
	app.engine.Start()
	defer app.cleanup()

	return app.server.Run(ctx)
}

// cleanup releases application resources.
func (app *application) cleanup() {
	app.logger.Info("shutting down engine",
		"pending", app.engine.PendingSize(),
		"running", app.engine.RunningSize())
	app.engine.Close()
}
