package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	apimw "github.com/phrazzld/asynqq/internal/api/middleware"
	"github.com/phrazzld/asynqq/internal/api/shared"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	// Long enough for ?wait=true on the longest accepted delay
	writeTimeout = 90 * time.Second
)

// Server wraps the chi router and its dependencies.
type Server struct {
	router    *chi.Mux
	tasks     *TaskHandler
	responder *shared.Responder
	registry  *prometheus.Registry
	logger    *slog.Logger
	addr      string
}

// NewServer creates and configures a new HTTP server. HTTP metrics are
// registered with registry, which is also what /metrics serves.
func NewServer(addr string, eng TaskEngine, registry *prometheus.Registry, logger *slog.Logger) (*Server, error) {
	httpMetrics, err := newHTTPMetrics(registry)
	if err != nil {
		return nil, err
	}

	logger = logger.With("component", "http")
	responder := shared.NewResponder(logger)

	srv := &Server{
		router:    chi.NewRouter(),
		tasks:     NewTaskHandler(eng, responder, logger),
		responder: responder,
		registry:  registry,
		logger:    logger,
		addr:      addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(apimw.Trace(logger))
	srv.router.Use(httpMetrics.middleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv, nil
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler(s.registry))

	s.router.Get("/v1/stats", s.tasks.GetStats)

	s.router.Route("/v1/tasks", func(r chi.Router) {
		r.Post("/", s.tasks.SubmitTask)
		r.Get("/{id}", s.tasks.GetTask)
		r.Delete("/{id}", s.tasks.DeleteTask)
	})
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down", "reason", context.Cause(ctx))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.responder.JSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
}
