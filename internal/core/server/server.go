// Package server wires the HTTP API and runs it until its context ends.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/osrm-access/internal/core/health"
	middleware "github.com/mohammed-shakir/osrm-access/internal/core/middleware"
	"github.com/mohammed-shakir/osrm-access/internal/core/router"
)

type Options struct {
	Profile string
	// Checks feed /readyz.
	Checks map[string]health.Check
	// Consumer, when set, must hold partitions for /readyz to pass.
	Consumer health.ReadinessReporter
	// Metrics serves /metrics; nil uses the default registry.
	Metrics http.Handler
}

// NewHandler builds the chi router with middleware, probes, metrics and the
// API routes.
func NewHandler(logger *slog.Logger, deps router.Deps, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger, opts.Profile))
	r.Use(middleware.CORS())

	metricsHandler := opts.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(opts.Checks, opts.Consumer))
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	if deps.Logger == nil {
		deps.Logger = logger
	}
	if deps.Profile == "" {
		deps.Profile = opts.Profile
	}
	router.Mount(r, deps)
	return r
}

// Run serves handler on addr until ctx is done.
func Run(ctx context.Context, addr string, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
