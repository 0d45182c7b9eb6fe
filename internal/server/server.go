// Package server provides the service lifecycle runner: signal handling,
// config loading, observability init, health checks, and graceful shutdown.
// The dispatcher entrypoint delegates to server.Run and plugs its wiring in
// through Params.Setup.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aelexs/notification-dispatch/internal/config"
	"github.com/aelexs/notification-dispatch/internal/domain"
	"github.com/aelexs/notification-dispatch/internal/observability"
)

// SetupDeps carries the shared infrastructure Run hands to a service's
// composition root.
type SetupDeps struct {
	Config *config.Config
	Logger *slog.Logger

	// HTTPMux is the server's route registry. Setup mounts API handlers
	// here; /healthz is reserved by Run.
	HTTPMux *http.ServeMux
}

// CleanupFunc tears down what Setup built. It runs during graceful shutdown
// after the HTTP server has drained, with a bounded context.
type CleanupFunc func(ctx context.Context) error

// Params configures a service's lifecycle runner.
type Params struct {
	// Name identifies the service in logs and health responses.
	Name string

	// PortFromConfig extracts the HTTP port for this service from config.
	PortFromConfig func(cfg *config.Config) int

	// Setup is the service composition root: it builds clients, adapters,
	// and handlers, mounts routes on deps.HTTPMux, and starts background
	// components. Optional.
	Setup func(ctx context.Context, deps SetupDeps) (CleanupFunc, error)
}

// Run executes the full service lifecycle: signal handling, config loading,
// observability initialization, service setup, HTTP server with health
// checks, and graceful shutdown. If ln is non-nil, it is used instead of
// creating a new listener from config (enables port-0 testing).
func Run(ctx context.Context, p Params, ln net.Listener) error {
	// Signal-based cancellation: ctx.Done() closes on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: p.Name,
		Environment: cfg.Environment,
	})

	// --- Startup order: tracer -> metrics -> setup -> HTTP server ---

	tracerProvider, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    p.Name,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}

	metricsProvider, err := observability.InitMetrics(ctx, observability.MetricsConfig{
		ServiceName:    p.Name,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}

	// Health check shutdown coordination via atomic flag.
	var shuttingDown atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if shuttingDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"shutting_down","service":%q}`, p.Name)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q}`, p.Name)
	})

	cleanup := CleanupFunc(func(context.Context) error { return nil })
	if p.Setup != nil {
		c, setupErr := p.Setup(ctx, SetupDeps{
			Config:  cfg,
			Logger:  logger,
			HTTPMux: mux,
		})
		if setupErr != nil {
			// Providers already started; release them before bailing.
			otelCtx, otelCancel := context.WithTimeout(context.Background(), domain.ShutdownOTELTimeout)
			defer otelCancel()
			_ = metricsProvider.Shutdown(otelCtx)
			_ = tracerProvider.Shutdown(otelCtx)
			return fmt.Errorf("setup %s: %w", p.Name, setupErr)
		}
		if c != nil {
			cleanup = c
		}
	}

	// Bind listener (use injected listener or create from config).
	if ln == nil {
		ln, err = (&net.ListenConfig{}).Listen(ctx, "tcp", fmt.Sprintf(":%d", p.PortFromConfig(cfg)))
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Structured concurrency via errgroup ---
	g, ctx := errgroup.WithContext(ctx)

	// Goroutine 1: Serve HTTP
	g.Go(func() error {
		logger.Info("starting HTTP server",
			slog.String("addr", ln.Addr().String()),
			slog.String("environment", cfg.Environment),
		)
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})

	// Goroutine 2: Shutdown trigger — waits for context cancellation, then
	// drains in explicit reverse of startup: HTTP server -> service cleanup
	// -> metrics -> tracer.
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("received shutdown signal, starting graceful shutdown")

		// 1. Mark shutting down — health checks return 503
		shuttingDown.Store(true)

		// 2. Drain delay — let load balancer propagate endpoint removal
		time.Sleep(domain.ShutdownDrainDelay)

		// 3. Drain HTTP server (reverse of startup: HTTP started last, stops first)
		httpCtx, httpCancel := context.WithTimeout(context.Background(), domain.ShutdownHTTPTimeout)
		defer httpCancel()
		if shutdownErr := server.Shutdown(httpCtx); shutdownErr != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", shutdownErr.Error()))
		}

		// 4. Service cleanup — stops the OTP consumer and closes clients.
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), domain.ConsumerStopTimeout+domain.ShutdownOTELTimeout)
		defer cleanupCancel()
		if cleanupErr := cleanup(cleanupCtx); cleanupErr != nil {
			logger.Error("service cleanup error", slog.String("error", cleanupErr.Error()))
		}

		// 5. Flush OTEL (reverse: metrics first, then tracer)
		otelCtx, otelCancel := context.WithTimeout(context.Background(), domain.ShutdownOTELTimeout)
		defer otelCancel()
		if shutdownErr := metricsProvider.Shutdown(otelCtx); shutdownErr != nil {
			logger.Error("failed to shutdown metrics", slog.String("error", shutdownErr.Error()))
		}
		if shutdownErr := tracerProvider.Shutdown(otelCtx); shutdownErr != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", shutdownErr.Error()))
		}

		logger.Info("shutdown complete")
		return nil
	})

	return g.Wait()
}
