package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/occupancy/internal/adapters/http/api"
	"github.com/okian/occupancy/internal/adapters/remote"
	"github.com/okian/occupancy/internal/adapters/repository"
	app "github.com/okian/occupancy/internal/app"
	"github.com/okian/occupancy/internal/config"
	"github.com/okian/occupancy/pkg/logger"
	"github.com/okian/occupancy/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Our registry carries its own system gauges.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, handler, err := build(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.StoreDriver),
			logger.String("source", cfg.DataSource),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	loggerInstance.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(shutdownCtx, "server stopped")
}

// build opens the configured store, wires the remote collaborators when
// asked to, starts the service and returns its HTTP handler.
func build(ctx context.Context, cfg *config.Config, l logger.Logger) (*app.Service, http.Handler, error) {
	store, err := openStore(ctx, cfg, l)
	if err != nil {
		return nil, nil, err
	}

	opts := []app.Option{
		app.WithLogger(l),
		app.WithStore(store),
		app.WithMonths(cfg.DefaultMonths, cfg.MaxMonths),
		app.WithConcurrency(cfg.Concurrency),
		app.WithIdempotencySize(cfg.IdempotencySize),
	}
	if cfg.DataSource == config.SourceRemote {
		client := remote.New(cfg.ResourceServiceURL, cfg.ProjectServiceURL,
			remote.WithTimeout(cfg.RemoteTimeout()),
			remote.WithLogger(l),
		)
		opts = append(opts, app.WithDirectory(client), app.WithAssignmentReader(client))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("start service: %w", err)
	}

	server := api.NewServer(svc, svc,
		api.WithLogger(l.Named("api")),
		api.WithDegradeOnUnavailable(cfg.DegradeOnUnavailable),
	)
	return svc, server.Handler(ctx), nil
}

func openStore(ctx context.Context, cfg *config.Config, l logger.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		store, err := repository.OpenSQLite(ctx, cfg.SQLitePath, repository.WithLogger(l))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return repository.NewMemoryStore(repository.WithLogger(l)), nil
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
