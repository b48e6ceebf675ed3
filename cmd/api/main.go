package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prodsync/internal/api"
	"prodsync/internal/assets"
	"prodsync/internal/config"
	"prodsync/internal/database"
	"prodsync/internal/domain"
	"prodsync/internal/engine"
	"prodsync/internal/events"
	"prodsync/internal/logging"
	"prodsync/internal/metrics"
	"prodsync/internal/replicator"
	"prodsync/internal/report"
	"prodsync/internal/repository"
	"prodsync/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	progress := initProgressStore(cfg, &logger)

	imageGen := assets.NewSidecarGenerator()
	images := assets.NewDuplicator(db, imageGen, cfg.Storage.UploadsPath, cfg.Sync.MasterTenant, &logger)
	repl := replicator.New(db, images, cfg.Sync.MasterTenant, &logger)

	bus := events.NewEventBus()
	subscribeReportExport(bus, progress, cfg.Storage.ReportsPath, &logger)

	eng := engine.New(db, progress, repl, cfg.Sync.MasterTenant, cfg.Sync.TargetTenants, cfg.Sync.BatchSize, bus, &logger)
	hooks := worker.NewHooks(db, repl, cfg.Sync.MasterTenant, cfg.Sync.TargetTenants, &logger)
	timer := worker.NewTimer(eng, cfg.Sync.Interval(), &logger)

	httpServer := api.NewHTTPServer(&cfg.API, eng, hooks, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)
	go timer.Start(ctx)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initProgressStore wires Redis with an in-memory fallback. Without a
// Redis address progress lives in memory only and does not survive a
// restart.
func initProgressStore(cfg *config.Config, logger *zerolog.Logger) domain.ProgressStore {
	memory := repository.NewMemoryProgressStore()
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("redis address not set, sync progress is in-memory only")
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, starting on in-memory fallback")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	primary := repository.NewRedisProgressStore(client)
	return repository.NewFailoverProgressStore(primary, memory, logger)
}

// subscribeReportExport writes an xlsx report whenever a job reaches a
// terminal state.
func subscribeReportExport(bus *events.EventBus, progress domain.ProgressStore, dir string, logger *zerolog.Logger) {
	handler := func(event *events.Event) error {
		job, err := progress.Read(context.Background())
		if err != nil {
			logger.Warn().Err(err).Msg("report export: read job failed")
			return err
		}
		path, err := report.Export(job, dir)
		if err != nil {
			logger.Warn().Err(err).Msg("report export failed")
			return err
		}
		logger.Info().Str("path", path).Str("event", event.Type).Msg("sync report written")
		return nil
	}
	bus.Subscribe(events.EventJobCompleted, handler)
	bus.Subscribe(events.EventJobCancelled, handler)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("sync API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("sync API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
