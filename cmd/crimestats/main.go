package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/zipwatch/crime-stats-etl/internal/adapter/http"
	"github.com/zipwatch/crime-stats-etl/internal/adapter/postgres"
	"github.com/zipwatch/crime-stats-etl/internal/adapter/socrata"
	"github.com/zipwatch/crime-stats-etl/internal/cache"
	"github.com/zipwatch/crime-stats-etl/internal/config"
	"github.com/zipwatch/crime-stats-etl/internal/domain"
	"github.com/zipwatch/crime-stats-etl/internal/geo"
	"github.com/zipwatch/crime-stats-etl/internal/observability"
	"github.com/zipwatch/crime-stats-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	boundaries, err := geo.LoadBoundaries(cfg.BoundaryFile)
	if err != nil {
		logger.Error("failed to load zip boundaries", "path", cfg.BoundaryFile, "error", err)
		os.Exit(1)
	}
	logger.Info("zip boundaries loaded", "count", len(boundaries))

	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		logger.Error("failed to open cache", "path", cfg.CachePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	sink := postgres.NewSink(db, metrics, logger)
	fetcher := socrata.NewClient(cfg.FetchTimeout, cfg.RequestsPerMinute, cfg.FetchRetries, metrics, logger)
	normalizer := domain.NewNormalizer(domain.NewClassifier(domain.DefaultKeywordRules()), logger)
	resolver := geo.NewResolver(boundaries, logger)

	p := pipeline.New(fetcher, normalizer, resolver, store, sink, cfg.Workers, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runLoop(ctx, cfg, p, sink, logger)

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// runLoop runs the pipeline immediately when the sink is stale, then on every
// RunInterval tick. A zero interval means one collection and return.
func runLoop(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, sink *postgres.Sink, logger *slog.Logger) {
	for {
		runIfStale(ctx, cfg, p, sink, logger)

		if cfg.RunInterval <= 0 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.RunInterval):
		}
	}
}

func runIfStale(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, sink *postgres.Sink, logger *slog.Logger) {
	stale, err := sink.NeedsUpdate(ctx)
	if err != nil {
		logger.Error("staleness check failed", "error", err)
		return
	}
	if !stale {
		logger.Info("data is current, skipping run")
		return
	}

	months := collectionWindow(time.Now(), cfg.MonthsBack)
	if err := p.Run(ctx, months); err != nil {
		logger.Error("pipeline run failed", "error", err)
	}
}

// collectionWindow returns the monthsBack months ending at now's month,
// oldest first.
func collectionWindow(now time.Time, monthsBack int) []domain.Month {
	last := domain.MonthOf(now)
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	first := domain.MonthOf(firstOfMonth.AddDate(0, -(monthsBack - 1), 0))
	return domain.MonthsBetween(first, last)
}
