// Package pipeline orchestrates one end-to-end collection run: fetch (or
// reuse cached) incident batches per jurisdiction and month, resolve ZIP
// codes, aggregate monthly per-ZIP counts, attach population rates, and
// upsert the result.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zipwatch/crime-stats-etl/internal/aggregate"
	"github.com/zipwatch/crime-stats-etl/internal/domain"
	"github.com/zipwatch/crime-stats-etl/internal/observability"
)

// ErrNoData is returned when no jurisdiction produced any incidents for the
// requested window, from cache or fetch. Per-unit failures are skipped; total
// absence of data is fatal.
var ErrNoData = errors.New("no incident data available for any jurisdiction")

// Fetcher retrieves one month of raw records from a jurisdiction's portal.
type Fetcher interface {
	FetchMonth(ctx context.Context, spec domain.JurisdictionSpec, m domain.Month) ([]domain.RawRecord, error)
}

// BatchCache is the time-windowed store for standardized batches and
// aggregated stats.
type BatchCache interface {
	GetIncidents(jurisdiction string, m domain.Month) ([]domain.Incident, bool, error)
	PutIncidents(jurisdiction string, m domain.Month, incidents []domain.Incident) error
	PutZipStats(stats domain.MonthlyZipStats) error
}

// Resolver assigns ZIP codes to incidents with coordinates, returning the
// annotated incidents and the number left unresolved.
type Resolver interface {
	Resolve(incidents []domain.Incident) ([]domain.Incident, int)
}

// Sink persists the aggregated rows and supplies the population table used
// for rate normalization.
type Sink interface {
	UpsertStats(ctx context.Context, stats []domain.MonthlyZipStats) error
	PopulationByZip(ctx context.Context) (map[string]int, error)
}

// Pipeline wires the stages of a collection run.
type Pipeline struct {
	fetcher    Fetcher
	normalizer *domain.Normalizer
	resolver   Resolver
	cache      BatchCache
	sink       Sink
	logger     *slog.Logger
	metrics    *observability.Metrics
	workers    int
	ready      atomic.Bool
}

func New(
	fetcher Fetcher,
	normalizer *domain.Normalizer,
	resolver Resolver,
	cache BatchCache,
	sink Sink,
	workers int,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		normalizer: normalizer,
		resolver:   resolver,
		cache:      cache,
		sink:       sink,
		logger:     logger,
		metrics:    metrics,
		workers:    workers,
	}
}

// CheckReadiness returns nil once at least one run has completed, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// unit is one (jurisdiction, month) fetch task.
type unit struct {
	spec  domain.JurisdictionSpec
	month domain.Month
}

// Run executes one collection covering the given months, oldest first. It
// returns ErrNoData when nothing could be collected, or the sink error when
// persistence fails; per-unit fetch failures only log and skip.
func (p *Pipeline) Run(ctx context.Context, months []domain.Month) error {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	jurisdictions := domain.Jurisdictions()
	p.logger.Info("run started",
		"jurisdictions", len(jurisdictions),
		"months", len(months),
		"workers", p.workers)

	units := make([]unit, 0, len(jurisdictions)*len(months))
	for _, spec := range jurisdictions {
		for _, m := range months {
			units = append(units, unit{spec: spec, month: m})
		}
	}

	// batches is indexed by unit so the merged order is deterministic
	// regardless of worker scheduling.
	batches := make([][]domain.Incident, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, u := range units {
		g.Go(func() error {
			incidents, err := p.collectUnit(gctx, u)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("unit skipped",
					"jurisdiction", u.spec.ID,
					"month", u.month.String(),
					"error", err)
				p.metrics.UnitsProcessed.WithLabelValues(u.spec.ID, "skipped").Inc()
				return nil
			}
			batches[i] = incidents
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var incidents []domain.Incident
	for _, batch := range batches {
		incidents = append(incidents, batch...)
	}
	if len(incidents) == 0 {
		return ErrNoData
	}

	resolved, misses := p.resolver.Resolve(incidents)
	p.metrics.GeocodeResolved.Add(float64(len(resolved) - misses))
	p.metrics.GeocodeMisses.Add(float64(misses))

	stats := p.aggregateMonths(resolved, months)
	if len(stats) == 0 {
		return ErrNoData
	}

	populations, err := p.sink.PopulationByZip(ctx)
	if err != nil {
		return err
	}
	stats = aggregate.ApplyRates(stats, populations)

	if err := p.sink.UpsertStats(ctx, stats); err != nil {
		return err
	}

	p.ready.Store(true)
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("run completed",
		"incidents", len(resolved),
		"stat_rows", len(stats),
		"duration", time.Since(start))
	return nil
}

// collectUnit returns the standardized batch for one (jurisdiction, month),
// preferring the cache. Fetched batches are cached only when non-empty: an
// empty response is indistinguishable from a portal that has not published
// the month yet, so it is re-tried on the next run.
func (p *Pipeline) collectUnit(ctx context.Context, u unit) ([]domain.Incident, error) {
	cached, ok, err := p.cache.GetIncidents(u.spec.ID, u.month)
	if err != nil {
		p.logger.Warn("cache read failed",
			"jurisdiction", u.spec.ID, "month", u.month.String(), "error", err)
	}
	if ok {
		p.metrics.CacheLookups.WithLabelValues("incidents", "hit").Inc()
		p.metrics.UnitsProcessed.WithLabelValues(u.spec.ID, "cached").Inc()
		return cached, nil
	}
	p.metrics.CacheLookups.WithLabelValues("incidents", "miss").Inc()

	records, err := p.fetcher.FetchMonth(ctx, u.spec, u.month)
	if err != nil {
		return nil, err
	}
	p.metrics.RecordsFetched.Add(float64(len(records)))

	incidents, dropped := p.normalizer.Normalize(u.spec, records)
	p.metrics.RecordsDropped.Add(float64(dropped))

	if len(incidents) > 0 {
		if err := p.cache.PutIncidents(u.spec.ID, u.month, incidents); err != nil {
			p.logger.Warn("cache write failed",
				"jurisdiction", u.spec.ID, "month", u.month.String(), "error", err)
		}
	}

	p.metrics.UnitsProcessed.WithLabelValues(u.spec.ID, "fetched").Inc()
	p.logger.Debug("unit fetched",
		"jurisdiction", u.spec.ID,
		"month", u.month.String(),
		"records", len(records),
		"incidents", len(incidents),
		"dropped", dropped)
	return incidents, nil
}

// aggregateMonths computes MonthlyZipStats for each month in order and writes
// each row through to the stats cache. Cache write failures are logged and
// ignored: the cache only serves reads, correctness comes from the sink.
func (p *Pipeline) aggregateMonths(incidents []domain.Incident, months []domain.Month) []domain.MonthlyZipStats {
	var all []domain.MonthlyZipStats
	for _, m := range months {
		stats := aggregate.MonthlyStats(incidents, m)
		for _, row := range stats {
			if err := p.cache.PutZipStats(row); err != nil {
				p.logger.Warn("stats cache write failed",
					"zip", row.Zip, "month", m.String(), "error", err)
			}
		}
		all = append(all, stats...)
	}
	return all
}
