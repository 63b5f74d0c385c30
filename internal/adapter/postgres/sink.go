// Package postgres persists aggregated crime statistics and derived safety
// ratings into the shared listings database. All writes for one pipeline run
// happen inside a single transaction so a failed run leaves no partial rows.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/zipwatch/crime-stats-etl/internal/domain"
	"github.com/zipwatch/crime-stats-etl/internal/observability"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	pingTimeout     = 5 * time.Second

	// sourceName keys this pipeline's row in the data_sources bookkeeping
	// table shared with the other collectors.
	sourceName = "crime_data"

	// ratingType keys the crime rating row in zipcode_ratings; other
	// collectors write their own types against the same zips.
	ratingType = "crimeRate"

	sourceAttribution = "Open Data Portals (SF, Oakland, Berkeley, San Jose)"
	sourceURL         = "https://data.sfgov.org/"

	// updateFrequency is how long a completed run satisfies NeedsUpdate.
	updateFrequency = 30 * 24 * time.Hour
)

// Open connects to the listings database and verifies the connection.
func Open(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Sink writes pipeline output to the listings database.
type Sink struct {
	db      *sqlx.DB
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewSink(db *sqlx.DB, metrics *observability.Metrics, logger *slog.Logger) *Sink {
	return &Sink{
		db:      db,
		logger:  logger.With("component", "postgres_sink"),
		metrics: metrics,
	}
}

const upsertStatsQuery = `
	INSERT INTO crime_stats (
		zip, year,
		violent_crime_count, property_crime_count,
		violent_crime_rate, property_crime_rate, overall_crime_rate,
		source, last_updated
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
	ON CONFLICT (zip, year) DO UPDATE SET
		violent_crime_count  = EXCLUDED.violent_crime_count,
		property_crime_count = EXCLUDED.property_crime_count,
		violent_crime_rate   = EXCLUDED.violent_crime_rate,
		property_crime_rate  = EXCLUDED.property_crime_rate,
		overall_crime_rate   = EXCLUDED.overall_crime_rate,
		source               = EXCLUDED.source,
		last_updated         = CURRENT_TIMESTAMP`

const upsertRatingQuery = `
	INSERT INTO zipcode_ratings (
		zip, rating_type, rating_value, confidence, source, source_url, last_updated
	)
	VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
	ON CONFLICT (zip, rating_type) DO UPDATE SET
		rating_value = EXCLUDED.rating_value,
		confidence   = EXCLUDED.confidence,
		source       = EXCLUDED.source,
		source_url   = EXCLUDED.source_url,
		last_updated = CURRENT_TIMESTAMP`

const upsertDataSourceQuery = `
	INSERT INTO data_sources (source_name, last_updated, next_update, url, notes)
	VALUES ($1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP + $2::interval, $3, $4)
	ON CONFLICT (source_name) DO UPDATE SET
		last_updated = CURRENT_TIMESTAMP,
		next_update  = CURRENT_TIMESTAMP + $2::interval,
		url          = EXCLUDED.url,
		notes        = EXCLUDED.notes`

// UpsertStats writes the aggregated rows for one run in a single transaction.
// Rows must be ordered oldest month first: crime_stats is keyed by (zip, year),
// so within a year the latest month's counts win. A rating row is written only
// for zips with a computed overall rate. Any failure rolls the whole run back.
func (s *Sink) UpsertStats(ctx context.Context, stats []domain.MonthlyZipStats) error {
	if len(stats) == 0 {
		s.logger.Warn("no stats rows to upsert")
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var ratings int
	for _, row := range stats {
		if _, err := tx.ExecContext(ctx, upsertStatsQuery,
			row.Zip, row.Year,
			row.ViolentCount, row.PropertyCount,
			row.ViolentRate, row.PropertyRate, row.TotalRate,
			sourceAttribution,
		); err != nil {
			return fmt.Errorf("upsert crime_stats %s/%d: %w", row.Zip, row.Year, err)
		}

		if row.TotalRate == nil {
			continue
		}
		rating := domain.SafetyRating(*row.TotalRate)
		if _, err := tx.ExecContext(ctx, upsertRatingQuery,
			row.Zip, ratingType, rating, domain.RatingConfidence,
			sourceAttribution, sourceURL,
		); err != nil {
			return fmt.Errorf("upsert rating %s: %w", row.Zip, err)
		}
		ratings++
	}

	interval := fmt.Sprintf("%d days", int(updateFrequency.Hours()/24))
	notes := fmt.Sprintf("Crime statistics for %d zip/month combinations", len(stats))
	if _, err := tx.ExecContext(ctx, upsertDataSourceQuery,
		sourceName, interval, sourceURL, notes,
	); err != nil {
		return fmt.Errorf("upsert data_sources: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.metrics.RowsUpserted.Add(float64(len(stats)))
	s.logger.Info("stats upserted",
		"stat_rows", len(stats),
		"rating_rows", ratings)
	return nil
}

// PopulationByZip loads the per-zip population figures maintained by the
// census collector. Zips without a population row get no rates downstream.
func (s *Sink) PopulationByZip(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT zip, population FROM zipcodes WHERE population IS NOT NULL AND population > 0`)
	if err != nil {
		return nil, fmt.Errorf("query zipcode populations: %w", err)
	}
	defer rows.Close()

	populations := make(map[string]int)
	for rows.Next() {
		var zip string
		var population int
		if err := rows.Scan(&zip, &population); err != nil {
			return nil, fmt.Errorf("scan zipcode population: %w", err)
		}
		populations[zip] = population
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate zipcode populations: %w", err)
	}

	s.logger.Debug("populations loaded", "zips", len(populations))
	return populations, nil
}

// NeedsUpdate reports whether the last completed run is older than the update
// frequency. A missing bookkeeping row means the pipeline has never completed
// a run, which counts as stale.
func (s *Sink) NeedsUpdate(ctx context.Context) (bool, error) {
	var nextUpdate time.Time
	err := s.db.QueryRowxContext(ctx,
		`SELECT next_update FROM data_sources WHERE source_name = $1`, sourceName,
	).Scan(&nextUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query data_sources: %w", err)
	}
	return !time.Now().Before(nextUpdate), nil
}
