// Package cache is the time-windowed persistent cache for the pipeline. It
// stores standardized incident batches per (jurisdiction, month) and
// aggregated stats per (zip, month) in one SQLite file.
//
// Freshness is checked at read time: an entry older than its namespace TTL
// behaves as a miss but stays on disk until the next successful write
// supersedes it. The cache is an accelerator, not a correctness oracle — a
// cold cache must reproduce the same downstream rows as a warm one.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/zipwatch/crime-stats-etl/internal/domain"
)

const (
	// IncidentTTL bounds how long a raw standardized batch is served
	// without re-fetching from the portal.
	IncidentTTL = 7 * 24 * time.Hour
	// StatsTTL bounds per-zip monthly aggregates, which change rarely.
	StatsTTL = 30 * 24 * time.Hour
)

// clock is a package-level time source so tests can freeze time via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the cache's time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

const schema = `
CREATE TABLE IF NOT EXISTS incident_batches (
	jurisdiction TEXT NOT NULL,
	year         INTEGER NOT NULL,
	month        INTEGER NOT NULL,
	data         BLOB NOT NULL,
	written_at   INTEGER NOT NULL,
	PRIMARY KEY (jurisdiction, year, month)
);

CREATE TABLE IF NOT EXISTS zip_stats (
	zip            TEXT NOT NULL,
	year           INTEGER NOT NULL,
	month          INTEGER NOT NULL,
	violent_count  INTEGER NOT NULL,
	property_count INTEGER NOT NULL,
	other_count    INTEGER NOT NULL,
	total_count    INTEGER NOT NULL,
	written_at     INTEGER NOT NULL,
	PRIMARY KEY (zip, year, month)
);
`

// Store is the SQLite-backed time-windowed cache. Writes are last-write-wins
// upserts keyed per entity and month, so concurrent writers to distinct keys
// never conflict.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the cache database at path, applying WAL and
// busy-timeout pragmas and creating the schema. Parent directories are
// created as needed.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("cache: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetIncidents returns the cached standardized batch for one (jurisdiction,
// month), or ok=false when absent or older than IncidentTTL.
func (s *Store) GetIncidents(jurisdiction string, m domain.Month) ([]domain.Incident, bool, error) {
	cutoff := clock.Now().Add(-IncidentTTL).Unix()

	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM incident_batches
		 WHERE jurisdiction = ? AND year = ? AND month = ? AND written_at > ?`,
		jurisdiction, m.Year, int(m.Month), cutoff,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get incidents %s %s: %w", jurisdiction, m, err)
	}

	var incidents []domain.Incident
	if err := json.Unmarshal(data, &incidents); err != nil {
		return nil, false, fmt.Errorf("cache: decode incidents %s %s: %w", jurisdiction, m, err)
	}
	return incidents, true, nil
}

// PutIncidents stores a standardized batch, overwriting any previous entry
// for the key. Callers must only cache fully successful fetches; a partial
// batch in the cache would silently undercount until the TTL expires.
func (s *Store) PutIncidents(jurisdiction string, m domain.Month, incidents []domain.Incident) error {
	data, err := json.Marshal(incidents)
	if err != nil {
		return fmt.Errorf("cache: encode incidents %s %s: %w", jurisdiction, m, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO incident_batches (jurisdiction, year, month, data, written_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (jurisdiction, year, month) DO UPDATE SET
			data = excluded.data,
			written_at = excluded.written_at`,
		jurisdiction, m.Year, int(m.Month), data, clock.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache: put incidents %s %s: %w", jurisdiction, m, err)
	}
	return nil
}

// GetZipStats returns the cached aggregate for one (zip, month), or ok=false
// when absent or older than StatsTTL. Rates are not cached; they derive from
// the population table at upsert time.
func (s *Store) GetZipStats(zip string, m domain.Month) (domain.MonthlyZipStats, bool, error) {
	cutoff := clock.Now().Add(-StatsTTL).Unix()

	stats := domain.MonthlyZipStats{Zip: zip, Year: m.Year, Month: int(m.Month)}
	err := s.db.QueryRow(
		`SELECT violent_count, property_count, other_count, total_count FROM zip_stats
		 WHERE zip = ? AND year = ? AND month = ? AND written_at > ?`,
		zip, m.Year, int(m.Month), cutoff,
	).Scan(&stats.ViolentCount, &stats.PropertyCount, &stats.OtherCount, &stats.TotalCount)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MonthlyZipStats{}, false, nil
	}
	if err != nil {
		return domain.MonthlyZipStats{}, false, fmt.Errorf("cache: get stats %s %s: %w", zip, m, err)
	}
	return stats, true, nil
}

// PutZipStats stores one aggregate row, overwriting any previous entry.
func (s *Store) PutZipStats(stats domain.MonthlyZipStats) error {
	_, err := s.db.Exec(
		`INSERT INTO zip_stats (zip, year, month, violent_count, property_count, other_count, total_count, written_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (zip, year, month) DO UPDATE SET
			violent_count = excluded.violent_count,
			property_count = excluded.property_count,
			other_count = excluded.other_count,
			total_count = excluded.total_count,
			written_at = excluded.written_at`,
		stats.Zip, stats.Year, stats.Month,
		stats.ViolentCount, stats.PropertyCount, stats.OtherCount, stats.TotalCount,
		clock.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache: put stats %s %04d-%02d: %w", stats.Zip, stats.Year, stats.Month, err)
	}
	return nil
}
