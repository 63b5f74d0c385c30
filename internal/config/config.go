package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL  string
	CachePath    string
	BoundaryFile string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Fetch behavior.
	Workers           int
	RequestsPerMinute int // per-jurisdiction-domain quota
	FetchTimeout      time.Duration
	FetchRetries      int

	// Collection window: the run covers the MonthsBack months ending at the
	// current month.
	MonthsBack int

	// RunInterval re-runs the pipeline on a timer when positive; zero means
	// run once and exit after the HTTP server is shut down.
	RunInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. DATABASE_URL wins when present; otherwise the URL is composed
// from the POSTGRES_* parts the deployment environment provides.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDurationEnv("FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	runInterval, err := parseDurationEnv("RUN_INTERVAL", 0)
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveIntEnv("WORKERS", 4)
	if err != nil {
		return nil, err
	}
	rpm, err := parsePositiveIntEnv("REQUESTS_PER_MINUTE", 30)
	if err != nil {
		return nil, err
	}
	retries, err := parsePositiveIntEnv("FETCH_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	monthsBack, err := parsePositiveIntEnv("MONTHS_BACK", 12)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:       databaseURL(),
		CachePath:         envOrDefault("CACHE_PATH", "crime_cache/crime_cache.db"),
		BoundaryFile:      os.Getenv("ZIP_BOUNDARY_FILE"),
		HTTPAddr:          envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
		Workers:           workers,
		RequestsPerMinute: rpm,
		FetchTimeout:      fetchTimeout,
		FetchRetries:      retries,
		MonthsBack:        monthsBack,
		RunInterval:       runInterval,
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL (or the POSTGRES_* parts) is required")
	}
	if cfg.BoundaryFile == "" {
		return nil, errors.New("ZIP_BOUNDARY_FILE is required")
	}

	return cfg, nil
}

// databaseURL returns DATABASE_URL, or composes one from the POSTGRES_*
// variables the compose environment sets.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	user := os.Getenv("POSTGRES_USER")
	password := os.Getenv("POSTGRES_PASSWORD")
	name := os.Getenv("POSTGRES_DB_NAME")
	if user == "" || name == "" {
		return ""
	}
	host := envOrDefault("POSTGIS_HOST", "postgis_db")
	port := envOrDefault("POSTGRES_PORT", "5433")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, password, host, port, name)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parsePositiveIntEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}
