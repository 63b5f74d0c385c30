package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// crime-stats pipeline.
type Metrics struct {
	UnitsProcessed  *prometheus.CounterVec // labels: jurisdiction, outcome={fetched,cached,skipped}
	RecordsFetched  prometheus.Counter
	RecordsDropped  prometheus.Counter     // unparseable dates
	CacheLookups    *prometheus.CounterVec // labels: namespace={incidents,stats}, result={hit,miss}
	GeocodeResolved prometheus.Counter
	GeocodeMisses   prometheus.Counter
	RowsUpserted    prometheus.Counter
	PipelineRunning prometheus.Gauge

	FetchDuration *prometheus.HistogramVec // labels: jurisdiction
	RunDuration   prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.UnitsProcessed,
		m.RecordsFetched,
		m.RecordsDropped,
		m.CacheLookups,
		m.GeocodeResolved,
		m.GeocodeMisses,
		m.RowsUpserted,
		m.PipelineRunning,
		m.FetchDuration,
		m.RunDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UnitsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crime_etl",
			Name:      "units_processed_total",
			Help:      "Per-(jurisdiction, month) fetch units by outcome.",
		}, []string{"jurisdiction", "outcome"}),
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crime_etl",
			Name:      "records_fetched_total",
			Help:      "Raw incident rows returned by source portals.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crime_etl",
			Name:      "records_dropped_total",
			Help:      "Records excluded during normalization for unparseable dates.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crime_etl",
			Name:      "cache_lookups_total",
			Help:      "Time-windowed cache lookups by namespace and result.",
		}, []string{"namespace", "result"}),
		GeocodeResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crime_etl",
			Name:      "geocode_resolved_total",
			Help:      "Incidents assigned a ZIP code by the boundary join.",
		}),
		GeocodeMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crime_etl",
			Name:      "geocode_misses_total",
			Help:      "Incidents with no containing ZIP polygon or missing coordinates.",
		}),
		RowsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crime_etl",
			Name:      "rows_upserted_total",
			Help:      "Monthly stats rows written to the sink.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crime_etl",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crime_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Portal fetch duration per (jurisdiction, month) unit.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"jurisdiction"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crime_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete pipeline run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}
