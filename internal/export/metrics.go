package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all export metrics.
	MetricsNamespace = "bfgdl"

	// MetricsSubsystem is the subsystem for export metrics.
	MetricsSubsystem = "export"
)

// Metrics holds the Prometheus metrics of export runs.
type Metrics struct {
	registry *prometheus.Registry

	// Catalog metrics
	CatalogPagesTotal *prometheus.CounterVec
	WrapIDsFound      *prometheus.GaugeVec

	// Resolution metrics
	GamesExportedTotal    *prometheus.CounterVec
	SegmentsExportedTotal prometheus.Counter
	FailuresTotal         *prometheus.CounterVec

	// Run metrics
	RunDurationSeconds prometheus.Gauge
	LastRunTimestamp   prometheus.Gauge
}

// NewMetrics creates the metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CatalogPagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "catalog_pages_total",
				Help:      "Catalog pages fetched",
			},
			[]string{"language"},
		),
		WrapIDsFound: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "wrap_ids_found",
				Help:      "Distinct WrapIDs discovered per catalog language in the last run",
			},
			[]string{"language"},
		),
		GamesExportedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "games_exported_total",
				Help:      "Games written to a partition file",
			},
			[]string{"language"},
		),
		SegmentsExportedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "segments_exported_total",
				Help:      "Segments written to partition files",
			},
		),
		FailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "failures_total",
				Help:      "WrapIDs that could not be resolved",
			},
			[]string{"kind"},
		),
		RunDurationSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of the last completed run",
			},
		),
		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
	}
}

// Gatherer exposes the registry, e.g. for an HTTP handler.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the current values in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
