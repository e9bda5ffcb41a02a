package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dhw_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the DHW pipelines.
type Metrics struct {
	YearsProcessed    prometheus.Counter
	ProductsComputed  *prometheus.CounterVec // labels: product
	MaskedPixels      prometheus.Gauge
	EnsembleMembers   prometheus.Gauge
	RegionSummaries   prometheus.Counter
	SummariesStored   *prometheus.CounterVec // labels: sink={sqlite,kafka}
	RunFailures       prometheus.Counter
	PipelineRunning   prometheus.Gauge
	RunDuration       *prometheus.HistogramVec // labels: pipeline
	YearDuration      prometheus.Histogram
	MemberFilesOpened *prometheus.CounterVec // labels: result={hit,miss}

	registry *prometheus.Registry
}

func newMetrics() *Metrics {
	return &Metrics{
		YearsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "years_processed_total",
			Help:      "Total year slices reduced to yearly products.",
		}),
		ProductsComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_computed_total",
			Help:      "Yearly per-pixel fields computed, by product variable.",
		}, []string{"product"}),
		MaskedPixels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "masked_pixels",
			Help:      "Land or missing pixels in the most recent source grid.",
		}),
		EnsembleMembers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ensemble_members",
			Help:      "Model files in the current ensemble.",
		}),
		RegionSummaries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_summaries_total",
			Help:      "Regions summarized.",
		}),
		SummariesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_stored_total",
			Help:      "Region summary rows written, by sink.",
		}, []string{"sink"}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Pipeline runs that ended in an error.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline is running, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a complete pipeline run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"pipeline"}),
		YearDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "year_duration_seconds",
			Help:      "Time to reduce one year slice to all configured products.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		MemberFilesOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_files_total",
			Help:      "Ensemble member file lookups, by cache result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.YearsProcessed,
		m.ProductsComputed,
		m.MaskedPixels,
		m.EnsembleMembers,
		m.RegionSummaries,
		m.SummariesStored,
		m.RunFailures,
		m.PipelineRunning,
		m.RunDuration,
		m.YearDuration,
		m.MemberFilesOpened,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.collectors()...)
	return m
}

// Gatherer returns the registry holding m.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m.registry != nil {
		return m.registry
	}
	return prometheus.DefaultGatherer
}

// WriteTextfile writes the current metric values in the Prometheus text
// format, for collection by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Gatherer())
}
