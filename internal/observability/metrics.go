package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "verifier"

// Metrics holds the Prometheus counters, histograms, and gauges for the verification service.
type Metrics struct {
	RequestsConsumed prometheus.Counter
	ResultsProduced  prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Metric evaluation metrics.
	Evaluations        *prometheus.CounterVec   // labels: metric, status={ok,not_implemented,configuration,data_unavailable,internal}
	EvaluationDuration *prometheus.HistogramVec // labels: metric
	InvalidGroups      *prometheus.CounterVec   // labels: metric

	// Statistic cache and data service metrics.
	StatisticCache      *prometheus.CounterVec   // labels: result={hit,miss,shared}
	DataServiceRequests *prometheus.CounterVec   // labels: dataset={forecast,truth}, outcome={success,error,unknown}
	DataServiceDuration *prometheus.HistogramVec // labels: dataset
	DataServiceEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RequestsConsumed,
		m.ResultsProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.Evaluations,
		m.EvaluationDuration,
		m.InvalidGroups,
		m.StatisticCache,
		m.DataServiceRequests,
		m.DataServiceDuration,
		m.DataServiceEnabled,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_consumed_total",
			Help:      "Total metric requests read from the source topic.",
		}),
		ResultsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_produced_total",
			Help:      "Total metric results written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total requests that could not be evaluated at all.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of requests per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-evaluate-load cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Per-forecast metric evaluations by metric and status.",
		}, []string{"metric", "status"}),
		EvaluationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of a single per-forecast metric evaluation.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"metric"}),
		InvalidGroups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_groups_total",
			Help:      "Groups dropped for insufficient data coverage.",
		}, []string{"metric"}),
		StatisticCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statistic_cache_total",
			Help:      "Statistic cache lookups by result.",
		}, []string{"result"}),
		DataServiceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_service_requests_total",
			Help:      "Data service requests by dataset kind and outcome.",
		}, []string{"dataset", "outcome"}),
		DataServiceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "data_service_duration_seconds",
			Help:      "Data service request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"dataset"}),
		DataServiceEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "data_service_enabled",
			Help:      "1 when datasets are fetched from the remote data service, 0 when read from DATA_DIR.",
		}),
	}
}
