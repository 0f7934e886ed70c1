package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// signal-to-story pipeline.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec // labels: job, outcome={success,failure}
	RunDuration      *prometheus.HistogramVec
	BudgetExhausted  *prometheus.CounterVec
	RecordsScanned   *prometheus.CounterVec
	ClustersDetected *prometheus.CounterVec
	EventsDetected   *prometheus.CounterVec
	StoriesPublished *prometheus.CounterVec
	StoriesSkipped   *prometheus.CounterVec // labels: job, reason
	ItemErrors       *prometheus.CounterVec

	// Collaborator metrics.
	IngestRequests    *prometheus.CounterVec // labels: dataset, outcome={success,partial,error}
	IngestDuration    *prometheus.HistogramVec
	NarrativeRequests *prometheus.CounterVec // labels: outcome={story,empty,error}
	TargetCache       *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.BudgetExhausted,
		m.RecordsScanned,
		m.ClustersDetected,
		m.EventsDetected,
		m.StoriesPublished,
		m.StoriesSkipped,
		m.ItemErrors,
		m.IngestRequests,
		m.IngestDuration,
		m.NarrativeRequests,
		m.TargetCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without touching the default registry,
// avoiding "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_pipeline",
			Name:      "runs_total",
			Help:      "Completed batch runs by job and outcome.",
		}, []string{"job", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "signal_pipeline",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a complete batch run.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"job"}),
		BudgetExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_pipeline",
			Name:      "budget_exhausted_total",
			Help:      "Runs that stopped starting new work at the time budget.",
		}, []string{"job"}),
		RecordsScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_pipeline",
			Name:      "records_scanned_total",
			Help:      "Signal records examined across runs.",
		}, []string{"job"}),
		ClustersDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_pipeline",
			Name:      "clusters_detected_total",
			Help:      "Qualifying clusters detected across runs.",
		}, []string{"job"}),
		EventsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_pipeline",
			Name:      "events_detected_total",
			Help:      "Non-dormant calendar events detected across runs.",
		}, []string{"job"}),
		StoriesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_pipeline",
			Name:      "stories_published_total",
			Help:      "Publication records created.",
		}, []string{"job"}),
		StoriesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_pipeline",
			Name:      "stories_skipped_total",
			Help:      "Candidates skipped by reason.",
		}, []string{"job", "reason"}),
		ItemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_pipeline",
			Name:      "item_errors_total",
			Help:      "Per-item failures recorded in run summaries.",
		}, []string{"job"}),
		IngestRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_pipeline",
			Name:      "ingest_requests_total",
			Help:      "Ingestion fetches by dataset and outcome.",
		}, []string{"dataset", "outcome"}),
		IngestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "signal_pipeline",
			Name:      "ingest_duration_seconds",
			Help:      "Ingestion source request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"dataset"}),
		NarrativeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_pipeline",
			Name:      "narrative_requests_total",
			Help:      "Narrative generator calls by outcome.",
		}, []string{"outcome"}),
		TargetCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_pipeline",
			Name:      "target_cache_total",
			Help:      "Target resolver cache lookups by result.",
		}, []string{"result"}),
	}
}
