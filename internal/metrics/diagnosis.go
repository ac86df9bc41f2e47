package metrics

import "github.com/prometheus/client_golang/prometheus"

// Diagnosis engine Prometheus metrics.
var (
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medlens",
			Name:      "diagnosis_analyses_total",
			Help:      "Total number of analyses by outcome status",
		},
		[]string{"status"},
	)

	CandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medlens",
			Name:      "diagnosis_candidates_total",
			Help:      "Total number of persisted candidates by evidence source",
		},
		[]string{"source"},
	)

	PersistenceSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medlens",
			Name:      "diagnosis_persistence_skipped_total",
			Help:      "Candidates dropped before persistence because a required field was malformed",
		},
		[]string{"field"},
	)

	ClassifierRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medlens",
			Name:      "classifier_requests_total",
			Help:      "Total number of image classifier requests",
		},
		[]string{"provider", "status"},
	)

	ClassifierRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medlens",
			Name:      "classifier_request_duration_seconds",
			Help:      "Image classifier request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	ClassifierCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medlens",
			Name:      "classifier_cache_total",
			Help:      "Classifier cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	KnowledgeReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medlens",
			Name:      "knowledge_reloads_total",
			Help:      "Knowledge base load attempts by status",
		},
		[]string{"status"},
	)

	KnowledgeRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "medlens",
			Name:      "knowledge_records",
			Help:      "Disease profiles in the active knowledge-base snapshot",
		},
	)
)

var diagMetricsRegistered bool

// RegisterDiagnosisMetrics registers Prometheus diagnosis metrics. Must be called once from main.
func RegisterDiagnosisMetrics() {
	if diagMetricsRegistered {
		return
	}
	prometheus.MustRegister(AnalysesTotal)
	prometheus.MustRegister(CandidatesTotal)
	prometheus.MustRegister(PersistenceSkippedTotal)
	prometheus.MustRegister(ClassifierRequestsTotal)
	prometheus.MustRegister(ClassifierRequestDuration)
	prometheus.MustRegister(ClassifierCacheTotal)
	prometheus.MustRegister(KnowledgeReloadsTotal)
	prometheus.MustRegister(KnowledgeRecords)
	diagMetricsRegistered = true
}
