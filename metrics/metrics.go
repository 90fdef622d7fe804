package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// RequestsTotal counts handled HTTP requests by route and status code.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopanalyzer",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled, labeled by route and status code.",
	}, []string{"route", "status"})

	// AnalysisDurationSeconds is end-to-end time per analysis call.
	AnalysisDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shopanalyzer",
		Subsystem: "analyzer",
		Name:      "analysis_duration_seconds",
		Help:      "End-to-end time to analyze one image, including the remote inference call.",
		// Inference calls routinely take seconds; keep buckets coarse.
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	}, []string{"result"})

	// InferenceFailuresTotal counts analysis failures by stage.
	InferenceFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopanalyzer",
		Subsystem: "analyzer",
		Name:      "inference_failures_total",
		Help:      "Total number of analysis calls converted to a structured failure, labeled by stage.",
	}, []string{"stage"})

	// SubmissionsTotal counts persisted shop submissions.
	SubmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shopanalyzer",
		Subsystem: "submissions",
		Name:      "stored_total",
		Help:      "Total number of shop submissions persisted to the database.",
	})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			AnalysisDurationSeconds,
			InferenceFailuresTotal,
			SubmissionsTotal,
		)
	})
}
