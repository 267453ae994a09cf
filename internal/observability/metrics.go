package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	importRowsTotal      *prometheus.CounterVec
	importOutcomesTotal  *prometheus.CounterVec
	importDurationSecond prometheus.Histogram
	uploadRejectedTotal  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eduguide",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"scope", "method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eduguide",
			Subsystem: "http",
			Name:      "latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 20.0},
		}, []string{"scope", "method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eduguide",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Total number of error responses returned by API endpoints.",
		}, []string{"scope", "method", "route", "status"})

		importRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eduguide",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "CSV roster rows processed, by outcome.",
		}, []string{"outcome"})

		importOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eduguide",
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "CSV roster imports by terminal status.",
		}, []string{"status"})

		importDurationSecond = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eduguide",
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Wall time of a CSV roster import.",
			Buckets:   prometheus.DefBuckets,
		})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eduguide",
			Subsystem: "import",
			Name:      "uploads_rejected_total",
			Help:      "Uploads refused before streaming started.",
		}, []string{"reason"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			importRowsTotal, importOutcomesTotal, importDurationSecond, uploadRejectedTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ImportRows counts processed rows labelled created or rejected.
func ImportRows() *prometheus.CounterVec {
	RegisterMetrics()
	return importRowsTotal
}

// ImportOutcomes counts finished imports by terminal status.
func ImportOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return importOutcomesTotal
}

// ImportDuration observes how long imports take.
func ImportDuration() prometheus.Histogram {
	RegisterMetrics()
	return importDurationSecond
}

// UploadRejected counts uploads refused before an audit record exists.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}
