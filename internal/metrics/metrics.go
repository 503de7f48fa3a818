package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Uploads counts dataset uploads by kind and outcome (loaded, warning, mismatch, unreadable)
	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dataset_uploads_total", Help: "Dataset uploads by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	// UploadRows observes parsed row counts of accepted uploads
	UploadRows = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "dataset_upload_rows", Help: "Rows per accepted upload.", Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 20000}},
		[]string{"kind"},
	)

	// Optimizations counts optimizer calls by outcome (ok, provider_error, network_error, stale)
	Optimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimize_requests_total", Help: "Optimizer calls by outcome."},
		[]string{"outcome"},
	)
	// OptimizeLatency tracks optimizer round trips in milliseconds
	OptimizeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "optimize_latency_ms", Help: "Optimizer round trip in ms.", Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}},
		[]string{"outcome"},
	)

	// Geocodes counts geocoder calls by outcome (ok, partial, network_error)
	Geocodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geocode_requests_total", Help: "Geocoder calls by outcome."},
		[]string{"outcome"},
	)

	// ZonesCommitted counts finished polygons by kind
	ZonesCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zones_committed_total", Help: "Committed zones by kind."},
		[]string{"kind"},
	)
	// StaleCompletions counts async results discarded because a newer request was issued
	StaleCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stale_completions_total", Help: "Discarded out-of-date completions by operation."},
		[]string{"op"},
	)
	// Sessions is the number of live sessions
	Sessions = prometheus.NewGauge(prometheus.GaugeOpts{Name: "sessions_active", Help: "Live planning sessions."})
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Uploads)
		Registry.MustRegister(UploadRows)
		Registry.MustRegister(Optimizations)
		Registry.MustRegister(OptimizeLatency)
		Registry.MustRegister(Geocodes)
		Registry.MustRegister(ZonesCommitted)
		Registry.MustRegister(StaleCompletions)
		Registry.MustRegister(Sessions)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
