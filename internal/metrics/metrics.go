package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Allocation metrics
	TokensAcquired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atc_pool_tokens_acquired_total",
			Help: "Total number of pool token acquisitions",
		},
		[]string{"selection", "result"},
	)

	UsageReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atc_pool_usage_reports_total",
			Help: "Total number of usage outcome reports",
		},
		[]string{"outcome"},
	)

	// Pool state gauges, refreshed whenever stats are computed
	PoolTokens = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atc_pool_tokens",
			Help: "Number of contributed tokens by status",
		},
		[]string{"status"},
	)

	PoolFairnessScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atc_pool_fairness_score",
			Help: "Evenness of request distribution across contributors, 0 to 1",
		},
	)

	PoolRequestsServed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atc_pool_requests_served_total",
			Help: "Sum of request counts across all contributed tokens",
		},
	)

	// Validation metrics
	Validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atc_credential_validations_total",
			Help: "Total number of live credential validations",
		},
		[]string{"verdict"},
	)

	ValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "atc_credential_validation_duration_seconds",
			Help:    "Time spent exercising a credential against the Claude CLI",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		},
	)

	// API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atc_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atc_api_request_duration_seconds",
			Help:    "API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Event stream metrics
	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atc_pool_event_subscribers",
			Help: "Number of connected pool event stream subscribers",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atc_pool_events_published_total",
			Help: "Total number of pool events published",
		},
		[]string{"type"},
	)

	// Snapshot archiver metrics
	SnapshotsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atc_pool_snapshots_written_total",
			Help: "Total number of pool stats snapshots archived",
		},
		[]string{"result"},
	)

	// Process resource gauges (fed by the resource monitor)
	ProcessCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atc_process_cpu_percent",
			Help: "Current CPU usage percentage of the service process",
		},
	)

	ProcessMemoryPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atc_process_memory_percent",
			Help: "Current system memory usage percentage",
		},
	)

	ProcessGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atc_process_goroutines",
			Help: "Current number of goroutines",
		},
	)
)

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAcquire records one acquisition attempt. Selection is "rotation" or
// "explicit"; result is "ok" or the sentinel error name.
func RecordAcquire(selection, result string) {
	TokensAcquired.WithLabelValues(selection, result).Inc()
}

// RecordUsageReport records one outcome report
func RecordUsageReport(outcome string) {
	UsageReports.WithLabelValues(outcome).Inc()
}

// RecordValidation records a live validation verdict and its duration
func RecordValidation(verdict string, seconds float64) {
	Validations.WithLabelValues(verdict).Inc()
	ValidationDuration.Observe(seconds)
}

// UpdatePoolGauges refreshes the pool state gauges from aggregated counts
func UpdatePoolGauges(active, rateLimited, invalid, totalRequests float64, fairness float64) {
	PoolTokens.WithLabelValues("active").Set(active)
	PoolTokens.WithLabelValues("rate_limited").Set(rateLimited)
	PoolTokens.WithLabelValues("invalid").Set(invalid)
	PoolRequestsServed.Set(totalRequests)
	PoolFairnessScore.Set(fairness)
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string) {
	APIRequests.WithLabelValues(method, endpoint, statusCode).Inc()
}

// RecordAPIRequestDuration records the duration of an API request
func RecordAPIRequestDuration(method, endpoint string, duration float64) {
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordEventPublished records one published pool event
func RecordEventPublished(eventType string) {
	EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordSnapshot records one snapshot write attempt
func RecordSnapshot(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	SnapshotsWritten.WithLabelValues(result).Inc()
}

// UpdateProcessResources updates the process resource gauges
func UpdateProcessResources(cpuPercent, memoryPercent float64, goroutines int) {
	ProcessCPUPercent.Set(cpuPercent)
	ProcessMemoryPercent.Set(memoryPercent)
	ProcessGoroutines.Set(float64(goroutines))
}
