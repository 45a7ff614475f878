package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
	ErrorTotal      *prometheus.CounterVec

	// Model capability calls
	CapabilityCalls    *prometheus.CounterVec
	CapabilityLatency  *prometheus.HistogramVec
	CapabilityBreakers *prometheus.GaugeVec

	// Consultation pipeline
	TurnsAppended      *prometheus.CounterVec
	SummariesCreated   *prometheus.CounterVec
	LockWait           prometheus.Histogram
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "path", "status"}),
		RequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		ErrorTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of HTTP errors",
		}, []string{"method", "path", "type"}),

		CapabilityCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_calls_total",
			Help:      "Model capability calls by operation and outcome",
		}, []string{"operation", "status"}),
		CapabilityLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capability_call_duration_seconds",
			Help:      "Duration of model capability calls",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"operation"}),
		CapabilityBreakers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capability_breaker_open",
			Help:      "1 while the circuit breaker of an operation is open",
		}, []string{"operation"}),

		TurnsAppended: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_turns_total",
			Help:      "Turns appended to interview transcripts",
		}, []string{"sender", "origin"}),
		SummariesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_created_total",
			Help:      "Summaries created by parse status",
		}, []string{"parse_status"}),
		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "appointment_lock_wait_seconds",
			Help:      "Time spent waiting for the per-appointment lock",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
		}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Doctor notifications by outcome",
		}, []string{"status"}),
	}
}

// NewNop returns metrics registered on a private registry, for tests.
func NewNop() *Metrics {
	return NewMetrics("test", prometheus.NewRegistry())
}
