package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for registry traffic and table normalization.
type Metrics struct {
	// Upstream HTTP requests by registry operation and outcome (HTTP status code)
	RequestsTotal *prometheus.CounterVec

	// Upstream request latency by registry operation
	RequestLatency *prometheus.HistogramVec

	// Service operation outcomes by operation and failure kind ("ok" on success)
	OperationOutcome *prometheus.CounterVec

	// Rows produced per normalized table
	NormalizedRows prometheus.Histogram
}

// New creates the registry metrics and registers them on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resights_registry_requests_total",
			Help: "Total upstream registry requests by operation and outcome",
		}, []string{"operation", "outcome"}), // outcome: HTTP status code, or "error" on transport failure

		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resights_registry_request_duration_seconds",
			Help:    "Duration of upstream registry requests by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),

		OperationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resights_operation_outcomes_total",
			Help: "Total service operation outcomes by operation and failure kind",
		}, []string{"operation", "outcome"}),

		NormalizedRows: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "resights_normalized_rows",
			Help:    "Number of rows produced per normalized property table",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}
}

// ObserveRequest records one upstream request. status 0 means the request never
// produced a response.
func (m *Metrics) ObserveRequest(operation string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(operation, label).Inc()
	m.RequestLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrementOutcome records a service operation outcome.
func (m *Metrics) IncrementOutcome(operation, outcome string) {
	if m != nil {
		m.OperationOutcome.WithLabelValues(operation, outcome).Inc()
	}
}

// ObserveRows records the size of a normalized table.
func (m *Metrics) ObserveRows(n int) {
	if m != nil {
		m.NormalizedRows.Observe(float64(n))
	}
}
