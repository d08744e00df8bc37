// Package metrics provides Prometheus metrics for the underwriting engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "underwriting"

// Metrics holds every collector the service records to. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Clearance checks by outcome ("clear", "conflict", "error")
	ClearanceChecks *prometheus.CounterVec

	// Matches produced by match type
	ClearanceMatches *prometheus.CounterVec

	ClearanceDuration prometheus.Histogram

	// Candidates compared per clearance check
	ClearanceCandidates prometheus.Histogram

	// Guideline evaluations by recommended decision
	Evaluations *prometheus.CounterVec

	EvaluationDuration prometheus.Histogram

	// Guideline cache lookups by result ("hit", "miss", "error")
	CacheLookups *prometheus.CounterVec

	// HTTP requests by method, route pattern and status code
	HTTPRequests *prometheus.CounterVec

	HTTPDuration *prometheus.HistogramVec
}

// New creates Metrics registered with reg. Pass prometheus.DefaultRegisterer in
// production and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ClearanceChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clearance",
			Name:      "checks_total",
			Help:      "Total clearance checks by outcome",
		}, []string{"outcome"}),

		ClearanceMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clearance",
			Name:      "matches_total",
			Help:      "Total clearance matches by match type",
		}, []string{"match_type"}),

		ClearanceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "clearance",
			Name:      "check_duration_seconds",
			Help:      "Duration of clearance checks including candidate retrieval",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		ClearanceCandidates: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "clearance",
			Name:      "candidates",
			Help:      "Number of candidate submissions compared per clearance check",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),

		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guidelines",
			Name:      "evaluations_total",
			Help:      "Total submission evaluations by recommended decision",
		}, []string{"decision"}),

		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "guidelines",
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of guideline evaluation for a submission",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guidelines",
			Name:      "cache_lookups_total",
			Help:      "Guideline cache lookups by result",
		}, []string{"result"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveClearance records a completed clearance check.
func (m *Metrics) ObserveClearance(outcome string, candidates int, d time.Duration) {
	if m == nil {
		return
	}
	m.ClearanceChecks.WithLabelValues(outcome).Inc()
	m.ClearanceCandidates.Observe(float64(candidates))
	m.ClearanceDuration.Observe(d.Seconds())
}

// IncrementMatch records one clearance match of the given type.
func (m *Metrics) IncrementMatch(matchType string) {
	if m != nil {
		m.ClearanceMatches.WithLabelValues(matchType).Inc()
	}
}

// ObserveEvaluation records a completed guideline evaluation.
func (m *Metrics) ObserveEvaluation(decision string, d time.Duration) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(decision).Inc()
	m.EvaluationDuration.Observe(d.Seconds())
}

// IncrementCacheLookup records a guideline cache lookup result.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// ObserveHTTPRequest records a served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
