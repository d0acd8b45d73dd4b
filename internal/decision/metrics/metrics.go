package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for decision resolution.
type Metrics struct {
	// Resolution outcomes: approved, rejected, duplicate
	DecisionOutcome *prometheus.CounterVec

	// Copies that could not be invalidated after a win
	InvalidationFailures prometheus.Counter

	// Approved tickets whose publish call failed
	PublishFailures prometheus.Counter

	ResolveLatency prometheus.Histogram
}

// New creates decision metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DecisionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_decision_outcomes_total",
			Help: "Total decision outcomes by result",
		}, []string{"outcome"}),

		InvalidationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_decision_invalidation_failures_total",
			Help: "Delivered copies whose controls could not be removed after a decision",
		}),

		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_decision_publish_failures_total",
			Help: "Approved tickets whose content could not be published",
		}),

		ResolveLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_decision_resolve_duration_seconds",
			Help:    "Duration of a decision including publish and invalidation",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementOutcome records a resolution outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AddInvalidationFailures(n int) {
	if m != nil && n > 0 {
		m.InvalidationFailures.Add(float64(n))
	}
}

func (m *Metrics) IncrementPublishFailure() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

// ObserveResolveLatency records the total resolve duration.
func (m *Metrics) ObserveResolveLatency(d time.Duration) {
	if m != nil {
		m.ResolveLatency.Observe(d.Seconds())
	}
}
