package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for submission routing.
type Metrics struct {
	// Submissions by disclosure choice: anonymous, named, cancelled
	Submissions *prometheus.CounterVec

	// Per-moderator delivery results: delivered, failed
	Deliveries *prometheus.CounterVec

	// Tickets that reached no moderator at all
	UndeliveredTickets prometheus.Counter

	// Inbound content refused by the per-submitter throttle
	Throttled prometheus.Counter

	// Presses on a prompt whose content already became a ticket
	DuplicatePresses prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_submissions_total",
			Help: "Submissions by disclosure choice",
		}, []string{"choice"}),

		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Fan-out deliveries to moderators by result",
		}, []string{"result"}),

		UndeliveredTickets: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_undelivered_tickets_total",
			Help: "Tickets created with zero successful deliveries",
		}),

		Throttled: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_submissions_throttled_total",
			Help: "Inbound content refused by the per-submitter throttle",
		}),

		DuplicatePresses: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_submissions_duplicate_total",
			Help: "Disclosure presses ignored because the content was already submitted",
		}),
	}
}

func (m *Metrics) IncrementSubmission(choice string) {
	if m != nil {
		m.Submissions.WithLabelValues(choice).Inc()
	}
}

// ObserveFanout records the results of one fan-out.
func (m *Metrics) ObserveFanout(delivered, failed int) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues("delivered").Add(float64(delivered))
	m.Deliveries.WithLabelValues("failed").Add(float64(failed))
	if delivered == 0 {
		m.UndeliveredTickets.Inc()
	}
}

func (m *Metrics) IncrementThrottled() {
	if m != nil {
		m.Throttled.Inc()
	}
}

func (m *Metrics) IncrementDuplicate() {
	if m != nil {
		m.DuplicatePresses.Inc()
	}
}
