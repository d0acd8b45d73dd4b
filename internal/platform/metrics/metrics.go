package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a registry preloaded with Go runtime and process
// collectors. Components register their own metrics on it.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics holds process-wide counters for the inbound event loop.
type Metrics struct {
	EventsHandled   *prometheus.CounterVec
	HandlerFailures *prometheus.CounterVec
}

// New creates and registers the event loop metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_handled_total",
			Help: "Inbound events handled by kind",
		}, []string{"kind"}), // kind: "content", "callback", "text", "command"

		HandlerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_event_handler_failures_total",
			Help: "Inbound events whose handler returned an error, by kind",
		}, []string{"kind"}),
	}
}

// IncrementHandled records one handled inbound event.
func (m *Metrics) IncrementHandled(kind string) {
	if m != nil {
		m.EventsHandled.WithLabelValues(kind).Inc()
	}
}

// IncrementFailure records one failed inbound event.
func (m *Metrics) IncrementFailure(kind string) {
	if m != nil {
		m.HandlerFailures.WithLabelValues(kind).Inc()
	}
}
