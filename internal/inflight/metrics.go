package inflight

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the counters exposed by a Handle. Registered against a
// private registry by default so importing this package never risks a
// double-registration panic against a caller's global registry.
type metrics struct {
	txOpened     prometheus.Counter
	txCompleted  *prometheus.CounterVec
	opsClassified *prometheus.CounterVec
	eventsDropped prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		txOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inflight_transactions_opened_total",
			Help: "Transactions opened via Open.",
		}),
		txCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inflight_transactions_completed_total",
			Help: "Transactions that reached a terminal state.",
		}, []string{"outcome"}),
		opsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inflight_operations_classified_total",
			Help: "Staged operations by resulting status.",
		}, []string{"status"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inflight_events_dropped_total",
			Help: "Lifecycle events dropped because a queue was full.",
		}),
	}
	reg.MustRegister(m.txOpened, m.txCompleted, m.opsClassified, m.eventsDropped)
	return m
}

func (m *metrics) recordOpen() {
	if m == nil {
		return
	}
	m.txOpened.Inc()
}

func (m *metrics) recordCompleted(outcome string) {
	if m == nil {
		return
	}
	m.txCompleted.WithLabelValues(outcome).Inc()
}

func (m *metrics) recordClassified(status Status) {
	if m == nil {
		return
	}
	m.opsClassified.WithLabelValues(status.String()).Inc()
}

func (m *metrics) recordEventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
