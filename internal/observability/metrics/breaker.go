package metrics

import "github.com/prometheus/client_golang/prometheus"

// BreakerMetrics exports circuit breaker transitions of the resilience
// executor.
type BreakerMetrics struct {
	service     string
	transitions *prometheus.CounterVec
	open        *prometheus.GaugeVec
}

func NewBreakerMetrics(service string, registerer prometheus.Registerer) *BreakerMetrics {
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker state transitions by operation.",
		},
		[]string{"service", "operation", "from", "to"},
	)
	open := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "open",
			Help:      "1 while the breaker for an operation is open.",
		},
		[]string{"service", "operation"},
	)
	registerer.MustRegister(transitions, open)
	return &BreakerMetrics{service: service, transitions: transitions, open: open}
}

// Observe has the shape of resilience.StateObserver.
func (m *BreakerMetrics) Observe(operation, from, to string) {
	m.transitions.WithLabelValues(m.service, operation, from, to).Inc()
	value := 0.0
	if to == "open" {
		value = 1
	}
	m.open.WithLabelValues(m.service, operation).Set(value)
}
