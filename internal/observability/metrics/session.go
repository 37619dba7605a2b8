package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/docscan/internal/core/domain"
)

// SessionMetrics counts live-session activity. It satisfies
// usecase.SessionRecorder.
type SessionMetrics struct {
	service string

	observationsTotal *prometheus.CounterVec
	advancesTotal     *prometheus.CounterVec
	photoRequests     *prometheus.CounterVec
	activeSessions    prometheus.Gauge
}

func NewSessionMetrics(service string, registerer prometheus.Registerer) *SessionMetrics {
	observationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "observations_total",
			Help:      "Live observations by kind and outcome.",
		},
		[]string{"service", "kind", "outcome"},
	)
	advancesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "capture_advances_total",
			Help:      "Captures started by live sessions, by reason.",
		},
		[]string{"service", "reason"},
	)
	photoRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "photo_requests_total",
			Help:      "Photo requests issued to capturing clients, by reason.",
		},
		[]string{"service", "reason"},
	)
	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of live sessions currently scanning.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registerer.MustRegister(observationsTotal, advancesTotal, photoRequests, activeSessions)

	return &SessionMetrics{
		service:           service,
		observationsTotal: observationsTotal,
		advancesTotal:     advancesTotal,
		photoRequests:     photoRequests,
		activeSessions:    activeSessions,
	}
}

func (m *SessionMetrics) RecordObservation(kind domain.ObservationKind, outcome domain.ObserveOutcome) {
	m.observationsTotal.WithLabelValues(m.service, string(kind), string(outcome)).Inc()
}

func (m *SessionMetrics) RecordAdvance(reason string) {
	m.advancesTotal.WithLabelValues(m.service, labelOrUnknown(reason)).Inc()
}

func (m *SessionMetrics) RecordPhotoRequest(reason string) {
	m.photoRequests.WithLabelValues(m.service, labelOrUnknown(reason)).Inc()
}

func (m *SessionMetrics) SessionStarted() {
	m.activeSessions.Inc()
}

func (m *SessionMetrics) SessionStopped() {
	m.activeSessions.Dec()
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
