package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	itemsAdded      *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "ocr_pass_total",
			Help:      "Total OCR passes over stored capture photos by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "ocr_pass_duration_seconds",
			Help:      "OCR pass duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "ocr_pass_in_flight",
			Help:      "Number of in-flight OCR passes.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	itemsAdded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "ocr_items_added_total",
			Help:      "Recognized items added to captures by OCR passes.",
		},
		[]string{"service"},
	)

	registry.MustRegister(processTotal, itemsAdded, processDuration, processInFlight)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		itemsAdded:      itemsAdded,
		processDuration: processDuration,
		processInFlight: processInFlight,
	}
}

func (m *WorkerMetrics) Registry() prometheus.Registerer {
	return m.registry
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartPass() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishPass(service string, duration time.Duration, added int, err error) {
	m.processInFlight.Dec()
	if added > 0 {
		m.itemsAdded.WithLabelValues(service).Add(float64(added))
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}
