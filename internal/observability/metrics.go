package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus collectors for the HTTP surface and the
// notification pipeline. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	outboxPublished *prometheus.CounterVec
	queueProcessed  *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Error responses by route, method and domain error code.",
		}, []string{"route", "method", "code"}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox relay publish attempts by result.",
		}, []string{"result"}),
		queueProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_messages_total",
			Help:      "Notification queue messages by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.errors,
		m.outboxPublished,
		m.queueProcessed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordOutbox counts relay publish results ("published" or "failed").
func (m *Metrics) RecordOutbox(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.outboxPublished.WithLabelValues(result).Add(float64(n))
}

// RecordQueue counts consumer outcomes ("processed", "retried", "dead_lettered").
func (m *Metrics) RecordQueue(outcome string) {
	if m == nil {
		return
	}
	m.queueProcessed.WithLabelValues(outcome).Inc()
}
