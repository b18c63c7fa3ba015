package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatRequestsTotal  *prometheus.CounterVec
	chatFallbackTotal  *prometheus.CounterVec
	chatSimilarity     *prometheus.HistogramVec
	rateLimitedTotal   *prometheus.CounterVec
	ingestJobsAccepted *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jarvis",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jarvis",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jarvis",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jarvis",
			Subsystem: "rag",
			Name:      "chat_requests_total",
			Help:      "Total successful chat requests.",
		},
		[]string{"service"},
	)
	chatFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jarvis",
			Subsystem: "rag",
			Name:      "chat_fallback_total",
			Help:      "Total chat requests answered with the no-context fallback.",
		},
		[]string{"service"},
	)
	chatSimilarity := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jarvis",
			Subsystem: "rag",
			Name:      "local_similarity_score",
			Help:      "Distribution of local query/context similarity scores.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jarvis",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the per-client rate limiter.",
		},
		[]string{"service"},
	)
	ingestJobsAccepted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jarvis",
			Subsystem: "ingest",
			Name:      "jobs_accepted_total",
			Help:      "Total ingest jobs accepted by the HTTP surface.",
		},
		[]string{"service", "trigger"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatRequestsTotal,
		chatFallbackTotal,
		chatSimilarity,
		rateLimitedTotal,
		ingestJobsAccepted,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		service:            service,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		chatRequestsTotal:  chatRequestsTotal,
		chatFallbackTotal:  chatFallbackTotal,
		chatSimilarity:     chatSimilarity,
		rateLimitedTotal:   rateLimitedTotal,
		ingestJobsAccepted: ingestJobsAccepted,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.requestTotal.WithLabelValues(m.service, method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(m.service, method, path).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RequestStarted()  { m.requestInFlight.Inc() }
func (m *HTTPServerMetrics) RequestFinished() { m.requestInFlight.Dec() }

func (m *HTTPServerMetrics) ObserveChat(similarity float64, fallback bool) {
	m.chatRequestsTotal.WithLabelValues(m.service).Inc()
	if fallback {
		m.chatFallbackTotal.WithLabelValues(m.service).Inc()
		return
	}
	m.chatSimilarity.WithLabelValues(m.service).Observe(similarity)
}

func (m *HTTPServerMetrics) ObserveRateLimited() {
	m.rateLimitedTotal.WithLabelValues(m.service).Inc()
}

func (m *HTTPServerMetrics) ObserveJobAccepted(trigger string) {
	m.ingestJobsAccepted.WithLabelValues(m.service, trigger).Inc()
}
