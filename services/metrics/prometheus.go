package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/vigil/core/evaluation"
)

// Manager owns the Prometheus metrics of the portal.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	pointsBuckets  []float64
	registry       *prometheus.Registry

	evaluationsSubmitted *prometheus.CounterVec
	evaluationsRejected  *prometheus.CounterVec
	evaluationPoints     prometheus.Histogram

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ evaluation.Recorder = (*Manager)(nil)

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "vigil",
		latencyBuckets: prometheus.DefBuckets,
		pointsBuckets:  []float64{0, 1, 3, 5, 7, 10, 15, 20, 29},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.evaluationsSubmitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluations_submitted_total",
		Help:      "Total number of evaluations submitted, by recommended tier",
	}, []string{"tier"})

	m.evaluationsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluations_rejected_total",
		Help:      "Total number of rejected evaluation submissions, by reason",
	}, []string{"reason"})

	m.evaluationPoints = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_total_points",
		Help:      "Total penalty points of submitted evaluations",
		Buckets:   m.pointsBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   m.latencyBuckets,
	}, []string{"endpoint", "method"})
}

func (m *Manager) EvaluationSubmitted(tier string, total float64) {
	m.evaluationsSubmitted.WithLabelValues(tier).Inc()
	m.evaluationPoints.Observe(total)
}

func (m *Manager) EvaluationRejected(reason string) {
	m.evaluationsRejected.WithLabelValues(reason).Inc()
}

// ObserveHTTPRequest records a served request. endpoint is the route path, not the raw URL.
func (m *Manager) ObserveHTTPRequest(endpoint, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
