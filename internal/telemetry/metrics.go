package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"ambient-quiz-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ambient_quiz"

// Metrics holds the service's Prometheus collectors. It satisfies app.Observer.
type Metrics struct {
	registry *prometheus.Registry

	activeSessions prometheus.Gauge
	completions    *prometheus.CounterVec
	chatRequests   *prometheus.CounterVec
	chatLatency    prometheus.Histogram
	tickets        *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Quiz sessions currently held in memory.",
		}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_completions_total",
			Help:      "Completed quiz sessions by achievement tier.",
		}, []string{"tier"}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat relay requests by outcome.",
		}, []string{"outcome"}),
		chatLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_request_duration_seconds",
			Help:      "Chat relay round-trip latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		tickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_rendered_total",
			Help:      "Rendered result tickets by avatar source.",
		}, []string{"avatar"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.activeSessions, m.completions, m.chatRequests, m.chatLatency,
		m.tickets, m.httpRequests, m.httpDuration,
	)
	return m
}

func (m *Metrics) SessionOpened() { m.activeSessions.Inc() }

func (m *Metrics) SessionClosed() { m.activeSessions.Dec() }

func (m *Metrics) QuizCompleted(result domain.QuizResult) {
	m.completions.WithLabelValues(result.Tier.Name).Inc()
}

// ChatOutcome counts one relay call; outcome comes from chat.Outcome.
func (m *Metrics) ChatOutcome(outcome string) {
	m.chatRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveChatLatency(d time.Duration) {
	m.chatLatency.Observe(d.Seconds())
}

// TicketRendered counts one ticket by where its avatar came from.
func (m *Metrics) TicketRendered(avatarSource string) {
	m.tickets.WithLabelValues(avatarSource).Inc()
}

func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
