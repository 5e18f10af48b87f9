package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "broadcast_engine"

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	recipientsSentTotal    *prometheus.CounterVec
	recipientsFailedTotal  *prometheus.CounterVec
	recipientSendDuration  *prometheus.HistogramVec
	broadcastsInflight     prometheus.Gauge
	broadcastsCompleted    prometheus.Counter
	broadcastDuration      prometheus.Histogram
	broadcastsSubmitted    prometheus.Counter
	broadcastsCancelMarked prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		recipientsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "recipients_sent_total",
				Help:      "Total number of broadcast recipients delivered successfully.",
			},
			[]string{"channel"},
		),
		recipientsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "recipients_failed_total",
				Help:      "Total number of broadcast recipients whose delivery failed.",
			},
			[]string{"channel", "reason"},
		),
		recipientSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "recipient_send_duration_seconds",
				Help:      "Gateway send duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		broadcastsInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "broadcasts_inflight",
				Help:      "Current number of broadcasts being dispatched.",
			},
		),
		broadcastsCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "broadcasts_completed_total",
				Help:      "Total number of broadcasts that reached the completed state.",
			},
		),
		broadcastDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "broadcast_duration_seconds",
				Help:      "Wall-clock duration of completed broadcasts.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
			},
		),
		broadcastsSubmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "broadcasts_submitted_total",
				Help:      "Total number of broadcasts accepted for dispatch.",
			},
		),
		broadcastsCancelMarked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "broadcasts_cancel_marked_total",
				Help:      "Total number of broadcasts flagged as cancelled by an operator.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.recipientsSentTotal,
		m.recipientsFailedTotal,
		m.recipientSendDuration,
		m.broadcastsInflight,
		m.broadcastsCompleted,
		m.broadcastDuration,
		m.broadcastsSubmitted,
		m.broadcastsCancelMarked,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncRecipientSent(channel string) {
	if m == nil {
		return
	}
	m.recipientsSentTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncRecipientFailed(channel string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.recipientsFailedTotal.WithLabelValues(normalizeChannel(channel), reasonLabel).Inc()
}

func (m *Metrics) ObserveRecipientSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.recipientSendDuration.WithLabelValues(normalizeChannel(channel)).Observe(seconds)
}

func (m *Metrics) IncBroadcastInFlight() {
	if m == nil {
		return
	}
	m.broadcastsInflight.Inc()
}

func (m *Metrics) DecBroadcastInFlight() {
	if m == nil {
		return
	}
	m.broadcastsInflight.Dec()
}

func (m *Metrics) ObserveBroadcastCompleted(durationSeconds int64) {
	if m == nil {
		return
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	m.broadcastsCompleted.Inc()
	m.broadcastDuration.Observe(float64(durationSeconds))
}

func (m *Metrics) IncBroadcastSubmitted() {
	if m == nil {
		return
	}
	m.broadcastsSubmitted.Inc()
}

func (m *Metrics) IncBroadcastCancelMarked() {
	if m == nil {
		return
	}
	m.broadcastsCancelMarked.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeChannel(channel string) string {
	normalized := strings.ToLower(strings.TrimSpace(channel))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
