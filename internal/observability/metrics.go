package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	gateDenials   *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	lineCalls     *prometheus.CounterVec
	gatherer      prometheus.Gatherer
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rehab_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rehab_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rehab_http_errors_total",
			Help: "Error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		gateDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rehab_auth_gate_denials_total",
			Help: "Requests rejected by the authorization gate.",
		}, []string{"reason"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rehab_line_webhook_events_total",
			Help: "LINE webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		lineCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rehab_line_api_requests_total",
			Help: "Outbound Messaging API calls by endpoint and status.",
		}, []string{"endpoint", "status"}),
		gatherer: reg,
	}

	reg.MustRegister(m.requests, m.latency, m.errors, m.gateDenials, m.webhookEvents, m.lineCalls)
	return m
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordGateDenial counts a gate rejection.
func (m *Metrics) RecordGateDenial(reason string) {
	if m == nil {
		return
	}
	m.gateDenials.WithLabelValues(reason).Inc()
}

// RecordWebhookEvent counts a processed webhook event.
func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// RecordLineCall counts an outbound Messaging API call.
func (m *Metrics) RecordLineCall(endpoint string, status int) {
	if m == nil {
		return
	}
	m.lineCalls.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
