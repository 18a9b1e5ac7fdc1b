// Package prommetrics records billing.Metrics in Prometheus collectors.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mihaimyh/lemongate/pkg/billing"
)

// Subsystems under the caller's namespace.
const (
	subsystemWebhook = "webhook"
	subsystemSync    = "sync"
	subsystemAPI     = "provider_api"
)

// Webhook handling is usually a few milliseconds plus one store round trip;
// the provider API is slower.
var (
	webhookBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	apiBuckets     = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10}
	payloadBuckets = prometheus.ExponentialBuckets(512, 2, 10) // 512B .. 256KiB
)

// Metrics implements billing.Metrics using Prometheus.
type Metrics struct {
	events       *prometheus.CounterVec
	eventLatency *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	payloadBytes *prometheus.HistogramVec
	upserts      *prometheus.CounterVec

	syncs       *prometheus.CounterVec
	syncLatency *prometheus.HistogramVec

	apiCalls   *prometheus.CounterVec
	apiLatency *prometheus.HistogramVec
}

var _ billing.Metrics = (*Metrics)(nil)

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)

	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	histogram := func(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		}, labels)
	}

	return &Metrics{
		events: counter(subsystemWebhook, "events_total",
			"Verified webhook deliveries by event name and outcome.",
			"provider", "event_type", "status"),
		eventLatency: histogram(subsystemWebhook, "processing_seconds",
			"Time from signature check to response for verified deliveries.",
			webhookBuckets, "provider", "event_type"),
		errors: counter(subsystemWebhook, "errors_total",
			"Rejected or failed webhook deliveries by reason.",
			"provider", "error_type"),
		payloadBytes: histogram(subsystemWebhook, "payload_bytes",
			"Size of webhook bodies that passed signature verification.",
			payloadBuckets, "provider"),
		upserts: counter(subsystemWebhook, "user_upserts_total",
			"User records merge-written, by triggering event and written plan.",
			"provider", "event_type", "subscription"),

		syncs: counter(subsystemSync, "users_total",
			"User reconciliations against the provider API by outcome.",
			"provider", "status"),
		syncLatency: histogram(subsystemSync, "duration_seconds",
			"Duration of user reconciliations, including the store write.",
			apiBuckets, "provider"),

		apiCalls: counter(subsystemAPI, "requests_total",
			"Outbound provider API requests by endpoint and HTTP status.",
			"provider", "endpoint", "status"),
		apiLatency: histogram(subsystemAPI, "request_duration_seconds",
			"Latency of outbound provider API requests.",
			apiBuckets, "provider", "endpoint"),
	}
}

func (m *Metrics) RecordWebhookEvent(provider, eventType, status string) {
	m.events.WithLabelValues(provider, eventType, status).Inc()
}

func (m *Metrics) RecordWebhookProcessingDuration(provider, eventType string, d time.Duration) {
	m.eventLatency.WithLabelValues(provider, eventType).Observe(d.Seconds())
}

func (m *Metrics) RecordWebhookError(provider, errorType string) {
	m.errors.WithLabelValues(provider, errorType).Inc()
}

func (m *Metrics) RecordWebhookPayloadSize(provider string, bytes int) {
	m.payloadBytes.WithLabelValues(provider).Observe(float64(bytes))
}

func (m *Metrics) RecordUserUpsert(provider, eventType, subscription string) {
	m.upserts.WithLabelValues(provider, eventType, subscription).Inc()
}

func (m *Metrics) RecordUserSync(provider, status string) {
	m.syncs.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) RecordUserSyncDuration(provider string, d time.Duration) {
	m.syncLatency.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) RecordAPICall(provider, endpoint, status string) {
	m.apiCalls.WithLabelValues(provider, endpoint, status).Inc()
}

func (m *Metrics) RecordAPICallDuration(provider, endpoint string, d time.Duration) {
	m.apiLatency.WithLabelValues(provider, endpoint).Observe(d.Seconds())
}

// DefaultMetrics registers with prometheus.DefaultRegisterer.
func DefaultMetrics(namespace string) billing.Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
