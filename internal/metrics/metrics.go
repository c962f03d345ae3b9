// Package metrics holds the Prometheus collectors of the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all custom Prometheus metrics for the API.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Mutations counts writes to the interactions table by operation
	// ("create", "update", "delete").
	Mutations *prometheus.CounterVec

	VoiceProcessingDuration prometheus.Histogram
	VoiceProcessingErrors   *prometheus.CounterVec
}

// New registers the collectors on a fresh registry so each server (and each
// test) gets its own set.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicecrm_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicecrm_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicecrm_interaction_mutations_total",
			Help: "Total number of interaction writes by operation",
		}, []string{"op"}),

		// transcription plus extraction, up to two minutes for long notes
		VoiceProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicecrm_voice_processing_duration_seconds",
			Help:    "Time spent transcribing and extracting a voice note",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		VoiceProcessingErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicecrm_voice_processing_errors_total",
			Help: "Voice processing failures by stage",
		}, []string{"stage"}),
	}
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Mutation counts one interaction write.
func (m *Metrics) Mutation(op string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op).Inc()
}

// VoiceProcessed records the duration of a successful voice note.
func (m *Metrics) VoiceProcessed(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.VoiceProcessingDuration.Observe(elapsed.Seconds())
}

// VoiceFailed counts a failure at the given stage.
func (m *Metrics) VoiceFailed(stage string) {
	if m == nil {
		return
	}
	m.VoiceProcessingErrors.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
