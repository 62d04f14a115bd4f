package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Session lifecycle
	SessionsCreatedTotal prometheus.Counter
	SessionsDeletedTotal prometheus.Counter

	// Live connection metrics
	LiveConnectionsActive prometheus.Gauge
	LiveConnectionsTotal  *prometheus.CounterVec

	// Transcript and command metrics
	TranscriptEventsTotal   *prometheus.CounterVec
	CommandsDetectedTotal   *prometheus.CounterVec
	CommandsSuppressedTotal *prometheus.CounterVec
	CommandApplyDuration    *prometheus.HistogramVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all Prometheus metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "voxbrief"
	}

	registry := prometheus.NewRegistry()

	sessionsCreatedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of briefing sessions created",
		},
	)

	sessionsDeletedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_deleted_total",
			Help:      "Total number of briefing sessions deleted",
		},
	)

	liveConnectionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections_active",
			Help:      "Number of active live websocket connections",
		},
	)

	liveConnectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_connections_total",
			Help:      "Total number of live websocket connections",
		},
		[]string{"status"},
	)

	transcriptEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_events_total",
			Help:      "Total transcript events received",
		},
		[]string{"participant", "finality"},
	)

	commandsDetectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_detected_total",
			Help:      "Total voice commands detected and applied",
		},
		[]string{"intent"},
	)

	commandsSuppressedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_suppressed_total",
			Help:      "Total detections discarded before applying",
		},
		[]string{"reason"},
	)

	commandApplyDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_apply_duration_seconds",
			Help:      "Time from transcript event to persisted state change",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"intent"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"scope", "error_type"},
	)

	// Register all metrics
	registry.MustRegister(
		sessionsCreatedTotal,
		sessionsDeletedTotal,
		liveConnectionsActive,
		liveConnectionsTotal,
		transcriptEventsTotal,
		commandsDetectedTotal,
		commandsSuppressedTotal,
		commandApplyDuration,
		errorsTotal,
	)

	return &Metrics{
		registry:                registry,
		SessionsCreatedTotal:    sessionsCreatedTotal,
		SessionsDeletedTotal:    sessionsDeletedTotal,
		LiveConnectionsActive:   liveConnectionsActive,
		LiveConnectionsTotal:    liveConnectionsTotal,
		TranscriptEventsTotal:   transcriptEventsTotal,
		CommandsDetectedTotal:   commandsDetectedTotal,
		CommandsSuppressedTotal: commandsSuppressedTotal,
		CommandApplyDuration:    commandApplyDuration,
		ErrorsTotal:             errorsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSessionCreated records a newly minted briefing session.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreatedTotal.Inc()
}

// RecordSessionDeleted records an explicit session deletion.
func (m *Metrics) RecordSessionDeleted() {
	m.SessionsDeletedTotal.Inc()
}

// RecordConnectionOpen records a live websocket connection opening.
func (m *Metrics) RecordConnectionOpen() {
	m.LiveConnectionsActive.Inc()
}

// RecordConnectionClose records a live websocket connection closing.
func (m *Metrics) RecordConnectionClose(status string) {
	m.LiveConnectionsActive.Dec()
	m.LiveConnectionsTotal.WithLabelValues(status).Inc()
}

// RecordTranscriptEvent records one inbound transcript event.
func (m *Metrics) RecordTranscriptEvent(participant string, isFinal bool) {
	finality := "interim"
	if isFinal {
		finality = "final"
	}
	m.TranscriptEventsTotal.WithLabelValues(participant, finality).Inc()
}

// RecordCommand records an applied voice command and its end-to-end latency.
func (m *Metrics) RecordCommand(intent string, duration time.Duration) {
	m.CommandsDetectedTotal.WithLabelValues(intent).Inc()
	m.CommandApplyDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

// RecordSuppressed records a detection discarded before applying.
func (m *Metrics) RecordSuppressed(reason string) {
	m.CommandsSuppressedTotal.WithLabelValues(reason).Inc()
}

// RecordError records an error.
func (m *Metrics) RecordError(scope, errorType string) {
	m.ErrorsTotal.WithLabelValues(scope, errorType).Inc()
}
