package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for calculator sessions. A Metrics
// built from a disabled config is a no-op.
type Metrics struct {
	config MetricsConfig

	// Key press metrics
	keypresses       *prometheus.CounterVec
	keypressDuration *prometheus.HistogramVec

	// Arithmetic metrics
	evaluations      *prometheus.CounterVec
	errorsByCode     *prometheus.CounterVec
	memoryOperations *prometheus.CounterVec

	// Session metrics
	sessionsStarted prometheus.Counter
	activeSessions  prometheus.Gauge

	// Script metrics
	scriptRuns     *prometheus.CounterVec
	scriptDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with its own registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.KeypressBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		keypresses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "keypresses_total",
				Help:      "Total number of key presses applied, by event kind",
			},
			[]string{"event"},
		),
		keypressDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "keypress_duration_seconds",
				Help:      "Time to apply a key press and deliver its effects",
				Buckets:   buckets,
			},
			[]string{"event"},
		),

		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of successful binary evaluations, by operator",
			},
			[]string{"operator"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of calculator errors, by error code",
			},
			[]string{"code"},
		),
		memoryOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memory_operations_total",
				Help:      "Total number of memory register operations",
			},
			[]string{"operation"},
		),

		sessionsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_started_total",
				Help:      "Total number of calculator sessions started",
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Current number of open calculator sessions",
			},
		),

		scriptRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "script_runs_total",
				Help:      "Total number of key scripts executed, by outcome",
			},
			[]string{"status"},
		),
		scriptDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "script_duration_seconds",
				Help:      "Duration of key script runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		m.keypresses,
		m.keypressDuration,
		m.evaluations,
		m.errorsByCode,
		m.memoryOperations,
		m.sessionsStarted,
		m.activeSessions,
		m.scriptRuns,
		m.scriptDuration,
	)

	return m, nil
}

// Registry returns the registry the metrics are registered with, or nil
// when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordKeypress records an applied key press and its latency.
func (m *Metrics) RecordKeypress(event string, duration time.Duration) {
	if m.keypresses == nil {
		return
	}
	m.keypresses.WithLabelValues(event).Inc()
	m.keypressDuration.WithLabelValues(event).Observe(duration.Seconds())
}

// RecordEvaluation records a successful binary evaluation.
func (m *Metrics) RecordEvaluation(operator string) {
	if m.evaluations == nil {
		return
	}
	m.evaluations.WithLabelValues(operator).Inc()
}

// RecordError records a calculator error by code.
func (m *Metrics) RecordError(code string) {
	if m.errorsByCode == nil {
		return
	}
	m.errorsByCode.WithLabelValues(code).Inc()
}

// RecordMemoryOperation records an M+, M-, MR or MC press.
func (m *Metrics) RecordMemoryOperation(operation string) {
	if m.memoryOperations == nil {
		return
	}
	m.memoryOperations.WithLabelValues(operation).Inc()
}

// RecordSessionStarted counts a new session and marks it active.
func (m *Metrics) RecordSessionStarted() {
	if m.sessionsStarted == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

// RecordSessionEnded marks a session inactive.
func (m *Metrics) RecordSessionEnded() {
	if m.activeSessions == nil {
		return
	}
	m.activeSessions.Dec()
}

// RecordScriptRun records a finished key script.
func (m *Metrics) RecordScriptRun(status string, duration time.Duration) {
	if m.scriptRuns == nil {
		return
	}
	m.scriptRuns.WithLabelValues(status).Inc()
	m.scriptDuration.Observe(duration.Seconds())
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint in the background. It
// returns nil when metrics are disabled or no listen address is set.
// The caller shuts the returned server down.
func (m *Metrics) StartMetricsServer() *http.Server {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", server.Addr).Msg("metrics server stopped")
		}
	}()

	return server
}
