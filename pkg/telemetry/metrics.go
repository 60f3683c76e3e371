package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the generation pipeline. A nil or
// disabled Metrics records nothing.
type Metrics struct {
	config MetricsConfig

	// Generation metrics
	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	synthesisAttempts  *prometheus.CounterVec
	stageFailures      *prometheus.CounterVec

	// Synthesis backend metrics
	synthesisCalls    *prometheus.CounterVec
	synthesisDuration *prometheus.HistogramVec

	// Circuit processing metrics
	transforms    *prometheus.CounterVec
	optimizations *prometheus.CounterVec
	gatesRemoved  *prometheus.CounterVec

	// Knowledge metrics
	retrievals    *prometheus.CounterVec
	contextTokens prometheus.Histogram
	docsCacheHits *prometheus.CounterVec

	// Error metrics
	errorsByCode *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Total number of circuit generation requests by outcome",
			},
			[]string{"outcome"},
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Duration of circuit generation requests in seconds",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),
		synthesisAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synthesis_attempts_total",
				Help:      "Total number of synthesis attempts by final stage",
			},
			[]string{"stage"},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Total number of attempt failures by verification stage",
			},
			[]string{"stage"},
		),

		synthesisCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synthesis_calls_total",
				Help:      "Total number of synthesis backend calls",
			},
			[]string{"model", "status"},
		),
		synthesisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "synthesis_call_duration_seconds",
				Help:      "Duration of synthesis backend calls in seconds",
				Buckets:   buckets,
			},
			[]string{"model"},
		),

		transforms: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transforms_total",
				Help:      "Total number of transforms applied",
			},
			[]string{"transform", "status"},
		),
		optimizations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizations_total",
				Help:      "Total number of optimization runs by level",
			},
			[]string{"level"},
		),
		gatesRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gates_removed_total",
				Help:      "Total number of operations removed by optimization",
			},
			[]string{"level"},
		),

		retrievals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "knowledge_retrievals_total",
				Help:      "Total number of knowledge provider retrievals",
			},
			[]string{"provider", "status"},
		),
		contextTokens: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "knowledge_context_tokens",
				Help:      "Estimated tokens of assembled knowledge context",
				Buckets:   []float64{0, 100, 250, 500, 1000, 2000, 4000, 8000},
			},
		),
		docsCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "docs_cache_lookups_total",
				Help:      "Total number of documentation cache lookups",
			},
			[]string{"result"},
		),

		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of pipeline errors by error code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.generations,
		m.generationDuration,
		m.synthesisAttempts,
		m.stageFailures,
		m.synthesisCalls,
		m.synthesisDuration,
		m.transforms,
		m.optimizations,
		m.gatesRemoved,
		m.retrievals,
		m.contextTokens,
		m.docsCacheHits,
		m.errorsByCode,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// Generation Metrics

// RecordGeneration records a finished generation request.
func (m *Metrics) RecordGeneration(outcome string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
	m.generationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordAttempt records one synthesis attempt and the stage it ended in.
func (m *Metrics) RecordAttempt(stage string) {
	if !m.enabled() {
		return
	}
	m.synthesisAttempts.WithLabelValues(stage).Inc()
}

// RecordStageFailure records an attempt rejected at stage.
func (m *Metrics) RecordStageFailure(stage string) {
	if !m.enabled() {
		return
	}
	m.stageFailures.WithLabelValues(stage).Inc()
}

// Synthesis Metrics

// RecordSynthesisCall records a call to the synthesis backend.
func (m *Metrics) RecordSynthesisCall(model string, err error, duration time.Duration) {
	if !m.enabled() {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.synthesisCalls.WithLabelValues(model, status).Inc()
	m.synthesisDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// Circuit Metrics

// RecordTransform records a transform application.
func (m *Metrics) RecordTransform(name string, err error) {
	if !m.enabled() {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.transforms.WithLabelValues(name, status).Inc()
}

// RecordOptimization records an optimization run and the operations it removed.
func (m *Metrics) RecordOptimization(level string, removed int) {
	if !m.enabled() {
		return
	}
	m.optimizations.WithLabelValues(level).Inc()
	if removed > 0 {
		m.gatesRemoved.WithLabelValues(level).Add(float64(removed))
	}
}

// Knowledge Metrics

// RecordRetrieval records a knowledge provider retrieval.
func (m *Metrics) RecordRetrieval(provider string, err error) {
	if !m.enabled() {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.retrievals.WithLabelValues(provider, status).Inc()
}

// ObserveContextTokens records the size of an assembled knowledge context.
func (m *Metrics) ObserveContextTokens(tokens int) {
	if !m.enabled() {
		return
	}
	m.contextTokens.Observe(float64(tokens))
}

// RecordCacheLookup records a documentation cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if !m.enabled() {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.docsCacheHits.WithLabelValues(result).Inc()
}

// Error Metrics

// RecordError records an error by code.
func (m *Metrics) RecordError(code string) {
	if !m.enabled() || code == "" {
		return
	}
	m.errorsByCode.WithLabelValues(code).Inc()
}

// Registry returns the registry the metrics are registered with, or nil
// when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server exposing metrics. It returns nil
// without listening when metrics are disabled or no address is configured.
// The returned server is nil in that case.
func (m *Metrics) StartMetricsServer(logger *Logger) *http.Server {
	if !m.enabled() || m.config.ListenAddress == "" {
		return nil
	}
	logger = OrNop(logger)

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
			logger.WithError(err).Error("metrics server stopped")
		}
	}()

	return server
}
