package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles logging, tracing, metrics and events. Pipeline
// components accept a *Telemetry; nil is treated as Nop().
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  NewEventPublisher(cfg.Events),
		Config:  cfg,
	}, nil
}

// Nop returns telemetry that records nothing.
func Nop() *Telemetry {
	return &Telemetry{
		Logger:  NewNopLogger(),
		Tracer:  NewNopTracer(),
		Metrics: &Metrics{},
		Events:  NewEventPublisher(EventsConfig{}),
		Config:  DefaultConfig(),
	}
}

// OrNopTelemetry returns t, or Nop() when t is nil. Nil members are
// replaced individually.
func OrNopTelemetry(t *Telemetry) *Telemetry {
	if t == nil {
		return Nop()
	}
	out := *t
	if out.Logger == nil {
		out.Logger = NewNopLogger()
	}
	if out.Tracer == nil {
		out.Tracer = NewNopTracer()
	}
	if out.Metrics == nil {
		out.Metrics = &Metrics{}
	}
	if out.Events == nil {
		out.Events = NewEventPublisher(EventsConfig{})
	}
	return &out
}

// Component returns a copy whose logger is scoped to component.
func (t *Telemetry) Component(component string) *Telemetry {
	out := OrNopTelemetry(t)
	out.Logger = out.Logger.NewComponentLogger(component)
	return out
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes and stops the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.Tracer.Shutdown(ctx)
}

// StartMetricsServer starts the metrics HTTP server if one is configured.
func (t *Telemetry) StartMetricsServer() *http.Server {
	return t.Metrics.StartMetricsServer(t.Logger)
}

// InstrumentedContext carries the span, logger and timer of one operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing and
// timing. Telemetry is taken from ctx, falling back to Nop().
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := OrNopTelemetry(FromTelemetryContext(ctx))

	ctx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)
	logger := tel.Logger.WithField("operation", operation)
	if traceID := TraceID(ctx); traceID != "" {
		logger = logger.WithField("trace_id", traceID)
	}
	logger.Debug("operation started")

	return &InstrumentedContext{
		Ctx:    logger.WithContext(ctx),
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End completes the operation, recording err on the span when non-nil.
func (ic *InstrumentedContext) End(err error) {
	if err != nil {
		RecordError(ic.Span, err)
		ic.Logger.WithError(err).WithField("duration", ic.Timer.Duration().String()).Debug("operation failed")
	} else {
		RecordSuccess(ic.Span)
		ic.Logger.WithField("duration", ic.Timer.Duration().String()).Debug("operation completed")
	}
	ic.Span.End()
}
