package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Tracer wraps the OpenTelemetry tracer with pipeline span helpers.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig
}

// NewTracer creates a new tracer with the given configuration.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion, environment string) (*Tracer, error) {
	if !cfg.Enabled {
		return NewNopTracer(), nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			attribute.String("environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp":
		exporter, err = createOTLPExporter(cfg)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		// Spans are sampled but not exported
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithExportTimeout(cfg.ExportTimeout)))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		config:   cfg,
	}, nil
}

// NewNopTracer returns a tracer whose spans are never recorded.
func NewNopTracer() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer("skadi")}
}

// createOTLPExporter creates an OTLP gRPC exporter. The connection is
// established lazily so an unreachable collector never blocks the pipeline.
func createOTLPExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.ExportTimeout),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent("skadi")),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(context.Background(), opts...)
}

func (t *Tracer) orNop() *Tracer {
	if t == nil || t.tracer == nil {
		return NewNopTracer()
	}
	return t
}

// StartSpan starts a span with the given attributes.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.orNop().tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

// StartGenerationSpan starts the span covering one generation request.
func (t *Tracer) StartGenerationSpan(ctx context.Context, description string, maxAttempts int) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "circuit.generate",
		AttrDescription.String(description),
		AttrMaxAttempts.Int(maxAttempts),
		attribute.String("span.kind", "generation"),
	)
}

// StartAttemptSpan starts the span covering one synthesis attempt.
func (t *Tracer) StartAttemptSpan(ctx context.Context, attempt int) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "circuit.attempt",
		AttrAttempt.Int(attempt),
		attribute.String("span.kind", "attempt"),
	)
}

// StartTransformSpan starts a span for a transform or optimization step.
func (t *Tracer) StartTransformSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, fmt.Sprintf("transform.%s", name),
		AttrTransform.String(name),
		attribute.String("span.kind", "transform"),
	)
}

// StartRetrievalSpan starts a span for a knowledge provider retrieval.
func (t *Tracer) StartRetrievalSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, fmt.Sprintf("knowledge.%s", provider),
		AttrProvider.String(provider),
		attribute.String("span.kind", "retrieval"),
	)
}

// RecordError records an error on the span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSuccess marks the span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddStageEvent adds a verification stage event to the span.
func AddStageEvent(span trace.Span, stage, message string) {
	span.AddEvent(stage, trace.WithAttributes(
		AttrStage.String(stage),
		attribute.String("event.message", message),
	))
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TraceID returns the trace ID of the current span in the context.
func TraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// Common attribute keys for pipeline tracing.
var (
	AttrCircuitID   = attribute.Key("circuit.id")
	AttrDescription = attribute.Key("circuit.description")
	AttrAttempt     = attribute.Key("generation.attempt")
	AttrMaxAttempts = attribute.Key("generation.max_attempts")
	AttrStage       = attribute.Key("generation.stage")
	AttrTransform   = attribute.Key("transform.name")
	AttrProvider    = attribute.Key("knowledge.provider")
	AttrOperations  = attribute.Key("circuit.operations")
	AttrDepth       = attribute.Key("circuit.depth")
	AttrErrorCode   = attribute.Key("error.code")
)
