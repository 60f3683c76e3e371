// Package telemetry provides observability for the circuit generation
// pipeline.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and a synchronous event publisher
// behind one Telemetry value that is constructed at the process boundary and
// passed to pipeline components.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Components accept a *Telemetry and treat nil as Nop(), so tests and
// library callers can omit it.
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("generator")
//	logger.WithAttempt(2, 3).WithError(err).Warn("attempt failed")
//
// Log levels: trace, debug, info, warn, error, fatal, disabled. Logs go to
// stderr by default.
//
// # Distributed Tracing
//
// Each generation request runs in a "circuit.generate" span with one
// "circuit.attempt" child per synthesis attempt. Transforms and knowledge
// retrievals get their own spans. Exporters: otlp (gRPC), stdout, none.
//
// # Metrics
//
//	tel.Metrics.RecordAttempt("validating")
//	tel.Metrics.RecordTransform("cancel_inverses", nil)
//	tel.Metrics.RecordOptimization("default", 4)
//
// Metrics live in a private registry and are served over HTTP only when
// Metrics.ListenAddress is set.
//
// # Events
//
//	tel.Events.Subscribe(func(e telemetry.Event) { ... }, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// Events are delivered synchronously on the publishing goroutine and the
// most recent ones are retained for History.
package telemetry
