// Package telemetry provides observability for calculator sessions.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and event publishing behind a single
// Telemetry value that is carried through a context.Context.
//
// # Usage
//
// Initialize telemetry at startup and attach it to the context:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// Loggers are derived per component and per session:
//
//	logger := tel.Logger.NewComponentLogger("calculator").WithSessionID(id)
//	logger.WithEvent("digit", "7").Debug("key pressed")
//
// Logs go to stderr by default so stdout can carry the display.
//
// # Tracing
//
// Every key press is a "calculator.press" span nested under a
// "calculator.session" span. Script runs get a "script.run" span. The
// exporter is one of otlp (gRPC), stdout or none.
//
// # Metrics
//
// Metrics are registered on a private registry and exposed through
// Metrics.Handler or StartMetricsServer:
//
//	pcalc_keypresses_total{event}
//	pcalc_keypress_duration_seconds{event}
//	pcalc_evaluations_total{operator}
//	pcalc_errors_total{code}
//	pcalc_memory_operations_total{operation}
//	pcalc_sessions_started_total
//	pcalc_active_sessions
//	pcalc_script_runs_total{status}
//	pcalc_script_duration_seconds
//
// A Metrics built from a disabled config accepts every call and records
// nothing.
//
// # Events
//
// The EventPublisher delivers display.changed, memory.changed,
// calculator.error, session and script events to subscribers, either on the
// publishing goroutine or through a buffered delivery goroutine.
package telemetry
