// Package telemetry sets up OpenTelemetry tracing for ruleminer runs.
//
// Each pipeline stage is a span under a run span. Spans are exported over
// OTLP (HTTP or gRPC) when telemetry is enabled; otherwise the tracer is a
// no-op and nothing leaves the process.
//
//	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.Tracer("ruleminer/pipeline").Start(ctx, "pipeline.run")
//	defer span.End()
//
// Exporter failures degrade telemetry instead of failing the run; Health
// reports the reason.
package telemetry
