package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"

	"github.com/fyrsmithlabs/ruleminer/internal/config"
)

// newResource describes the service. It is built standalone to avoid schema
// URL conflicts with resource.Default().
func newResource(cfg *Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)
}

func headers(cfg *Config) map[string]string {
	if !cfg.APIKey.IsSet() {
		return nil
	}
	return map[string]string{"authorization": "Bearer " + cfg.APIKey.Value()}
}

// newExporter creates the OTLP span exporter for the configured protocol.
func newExporter(ctx context.Context, cfg *Config) (trace.SpanExporter, error) {
	switch cfg.Protocol {
	case config.ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(stripScheme(cfg.Endpoint))}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
		}
		if h := headers(cfg); h != nil {
			opts = append(opts, otlptracegrpc.WithHeaders(h))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint))}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if h := headers(cfg); h != nil {
			opts = append(opts, otlptracehttp.WithHeaders(h))
		}
		return otlptracehttp.New(ctx, opts...)
	}
}

func newSampler(rate float64) trace.Sampler {
	var sampler trace.Sampler
	switch {
	case rate >= 1.0:
		sampler = trace.AlwaysSample()
	case rate <= 0:
		sampler = trace.NeverSample()
	default:
		sampler = trace.TraceIDRatioBased(rate)
	}
	return trace.ParentBased(sampler)
}

// newTracerProvider creates a TracerProvider batching to exporter, or to a
// new OTLP exporter when exporter is nil.
func newTracerProvider(ctx context.Context, cfg *Config, exporter trace.SpanExporter) (*trace.TracerProvider, error) {
	if exporter == nil {
		exp, err := newExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
		exporter = exp
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(newResource(cfg)),
		trace.WithSampler(newSampler(cfg.SampleRate)),
	), nil
}

// Option configures New.
type Option func(*options)

type options struct {
	exporter trace.SpanExporter
}

// WithTraceExporter replaces the OTLP exporter.
func WithTraceExporter(exp trace.SpanExporter) Option {
	return func(o *options) { o.exporter = exp }
}
