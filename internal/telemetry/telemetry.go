package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Telemetry owns the run's TracerProvider.
//
// Failures never stop a run: the instance degrades to a no-op tracer and
// Health reports why.
type Telemetry struct {
	config         *Config
	tracerProvider *trace.TracerProvider

	mu       sync.Mutex
	degraded string
	shutdown bool
}

// HealthStatus is the telemetry state.
type HealthStatus struct {
	Enabled  bool
	Degraded bool
	Reason   string
}

// New creates a Telemetry instance. A disabled config yields a no-op
// instance; an invalid one is an error.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	tp, err := newTracerProvider(ctx, cfg, o.exporter)
	if err != nil {
		t.setDegraded(fmt.Sprintf("tracer provider failed: %v", err))
		return t, nil
	}
	t.tracerProvider = tp
	return t, nil
}

// Tracer returns a tracer for the instrumentation scope, or a no-op tracer
// when telemetry is disabled or degraded.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name, opts...)
	}
	return t.tracerProvider.Tracer(name, opts...)
}

// ForceFlush exports pending spans.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil || t.tracerProvider == nil {
		return nil
	}
	if err := t.tracerProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("trace flush: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the provider. Without a deadline on ctx the
// configured shutdown timeout applies. Calling it twice is a no-op.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return nil
	}
	t.shutdown = true
	t.mu.Unlock()

	if t.tracerProvider == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout)
		defer cancel()
	}
	if err := t.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("trace provider shutdown: %w", err)
	}
	return nil
}

// Health returns the current telemetry state.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return HealthStatus{
		Enabled:  t.config.Enabled,
		Degraded: t.degraded != "",
		Reason:   t.degraded,
	}
}

// IsEnabled reports whether spans are being exported.
func (t *Telemetry) IsEnabled() bool {
	return t != nil && t.tracerProvider != nil && t.config.Enabled
}

func (t *Telemetry) setDegraded(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.degraded = reason
}
