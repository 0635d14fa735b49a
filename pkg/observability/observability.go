// Package observability wires OpenTelemetry tracing and Prometheus
// metrics into pkg/runloop, per spec §4.7's ADDED detail: each Run Loop
// attempt wrapped in a span, and counters tracking turns, retries, and
// circuit-breaker trips.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects the tracing exporter and service identity reported on
// every span.
type Config struct {
	Enabled      bool
	Exporter     string // "stdout"; any other value, including "", selects OTLP
	Endpoint     string // OTLP collector address, e.g. "localhost:4317"
	ServiceName  string
	SamplingRate float64

	// MetricsNamespace prefixes every Prometheus metric name.
	MetricsNamespace string
}

// Observability bundles the tracer and metrics pkg/runloop and
// pkg/server instrument against. The zero value (via NewNoop) is safe
// to use wherever observability is disabled.
type Observability struct {
	tracer  trace.Tracer
	metrics *Metrics
	tp      *sdktrace.TracerProvider
}

// New builds an Observability from cfg. A disabled or zero Config
// yields NewNoop(): a no-op tracer and metrics that discard every
// update, so callers never need a nil check on the Observability
// pointer itself.
func New(ctx context.Context, cfg Config) (*Observability, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "agentcore"
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("observability: create exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	sampling := cfg.SamplingRate
	if sampling <= 0 {
		sampling = 1.0
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampling)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metrics, err := NewMetrics(cfg.MetricsNamespace)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("observability: build metrics: %w", err)
	}

	return &Observability{tracer: tp.Tracer("agentcore.runloop"), metrics: metrics, tp: tp}, nil
}

// NewNoop returns an Observability whose spans and counters are all
// discarded, the default when a caller never sets one up.
func NewNoop() *Observability {
	metrics, _ := NewMetrics("") // never errors: the registry is fresh; recording is disabled below
	metrics.enabled = false
	return &Observability{tracer: noop.NewTracerProvider().Tracer("agentcore.runloop"), metrics: metrics}
}

// Tracer returns the span tracer for pkg/runloop's attempt spans.
func (o *Observability) Tracer() trace.Tracer { return o.tracer }

// Metrics returns the Prometheus counters pkg/runloop and pkg/server
// increment.
func (o *Observability) Metrics() *Metrics { return o.metrics }

// Shutdown flushes any pending spans. Safe to call on a no-op instance.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o.tp == nil {
		return nil
	}
	return o.tp.Shutdown(ctx)
}
