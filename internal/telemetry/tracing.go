package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// NewTracerProvider builds an SDK tracer provider tagged with the service
// name. Exporters are wired by the caller (cmd/api) since which backend to
// ship spans to is a deployment decision, not a library one.
func NewTracerProvider(serviceName string, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(semconv.ServiceName(serviceName))
	allOpts := append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)
	return sdktrace.NewTracerProvider(allOpts...)
}

// Tracer is the engine-wide tracer handle; set once at startup via SetTracer.
var tracer trace.Tracer = otel.Tracer("coreledger/engine")

func SetTracer(t trace.Tracer) { tracer = t }

// InitTracing builds a tracer provider for serviceName, installs it as the
// global provider (so otelhttp's automatic instrumentation and this
// package's own tracer agree on the same spans), and returns a shutdown
// func the caller must invoke to flush on exit.
func InitTracing(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	provider := NewTracerProvider(serviceName)
	otel.SetTracerProvider(provider)
	SetTracer(provider.Tracer(serviceName))
	return provider.Shutdown, nil
}

// StartSpan opens a span around a named operation (the engine's
// ExecuteTransfer uses it) and returns the context carrying the span plus
// the function that ends it: `ctx, end := telemetry.StartSpan(ctx, "x")`
// followed by `defer end()`.
func StartSpan(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := tracer.Start(ctx, name)
	return ctx, func() { span.End() }
}
