// Package tracing installs the control plane's OpenTelemetry tracer
// provider. With no collector endpoint configured it leaves the global
// no-op provider in place. The control-API handlers and the proxy do
// not start spans themselves.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "fnhost"

// Setup installs a tracer provider: a real OTLP/HTTP exporter when
// endpoint is non-empty, otherwise the package-default no-op
// provider. It returns a shutdown function to flush/close on exit.
func Setup(ctx context.Context, endpoint string) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("creating otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName("fnhost")))
	if err != nil {
		return nil, fmt.Errorf("building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the package tracer, honoring whatever provider
// Setup installed (or the global no-op default if Setup was never
// called).
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
