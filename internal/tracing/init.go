// Package tracing wires OpenTelemetry spans around pipeline stages
// (Recall/Expand/Rerank), grounded on the teacher's internal/tracing/tracing.go:
// same OTLP-gRPC-or-stdout exporter choice and batch span processor, driven
// by config.TracingConfig instead of a single env var.
package tracing

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const defaultServiceName = "clueweave"

// Tracer bundles the shutdown hook InitTracer wires up.
type Tracer struct {
	Cleanup func(context.Context) error
}

var tracer trace.Tracer

// Config is the subset of config.TracingConfig InitTracer needs — kept
// as its own small struct so this package doesn't import internal/config
// (which would create an import cycle once config wires container).
type Config struct {
	Enabled      bool
	ServiceName  string
	Exporter     string // "otlp" or "stdout"
	OTLPEndpoint string
}

// InitTracer initializes OpenTelemetry. When cfg.Enabled is false it
// still installs a tracer provider, with a NeverSample sampler so no
// span is recorded, and ContextWithSpan is always safe to call.
func InitTracer(cfg Config) (*Tracer, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	labels := []attribute.KeyValue{
		semconv.TelemetrySDKLanguageGo,
		semconv.ServiceNameKey.String(serviceName),
	}
	res := resource.NewWithAttributes(semconv.SchemaURL, labels...)

	var traceExporter sdktrace.SpanExporter
	var err error
	switch {
	case cfg.Exporter == "otlp" && cfg.OTLPEndpoint != "":
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		traceExporter, err = otlptrace.New(context.Background(), client)
	default:
		traceExporter, err = stdouttrace.New()
	}
	if err != nil {
		return nil, err
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)

	sampler := sdktrace.AlwaysSample()
	if !cfg.Enabled {
		sampler = sdktrace.NeverSample()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer = tp.Tracer(serviceName)

	return &Tracer{
		Cleanup: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Printf("Error shutting down tracer provider: %v", err)
				return err
			}
			return nil
		},
	}, nil
}

// GetTracer returns the global Tracer.
func GetTracer() trace.Tracer {
	return tracer
}

// ContextWithSpan starts a new span named name as a child of ctx.
func ContextWithSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, name, opts...)
}
