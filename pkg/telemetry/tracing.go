// Package telemetry wires limitd's logging and tracing: zerolog setup from
// config and an OpenTelemetry tracer provider with optional OTLP export.
package telemetry

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TracingOptions selects how spans leave the process. With an empty Endpoint
// and LogSpans false, spans are sampled but not exported anywhere.
type TracingOptions struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is an OTLP HTTP collector. A http:// scheme implies Insecure.
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	// LogSpans mirrors completed spans into the given logger. Useful without
	// a collector.
	LogSpans bool
	Logger   zerolog.Logger
}

// SetupTracing installs a global tracer provider and propagators. The caller
// owns shutdown.
func SetupTracing(ctx context.Context, opts TracingOptions) (*sdktrace.TracerProvider, error) {
	ratio := opts.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.ServiceVersion),
		)),
	}

	if opts.Endpoint != "" {
		exporter, err := newOTLPExporter(ctx, opts.Endpoint, opts.Insecure)
		if err != nil {
			return nil, err
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}
	if opts.LogSpans {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(newLoggingExporter(opts.Logger)))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return provider, nil
}

func newOTLPExporter(ctx context.Context, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	// The OTLP HTTP exporter wants a host:port without scheme; an explicit
	// http:// scheme downgrades to insecure transport.
	ep := endpoint
	if strings.HasPrefix(endpoint, "https://") {
		ep = strings.TrimPrefix(endpoint, "https://")
	} else if strings.HasPrefix(endpoint, "http://") {
		ep = strings.TrimPrefix(endpoint, "http://")
		insecure = true
	}
	if ep == "" {
		return nil, errors.New("invalid OTLP endpoint")
	}

	clientOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(ep)}
	if insecure {
		clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, clientOpts...)
}
