package telemetry

import (
	"context"

	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// loggingExporter mirrors completed spans into zerolog so traces stay visible
// without a collector.
type loggingExporter struct {
	logger zerolog.Logger
}

func newLoggingExporter(logger zerolog.Logger) sdktrace.SpanExporter {
	return &loggingExporter{logger: logger.With().Str("component", "otel").Logger()}
}

func (l *loggingExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		sc := span.SpanContext()
		event := l.logger.Info()
		if sc.TraceID().IsValid() {
			event = event.Str("trace_id", sc.TraceID().String())
		}
		if sc.SpanID().IsValid() {
			event = event.Str("span_id", sc.SpanID().String())
		}
		event = event.Str("span_name", span.Name())
		event = event.Dur("duration", span.EndTime().Sub(span.StartTime()))
		attrs := span.Attributes()
		fields := make(map[string]any, len(attrs))
		for _, attr := range attrs {
			fields[string(attr.Key)] = attr.Value.Emit()
		}
		if len(fields) > 0 {
			event = event.Fields(fields)
		}
		event.Msg("span completed")
	}
	return nil
}

func (l *loggingExporter) Shutdown(context.Context) error { return nil }

func (l *loggingExporter) ForceFlush(context.Context) error { return nil }
