package cli

import (
	"context"

	log "github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logExporter writes finished spans as debug log entries.
type logExporter struct {
	logger *log.Logger
}

func (e logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := log.Fields{
			"span":        s.Name(),
			"trace_id":    s.SpanContext().TraceID().String(),
			"duration_ms": float64(s.EndTime().Sub(s.StartTime()).Microseconds()) / 1000,
			"status":      s.Status().Code.String(),
		}
		for _, attr := range s.Attributes() {
			fields[string(attr.Key)] = attr.Value.Emit()
		}
		e.logger.WithFields(fields).Info("trace: span finished")
	}
	return nil
}

func (logExporter) Shutdown(context.Context) error { return nil }

// newTracerProvider exports spans synchronously through the logger.
func newTracerProvider(logger *log.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(logExporter{logger: logger}))
}
