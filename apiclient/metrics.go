package apiclient

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestSpanName  = "apiclient.request"
	requestEventName = "apiclient.request.metrics"
)

type requestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time
	method string
	route  string

	encodeDuration time.Duration
	roundTrip      time.Duration
	decodeDuration time.Duration
	responseBytes  int
}

func newRequestMetrics(ctx context.Context, tracer trace.Tracer, logger *log.Logger, method, route string) (*requestMetrics, context.Context) {
	m := &requestMetrics{logger: logger, start: time.Now(), method: method, route: route}
	if tracer != nil {
		ctx, m.span = tracer.Start(ctx, requestSpanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.method", method),
				attribute.String("http.route", route),
			))
	}
	return m, ctx
}

func (m *requestMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *requestMetrics) ObserveRoundTrip(d time.Duration) {
	if d > 0 {
		m.roundTrip = d
	}
}

func (m *requestMetrics) ObserveDecode(d time.Duration, n int) {
	if d > 0 {
		m.decodeDuration = d
	}
	if n > 0 {
		m.responseBytes = n
	}
}

// Finish ends the span and writes one structured entry. status is 0 when no
// response was received.
func (m *requestMetrics) Finish(status int, err error) {
	if m == nil {
		return
	}
	total := time.Since(m.start)
	if m.span != nil {
		if status > 0 {
			m.span.SetAttributes(attribute.Int("http.status_code", status))
		}
		m.span.SetAttributes(attribute.Float64("apiclient.total_ms", durationToMillis(total)))
		switch {
		case err != nil:
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		case status >= 400:
			m.span.SetStatus(codes.Error, "http status")
		default:
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}
	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"method":   m.method,
		"route":    m.route,
		"status":   status,
		"total_ms": durationToMillis(total),
	}
	if m.encodeDuration > 0 {
		fields["encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.roundTrip > 0 {
		fields["round_trip_ms"] = durationToMillis(m.roundTrip)
	}
	if m.decodeDuration > 0 {
		fields["decode_ms"] = durationToMillis(m.decodeDuration)
	}
	if m.responseBytes > 0 {
		fields["response_bytes"] = m.responseBytes
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	entry := m.logger.WithFields(fields)
	if err != nil {
		entry.WithError(err).Warn(requestEventName)
		return
	}
	entry.Debug(requestEventName)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
