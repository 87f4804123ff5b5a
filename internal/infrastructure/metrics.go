package infrastructure

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Fault reasons recorded by envelope_faults_total
const (
	FaultDoubleResponse    = "double_response"
	FaultPanic             = "panic"
	FaultWrite             = "write"
	FaultSerialize         = "serialize"
	FaultErrorAfterRespond = "error_after_respond"
)

// DispatchMetrics holds the instruments fed by the response dispatcher and
// the HTTP middleware. A nil *DispatchMetrics records nothing.
type DispatchMetrics struct {
	// Envelope metrics
	ResponsesTotal   metric.Int64Counter
	DispatchDuration metric.Float64Histogram
	FaultsTotal      metric.Int64Counter
	ConvertedErrors  metric.Int64Counter

	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter
}

// NewDispatchMetrics creates the envelope and HTTP instruments on meter
func NewDispatchMetrics(meter metric.Meter) (*DispatchMetrics, error) {
	responsesTotal, err := meter.Int64Counter(
		"envelope_responses_total",
		metric.WithDescription("Total number of envelopes committed, by kind and status"),
	)
	if err != nil {
		return nil, err
	}

	dispatchDuration, err := meter.Float64Histogram(
		"envelope_dispatch_duration_seconds",
		metric.WithDescription("Time from request acceptance to dispatch completion"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	faultsTotal, err := meter.Int64Counter(
		"envelope_faults_total",
		metric.WithDescription("Failures that could not be reported to the client"),
	)
	if err != nil {
		return nil, err
	}

	convertedErrors, err := meter.Int64Counter(
		"envelope_converted_errors_total",
		metric.WithDescription("Handler errors converted into error envelopes"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		ResponsesTotal:      responsesTotal,
		DispatchDuration:    dispatchDuration,
		FaultsTotal:         faultsTotal,
		ConvertedErrors:     convertedErrors,
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		HTTPActiveRequests:  httpActiveRequests,
	}, nil
}

// RecordResponse counts a committed envelope
func (m *DispatchMetrics) RecordResponse(ctx context.Context, kind string, status int) {
	if m == nil {
		return
	}
	m.ResponsesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", strconv.Itoa(status)),
	))
}

// RecordConverted counts a handler error turned into an error envelope
func (m *DispatchMetrics) RecordConverted(ctx context.Context, status int, business bool) {
	if m == nil {
		return
	}
	m.ConvertedErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", strconv.Itoa(status)),
		attribute.Bool("business", business),
	))
}

// RecordFault counts a failure routed to the fault pipeline
func (m *DispatchMetrics) RecordFault(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.FaultsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordDispatch records how long a dispatch took and whether it ended in a fault
func (m *DispatchMetrics) RecordDispatch(ctx context.Context, duration time.Duration, faulted bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if faulted {
		outcome = "fault"
	}
	m.DispatchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordHTTPRequest records one served HTTP request
func (m *DispatchMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// AddActiveRequests moves the in-flight request gauge by delta
func (m *DispatchMetrics) AddActiveRequests(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.HTTPActiveRequests.Add(ctx, delta)
}
