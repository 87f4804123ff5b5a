package testutil

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry wires in-memory OpenTelemetry providers for a test
type Telemetry struct {
	Reader *sdkmetric.ManualReader
	Spans  *tracetest.SpanRecorder
	Meter  metric.Meter
	Tracer trace.Tracer
}

// NewTelemetry creates providers that are shut down when t ends
func NewTelemetry(t *testing.T) *Telemetry {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
	})

	return &Telemetry{
		Reader: reader,
		Spans:  spans,
		Meter:  mp.Meter("test"),
		Tracer: tp.Tracer("test"),
	}
}

// CounterValue sums the data points of the int64 counter name whose
// attributes include every attr given.
func (tel *Telemetry) CounterValue(t *testing.T, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := tel.Reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is %T, not an int64 sum", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if hasAttrs(dp.Attributes, attrs) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

// SpanEvents returns the event names recorded on ended spans called span
func (tel *Telemetry) SpanEvents(span string) []string {
	var names []string
	for _, s := range tel.Spans.Ended() {
		if s.Name() != span {
			continue
		}
		for _, ev := range s.Events() {
			names = append(names, ev.Name)
		}
	}
	return names
}

func hasAttrs(set attribute.Set, want []attribute.KeyValue) bool {
	for _, kv := range want {
		v, ok := set.Value(kv.Key)
		if !ok || v.Emit() != kv.Value.Emit() {
			return false
		}
	}
	return true
}

// FixedClock returns a clock that always reports at
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
