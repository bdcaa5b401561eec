package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Recorder captures what a test Telemetry produced. Nothing leaves the
// process.
type Recorder struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

// NewTestTelemetry returns an enabled Telemetry backed by in-memory
// providers. The otel globals are left alone.
func NewTestTelemetry() (*Telemetry, *Recorder) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	rec := &Recorder{
		spans:  tracetest.NewSpanRecorder(),
		reader: sdkmetric.NewManualReader(),
	}
	t := &Telemetry{
		cfg: cfg,
		tp:  sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec.spans)),
		mp:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(rec.reader)),
	}
	return t, rec
}

// Span returns the first ended span called name.
func (r *Recorder) Span(name string) (sdktrace.ReadOnlySpan, bool) {
	for _, s := range r.spans.Ended() {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// SpanNames lists ended spans in end order.
func (r *Recorder) SpanNames() []string {
	ended := r.spans.Ended()
	names := make([]string, len(ended))
	for i, s := range ended {
		names[i] = s.Name()
	}
	return names
}

// SpanAttr returns attribute key of span s.
func SpanAttr(s sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// Int64Sum totals every data point of the int64 counter name. It reports
// false when the instrument recorded nothing.
func (r *Recorder) Int64Sum(name string, match ...attribute.KeyValue) (int64, bool) {
	m, ok := r.collect(name)
	if !ok {
		return 0, false
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0, false
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if hasAll(dp.Attributes, match) {
			total += dp.Value
		}
	}
	return total, true
}

// HistogramCount counts recordings of the float64 histogram name.
func (r *Recorder) HistogramCount(name string) (uint64, bool) {
	m, ok := r.collect(name)
	if !ok {
		return 0, false
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		return 0, false
	}
	var n uint64
	for _, dp := range hist.DataPoints {
		n += dp.Count
	}
	return n, true
}

// Has reports whether any instrument called name has recorded data.
func (r *Recorder) Has(name string) bool {
	_, ok := r.collect(name)
	return ok
}

func (r *Recorder) collect(name string) (metricdata.Metrics, bool) {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(context.Background(), &rm); err != nil {
		return metricdata.Metrics{}, false
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func hasAll(set attribute.Set, want []attribute.KeyValue) bool {
	for _, kv := range want {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}
