package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestLoadDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLoad(ctx, "tickets", 0.012)
	m.RecordLoad(ctx, "tickets", 0.045)

	rm := collect(t, reader)
	met := findMetric(rm, "archos.load.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric is %T, not a histogram", met.Data)
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestMutationCounterPartitionsByStatus(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordMutation(ctx, "tickets", "create", "ok")
	m.RecordMutation(ctx, "tickets", "create", "ok")
	m.RecordMutation(ctx, "tickets", "create", "error")

	rm := collect(t, reader)
	met := findMetric(rm, "archos.mutations")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric is %T, not a sum", met.Data)
	}
	if len(sum.DataPoints) != 2 {
		t.Fatalf("got %d data points, want 2 (one per status)", len(sum.DataPoints))
	}

	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		switch status.AsString() {
		case "ok":
			if dp.Value != 2 {
				t.Errorf("ok count = %d, want 2", dp.Value)
			}
		case "error":
			if dp.Value != 1 {
				t.Errorf("error count = %d, want 1", dp.Value)
			}
		default:
			t.Errorf("unexpected status attribute %q", status.AsString())
		}
	}
}

func TestGauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	gauges := []struct {
		name string
		g    metric.Int64UpDownCounter
	}{
		{"archos.active_watchers", m.ActiveWatchers},
		{"archos.ws_clients", m.WSClients},
	}
	for _, tc := range gauges {
		tc.g.Add(ctx, 3)
		tc.g.Add(ctx, -1)
	}

	rm := collect(t, reader)
	for _, tc := range gauges {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric is %T, not a sum", met.Data)
			}
			if got := sum.DataPoints[0].Value; got != 2 {
				t.Errorf("gauge value = %d, want 2", got)
			}
		})
	}
}

func TestFeedEventCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFeedEvent(ctx, "tickets", "insert")
	m.RecordFeedEvent(ctx, "tickets", "insert")

	rm := collect(t, reader)
	met := findMetric(rm, "archos.feed.events")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if got := sum.DataPoints[0].Value; got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}
