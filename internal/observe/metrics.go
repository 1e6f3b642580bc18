// Package observe provides application-wide observability primitives for
// ARCHOS: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all ARCHOS metrics.
const meterName = "github.com/archos-hq/archos"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// LoadDuration tracks full-table snapshot load latency. Use with
	// attribute: attribute.String("resource", ...)
	LoadDuration metric.Float64Histogram

	// --- Counters ---

	// Mutations counts create/update/remove calls. Use with attributes:
	//   attribute.String("resource", ...), attribute.String("op", ...), attribute.String("status", ...)
	Mutations metric.Int64Counter

	// FeedEvents counts change-feed events dispatched to subscribers. Use
	// with attributes:
	//   attribute.String("table", ...), attribute.String("op", ...)
	FeedEvents metric.Int64Counter

	// FeedReconnects counts change-feed connection re-establishments.
	FeedReconnects metric.Int64Counter

	// --- Gauges ---

	// ActiveWatchers tracks the number of collections consuming the feed.
	ActiveWatchers metric.Int64UpDownCounter

	// WSClients tracks the number of connected WebSocket clients.
	WSClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// database round trips.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LoadDuration, err = m.Float64Histogram("archos.load.duration",
		metric.WithDescription("Latency of full-table snapshot loads."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Mutations, err = m.Int64Counter("archos.mutations",
		metric.WithDescription("Total mutations by resource, operation, and status."),
	); err != nil {
		return nil, err
	}
	if met.FeedEvents, err = m.Int64Counter("archos.feed.events",
		metric.WithDescription("Total change-feed events dispatched by table and operation."),
	); err != nil {
		return nil, err
	}
	if met.FeedReconnects, err = m.Int64Counter("archos.feed.reconnects",
		metric.WithDescription("Total change-feed connection re-establishments."),
	); err != nil {
		return nil, err
	}

	if met.ActiveWatchers, err = m.Int64UpDownCounter("archos.active_watchers",
		metric.WithDescription("Number of collections consuming the change feed."),
	); err != nil {
		return nil, err
	}
	if met.WSClients, err = m.Int64UpDownCounter("archos.ws_clients",
		metric.WithDescription("Number of connected WebSocket clients."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("archos.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordMutation records one mutation counter increment with the standard
// attribute set.
func (m *Metrics) RecordMutation(ctx context.Context, res, op, status string) {
	m.Mutations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("resource", res),
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

// RecordFeedEvent records one dispatched change-feed event.
func (m *Metrics) RecordFeedEvent(ctx context.Context, table, op string) {
	m.FeedEvents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("table", table),
			attribute.String("op", op),
		),
	)
}

// RecordLoad records one snapshot load duration in seconds.
func (m *Metrics) RecordLoad(ctx context.Context, res string, seconds float64) {
	m.LoadDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("resource", res)),
	)
}
