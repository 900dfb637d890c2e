// Package observe provides application-wide observability primitives for
// stenoproof: OpenTelemetry metrics, distributed tracing, span-aware
// structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all stenoproof metrics.
const meterName = "github.com/MrWong99/stenoproof"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// RunDuration tracks end-to-end proofreading of one transcript.
	RunDuration metric.Float64Histogram

	// ChunkDuration tracks analysis of a single chunk. Use with attribute:
	//   attribute.String("status", "ok"|"failed")
	ChunkDuration metric.Float64Histogram

	// --- Counters ---

	// Chunks counts analyzed chunks. Use with attribute:
	//   attribute.String("status", "ok"|"failed")
	Chunks metric.Int64Counter

	// ParseOutcomes counts how analyzer responses were interpreted. Use with attributes:
	//   attribute.String("strategy", ...), attribute.String("status", "parsed"|"empty"|"unparseable")
	ParseOutcomes metric.Int64Counter

	// TranscriptErrors counts reported transcript errors. Use with attribute:
	//   attribute.String("kind", ...)
	TranscriptErrors metric.Int64Counter

	// PagesProcessed counts transcript pages that went through a run.
	PagesProcessed metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// CircuitTransitions counts circuit breaker state changes. Use with attributes:
	//   attribute.String("breaker", ...), attribute.String("state", ...)
	CircuitTransitions metric.Int64Counter

	// EventsPublished counts run-completed events. Use with attribute:
	//   attribute.String("status", "ok"|"error"|"skipped")
	EventsPublished metric.Int64Counter

	// --- Gauges ---

	// ActiveRuns tracks the number of proofreading runs in flight.
	ActiveRuns metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...), attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// analysisBuckets defines histogram bucket boundaries (in seconds) sized for
// model calls that take from under a second to several minutes.
var analysisBuckets = []float64{
	0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RunDuration, err = m.Float64Histogram("stenoproof.run.duration",
		metric.WithDescription("Latency of proofreading a whole transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChunkDuration, err = m.Float64Histogram("stenoproof.chunk.duration",
		metric.WithDescription("Latency of analyzing one transcript chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Chunks, err = m.Int64Counter("stenoproof.chunks",
		metric.WithDescription("Total analyzed chunks by status."),
	); err != nil {
		return nil, err
	}
	if met.ParseOutcomes, err = m.Int64Counter("stenoproof.parse.outcomes",
		metric.WithDescription("Analyzer responses by parse strategy and status."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptErrors, err = m.Int64Counter("stenoproof.transcript.errors",
		metric.WithDescription("Reported transcript errors by kind."),
	); err != nil {
		return nil, err
	}
	if met.PagesProcessed, err = m.Int64Counter("stenoproof.pages",
		metric.WithDescription("Total transcript pages processed."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("stenoproof.provider.requests",
		metric.WithDescription("Total provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("stenoproof.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.CircuitTransitions, err = m.Int64Counter("stenoproof.circuit.transitions",
		metric.WithDescription("Circuit breaker state transitions by breaker and new state."),
	); err != nil {
		return nil, err
	}
	if met.EventsPublished, err = m.Int64Counter("stenoproof.events.published",
		metric.WithDescription("Run-completed events by publish status."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRuns, err = m.Int64UpDownCounter("stenoproof.active_runs",
		metric.WithDescription("Number of proofreading runs in flight."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("stenoproof.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

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

// RecordChunk records the outcome and latency of one chunk analysis.
func (m *Metrics) RecordChunk(ctx context.Context, status string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Chunks.Add(ctx, 1, attrs)
	m.ChunkDuration.Record(ctx, seconds, attrs)
}

// RecordParseOutcome records how one analyzer response was interpreted.
func (m *Metrics) RecordParseOutcome(ctx context.Context, strategy, status string) {
	m.ParseOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.String("status", status),
		),
	)
}

// RecordTranscriptErrors adds n reported errors of the given kind.
func (m *Metrics) RecordTranscriptErrors(ctx context.Context, kind string, n int) {
	if n <= 0 {
		return
	}
	m.TranscriptErrors.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCircuitTransition records a breaker moving into state.
func (m *Metrics) RecordCircuitTransition(ctx context.Context, breaker, state string) {
	m.CircuitTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("state", state),
		),
	)
}

// RecordEventPublish records one run-completed publish attempt.
func (m *Metrics) RecordEventPublish(ctx context.Context, status string) {
	m.EventsPublished.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
