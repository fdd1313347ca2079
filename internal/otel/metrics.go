package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "claudeye"

// Metrics holds all OTEL metric instruments for claudeye.
// All counters are cumulative (monotonic) and safe for concurrent use.
type Metrics struct {
	// Poll cycles (partitioned by outcome: ok, error)
	Cycles        metric.Int64Counter
	CycleDuration metric.Float64Histogram

	// Pane captures (partitioned by outcome: ok, error, timeout)
	Captures metric.Int64Counter

	// Classification cache
	ClassifyCacheHits   metric.Int64Counter
	ClassifyCacheMisses metric.Int64Counter

	// Classifications and state transitions (partitioned by state)
	Classifications metric.Int64Counter
	Transitions     metric.Int64Counter

	// Activations (partitioned by outcome: ok, error, throttled)
	Activations metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	// --- Poll cycles ---

	m.Cycles, err = meter.Int64Counter("poll.cycles",
		metric.WithDescription("Number of completed poll cycles partitioned by outcome"))
	if err != nil {
		return nil, err
	}

	m.CycleDuration, err = meter.Float64Histogram("poll.cycle.duration",
		metric.WithDescription("Wall time of one poll cycle"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	// --- Captures ---

	m.Captures, err = meter.Int64Counter("pane.captures",
		metric.WithDescription("Number of pane captures partitioned by outcome (ok, error, timeout)"))
	if err != nil {
		return nil, err
	}

	// --- Classification cache ---

	m.ClassifyCacheHits, err = meter.Int64Counter("classify_cache.hits",
		metric.WithDescription("Number of classify cache hits (pane content unchanged, reused previous state)"))
	if err != nil {
		return nil, err
	}

	m.ClassifyCacheMisses, err = meter.Int64Counter("classify_cache.misses",
		metric.WithDescription("Number of classify cache misses (content changed or first classification)"))
	if err != nil {
		return nil, err
	}

	// --- States ---

	m.Classifications, err = meter.Int64Counter("session.classifications",
		metric.WithDescription("Number of session classifications partitioned by state"))
	if err != nil {
		return nil, err
	}

	m.Transitions, err = meter.Int64Counter("session.transitions",
		metric.WithDescription("Number of session state changes partitioned by from/to state"))
	if err != nil {
		return nil, err
	}

	m.Activations, err = meter.Int64Counter("pane.activations",
		metric.WithDescription("Number of pane activation requests partitioned by outcome"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCycle records a completed poll cycle.
func (m *Metrics) RecordCycle(ctx context.Context, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("cycle.outcome", outcome))
	m.Cycles.Add(ctx, 1, attrs)
	m.CycleDuration.Record(ctx, seconds, attrs)
}

// RecordCapture records one pane capture with the given outcome.
func (m *Metrics) RecordCapture(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Captures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("capture.outcome", outcome),
	))
}

// RecordCacheHit records a classify cache hit.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.ClassifyCacheHits.Add(ctx, 1)
}

// RecordCacheMiss records a classify cache miss.
func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.ClassifyCacheMisses.Add(ctx, 1)
}

// RecordClassification records a session classified as state.
func (m *Metrics) RecordClassification(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.Classifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("session.state", state),
	))
}

// RecordTransition records a session moving between states.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.Transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("session.state.from", from),
		attribute.String("session.state.to", to),
	))
}

// RecordActivation records an activation request with the given outcome.
func (m *Metrics) RecordActivation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Activations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("activation.outcome", outcome),
	))
}
