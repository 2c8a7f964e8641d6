// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, structured logging, and HTTP middleware
// that ties them together.
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all trainer metrics.
const meterName = "github.com/marbeck/viperdojo"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TurnDuration tracks how long the agent speaks per conversation turn.
	TurnDuration metric.Float64Histogram

	// SessionDuration tracks full practice session length.
	SessionDuration metric.Float64Histogram

	// AnalysisDuration tracks post-session debrief generation latency.
	AnalysisDuration metric.Float64Histogram

	// --- Counters ---

	// MediaChunks counts media uploads to the realtime API. Use with attribute:
	//   attribute.String("kind", "audio"|"image")
	MediaChunks metric.Int64Counter

	// InterpreterMatches counts interpreted agent cues. Use with attribute:
	//   attribute.String("rule", ...)
	InterpreterMatches metric.Int64Counter

	// KeyMoments counts recorded key moments. Use with attribute:
	//   attribute.String("kind", ...)
	KeyMoments metric.Int64Counter

	// SilencePenalties counts silence watchdog strikes.
	SilencePenalties metric.Int64Counter

	// SessionsCompleted counts finished sessions. Use with attribute:
	//   attribute.String("outcome", ...)
	SessionsCompleted metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live practice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// turnBuckets defines histogram bucket boundaries (in seconds) sized for
// spoken conversation turns.
var turnBuckets = []float64{
	0.25, 0.5, 1, 2.5, 5, 10, 20, 40,
}

// sessionBuckets defines histogram bucket boundaries (in seconds) sized for
// whole practice sessions.
var sessionBuckets = []float64{
	30, 60, 120, 300, 600, 1200, 1800, 3600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TurnDuration, err = m.Float64Histogram("viperdojo.turn.duration",
		metric.WithDescription("Length of a single agent speaking turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(turnBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("viperdojo.session.duration",
		metric.WithDescription("Length of a full practice session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("viperdojo.analysis.duration",
		metric.WithDescription("Latency of post-session debrief generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(turnBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.MediaChunks, err = m.Int64Counter("viperdojo.media.chunks",
		metric.WithDescription("Total media chunks uploaded by kind."),
	); err != nil {
		return nil, err
	}
	if met.InterpreterMatches, err = m.Int64Counter("viperdojo.interpreter.matches",
		metric.WithDescription("Total interpreted agent cues by rule."),
	); err != nil {
		return nil, err
	}
	if met.KeyMoments, err = m.Int64Counter("viperdojo.moments",
		metric.WithDescription("Total key moments recorded by kind."),
	); err != nil {
		return nil, err
	}
	if met.SilencePenalties, err = m.Int64Counter("viperdojo.silence.penalties",
		metric.WithDescription("Total silence watchdog strikes."),
	); err != nil {
		return nil, err
	}
	if met.SessionsCompleted, err = m.Int64Counter("viperdojo.sessions.completed",
		metric.WithDescription("Total finished sessions by outcome."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("viperdojo.active_sessions",
		metric.WithDescription("Number of live practice sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("viperdojo.http.request.duration",
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

// RecordMediaChunk records one uploaded media chunk of the given kind
// ("audio" or "image").
func (m *Metrics) RecordMediaChunk(ctx context.Context, kind string) {
	m.MediaChunks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordInterpreterMatch records one interpreted cue for the given rule.
func (m *Metrics) RecordInterpreterMatch(ctx context.Context, rule string) {
	m.InterpreterMatches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("rule", rule)),
	)
}

// RecordKeyMoment records one key moment of the given kind.
func (m *Metrics) RecordKeyMoment(ctx context.Context, kind string) {
	m.KeyMoments.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordSessionEnd records a finished session with its outcome and length.
func (m *Metrics) RecordSessionEnd(ctx context.Context, outcome string, d time.Duration) {
	m.SessionsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	m.SessionDuration.Record(ctx, d.Seconds())
}
