// Package observe provides application-wide observability primitives for
// rapvox: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all rapvox metrics.
const meterName = "github.com/MrWong99/rapvox"

// Reasons reported with [Metrics.FinalsSuppressed].
const (
	ReasonDebounce = "debounce"
	ReasonCooldown = "cooldown"
)

// Kinds reported with [Metrics.Unmatched].
const (
	KindUnmatched = "unmatched"
	KindDeclined  = "declined"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// RecognizerDuration tracks how long one AcceptWaveform call takes. Use
	// with attribute.String("mode", ...).
	RecognizerDuration metric.Float64Histogram

	// --- Audio counters ---

	// FramesProcessed counts audio frames handled by session loops.
	FramesProcessed metric.Int64Counter

	// FramesDropped counts frames dropped because a session queue was full.
	FramesDropped metric.Int64Counter

	// ForcedBoundaries counts utterances finalised by sustained silence.
	ForcedBoundaries metric.Int64Counter

	// --- Command counters ---

	// CommandsEmitted counts final messages sent. Use with attribute:
	//   attribute.String("phrase", ...)
	CommandsEmitted metric.Int64Counter

	// FinalsSuppressed counts finals rejected by the gate. Use with attribute:
	//   attribute.String("reason", ReasonDebounce|ReasonCooldown)
	FinalsSuppressed metric.Int64Counter

	// Unmatched counts command finals that matched no phrase. Use with
	// attribute:
	//   attribute.String("kind", KindUnmatched|KindDeclined)
	Unmatched metric.Int64Counter

	// ModeSwitches counts effective mode changes. Use with attribute:
	//   attribute.String("mode", ...)
	ModeSwitches metric.Int64Counter

	// --- Freestyle ---

	// FreestyleScore records the total score of every finalised window. Use
	// with attribute.String("rank", ...).
	FreestyleScore metric.Float64Histogram

	// --- Errors ---

	// SendErrors counts failed writes to the client.
	SendErrors metric.Int64Counter

	// SessionsRejected counts connections refused because the session limit
	// was reached.
	SessionsRejected metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for per-frame recognizer latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// scoreBuckets are the rank thresholds plus quartiles.
var scoreBuckets = []float64{
	0.25, 0.45, 0.60, 0.75, 0.90, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecognizerDuration, err = m.Float64Histogram("rapvox.recognizer.duration",
		metric.WithDescription("Latency of feeding one audio block to the recognizer."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FreestyleScore, err = m.Float64Histogram("rapvox.freestyle.score",
		metric.WithDescription("Total score of finalised freestyle windows."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesProcessed, err = m.Int64Counter("rapvox.frames.processed",
		metric.WithDescription("Total audio frames processed by session loops."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("rapvox.frames.dropped",
		metric.WithDescription("Total audio frames dropped because the session queue was full."),
	); err != nil {
		return nil, err
	}
	if met.ForcedBoundaries, err = m.Int64Counter("rapvox.segment.forced",
		metric.WithDescription("Total utterances finalised by sustained silence."),
	); err != nil {
		return nil, err
	}
	if met.CommandsEmitted, err = m.Int64Counter("rapvox.commands.emitted",
		metric.WithDescription("Total command finals sent by phrase."),
	); err != nil {
		return nil, err
	}
	if met.FinalsSuppressed, err = m.Int64Counter("rapvox.finals.suppressed",
		metric.WithDescription("Total command finals suppressed by reason."),
	); err != nil {
		return nil, err
	}
	if met.Unmatched, err = m.Int64Counter("rapvox.unmatched",
		metric.WithDescription("Total command finals that matched no phrase by kind."),
	); err != nil {
		return nil, err
	}
	if met.ModeSwitches, err = m.Int64Counter("rapvox.mode.switches",
		metric.WithDescription("Total session mode changes by target mode."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.SendErrors, err = m.Int64Counter("rapvox.send.errors",
		metric.WithDescription("Total failed writes to the client."),
	); err != nil {
		return nil, err
	}
	if met.SessionsRejected, err = m.Int64Counter("rapvox.sessions.rejected",
		metric.WithDescription("Total connections refused at the session limit."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("rapvox.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("rapvox.http.request.duration",
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

// RecordCommand records an emitted command final.
func (m *Metrics) RecordCommand(ctx context.Context, phrase string) {
	m.CommandsEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("phrase", phrase)))
}

// RecordSuppressed records a final rejected by the gate.
func (m *Metrics) RecordSuppressed(ctx context.Context, reason string) {
	m.FinalsSuppressed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordUnmatched records a command final that matched no phrase.
func (m *Metrics) RecordUnmatched(ctx context.Context, kind string) {
	m.Unmatched.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordModeSwitch records an effective mode change.
func (m *Metrics) RecordModeSwitch(ctx context.Context, mode string) {
	m.ModeSwitches.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordFreestyleScore records the total of a finalised window.
func (m *Metrics) RecordFreestyleScore(ctx context.Context, total float64, rank string) {
	m.FreestyleScore.Record(ctx, total, metric.WithAttributes(attribute.String("rank", rank)))
}

// RecordRecognizerLatency records one AcceptWaveform latency in seconds.
func (m *Metrics) RecordRecognizerLatency(ctx context.Context, seconds float64, mode string) {
	m.RecognizerDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("mode", mode)))
}
