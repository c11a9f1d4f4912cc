// Package observe provides application-wide observability primitives for
// voxtype: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware that ties them together.
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

// meterName is the instrumentation scope name used for all voxtype metrics.
const meterName = "github.com/MrWong99/voxtype"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TranscriptionDuration tracks per-window transcription latency.
	TranscriptionDuration metric.Float64Histogram

	// PolishDuration tracks LLM text-polish latency.
	PolishDuration metric.Float64Histogram

	// --- Counters ---

	// FramesProcessed counts audio frames fed through the pipeline.
	FramesProcessed metric.Int64Counter

	// VADTransitions counts speech boundary transitions. Use with attribute:
	//   attribute.String("transition", "start"|"end")
	VADTransitions metric.Int64Counter

	// WindowsSubmitted counts windows sent to the transcription backend.
	WindowsSubmitted metric.Int64Counter

	// WordsEmitted counts net-new words pushed downstream.
	WordsEmitted metric.Int64Counter

	// Divergences counts reconciliation fallbacks to the full transcript.
	Divergences metric.Int64Counter

	// StaleResults counts transcription results discarded because their
	// session epoch had already ended.
	StaleResults metric.Int64Counter

	// --- Error counters ---

	// TranscriptionFailures counts failed window transcriptions. Use with
	// attribute: attribute.String("backend", ...)
	TranscriptionFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live dictation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for batch transcription latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("voxtype.transcription.duration",
		metric.WithDescription("Latency of per-window batch transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PolishDuration, err = m.Float64Histogram("voxtype.polish.duration",
		metric.WithDescription("Latency of LLM text polishing."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesProcessed, err = m.Int64Counter("voxtype.frames.processed",
		metric.WithDescription("Total audio frames fed through the pipeline."),
	); err != nil {
		return nil, err
	}
	if met.VADTransitions, err = m.Int64Counter("voxtype.vad.transitions",
		metric.WithDescription("Total speech boundary transitions by direction."),
	); err != nil {
		return nil, err
	}
	if met.WindowsSubmitted, err = m.Int64Counter("voxtype.windows.submitted",
		metric.WithDescription("Total windows submitted for transcription."),
	); err != nil {
		return nil, err
	}
	if met.WordsEmitted, err = m.Int64Counter("voxtype.words.emitted",
		metric.WithDescription("Total net-new words emitted downstream."),
	); err != nil {
		return nil, err
	}
	if met.Divergences, err = m.Int64Counter("voxtype.reconcile.divergences",
		metric.WithDescription("Total reconciliation divergence fallbacks."),
	); err != nil {
		return nil, err
	}
	if met.StaleResults, err = m.Int64Counter("voxtype.transcription.stale_results",
		metric.WithDescription("Total transcription results discarded as stale."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.TranscriptionFailures, err = m.Int64Counter("voxtype.transcription.failures",
		metric.WithDescription("Total failed window transcriptions by backend."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxtype.active_sessions",
		metric.WithDescription("Number of live dictation sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxtype.http.request.duration",
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

// RecordTransition records one speech boundary transition.
func (m *Metrics) RecordTransition(ctx context.Context, direction string) {
	m.VADTransitions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("transition", direction)),
	)
}

// RecordTranscription records the outcome of one window transcription.
func (m *Metrics) RecordTranscription(ctx context.Context, backend string, seconds float64, err error) {
	if err != nil {
		m.TranscriptionFailures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("backend", backend)),
		)
		return
	}
	m.TranscriptionDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("backend", backend)),
	)
}
