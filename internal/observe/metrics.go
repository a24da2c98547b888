// Package observe provides application-wide observability primitives for
// SpeechLink: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all SpeechLink metrics.
const meterName = "github.com/Naqued/speechlink"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SynthesisDuration tracks remote synthesis latency by provider.
	SynthesisDuration metric.Float64Histogram

	// LocalSpeechDuration tracks local fallback utterance duration.
	LocalSpeechDuration metric.Float64Histogram

	// PlaybackDuration tracks audio playback duration.
	PlaybackDuration metric.Float64Histogram

	// SpeakDuration tracks end-to-end speak request latency, from request
	// acceptance to playback start.
	SpeakDuration metric.Float64Histogram

	// --- Counters ---

	// SpeakRequests counts speak requests. Use with attribute:
	//   attribute.String("path", "remote"|"local"), attribute.String("status", ...)
	SpeakRequests metric.Int64Counter

	// RaceOutcomes counts remote-versus-deadline race resolutions. Use with
	// attribute: attribute.String("outcome", ...)
	RaceOutcomes metric.Int64Counter

	// ProviderErrors counts synthesis provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActivePlaybacks tracks the number of live audio playbacks (0 or 1
	// under the single-handle invariant; values above 1 indicate a leak).
	ActivePlaybacks metric.Int64UpDownCounter

	// RoutingEnabled tracks the audio-routing toggle (0 or 1).
	RoutingEnabled metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for speech-pipeline latencies.
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
	if met.SynthesisDuration, err = m.Float64Histogram("speechlink.synthesis.duration",
		metric.WithDescription("Latency of remote speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LocalSpeechDuration, err = m.Float64Histogram("speechlink.local_speech.duration",
		metric.WithDescription("Duration of local fallback utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("speechlink.playback.duration",
		metric.WithDescription("Duration of audio playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeakDuration, err = m.Float64Histogram("speechlink.speak.duration",
		metric.WithDescription("End-to-end speak request latency until playback start."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SpeakRequests, err = m.Int64Counter("speechlink.speak.requests",
		metric.WithDescription("Total speak requests by path and status."),
	); err != nil {
		return nil, err
	}
	if met.RaceOutcomes, err = m.Int64Counter("speechlink.race.outcomes",
		metric.WithDescription("Remote-versus-deadline race resolutions by outcome."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("speechlink.provider.errors",
		metric.WithDescription("Total synthesis provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActivePlaybacks, err = m.Int64UpDownCounter("speechlink.active_playbacks",
		metric.WithDescription("Number of live audio playbacks."),
	); err != nil {
		return nil, err
	}
	if met.RoutingEnabled, err = m.Int64UpDownCounter("speechlink.routing_enabled",
		metric.WithDescription("Whether audio routing to the virtual microphone is enabled."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("speechlink.http.request.duration",
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

// RecordSpeakRequest is a convenience method that records a speak request
// counter increment with the standard attribute set.
func (m *Metrics) RecordSpeakRequest(ctx context.Context, path, status string) {
	m.SpeakRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("path", path),
			attribute.String("status", status),
		),
	)
}

// RecordRaceOutcome is a convenience method that records one race resolution.
func (m *Metrics) RecordRaceOutcome(ctx context.Context, outcome string) {
	m.RaceOutcomes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
