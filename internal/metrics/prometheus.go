// Package metrics exposes Prometheus metrics for the transcription pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transcriber"

// Metrics contains all Prometheus metrics for the transcription service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Pipeline run metrics
	RunsStarted   prometheus.Counter
	RunsCompleted *prometheus.CounterVec
	RunsFailed    *prometheus.CounterVec
	ActiveRuns    prometheus.Gauge
	RunDuration   prometheus.Histogram
	AudioDuration prometheus.Histogram

	// Chunking metrics
	ChunksPerRun      prometheus.Histogram
	EncodedChunkBytes prometheus.Histogram
	PhaseDuration     *prometheus.HistogramVec

	// Transcription metrics
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram

	// Event metrics
	EventsPublished *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates and registers all metrics on reg
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of pipeline runs started",
		}),
		RunsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of pipeline runs completed",
		}, []string{"mode"}),
		RunsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of pipeline runs failed, by phase",
		}, []string{"phase"}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Current number of running pipelines",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of pipeline runs",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17 minutes
		}),
		AudioDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_duration_seconds",
			Help:      "Probed duration of uploaded recordings",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10), // 10s to ~85 minutes
		}),

		ChunksPerRun: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunks_per_run",
			Help:      "Number of chunks planned per run",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
		}),
		EncodedChunkBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encoded_chunk_bytes",
			Help:      "Size of encoded WAV chunks in bytes",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 2, 10), // 64KB to ~32MB
		}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Time spent in each pipeline phase",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}, []string{"phase"}),

		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_requests_total",
			Help:      "Total number of transcription requests sent",
		}),
		TranscriptionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_failures_total",
			Help:      "Total number of failed transcription requests, by HTTP status",
		}, []string{"status_code"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Duration of transcription requests",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3 minutes
		}),

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of run events published",
		}, []string{"event_type", "result"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordRunStarted increments started runs and the active gauge
func (m *Metrics) RecordRunStarted() {
	if m == nil {
		return
	}
	m.RunsStarted.Inc()
	m.ActiveRuns.Inc()
}

// RecordRunCompleted records a successful run; mode is "single" or "chunked"
func (m *Metrics) RecordRunCompleted(mode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunsCompleted.WithLabelValues(mode).Inc()
	m.ActiveRuns.Dec()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunFailed records a failed run and the phase it failed in
func (m *Metrics) RecordRunFailed(phase string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunsFailed.WithLabelValues(phase).Inc()
	m.ActiveRuns.Dec()
	m.RunDuration.Observe(durationSeconds)
}

// RecordPlan records the probed duration and planned chunk count
func (m *Metrics) RecordPlan(audioSeconds float64, chunkCount int) {
	if m == nil {
		return
	}
	m.AudioDuration.Observe(audioSeconds)
	m.ChunksPerRun.Observe(float64(chunkCount))
}

// RecordChunkEncoded records the size of an encoded chunk
func (m *Metrics) RecordChunkEncoded(sizeBytes int) {
	if m == nil {
		return
	}
	m.EncodedChunkBytes.Observe(float64(sizeBytes))
}

// RecordPhase records the time spent in a phase
func (m *Metrics) RecordPhase(phase string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	if m == nil {
		return
	}
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionFailures.WithLabelValues(statusCode).Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordEventPublished records a run event publish attempt
func (m *Metrics) RecordEventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, result).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
