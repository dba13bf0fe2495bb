package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice transcriber.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Capture metrics
	RecordingsStarted prometheus.Counter
	RecordingsStopped prometheus.Counter
	RecordingActive   prometheus.Gauge
	CapturedDuration  prometheus.Histogram
	WAVSize           prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  *prometheus.CounterVec
	TranscriptionDuration  prometheus.Histogram
	TranscriptionInFlight  prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// Passing nil registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Capture metrics
		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_recordings_started_total",
			Help: "Total number of recording sessions started",
		}),
		RecordingsStopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_recordings_stopped_total",
			Help: "Total number of recording sessions stopped with audio",
		}),
		RecordingActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voice_recording_active",
			Help: "1 while a recording session is open",
		}),
		CapturedDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_captured_duration_seconds",
			Help:    "Length of captured audio per recording",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
		}),
		WAVSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_wav_size_bytes",
			Help:    "Size of encoded WAV containers",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		// Transcription metrics
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_transcription_successes_total",
			Help: "Total number of non-empty transcripts received",
		}),
		TranscriptionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_transcription_failures_total",
			Help: "Total number of failed recording cycles by error kind",
		}, []string{"kind"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7 minutes
		}),
		TranscriptionInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voice_transcription_in_flight",
			Help: "Current number of submissions awaiting a response",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordRecordingStarted increments the recordings started counter
func (m *Metrics) RecordRecordingStarted() {
	if m == nil {
		return
	}
	m.RecordingsStarted.Inc()
	m.RecordingActive.Set(1)
}

// RecordRecordingStopped records a stopped session and the size of its container.
// wavBytes is zero when nothing was captured.
func (m *Metrics) RecordRecordingStopped(capturedSeconds float64, wavBytes int) {
	if m == nil {
		return
	}
	m.RecordingActive.Set(0)
	if wavBytes == 0 {
		return
	}
	m.RecordingsStopped.Inc()
	m.CapturedDuration.Observe(capturedSeconds)
	m.WAVSize.Observe(float64(wavBytes))
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	if m == nil {
		return
	}
	m.TranscriptionRequests.Inc()
	m.TranscriptionInFlight.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionInFlight.Dec()
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed submission
func (m *Metrics) RecordTranscriptionFailure(kind string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionInFlight.Dec()
	m.TranscriptionFailures.WithLabelValues(kind).Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordCaptureFailure records a cycle that failed before anything was submitted
func (m *Metrics) RecordCaptureFailure(kind string) {
	if m == nil {
		return
	}
	m.RecordingActive.Set(0)
	m.TranscriptionFailures.WithLabelValues(kind).Inc()
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
