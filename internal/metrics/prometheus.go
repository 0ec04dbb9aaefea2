package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice query service
type Metrics struct {
	// Capture metrics
	BlocksCaptured  prometheus.Counter
	BlocksDropped   prometheus.Counter
	BlocksProcessed prometheus.Counter
	QueueDepth      prometheus.Gauge
	InputLevel      prometheus.Gauge
	FramesReceived  *prometheus.CounterVec
	ParseErrors     *prometheus.CounterVec

	// VAD metrics
	VADWindowsProcessed prometheus.Counter
	VADVoiceDetected    prometheus.Counter
	VADErrors           prometheus.Counter
	VADProcessingTime   prometheus.Histogram

	// Segmentation metrics
	UtterancesFlushed   *prometheus.CounterVec
	UtterancesDiscarded *prometheus.CounterVec
	UtteranceDuration   prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	LowConfidence          prometheus.Counter

	// Dispatch metrics
	Dispatches        *prometheus.CounterVec
	NLSQLDuration     prometheus.Histogram
	QueriesExecuted   prometheus.Counter
	QueriesRejected   prometheus.Counter
	QueryDuration     prometheus.Histogram
	QueryRowsReturned prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Capture metrics
		BlocksCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_blocks_captured_total",
			Help: "Total number of audio blocks delivered by the source",
		}),
		BlocksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_blocks_dropped_total",
			Help: "Total number of audio blocks dropped because the queue was full",
		}),
		BlocksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_blocks_processed_total",
			Help: "Total number of audio blocks processed by the consumer",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxsql_queue_depth",
			Help: "Current number of blocks waiting in the ingestion queue",
		}),
		InputLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxsql_input_level",
			Help: "Peak absolute sample value of the last captured block",
		}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxsql_source_frames_received_total",
			Help: "Total number of frames received by network sources",
		}, []string{"source"}),
		ParseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxsql_source_parse_errors_total",
			Help: "Total number of frames network sources could not parse",
		}, []string{"source"}),

		// VAD metrics
		VADWindowsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_vad_windows_processed_total",
			Help: "Total number of VAD windows processed",
		}),
		VADVoiceDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_vad_voice_detected_total",
			Help: "Total number of VAD windows with speech detected",
		}),
		VADErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_vad_errors_total",
			Help: "Total number of VAD failures (block skipped)",
		}),
		VADProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxsql_vad_processing_duration_seconds",
			Help:    "Time spent detecting speech in one window",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~200ms
		}),

		// Segmentation metrics
		UtterancesFlushed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxsql_utterances_flushed_total",
			Help: "Total number of utterances sent to transcription",
		}, []string{"reason"}),
		UtterancesDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxsql_utterances_discarded_total",
			Help: "Total number of utterances discarded",
		}, []string{"reason"}),
		UtteranceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxsql_utterance_duration_seconds",
			Help:    "Duration of flushed utterances",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 7), // 0.5s to 32s
		}),

		// Transcription metrics
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_transcription_requests_total",
			Help: "Total number of transcription requests",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxsql_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}),
		LowConfidence: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_transcripts_low_confidence_total",
			Help: "Total number of transcripts with no confident segment",
		}),

		// Dispatch metrics
		Dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxsql_dispatches_total",
			Help: "Total number of transcripts dispatched, by outcome",
		}, []string{"outcome"}),
		NLSQLDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxsql_nlsql_duration_seconds",
			Help:    "Duration of NL->SQL service calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms to ~13s
		}),
		QueriesExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_queries_executed_total",
			Help: "Total number of statements executed",
		}),
		QueriesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxsql_queries_rejected_total",
			Help: "Total number of statements rejected by the read-only guard",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxsql_query_duration_seconds",
			Help:    "Duration of executed statements",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		}),
		QueryRowsReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxsql_query_rows_returned",
			Help:    "Number of rows returned per statement",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxsql_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxsql_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxsql_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordBlockCaptured counts a block from the source and whether it was queued
func (m *Metrics) RecordBlockCaptured(queued bool, level float64) {
	m.BlocksCaptured.Inc()
	if !queued {
		m.BlocksDropped.Inc()
	}
	m.InputLevel.Set(level)
}

// RecordBlockProcessed counts a consumed block and the remaining queue depth
func (m *Metrics) RecordBlockProcessed(queueDepth int) {
	m.BlocksProcessed.Inc()
	m.QueueDepth.Set(float64(queueDepth))
}

// RecordFrameReceived counts a network frame
func (m *Metrics) RecordFrameReceived(source string) {
	m.FramesReceived.WithLabelValues(source).Inc()
}

// RecordParseError counts a malformed network frame
func (m *Metrics) RecordParseError(source string) {
	m.ParseErrors.WithLabelValues(source).Inc()
}

// RecordVADWindow increments VAD windows processed and optionally voice detected
func (m *Metrics) RecordVADWindow(hasVoice bool, processingTimeSeconds float64) {
	m.VADWindowsProcessed.Inc()
	if hasVoice {
		m.VADVoiceDetected.Inc()
	}
	m.VADProcessingTime.Observe(processingTimeSeconds)
}

// RecordVADError counts a failed detection
func (m *Metrics) RecordVADError() {
	m.VADErrors.Inc()
}

// RecordUtteranceFlushed records an utterance handed to transcription
func (m *Metrics) RecordUtteranceFlushed(reason string, durationSeconds float64) {
	m.UtterancesFlushed.WithLabelValues(reason).Inc()
	m.UtteranceDuration.Observe(durationSeconds)
}

// RecordUtteranceDiscarded records a dropped utterance
func (m *Metrics) RecordUtteranceDiscarded(reason string) {
	m.UtterancesDiscarded.WithLabelValues(reason).Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionRequests.Inc()
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionRequests.Inc()
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordLowConfidence counts a transcript rejected by the confidence filter
func (m *Metrics) RecordLowConfidence() {
	m.LowConfidence.Inc()
}

// RecordDispatch counts a dispatch outcome
func (m *Metrics) RecordDispatch(outcome string) {
	m.Dispatches.WithLabelValues(outcome).Inc()
}

// RecordNLSQLCall records the duration of a NL->SQL call
func (m *Metrics) RecordNLSQLCall(durationSeconds float64) {
	m.NLSQLDuration.Observe(durationSeconds)
}

// RecordQueryExecuted records an executed statement
func (m *Metrics) RecordQueryExecuted(durationSeconds float64, rows int) {
	m.QueriesExecuted.Inc()
	m.QueryDuration.Observe(durationSeconds)
	m.QueryRowsReturned.Observe(float64(rows))
}

// RecordQueryRejected counts a statement stopped by the guard
func (m *Metrics) RecordQueryRejected() {
	m.QueriesRejected.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
