// Package metrics exposes Prometheus instrumentation for the dictation
// pipeline. Construct one Metrics per process; registration happens on the
// default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument the daemon records into.
type Metrics struct {
	// Capture metrics
	ChunksCaptured prometheus.Counter
	ChunksDropped  prometheus.Counter
	BytesCaptured  prometheus.Counter

	// VAD metrics
	SpeechChunks  prometheus.Counter
	SilenceChunks prometheus.Counter

	// Buffer metrics
	BufferChunks      prometheus.Gauge
	BufferFillPercent prometheus.Gauge

	// Finalization metrics
	Finalizations    prometheus.Counter
	FinalizeFailures prometheus.Counter
	FinalizeDuration prometheus.Histogram

	// Reconnection metrics
	ReconnectAttempts prometheus.Counter

	// Session metrics
	SessionsStarted prometheus.Counter

	// Streaming metrics
	StreamChunksSent  prometheus.Counter
	StreamQueueDrops  prometheus.Counter
	StreamSendLatency prometheus.Histogram

	// Callback dispatch metrics
	EventsDropped prometheus.Counter
}

// New creates and registers all instruments. Call once per process.
func New() *Metrics {
	return &Metrics{
		ChunksCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_audio_chunks_captured_total",
			Help: "Total audio chunks read from the capture source",
		}),
		ChunksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_audio_chunks_dropped_total",
			Help: "Total capture chunks dropped because the reader lagged",
		}),
		BytesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_audio_bytes_captured_total",
			Help: "Total PCM bytes read from the capture source",
		}),

		SpeechChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_vad_speech_chunks_total",
			Help: "Total chunks the voice activity detector classified as speech",
		}),
		SilenceChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_vad_silence_chunks_total",
			Help: "Total chunks the voice activity detector classified as silence",
		}),

		BufferChunks: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voxd_buffer_chunks",
			Help: "Current number of chunks in the utterance buffer",
		}),
		BufferFillPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voxd_buffer_fill_percent",
			Help: "Utterance buffer fill level as a percentage of its limit",
		}),

		Finalizations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_finalizations_total",
			Help: "Total utterances sent to the recognition engine",
		}),
		FinalizeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_finalize_failures_total",
			Help: "Total finalizations that failed at the recognition engine",
		}),
		FinalizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxd_finalize_duration_seconds",
			Help:    "Recognition engine latency per finalized utterance",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),

		ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_reconnect_attempts_total",
			Help: "Total audio device reconnection attempts",
		}),

		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_sessions_started_total",
			Help: "Total dictation sessions started",
		}),

		StreamChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_stream_chunks_sent_total",
			Help: "Total chunks forwarded to a streaming recognition backend",
		}),
		StreamQueueDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_stream_queue_drops_total",
			Help: "Total chunks dropped because the streaming work queue was full",
		}),
		StreamSendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxd_stream_send_duration_seconds",
			Help:    "Latency of forwarding one chunk to the streaming backend",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		}),

		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxd_callback_events_dropped_total",
			Help: "Total callback events dropped because the dispatch queue was full",
		}),
	}
}

// Handler serves the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordChunkCaptured records one chunk read from the source.
func (m *Metrics) RecordChunkCaptured(bytes int) {
	m.ChunksCaptured.Inc()
	m.BytesCaptured.Add(float64(bytes))
}

// RecordVADResult records one chunk classification.
func (m *Metrics) RecordVADResult(speech bool) {
	if speech {
		m.SpeechChunks.Inc()
	} else {
		m.SilenceChunks.Inc()
	}
}

// SetBufferLevel records the buffer gauges from a stats snapshot.
func (m *Metrics) SetBufferLevel(chunks int, fillPercent float64) {
	m.BufferChunks.Set(float64(chunks))
	m.BufferFillPercent.Set(fillPercent)
}

// RecordFinalize records one engine finalization and its outcome.
func (m *Metrics) RecordFinalize(seconds float64, err error) {
	m.Finalizations.Inc()
	m.FinalizeDuration.Observe(seconds)
	if err != nil {
		m.FinalizeFailures.Inc()
	}
}

// RecordReconnectAttempt records one counted reconnection attempt.
func (m *Metrics) RecordReconnectAttempt() {
	m.ReconnectAttempts.Inc()
}

// RecordSessionStarted records one session start.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordStreamSend records one chunk forwarded to a streaming backend.
func (m *Metrics) RecordStreamSend(seconds float64) {
	m.StreamChunksSent.Inc()
	m.StreamSendLatency.Observe(seconds)
}

// RecordStreamQueueDrop records one chunk lost to a full work queue.
func (m *Metrics) RecordStreamQueueDrop() {
	m.StreamQueueDrops.Inc()
}

// RecordEventDropped records one callback event lost to a full dispatch queue.
func (m *Metrics) RecordEventDropped() {
	m.EventsDropped.Inc()
}
