package recognition

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxkit/voxd/internal/audio"
	"github.com/voxkit/voxd/internal/command"
	"github.com/voxkit/voxd/internal/config"
	"github.com/voxkit/voxd/internal/engine"
	"github.com/voxkit/voxd/internal/fsm"
	"github.com/voxkit/voxd/internal/metrics"
	"github.com/voxkit/voxd/internal/vad"
)

// PerfStats reports streaming throughput. Zero Enabled means the engine runs
// in batch mode and no counters accumulate.
type PerfStats struct {
	Enabled           bool    `json:"enabled"`
	ChunksProcessed   int64   `json:"chunks_processed"`
	ProcessingSeconds float64 `json:"processing_seconds"`
	AvgChunkLatencyMS float64 `json:"avg_chunk_latency_ms"`
}

// StreamingOrchestrator feeds audio to a streaming-capable engine as it is
// captured, publishing partial hypotheses along the way. Capture, backend
// sends, and event routing each run on their own goroutine, decoupled by a
// bounded work queue so a slow backend never stalls the microphone.
//
// When the engine cannot stream (or streaming is disabled in config), every
// operation transparently delegates to an embedded batch Orchestrator.
type StreamingOrchestrator struct {
	batch     *Orchestrator
	streamer  engine.StreamingEngine
	queueSize int

	perfMu            sync.Mutex
	chunksProcessed   int64
	processingSeconds float64
	avgLatencyMS      float64

	mu          sync.Mutex
	cancel      context.CancelFunc
	captureDone chan struct{}
	senderDone  chan struct{}
	eventsDone  chan struct{}
	stream      engine.Stream
}

// NewStreamingOrchestrator builds an orchestrator that streams when the
// engine supports it and config enables it, and batches otherwise.
func NewStreamingOrchestrator(cfg config.Config, eng engine.Engine, logger *slog.Logger, hooks Hooks, m *metrics.Metrics) *StreamingOrchestrator {
	batch := NewOrchestrator(cfg, eng, logger, hooks, m)

	queueSize := cfg.Streaming.QueueSize
	if queueSize < 1 {
		queueSize = 64
	}

	s := &StreamingOrchestrator{batch: batch, queueSize: queueSize}
	if cfg.Streaming.Enabled {
		if streamer, ok := eng.(engine.StreamingEngine); ok {
			s.streamer = streamer
		} else {
			batch.logger.Info("engine does not support streaming, batch finalization stays active")
		}
	}
	return s
}

// StreamingActive reports whether sessions stream audio to the backend.
func (s *StreamingOrchestrator) StreamingActive() bool { return s.streamer != nil }

// State returns the current lifecycle state.
func (s *StreamingOrchestrator) State() fsm.State { return s.batch.State() }

// Configure clamps and stores VAD tunables for subsequent sessions.
func (s *StreamingOrchestrator) Configure(sensitivity int, silenceTimeoutSec float64) (int, float64) {
	return s.batch.Configure(sensitivity, silenceTimeoutSec)
}

// SetAudioDevice stores the capture device index for the next (re)open.
func (s *StreamingOrchestrator) SetAudioDevice(index int) { s.batch.SetAudioDevice(index) }

// SetBufferLimit clamps and applies a new utterance buffer bound.
func (s *StreamingOrchestrator) SetBufferLimit(limit int) int { return s.batch.SetBufferLimit(limit) }

// BufferStats reports the utterance buffer snapshot.
func (s *StreamingOrchestrator) BufferStats() audio.BufferStats { return s.batch.BufferStats() }

// Stats reports a snapshot of pipeline health.
func (s *StreamingOrchestrator) Stats() Stats { return s.batch.Stats() }

// OnText registers a callback for finalized text.
func (s *StreamingOrchestrator) OnText(fn func(text string)) CallbackID { return s.batch.OnText(fn) }

// OnAction registers a callback for extracted actions.
func (s *StreamingOrchestrator) OnAction(fn func(action string)) CallbackID {
	return s.batch.OnAction(fn)
}

// OnPartial registers a callback for provisional hypotheses.
func (s *StreamingOrchestrator) OnPartial(fn func(text string)) CallbackID {
	return s.batch.OnPartial(fn)
}

// OnState registers a callback for state transitions.
func (s *StreamingOrchestrator) OnState(fn func(from, to fsm.State)) CallbackID {
	return s.batch.OnState(fn)
}

// Off removes a registered callback.
func (s *StreamingOrchestrator) Off(id CallbackID) bool { return s.batch.Off(id) }

// PerfStats reports streaming throughput counters.
func (s *StreamingOrchestrator) PerfStats() PerfStats {
	if s.streamer == nil {
		return PerfStats{}
	}
	s.perfMu.Lock()
	defer s.perfMu.Unlock()
	return PerfStats{
		Enabled:           true,
		ChunksProcessed:   s.chunksProcessed,
		ProcessingSeconds: s.processingSeconds,
		AvgChunkLatencyMS: s.avgLatencyMS,
	}
}

// Start opens the capture source and recognition stream and spawns the
// session goroutines. Starting while a session is active is a no-op.
func (s *StreamingOrchestrator) Start(ctx context.Context) error {
	if s.streamer == nil {
		return s.batch.Start(ctx)
	}
	b := s.batch

	if err := b.updateState(fsm.EventStart); err != nil {
		b.logger.Debug("start ignored", "state", string(b.State()))
		return nil
	}

	b.mu.Lock()
	deviceIndex := b.deviceIndex
	sensitivity := b.sensitivity
	silenceTimeout := b.silenceTimeout
	b.mu.Unlock()

	src, err := b.openSource(ctx, deviceIndex)
	if err != nil {
		_ = b.updateState(fsm.EventFail)
		b.hooks.SessionError(context.Background(), err)
		b.logger.Error("open capture source failed", "error", err.Error())
		return err
	}

	stream, err := s.streamer.OpenStream(ctx)
	if err != nil {
		src.Close()
		_ = b.updateState(fsm.EventFail)
		b.hooks.SessionError(context.Background(), err)
		b.logger.Error("open recognition stream failed", "error", err.Error())
		return err
	}

	sessionID := uuid.NewString()
	detector := vad.NewEnergyDetector(sensitivity)
	segmenter := vad.NewSegmenter(audio.ChunkDuration(b.chunkFrames), silenceTimeout)

	sessionCtx, cancel := context.WithCancel(ctx)
	workQueue := make(chan []byte, s.queueSize)
	captureDone := make(chan struct{})
	senderDone := make(chan struct{})
	eventsDone := make(chan struct{})

	b.mu.Lock()
	b.source = src
	b.sessionID = sessionID
	b.mu.Unlock()

	s.mu.Lock()
	s.cancel = cancel
	s.captureDone = captureDone
	s.senderDone = senderDone
	s.eventsDone = eventsDone
	s.stream = stream
	s.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordSessionStarted()
	}
	b.hooks.SessionStarted(ctx)
	b.logger.Info("streaming session started",
		"session_id", sessionID,
		"device", src.Device().Description,
		"sensitivity", sensitivity,
		"silence_timeout_sec", silenceTimeout,
		"queue_size", s.queueSize)

	go s.streamCapture(sessionCtx, src, detector, segmenter, workQueue, captureDone)
	go s.streamSender(workQueue, stream, senderDone)
	go s.streamEvents(stream, eventsDone)
	return nil
}

// Stop cancels the session, flushes queued audio to the backend, waits for
// trailing results, and returns to idle. Stopping while idle is a no-op.
func (s *StreamingOrchestrator) Stop() error {
	if s.streamer == nil {
		return s.batch.Stop()
	}
	b := s.batch

	if b.State() == fsm.StateIdle {
		return nil
	}

	s.mu.Lock()
	cancel := s.cancel
	captureDone := s.captureDone
	senderDone := s.senderDone
	eventsDone := s.eventsDone
	stream := s.stream
	s.cancel, s.captureDone, s.senderDone, s.eventsDone, s.stream = nil, nil, nil, nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.join(captureDone, "capture")
	// The sender drains the queue and sends eof; the events goroutine then
	// collects whatever the backend still flushes.
	s.join(senderDone, "sender")
	s.join(eventsDone, "events")
	if stream != nil {
		_ = stream.Close()
	}

	if err := b.updateState(fsm.EventStop); err != nil {
		b.logger.Debug("stop transition skipped", "error", err.Error())
	}
	b.hooks.SessionStopped(context.Background())
	b.logger.Info("streaming session stopped",
		"chunks_streamed", s.PerfStats().ChunksProcessed,
		"dropped_events", b.dispatcher.Dropped())
	return nil
}

// Close stops any active session and shuts down callback dispatch.
func (s *StreamingOrchestrator) Close() error {
	err := s.Stop()
	s.batch.dispatcher.Close()
	return err
}

func (s *StreamingOrchestrator) join(done chan struct{}, name string) {
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		s.batch.logger.Warn("session goroutine still running after stop deadline", "goroutine", name)
	}
}

// streamCapture owns the source: it reads chunks, gates them through VAD,
// and enqueues speech for the sender. Before speech onset silence is
// dropped; once an utterance begins everything is forwarded until the
// silence timeout re-arms the gate.
func (s *StreamingOrchestrator) streamCapture(ctx context.Context, src captureSource, detector vad.Detector, segmenter *vad.Segmenter, workQueue chan<- []byte, done chan struct{}) {
	b := s.batch
	defer close(done)
	defer close(workQueue)
	defer func() {
		if b.metrics != nil {
			if dropped := src.Dropped(); dropped > 0 {
				b.metrics.ChunksDropped.Add(float64(dropped))
			}
		}
		src.Close()
		b.mu.Lock()
		if b.source == src {
			b.source = nil
		}
		b.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		chunk, err := src.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, audio.ErrClosed) {
				return
			}
			b.logger.Warn("capture read failed", "error", err.Error())
			if !b.recoverSource(ctx, src) {
				if ctx.Err() != nil {
					return
				}
				_ = b.updateState(fsm.EventFail)
				b.hooks.SessionError(context.Background(), err)
				b.logger.Error("capture source lost",
					"error", err.Error(),
					"reconnect_attempts", b.reconnector.Attempts())
				return
			}
			continue
		}

		speech := detector.IsSpeech(chunk)
		if b.metrics != nil {
			b.metrics.RecordChunkCaptured(len(chunk))
			b.metrics.RecordVADResult(speech)
		}
		segmenter.Observe(speech)
		if !speech && !segmenter.Speaking() {
			continue
		}

		select {
		case workQueue <- chunk:
		default:
			if b.metrics != nil {
				b.metrics.RecordStreamQueueDrop()
			}
			b.logger.Debug("stream queue full, dropping chunk")
		}
	}
}

// streamSender forwards queued chunks to the backend, timing each send, and
// signals end of audio once the queue closes.
func (s *StreamingOrchestrator) streamSender(workQueue <-chan []byte, stream engine.Stream, done chan struct{}) {
	b := s.batch
	defer close(done)

	for chunk := range workQueue {
		start := time.Now()
		err := stream.Send(chunk)
		elapsed := time.Since(start).Seconds()
		if err != nil {
			if errors.Is(err, engine.ErrStreamClosed) {
				return
			}
			b.logger.Error("stream send failed", "error", err.Error())
			_ = b.updateState(fsm.EventFail)
			b.hooks.SessionError(context.Background(), err)
			return
		}

		s.recordChunk(elapsed)
		if b.metrics != nil {
			b.metrics.RecordStreamSend(elapsed)
		}
	}

	if err := stream.CloseSend(); err != nil {
		b.logger.Debug("close send failed", "error", err.Error())
	}
}

// streamEvents routes backend results: partial hypotheses go straight to
// partial callbacks, final transcripts run through command extraction before
// reaching text and action callbacks.
func (s *StreamingOrchestrator) streamEvents(stream engine.Stream, done chan struct{}) {
	b := s.batch
	defer close(done)

	for ev := range stream.Events() {
		if !ev.Final {
			b.dispatcher.publishPartial(ev.Text)
			continue
		}
		if ev.Text == "" {
			continue
		}

		outText, actions := command.Process(ev.Text)
		b.logger.Info("streaming utterance finalized", "chars", len(outText), "actions", len(actions))
		if outText != "" {
			b.dispatcher.publishText(outText)
		}
		for _, action := range actions {
			b.dispatcher.publishAction(action)
		}
	}
}

func (s *StreamingOrchestrator) recordChunk(seconds float64) {
	s.perfMu.Lock()
	s.chunksProcessed++
	s.processingSeconds += seconds
	s.avgLatencyMS = s.processingSeconds / float64(s.chunksProcessed) * 1000
	s.perfMu.Unlock()
}
