// Package recognition coordinates the dictation pipeline: it owns the
// capture source, voice activity detection, utterance buffering, engine
// finalization, command extraction, and callback dispatch.
package recognition

import (
	"context"
	"errors"
	"io"
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

// captureSource is the slice of audio.Source behavior the orchestrator
// depends on, an interface so tests can run without a sound server.
type captureSource interface {
	Read(ctx context.Context) ([]byte, error)
	Reopen(ctx context.Context) error
	SetDeviceIndex(index int)
	Device() audio.Device
	BytesCaptured() int64
	Dropped() int64
	Close() error
}

// Stats is a point-in-time snapshot of pipeline health for status queries.
type Stats struct {
	State             fsm.State         `json:"state"`
	SessionID         string            `json:"session_id,omitempty"`
	Device            string            `json:"device,omitempty"`
	BytesCaptured     int64             `json:"bytes_captured"`
	DroppedChunks     int64             `json:"dropped_chunks"`
	DroppedEvents     uint64            `json:"dropped_events"`
	ReconnectAttempts int               `json:"reconnect_attempts"`
	Sensitivity       int               `json:"sensitivity"`
	SilenceTimeoutSec float64           `json:"silence_timeout_sec"`
	Buffer            audio.BufferStats `json:"buffer"`
}

// Orchestrator runs batch dictation sessions: a capture goroutine reads
// fixed-size chunks, buffers them, and finalizes the whole utterance through
// the engine once accumulated silence crosses the timeout.
type Orchestrator struct {
	logger     *slog.Logger
	engine     engine.Engine
	hooks      Hooks
	metrics    *metrics.Metrics
	dispatcher *Dispatcher

	reconnector *Reconnector
	buffer      *audio.Buffer

	chunkFrames int
	readTimeout time.Duration

	// openSource is swappable so tests can inject a fake capture source.
	openSource func(ctx context.Context, deviceIndex int) (captureSource, error)

	mu             sync.Mutex
	state          fsm.State
	deviceIndex    int
	sensitivity    int
	silenceTimeout float64
	source         captureSource
	cancel         context.CancelFunc
	captureDone    chan struct{}
	supervisorDone chan struct{}
	sessionID      string
}

// NewOrchestrator builds an idle orchestrator from validated config. Nil
// hooks, logger, and metrics are replaced with safe defaults.
func NewOrchestrator(cfg config.Config, eng engine.Engine, logger *slog.Logger, hooks Hooks, m *metrics.Metrics) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if hooks == nil {
		hooks = NoopHooks{}
	}

	chunkFrames := cfg.Audio.ChunkFrames
	if chunkFrames <= 0 {
		chunkFrames = audio.DefaultChunkFrames
	}
	readTimeout := time.Duration(cfg.Audio.ReadTimeoutMS) * time.Millisecond

	o := &Orchestrator{
		logger:         logger,
		engine:         eng,
		hooks:          hooks,
		metrics:        m,
		dispatcher:     NewDispatcher(cfg.Streaming.QueueSize, logger, m),
		reconnector:    NewReconnector(cfg.Reconnect.MaxAttempts, logger, m),
		buffer:         audio.NewBuffer(config.ClampBufferChunks(cfg.Buffer.MaxChunks)),
		chunkFrames:    chunkFrames,
		readTimeout:    readTimeout,
		state:          fsm.StateIdle,
		deviceIndex:    cfg.Audio.DeviceIndex,
		sensitivity:    config.ClampSensitivity(cfg.VAD.Sensitivity),
		silenceTimeout: config.ClampSilenceTimeout(cfg.VAD.SilenceTimeoutSec),
	}
	o.openSource = func(ctx context.Context, deviceIndex int) (captureSource, error) {
		return audio.Open(ctx, deviceIndex, o.chunkFrames, o.readTimeout)
	}
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() fsm.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// updateState is the single path for lifecycle transitions; every successful
// transition is published to state callbacks.
func (o *Orchestrator) updateState(event fsm.Event) error {
	o.mu.Lock()
	next, err := fsm.Transition(o.state, event)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	from := o.state
	o.state = next
	o.mu.Unlock()

	o.logger.Debug("state transition", "from", string(from), "to", string(next), "event", string(event))
	o.dispatcher.publishState(from, next)
	return nil
}

// Start opens the capture source and spawns the session goroutines. Starting
// while a session is active is a no-op.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.updateState(fsm.EventStart); err != nil {
		o.logger.Debug("start ignored", "state", string(o.State()))
		return nil
	}

	o.mu.Lock()
	deviceIndex := o.deviceIndex
	sensitivity := o.sensitivity
	silenceTimeout := o.silenceTimeout
	o.mu.Unlock()

	src, err := o.openSource(ctx, deviceIndex)
	if err != nil {
		_ = o.updateState(fsm.EventFail)
		o.hooks.SessionError(context.Background(), err)
		o.logger.Error("open capture source failed", "error", err.Error())
		return err
	}

	sessionID := uuid.NewString()
	o.buffer.Clear()
	detector := vad.NewEnergyDetector(sensitivity)
	segmenter := vad.NewSegmenter(audio.ChunkDuration(o.chunkFrames), silenceTimeout)

	sessionCtx, cancel := context.WithCancel(ctx)
	captureDone := make(chan struct{})
	supervisorDone := make(chan struct{})

	o.mu.Lock()
	o.source = src
	o.cancel = cancel
	o.captureDone = captureDone
	o.supervisorDone = supervisorDone
	o.sessionID = sessionID
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RecordSessionStarted()
	}
	o.hooks.SessionStarted(ctx)
	o.logger.Info("session started",
		"session_id", sessionID,
		"device", src.Device().Description,
		"sensitivity", sensitivity,
		"silence_timeout_sec", silenceTimeout,
		"vad_threshold", detector.Threshold())

	go o.captureLoop(sessionCtx, src, detector, segmenter, captureDone)
	go o.superviseBuffer(sessionCtx, supervisorDone)
	return nil
}

// Stop cancels the session, joins the session goroutines, and returns the
// orchestrator to idle. Stopping while idle is a no-op. Stop from the error
// state clears it.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.state == fsm.StateIdle {
		o.mu.Unlock()
		return nil
	}
	cancel := o.cancel
	captureDone := o.captureDone
	supervisorDone := o.supervisorDone
	o.cancel, o.captureDone, o.supervisorDone = nil, nil, nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if captureDone != nil {
		select {
		case <-captureDone:
		case <-time.After(time.Second):
			// A finalize in flight runs to completion; do not wait for it.
			o.logger.Warn("capture goroutine still running after stop deadline")
		}
	}
	if supervisorDone != nil {
		select {
		case <-supervisorDone:
		case <-time.After(time.Second):
		}
	}

	if err := o.updateState(fsm.EventStop); err != nil {
		o.logger.Debug("stop transition skipped", "error", err.Error())
	}
	o.hooks.SessionStopped(context.Background())
	o.logger.Info("session stopped",
		"dropped_events", o.dispatcher.Dropped(),
		"reconnect_attempts", o.reconnector.Attempts())
	return nil
}

// Configure clamps and stores VAD tunables. A running session keeps the
// values it snapshotted at start; the next session picks these up.
func (o *Orchestrator) Configure(sensitivity int, silenceTimeoutSec float64) (int, float64) {
	clampedSens := config.ClampSensitivity(sensitivity)
	clampedTimeout := config.ClampSilenceTimeout(silenceTimeoutSec)
	if clampedSens != sensitivity || clampedTimeout != silenceTimeoutSec {
		o.logger.Warn("configure values clamped",
			"sensitivity", sensitivity, "clamped_sensitivity", clampedSens,
			"silence_timeout_sec", silenceTimeoutSec, "clamped_silence_timeout_sec", clampedTimeout)
	}

	o.mu.Lock()
	o.sensitivity = clampedSens
	o.silenceTimeout = clampedTimeout
	o.mu.Unlock()

	o.logger.Info("configured", "sensitivity", clampedSens, "silence_timeout_sec", clampedTimeout)
	return clampedSens, clampedTimeout
}

// SetAudioDevice stores the capture device index, honored at the next open
// or reconnect. A negative index selects the default device.
func (o *Orchestrator) SetAudioDevice(index int) {
	o.mu.Lock()
	o.deviceIndex = index
	src := o.source
	o.mu.Unlock()

	if src != nil {
		src.SetDeviceIndex(index)
	}
	o.logger.Info("audio device set", "index", index)
}

// SetBufferLimit clamps and applies a new utterance buffer bound, returning
// the applied value.
func (o *Orchestrator) SetBufferLimit(limit int) int {
	clamped := config.ClampBufferChunks(limit)
	o.buffer.SetLimit(clamped)
	return clamped
}

// BufferStats reports the utterance buffer snapshot.
func (o *Orchestrator) BufferStats() audio.BufferStats {
	return o.buffer.Stats()
}

// Stats reports a snapshot of pipeline health.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	state := o.state
	sessionID := o.sessionID
	src := o.source
	sensitivity := o.sensitivity
	silenceTimeout := o.silenceTimeout
	o.mu.Unlock()

	s := Stats{
		State:             state,
		SessionID:         sessionID,
		DroppedEvents:     o.dispatcher.Dropped(),
		ReconnectAttempts: o.reconnector.Attempts(),
		Sensitivity:       sensitivity,
		SilenceTimeoutSec: silenceTimeout,
		Buffer:            o.buffer.Stats(),
	}
	if src != nil {
		s.Device = src.Device().Description
		s.BytesCaptured = src.BytesCaptured()
		s.DroppedChunks = src.Dropped()
	}
	return s
}

// OnText registers a callback for finalized text.
func (o *Orchestrator) OnText(fn func(text string)) CallbackID { return o.dispatcher.OnText(fn) }

// OnAction registers a callback for extracted actions.
func (o *Orchestrator) OnAction(fn func(action string)) CallbackID { return o.dispatcher.OnAction(fn) }

// OnPartial registers a callback for streaming hypotheses. Batch sessions
// never publish partials.
func (o *Orchestrator) OnPartial(fn func(text string)) CallbackID { return o.dispatcher.OnPartial(fn) }

// OnState registers a callback for state transitions.
func (o *Orchestrator) OnState(fn func(from, to fsm.State)) CallbackID {
	return o.dispatcher.OnState(fn)
}

// Off removes a registered callback.
func (o *Orchestrator) Off(id CallbackID) bool { return o.dispatcher.Off(id) }

// Close stops any active session and shuts down callback dispatch. The
// engine is owned by the caller and is not closed here.
func (o *Orchestrator) Close() error {
	err := o.Stop()
	o.dispatcher.Close()
	return err
}

// captureLoop owns the source for one session: it reads chunks, feeds the
// VAD pipeline, and finalizes utterances inline. The source is released
// unconditionally on exit.
func (o *Orchestrator) captureLoop(ctx context.Context, src captureSource, detector vad.Detector, segmenter *vad.Segmenter, done chan struct{}) {
	defer close(done)
	defer func() {
		if o.metrics != nil {
			if dropped := src.Dropped(); dropped > 0 {
				o.metrics.ChunksDropped.Add(float64(dropped))
			}
		}
		src.Close()
		o.mu.Lock()
		if o.source == src {
			o.source = nil
		}
		o.mu.Unlock()
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
			o.logger.Warn("capture read failed", "error", err.Error())
			if !o.recoverSource(ctx, src) {
				if ctx.Err() != nil {
					return
				}
				_ = o.updateState(fsm.EventFail)
				o.hooks.SessionError(context.Background(), err)
				o.logger.Error("capture source lost",
					"error", err.Error(),
					"reconnect_attempts", o.reconnector.Attempts())
				return
			}
			continue
		}

		o.handleChunk(ctx, chunk, detector, segmenter)
	}
}

// recoverSource runs the reconnection loop until the stream is back, the
// budget runs out, or the session is cancelled.
func (o *Orchestrator) recoverSource(ctx context.Context, src captureSource) bool {
	for {
		if ctx.Err() != nil || o.reconnector.Exhausted() {
			return false
		}
		if o.reconnector.Attempt(ctx, src) {
			return true
		}
	}
}

// handleChunk buffers one chunk and finalizes the utterance when the
// segmenter reports a silence boundary. Silence chunks are buffered too;
// they carry the utterance's trailing context.
func (o *Orchestrator) handleChunk(ctx context.Context, chunk []byte, detector vad.Detector, segmenter *vad.Segmenter) {
	o.buffer.Append(chunk)

	speech := detector.IsSpeech(chunk)
	if o.metrics != nil {
		o.metrics.RecordChunkCaptured(len(chunk))
		o.metrics.RecordVADResult(speech)
	}

	if segmenter.Observe(speech) {
		o.finalizeUtterance(ctx)
	}
}

// finalizeUtterance drains the buffer through the engine and publishes the
// results. Engine failures degrade to an empty transcript: the session keeps
// listening.
func (o *Orchestrator) finalizeUtterance(ctx context.Context) {
	if err := o.updateState(fsm.EventSilence); err != nil {
		o.logger.Debug("finalize skipped", "error", err.Error())
		return
	}

	chunks := o.buffer.Drain()
	if len(chunks) == 0 {
		_ = o.updateState(fsm.EventFinalized)
		return
	}

	start := time.Now()
	// Recognition runs to completion even when Stop cancels the session.
	text, err := o.engine.Finalize(context.WithoutCancel(ctx), chunks)
	elapsed := time.Since(start)
	if o.metrics != nil {
		o.metrics.RecordFinalize(elapsed.Seconds(), err)
	}
	if err != nil {
		o.logger.Error("finalize failed", "error", err.Error(), "chunks", len(chunks))
		o.hooks.SessionError(context.Background(), err)
		text = ""
	}

	if text != "" {
		outText, actions := command.Process(text)
		o.logger.Info("utterance finalized",
			"chunks", len(chunks),
			"chars", len(outText),
			"actions", len(actions),
			"latency_ms", elapsed.Milliseconds())
		if outText != "" {
			o.dispatcher.publishText(outText)
		}
		for _, action := range actions {
			o.dispatcher.publishAction(action)
		}
	} else if err == nil {
		o.logger.Debug("utterance finalized empty", "chunks", len(chunks))
	}

	_ = o.updateState(fsm.EventFinalized)
}

// superviseBuffer refreshes buffer gauges on a 100ms tick for the session's
// lifetime.
func (o *Orchestrator) superviseBuffer(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := o.buffer.Stats()
			if o.metrics != nil {
				o.metrics.SetBufferLevel(stats.Size, stats.PercentFull)
			}
		}
	}
}
