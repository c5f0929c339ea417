// Package engine provides pluggable speech-recognition backends behind a
// common finalize contract, plus an optional streaming capability.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/voxkit/voxd/internal/config"
)

// ErrStreamClosed is returned by Stream.Send once the session is torn down.
var ErrStreamClosed = errors.New("recognition stream closed")

// TranscriptEvent is one recognition result. Non-final events are provisional
// hypotheses that later events supersede; final events close an utterance.
type TranscriptEvent struct {
	Text  string
	Final bool
}

// Engine transcribes one finalized utterance at a time. Finalize must return
// ("", nil) for empty input without touching the backend.
type Engine interface {
	Finalize(ctx context.Context, chunks [][]byte) (string, error)
	Close() error
}

// Stream is one live streaming-recognition session.
type Stream interface {
	// Send pushes one PCM chunk. Returns an error once the stream is closed.
	Send(chunk []byte) error
	// Events delivers partial and final transcripts until the stream ends,
	// then closes.
	Events() <-chan TranscriptEvent
	// CloseSend tells the backend no more audio is coming. Idempotent.
	CloseSend() error
	// Close tears the session down.
	Close() error
}

// StreamingEngine is implemented by backends that can transcribe audio as it
// arrives. Callers discover the capability with a type assertion.
type StreamingEngine interface {
	Engine
	OpenStream(ctx context.Context) (Stream, error)
}

type factory func(cfg config.EngineConfig, logger *slog.Logger) (Engine, error)

var factories = map[string]factory{
	"vosk":        newVoskEngine,
	"whisper-cli": newWhisperCLIEngine,
	"openai":      newOpenAIEngine,
	"mock":        newMockEngine,
}

// New constructs the configured backend, failing fast on an unknown name so a
// typo in config surfaces at startup rather than mid-dictation.
func New(cfg config.EngineConfig, logger *slog.Logger) (Engine, error) {
	backend := strings.TrimSpace(cfg.Backend)
	f, ok := factories[backend]
	if !ok {
		return nil, fmt.Errorf("unknown engine backend %q (known: %s)", backend, strings.Join(Known(), ", "))
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return f(cfg, logger.With("engine", backend))
}

// Known lists registered backend names in stable order.
func Known() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// joinChunks flattens an utterance's chunk list into one PCM payload.
func joinChunks(chunks [][]byte) []byte {
	var total int
	for _, chunk := range chunks {
		total += len(chunk)
	}
	pcm := make([]byte, 0, total)
	for _, chunk := range chunks {
		pcm = append(pcm, chunk...)
	}
	return pcm
}
