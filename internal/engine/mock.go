package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxkit/voxd/internal/config"
)

// mockEngine reports clip sizes instead of transcripts. It exists so the
// daemon and its tests can run without any recognition backend installed.
type mockEngine struct {
	logger *slog.Logger
}

func newMockEngine(_ config.EngineConfig, logger *slog.Logger) (Engine, error) {
	return &mockEngine{logger: logger}, nil
}

func (e *mockEngine) Finalize(_ context.Context, chunks [][]byte) (string, error) {
	if len(chunks) == 0 {
		return "", nil
	}
	return fmt.Sprintf("[mock transcript chunks=%d bytes=%d]", len(chunks), len(joinChunks(chunks))), nil
}

func (e *mockEngine) Close() error { return nil }

// OpenStream emits one partial per sent chunk and a final summary on
// CloseSend, mimicking an incremental backend's event cadence.
func (e *mockEngine) OpenStream(_ context.Context) (Stream, error) {
	return &mockStream{events: make(chan TranscriptEvent, 64)}, nil
}

type mockStream struct {
	events chan TranscriptEvent

	mu     sync.Mutex
	chunks int
	bytes  int
	closed bool
	ended  bool
}

func (s *mockStream) Send(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ended {
		return ErrStreamClosed
	}

	s.chunks++
	s.bytes += len(chunk)
	select {
	case s.events <- TranscriptEvent{Text: fmt.Sprintf("[mock partial chunks=%d]", s.chunks)}:
	default:
	}
	return nil
}

func (s *mockStream) Events() <-chan TranscriptEvent {
	return s.events
}

func (s *mockStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil
	}
	s.ended = true

	if s.chunks > 0 {
		s.events <- TranscriptEvent{
			Text:  fmt.Sprintf("[mock transcript chunks=%d bytes=%d]", s.chunks, s.bytes),
			Final: true,
		}
	}
	close(s.events)
	return nil
}

func (s *mockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.ended {
		s.ended = true
		close(s.events)
	}
	return nil
}
