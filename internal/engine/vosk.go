package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	voxaudio "github.com/voxkit/voxd/internal/audio"
	"github.com/voxkit/voxd/internal/config"
)

// voskEngine speaks the vosk-server WebSocket protocol: one JSON config
// message up front, binary PCM chunks each answered with a JSON result, and
// an eof message that yields the final result. The per-chunk reply keeps the
// exchange lock-step, so the server never queues unbounded audio.
type voskEngine struct {
	url         string
	dialTimeout time.Duration
	logger      *slog.Logger
}

func newVoskEngine(cfg config.EngineConfig, logger *slog.Logger) (Engine, error) {
	url := strings.TrimSpace(cfg.VoskURL)
	if url == "" {
		return nil, fmt.Errorf("engine.vosk_url must not be empty for the vosk backend")
	}
	return &voskEngine{
		url:         url,
		dialTimeout: time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond,
		logger:      logger,
	}, nil
}

type voskResult struct {
	Partial string `json:"partial"`
	Text    string `json:"text"`
}

func (e *voskEngine) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, e.dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, e.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial vosk server %s: %w", e.url, err)
	}

	cfgMsg := map[string]any{"config": map[string]any{"sample_rate": voxaudio.SampleRate}}
	if err := conn.WriteJSON(cfgMsg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send vosk config: %w", err)
	}
	return conn, nil
}

func (e *voskEngine) Finalize(ctx context.Context, chunks [][]byte) (string, error) {
	if len(chunks) == 0 {
		return "", nil
	}

	conn, err := e.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	segments := make([]string, 0, 1)
	collect := func(raw []byte) {
		var res voskResult
		if err := json.Unmarshal(raw, &res); err != nil {
			e.logger.Warn("undecodable vosk result", "error", err.Error())
			return
		}
		if text := strings.TrimSpace(res.Text); text != "" {
			segments = append(segments, text)
		}
	}

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return "", fmt.Errorf("send audio chunk: %w", err)
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("read vosk result: %w", err)
		}
		collect(raw)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		return "", fmt.Errorf("send eof: %w", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read final vosk result: %w", err)
	}
	collect(raw)

	return strings.Join(segments, " "), nil
}

func (e *voskEngine) Close() error { return nil }

// OpenStream starts a live session on a dedicated connection. Results arrive
// on Events until the server closes the socket after eof.
func (e *voskEngine) OpenStream(ctx context.Context) (Stream, error) {
	conn, err := e.dial(ctx)
	if err != nil {
		return nil, err
	}

	s := &voskStream{
		conn:   conn,
		events: make(chan TranscriptEvent, 64),
		logger: e.logger,
	}
	go s.readLoop()
	return s, nil
}

type voskStream struct {
	conn   *websocket.Conn
	events chan TranscriptEvent
	logger *slog.Logger

	writeMu   sync.Mutex
	closeSend sync.Once
	closed    atomic.Bool
}

func (s *voskStream) Send(chunk []byte) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("send audio chunk: %w", err)
	}
	return nil
}

func (s *voskStream) Events() <-chan TranscriptEvent {
	return s.events
}

func (s *voskStream) CloseSend() error {
	var err error
	s.closeSend.Do(func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		err = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`))
	})
	return err
}

func (s *voskStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.conn.Close()
}

func (s *voskStream) readLoop() {
	defer close(s.events)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("vosk stream read ended", "error", err.Error())
			}
			return
		}

		var res voskResult
		if err := json.Unmarshal(raw, &res); err != nil {
			s.logger.Warn("undecodable vosk result", "error", err.Error())
			continue
		}
		switch {
		case strings.TrimSpace(res.Text) != "":
			s.events <- TranscriptEvent{Text: strings.TrimSpace(res.Text), Final: true}
		case res.Partial != "":
			s.events <- TranscriptEvent{Text: res.Partial, Final: false}
		}
	}
}
