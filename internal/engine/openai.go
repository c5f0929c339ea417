package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxkit/voxd/internal/config"
)

// openaiEngine transcribes whole clips through the OpenAI audio
// transcription API. The clip is WAV-encoded and uploaded per utterance, so
// this backend trades latency and privacy for zero local model setup.
type openaiEngine struct {
	client   *openai.Client
	model    string
	language string
	logger   *slog.Logger
}

func newOpenAIEngine(cfg config.EngineConfig, logger *slog.Logger) (Engine, error) {
	key := strings.TrimSpace(cfg.OpenAIAPIKey)
	if key == "" {
		return nil, fmt.Errorf("engine.openai_api_key must not be empty for the openai backend")
	}

	clientCfg := openai.DefaultConfig(key)
	if base := strings.TrimSpace(cfg.OpenAIBaseURL); base != "" {
		clientCfg.BaseURL = base
	}

	model := strings.TrimSpace(cfg.OpenAIModel)
	if model == "" {
		model = openai.Whisper1
	}

	return &openaiEngine{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		language: cfg.Language,
		logger:   logger,
	}, nil
}

func (e *openaiEngine) Finalize(ctx context.Context, chunks [][]byte) (string, error) {
	if len(chunks) == 0 {
		return "", nil
	}

	wavPath, err := writeTempWAV(chunks)
	if err != nil {
		return "", err
	}
	defer os.Remove(wavPath)

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: wavPath,
		Language: e.language,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (e *openaiEngine) Close() error { return nil }
