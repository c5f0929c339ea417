package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/voxkit/voxd/internal/config"
)

// whisperCLIEngine transcribes whole clips by invoking a configured command
// on a temporary WAV file. The command prints JSON {"text": ...} on stdout,
// which is how whisper.cpp wrapper scripts conventionally report results.
// One invocation runs at a time; local models rarely tolerate concurrency.
type whisperCLIEngine struct {
	argv      []string
	modelPath string
	language  string
	logger    *slog.Logger

	mu sync.Mutex
}

type whisperCLIResult struct {
	Text string `json:"text"`
}

func newWhisperCLIEngine(cfg config.EngineConfig, logger *slog.Logger) (Engine, error) {
	parser := shellwords.NewParser()
	argv, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("engine.command must not be empty for the whisper-cli backend")
	}

	return &whisperCLIEngine{
		argv:      argv,
		modelPath: cfg.ModelPath,
		language:  cfg.Language,
		logger:    logger,
	}, nil
}

func (e *whisperCLIEngine) Finalize(ctx context.Context, chunks [][]byte) (string, error) {
	if len(chunks) == 0 {
		return "", nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wavPath, err := writeTempWAV(chunks)
	if err != nil {
		return "", err
	}
	defer os.Remove(wavPath)

	args := append([]string{}, e.argv[1:]...)
	args = append(args, "--audio", wavPath)
	if e.modelPath != "" {
		args = append(args, "--model", e.modelPath)
	}
	if e.language != "" {
		args = append(args, "--language", e.language)
	}

	cmd := exec.CommandContext(ctx, e.argv[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("engine command failed: %w: %s", err, stderr.String())
	}

	var res whisperCLIResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return "", fmt.Errorf("decode engine response: %w", err)
	}
	return res.Text, nil
}

func (e *whisperCLIEngine) Close() error { return nil }
