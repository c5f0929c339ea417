package doctor

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/voxkit/voxd/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.TrimSpace(v) != "" },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckVoskReadySuccess(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	t.Cleanup(server.Close)

	cfg := config.Default().Engine
	cfg.VoskURL = "ws" + strings.TrimPrefix(server.URL, "http")

	check := checkVoskReady(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "connected to")
}

func TestCheckVoskReadyDialFailure(t *testing.T) {
	cfg := config.Default().Engine
	cfg.VoskURL = "ws://127.0.0.1:1"
	cfg.ConnectTimeoutMS = 200

	check := checkVoskReady(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "dial")
}

func TestCheckVoskReadyEmptyURL(t *testing.T) {
	cfg := config.Default().Engine
	cfg.VoskURL = ""

	check := checkVoskReady(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "vosk_url is empty")
}

func TestCheckEngineCommand(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-whisper")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	cfg := config.Default().Engine
	cfg.Command = "fake-whisper --output-json"

	check := checkEngineCommand(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "found at")
}

func TestCheckEngineCommandFailures(t *testing.T) {
	cfg := config.Default().Engine

	cfg.Command = ""
	require.False(t, checkEngineCommand(cfg).Pass)
	require.Contains(t, checkEngineCommand(cfg).Message, "empty")

	cfg.Command = `broken "quote`
	require.Contains(t, checkEngineCommand(cfg).Message, "unparsable")

	cfg.Command = "definitely-not-a-real-binary"
	require.Contains(t, checkEngineCommand(cfg).Message, "binary not found")
}

func TestCheckModelPath(t *testing.T) {
	cfg := config.Default().Engine

	cfg.ModelPath = ""
	require.True(t, checkModelPath(cfg).Pass)

	modelFile := filepath.Join(t.TempDir(), "ggml-base.bin")
	require.NoError(t, os.WriteFile(modelFile, []byte("weights"), 0o644))
	cfg.ModelPath = modelFile
	check := checkModelPath(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "model present")

	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.bin")
	check = checkModelPath(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "model not found")
}

func TestCheckOpenAIKey(t *testing.T) {
	cfg := config.Default().Engine

	cfg.OpenAIAPIKey = ""
	require.False(t, checkOpenAIKey(cfg).Pass)

	cfg.OpenAIAPIKey = "sk-test"
	require.True(t, checkOpenAIKey(cfg).Pass)
}

func TestCheckAudioDeviceFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioDevice(config.Default())
	require.False(t, check.Pass)
	require.Equal(t, "audio.device", check.Name)
}

func TestRunSelectsBackendChecks(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	cfg := config.Default()
	cfg.Engine.Backend = "mock"
	report := Run(config.Loaded{Path: "/tmp/config.yaml", Config: cfg, Exists: true})

	names := make(map[string]bool)
	for _, check := range report.Checks {
		names[check.Name] = check.Pass
	}
	require.Contains(t, names, "config")
	require.Contains(t, names, "XDG_RUNTIME_DIR")
	require.Contains(t, names, "audio.device")
	require.Contains(t, names, "engine.mock")
	require.True(t, names["engine.mock"])

	cfg.Engine.Backend = "kaldi-ng"
	report = Run(config.Loaded{Path: "/tmp/config.yaml", Config: cfg, Exists: true})
	var sawUnknown bool
	for _, check := range report.Checks {
		if check.Name == "engine.backend" {
			sawUnknown = true
			require.False(t, check.Pass)
			require.Contains(t, check.Message, "unknown backend")
		}
	}
	require.True(t, sawUnknown)
}
