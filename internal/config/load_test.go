package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrefersExplicit(t *testing.T) {
	path, err := ResolvePath("/tmp/custom.yaml")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.yaml", path)
}

func TestResolvePathUsesXDGConfigHome(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	path, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "voxd", "config.yaml"), path)
}

func TestResolvePathFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)

	path, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "voxd", "config.yaml"), path)
}

func TestLoadMissingFileReturnsDefaultsWithWarning(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.Len(t, loaded.Warnings, 1)
	require.Contains(t, loaded.Warnings[0].Message, "using defaults")
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
log:
  level: debug
vad:
  sensitivity: 4
  silence_timeout_sec: 1.5
engine:
  backend: whisper-cli
  command: "whisper-wrap --json"
  model_path: /models/base.en
streaming:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, "debug", loaded.Config.Log.Level)
	require.Equal(t, 4, loaded.Config.VAD.Sensitivity)
	require.Equal(t, 1.5, loaded.Config.VAD.SilenceTimeoutSec)
	require.Equal(t, "whisper-cli", loaded.Config.Engine.Backend)
	require.Equal(t, "whisper-wrap --json", loaded.Config.Engine.Command)
	require.True(t, loaded.Config.Streaming.Enabled)

	// Sections absent from the file keep their defaults.
	require.Equal(t, 5000, loaded.Config.Buffer.MaxChunks)
	require.Equal(t, "ws://127.0.0.1:2700", loaded.Config.Engine.VoskURL)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vad: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("VOXD_ENGINE_BACKEND", "mock")
	t.Setenv("VOXD_VAD_SENSITIVITY", "2")
	t.Setenv("VOXD_STREAMING_ENABLED", "true")
	t.Setenv("VOXD_METRICS_LISTEN", "127.0.0.1:9104")

	loaded, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "mock", loaded.Config.Engine.Backend)
	require.Equal(t, 2, loaded.Config.VAD.Sensitivity)
	require.True(t, loaded.Config.Streaming.Enabled)
	require.Equal(t, "127.0.0.1:9104", loaded.Config.Metrics.Listen)
}

func TestLoadFallsBackToOpenAIKeyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	loaded, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "sk-test", loaded.Config.Engine.OpenAIAPIKey)
}
