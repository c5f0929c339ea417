// Package doctor runs readiness diagnostics for config, audio capture, and
// the configured recognition backend.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	shellwords "github.com/mattn/go-shellwords"

	"github.com/voxkit/voxd/internal/audio"
	"github.com/voxkit/voxd/internal/config"
	"github.com/voxkit/voxd/internal/engine"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment, audio, and backend checks for a loaded config.
func Run(cfg config.Loaded) Report {
	configMessage := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMessage = fmt.Sprintf("no file at %q, running on defaults", cfg.Path)
	}

	checks := []Check{{Name: "config", Pass: true, Message: configMessage}}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir available for the control socket", "XDG_RUNTIME_DIR is empty; the control socket has nowhere to live"))

	checks = append(checks, checkAudioDevice(cfg.Config))
	checks = append(checks, checkBackend(cfg.Config.Engine)...)

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	if predicate(os.Getenv(name)) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkAudioDevice enumerates live Pulse sources and resolves the configured
// index, surfacing selection problems before a session hits them.
func checkAudioDevice(cfg config.Config) Check {
	devices, err := audio.ListDevices(context.Background())
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}

	device, err := audio.ResolveDevice(devices, cfg.Audio.DeviceIndex)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}

	message := fmt.Sprintf("selected %q (%d devices)", device.ID, len(devices))
	if !device.Available {
		message += " (device reports unavailable)"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkBackend produces the checks relevant to the configured engine.
func checkBackend(cfg config.EngineConfig) []Check {
	switch strings.TrimSpace(cfg.Backend) {
	case "vosk":
		return []Check{checkVoskReady(cfg)}
	case "whisper-cli":
		return []Check{checkEngineCommand(cfg), checkModelPath(cfg)}
	case "openai":
		return []Check{checkOpenAIKey(cfg)}
	case "mock":
		return []Check{{Name: "engine.mock", Pass: true, Message: "mock backend needs no external services"}}
	default:
		return []Check{{
			Name:    "engine.backend",
			Pass:    false,
			Message: fmt.Sprintf("unknown backend %q (known: %s)", cfg.Backend, strings.Join(engine.Known(), ", ")),
		}}
	}
}

// checkVoskReady dials the configured vosk-server WebSocket endpoint.
func checkVoskReady(cfg config.EngineConfig) Check {
	url := strings.TrimSpace(cfg.VoskURL)
	if url == "" {
		return Check{Name: "engine.vosk", Pass: false, Message: "vosk_url is empty"}
	}

	timeout := time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return Check{Name: "engine.vosk", Pass: false, Message: fmt.Sprintf("dial %s failed: %v", url, err)}
	}
	_ = conn.Close()
	return Check{Name: "engine.vosk", Pass: true, Message: fmt.Sprintf("connected to %s", url)}
}

// checkEngineCommand validates the whisper-cli command parses and its binary
// exists in PATH.
func checkEngineCommand(cfg config.EngineConfig) Check {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		return Check{Name: "engine.command", Pass: false, Message: "engine command is empty"}
	}

	argv, err := shellwords.Parse(command)
	if err != nil || len(argv) == 0 {
		return Check{Name: "engine.command", Pass: false, Message: fmt.Sprintf("unparsable command %q", command)}
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return Check{Name: "engine.command", Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", argv[0])}
	}
	return Check{Name: "engine.command", Pass: true, Message: fmt.Sprintf("found at %s", path)}
}

// checkModelPath verifies the configured model file exists when one is set.
func checkModelPath(cfg config.EngineConfig) Check {
	path := strings.TrimSpace(cfg.ModelPath)
	if path == "" {
		return Check{Name: "engine.model", Pass: true, Message: "no model_path configured; command defaults apply"}
	}
	if _, err := os.Stat(path); err != nil {
		return Check{Name: "engine.model", Pass: false, Message: fmt.Sprintf("model not found: %v", err)}
	}
	return Check{Name: "engine.model", Pass: true, Message: fmt.Sprintf("model present at %s", path)}
}

// checkOpenAIKey verifies an API key is configured.
func checkOpenAIKey(cfg config.EngineConfig) Check {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return Check{Name: "engine.openai", Pass: false, Message: "openai_api_key is empty"}
	}
	return Check{Name: "engine.openai", Pass: true, Message: "api key configured"}
}
