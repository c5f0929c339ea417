package config

// Clamp bounds enforced by Validate. Tunables outside these ranges are pulled
// back in rather than rejected.
const (
	MinSensitivity = 1
	MaxSensitivity = 5

	MinSilenceTimeoutSec = 0.5
	MaxSilenceTimeoutSec = 5.0

	MinBufferChunks = 100
	MaxBufferChunks = 20000
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Audio: AudioConfig{
			DeviceIndex:   -1,
			ChunkFrames:   1024,
			ReadTimeoutMS: 2000,
		},
		VAD: VADConfig{
			Sensitivity:       3,
			SilenceTimeoutSec: 2.0,
		},
		Buffer: BufferConfig{MaxChunks: 5000},
		Engine: EngineConfig{
			Backend:          "vosk",
			VoskURL:          "ws://127.0.0.1:2700",
			Language:         "en",
			OpenAIModel:      "whisper-1",
			ConnectTimeoutMS: 3000,
		},
		Streaming: StreamingConfig{
			Enabled:   false,
			QueueSize: 64,
		},
		Reconnect: ReconnectConfig{MaxAttempts: 5},
		Sounds:    SoundsConfig{Enabled: true},
		Metrics:   MetricsConfig{},
	}
}
