// Package config resolves, parses, validates, and defaults voxd configuration.
package config

// Config is the fully materialized runtime configuration used by voxd.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Audio     AudioConfig     `yaml:"audio"`
	VAD       VADConfig       `yaml:"vad"`
	Buffer    BufferConfig    `yaml:"buffer"`
	Engine    EngineConfig    `yaml:"engine"`
	Streaming StreamingConfig `yaml:"streaming"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Sounds    SoundsConfig    `yaml:"sounds"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LogConfig controls runtime log verbosity.
type LogConfig struct {
	Level string `yaml:"level"`
}

// AudioConfig controls capture device selection and chunking.
type AudioConfig struct {
	// DeviceIndex selects a row from the enumerated source list.
	// Negative means the server default source.
	DeviceIndex   int `yaml:"device_index"`
	ChunkFrames   int `yaml:"chunk_frames"`
	ReadTimeoutMS int `yaml:"read_timeout_ms"`
}

// VADConfig controls speech/silence classification and utterance segmentation.
type VADConfig struct {
	Sensitivity       int     `yaml:"sensitivity"`
	SilenceTimeoutSec float64 `yaml:"silence_timeout_sec"`
}

// BufferConfig bounds the in-memory utterance buffer.
type BufferConfig struct {
	MaxChunks int `yaml:"max_chunks"`
}

// EngineConfig selects and parameterizes the recognition backend.
type EngineConfig struct {
	Backend          string `yaml:"backend"`
	VoskURL          string `yaml:"vosk_url"`
	Command          string `yaml:"command"`
	ModelPath        string `yaml:"model_path"`
	Language         string `yaml:"language"`
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL    string `yaml:"openai_base_url"`
	OpenAIModel      string `yaml:"openai_model"`
	ConnectTimeoutMS int    `yaml:"connect_timeout_ms"`
}

// StreamingConfig controls low-latency streaming recognition.
type StreamingConfig struct {
	Enabled   bool `yaml:"enabled"`
	QueueSize int  `yaml:"queue_size"`
}

// ReconnectConfig bounds audio stream recovery.
type ReconnectConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// SoundsConfig controls session audio cues.
type SoundsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StartFile string `yaml:"start_file"`
	StopFile  string `yaml:"stop_file"`
	ErrorFile string `yaml:"error_file"`
}

// MetricsConfig exposes prometheus metrics when a listen address is set.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Warning reports a non-fatal config issue surfaced to the user.
type Warning struct {
	Message string
}
