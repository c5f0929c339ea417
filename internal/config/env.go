package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnvOverrides layers VOXD_* environment variables over the loaded file.
// OPENAI_API_KEY is honored as a conventional fallback for the engine key.
func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Log.Level, "VOXD_LOG_LEVEL")
	overrideInt(&cfg.Audio.DeviceIndex, "VOXD_AUDIO_DEVICE_INDEX")
	overrideInt(&cfg.Audio.ChunkFrames, "VOXD_AUDIO_CHUNK_FRAMES")
	overrideInt(&cfg.Audio.ReadTimeoutMS, "VOXD_AUDIO_READ_TIMEOUT_MS")
	overrideInt(&cfg.VAD.Sensitivity, "VOXD_VAD_SENSITIVITY")
	overrideFloat(&cfg.VAD.SilenceTimeoutSec, "VOXD_VAD_SILENCE_TIMEOUT_SEC")
	overrideInt(&cfg.Buffer.MaxChunks, "VOXD_BUFFER_MAX_CHUNKS")
	overrideString(&cfg.Engine.Backend, "VOXD_ENGINE_BACKEND")
	overrideString(&cfg.Engine.VoskURL, "VOXD_ENGINE_VOSK_URL")
	overrideString(&cfg.Engine.Command, "VOXD_ENGINE_COMMAND")
	overrideString(&cfg.Engine.ModelPath, "VOXD_ENGINE_MODEL_PATH")
	overrideString(&cfg.Engine.Language, "VOXD_ENGINE_LANGUAGE")
	overrideString(&cfg.Engine.OpenAIAPIKey, "VOXD_ENGINE_OPENAI_API_KEY")
	overrideString(&cfg.Engine.OpenAIBaseURL, "VOXD_ENGINE_OPENAI_BASE_URL")
	overrideString(&cfg.Engine.OpenAIModel, "VOXD_ENGINE_OPENAI_MODEL")
	overrideInt(&cfg.Engine.ConnectTimeoutMS, "VOXD_ENGINE_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.Streaming.Enabled, "VOXD_STREAMING_ENABLED")
	overrideInt(&cfg.Streaming.QueueSize, "VOXD_STREAMING_QUEUE_SIZE")
	overrideInt(&cfg.Reconnect.MaxAttempts, "VOXD_RECONNECT_MAX_ATTEMPTS")
	overrideBool(&cfg.Sounds.Enabled, "VOXD_SOUNDS_ENABLED")
	overrideString(&cfg.Metrics.Listen, "VOXD_METRICS_LISTEN")

	if cfg.Engine.OpenAIAPIKey == "" {
		cfg.Engine.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
}

func overrideString(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*target = strings.TrimSpace(v)
	}
}

func overrideInt(target *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return
	}
	*target = parsed
}

func overrideFloat(target *float64, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return
	}
	*target = parsed
}

func overrideBool(target *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return
	}
	*target = parsed
}
