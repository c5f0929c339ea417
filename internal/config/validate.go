package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants in place and returns non-fatal warnings.
// Out-of-range tunables are clamped with a warning rather than rejected, so a
// bad value never prevents the daemon from starting.
func Validate(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Engine.Backend) == "" {
		return nil, fmt.Errorf("engine.backend must not be empty")
	}
	if cfg.Audio.ChunkFrames <= 0 {
		return nil, fmt.Errorf("audio.chunk_frames must be > 0")
	}
	if cfg.Audio.ReadTimeoutMS <= 0 {
		return nil, fmt.Errorf("audio.read_timeout_ms must be > 0")
	}
	if cfg.Engine.ConnectTimeoutMS <= 0 {
		return nil, fmt.Errorf("engine.connect_timeout_ms must be > 0")
	}
	if cfg.Streaming.QueueSize <= 0 {
		return nil, fmt.Errorf("streaming.queue_size must be > 0")
	}
	if cfg.Reconnect.MaxAttempts < 1 {
		return nil, fmt.Errorf("reconnect.max_attempts must be >= 1")
	}

	if clamped, ok := clampInt(cfg.VAD.Sensitivity, MinSensitivity, MaxSensitivity); ok {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("vad.sensitivity %d out of range [%d,%d]; using %d",
				cfg.VAD.Sensitivity, MinSensitivity, MaxSensitivity, clamped),
		})
		cfg.VAD.Sensitivity = clamped
	}
	if clamped, ok := clampFloat(cfg.VAD.SilenceTimeoutSec, MinSilenceTimeoutSec, MaxSilenceTimeoutSec); ok {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("vad.silence_timeout_sec %.2f out of range [%.1f,%.1f]; using %.2f",
				cfg.VAD.SilenceTimeoutSec, MinSilenceTimeoutSec, MaxSilenceTimeoutSec, clamped),
		})
		cfg.VAD.SilenceTimeoutSec = clamped
	}
	if clamped, ok := clampInt(cfg.Buffer.MaxChunks, MinBufferChunks, MaxBufferChunks); ok {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("buffer.max_chunks %d out of range [%d,%d]; using %d",
				cfg.Buffer.MaxChunks, MinBufferChunks, MaxBufferChunks, clamped),
		})
		cfg.Buffer.MaxChunks = clamped
	}

	return warnings, nil
}

// ClampSensitivity bounds a VAD sensitivity to the supported range.
func ClampSensitivity(v int) int {
	c, _ := clampInt(v, MinSensitivity, MaxSensitivity)
	return c
}

// ClampSilenceTimeout bounds an utterance silence timeout in seconds.
func ClampSilenceTimeout(v float64) float64 {
	c, _ := clampFloat(v, MinSilenceTimeoutSec, MaxSilenceTimeoutSec)
	return c
}

// ClampBufferChunks bounds the utterance buffer chunk limit.
func ClampBufferChunks(v int) int {
	c, _ := clampInt(v, MinBufferChunks, MaxBufferChunks)
	return c
}

func clampInt(v, lo, hi int) (int, bool) {
	switch {
	case v < lo:
		return lo, true
	case v > hi:
		return hi, true
	default:
		return v, false
	}
}

func clampFloat(v, lo, hi float64) (float64, bool) {
	switch {
	case v < lo:
		return lo, true
	case v > hi:
		return hi, true
	default:
		return v, false
	}
}
