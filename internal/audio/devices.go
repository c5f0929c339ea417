// Package audio handles device discovery, PCM capture, and utterance buffering.
package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate is the fixed capture rate expected by every backend.
	SampleRate = 16000
	// BytesPerFrame covers one mono s16le sample.
	BytesPerFrame = 2
	// DefaultChunkFrames yields 2048-byte chunks of 64ms each.
	DefaultChunkFrames = 1024
)

// ChunkDuration returns the wall-clock seconds covered by one chunk.
func ChunkDuration(chunkFrames int) float64 {
	if chunkFrames <= 0 {
		chunkFrames = DefaultChunkFrames
	}
	return float64(chunkFrames) / float64(SampleRate)
}

// ChunkBytes returns the byte size of one fixed-size chunk.
func ChunkBytes(chunkFrames int) int {
	if chunkFrames <= 0 {
		chunkFrames = DefaultChunkFrames
	}
	return chunkFrames * BytesPerFrame
}

// Device describes one Pulse input source surfaced to voxd. Index is the
// position in the enumerated list; device selection by integer index relies
// on the enumeration order being stable between calls.
type Device struct {
	Index       int
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// ListDevices returns available Pulse input sources with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("voxd"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			Index:       len(devices),
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// ResolveDevice maps a configured device index onto the enumerated list.
// A negative index selects the server default source.
func ResolveDevice(devices []Device, index int) (Device, error) {
	if len(devices) == 0 {
		return Device{}, errors.New("no audio input devices found")
	}

	if index < 0 {
		for _, dev := range devices {
			if dev.Default {
				return dev, nil
			}
		}
		return Device{}, errors.New("default audio source is unavailable")
	}

	if index >= len(devices) {
		return Device{}, fmt.Errorf("audio device index %d out of range (have %d devices)", index, len(devices))
	}
	return devices[index], nil
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
