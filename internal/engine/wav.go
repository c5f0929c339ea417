package engine

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	voxaudio "github.com/voxkit/voxd/internal/audio"
)

// writeTempWAV serializes an utterance to a temporary 16-bit mono WAV file
// and returns its path. The caller removes the file when done.
func writeTempWAV(chunks [][]byte) (string, error) {
	file, err := os.CreateTemp(os.TempDir(), "voxd_clip_*.wav")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}

	if err := writePCMToWAV(file, joinChunks(chunks)); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("close wav file: %w", err)
	}
	return file.Name(), nil
}

func writePCMToWAV(file *os.File, pcm []byte) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}

	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: voxaudio.SampleRate},
		Data:   samples,
	}

	enc := wav.NewEncoder(file, voxaudio.SampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
