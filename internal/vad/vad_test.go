package vad

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// pcmChunk synthesizes a constant-amplitude s16le chunk.
func pcmChunk(amplitude int16, frames int) []byte {
	chunk := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(chunk[i*2:], uint16(amplitude))
	}
	return chunk
}

func TestEnergyOfConstantAmplitude(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0.0, Energy(nil))
	require.Equal(t, 0.0, Energy([]byte{0x01})) // truncated sample
	require.Equal(t, 1000.0, Energy(pcmChunk(1000, 64)))
	require.Equal(t, 1000.0, Energy(pcmChunk(-1000, 64)))
}

func TestEnergyHandlesMostNegativeSample(t *testing.T) {
	t.Parallel()

	chunk := pcmChunk(-32768, 16)
	require.Equal(t, 32768.0, Energy(chunk))
}

func TestEnergyDetectorThresholdPerSensitivity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sensitivity int
		threshold   float64
	}{
		{sensitivity: 1, threshold: 500},
		{sensitivity: 3, threshold: 500.0 / 3.0},
		{sensitivity: 5, threshold: 100},
		{sensitivity: 0, threshold: 500},  // clamped up
		{sensitivity: 42, threshold: 100}, // clamped down
	}

	for _, tc := range tests {
		det := NewEnergyDetector(tc.sensitivity)
		require.InDelta(t, tc.threshold, det.Threshold(), 1e-9)
	}
}

func TestEnergyDetectorClassifiesSpeech(t *testing.T) {
	t.Parallel()

	det := NewEnergyDetector(3) // threshold ~166.7

	require.True(t, det.IsSpeech(pcmChunk(600, 64)))
	require.True(t, det.IsSpeech(pcmChunk(167, 64)))
	require.False(t, det.IsSpeech(pcmChunk(100, 64)))
	require.False(t, det.IsSpeech(pcmChunk(0, 64)))
	require.False(t, det.IsSpeech(nil))
}

func TestHigherSensitivityCatchesQuieterSpeech(t *testing.T) {
	t.Parallel()

	quiet := pcmChunk(150, 64)
	require.False(t, NewEnergyDetector(1).IsSpeech(quiet))
	require.True(t, NewEnergyDetector(5).IsSpeech(quiet))
}

func TestProbDetectorThresholdMapping(t *testing.T) {
	t.Parallel()

	score := 0.55
	model := func([]byte) float64 { return score }

	// sensitivity 3 -> cutoff 0.6: 0.55 is silence.
	require.False(t, NewProbDetector(model, 3).IsSpeech(nil))
	// sensitivity 2 -> cutoff 0.4: 0.55 is speech.
	require.True(t, NewProbDetector(model, 2).IsSpeech(nil))

	// Cutoff bounds hold even for clamped sensitivities.
	score = 0.95
	require.True(t, NewProbDetector(model, 99).IsSpeech(nil))
	score = 0.05
	require.False(t, NewProbDetector(model, 0).IsSpeech(nil))
}

func TestSegmenterFiresAfterTimeoutOfSilence(t *testing.T) {
	t.Parallel()

	seg := NewSegmenter(0.064, 2.0)

	// 2.0s / 0.064s = 31.25, so the 32nd silent chunk crosses the timeout.
	for i := 0; i < 31; i++ {
		require.False(t, seg.Observe(false), "chunk %d should not fire", i)
	}
	require.True(t, seg.Observe(false))
}

func TestSegmenterSpeechResetsSilence(t *testing.T) {
	t.Parallel()

	seg := NewSegmenter(0.064, 2.0)

	for i := 0; i < 30; i++ {
		seg.Observe(false)
	}
	require.False(t, seg.Observe(true))
	require.True(t, seg.Speaking())

	// Counter restarted: another 31 silent chunks stay under the timeout.
	for i := 0; i < 31; i++ {
		require.False(t, seg.Observe(false))
	}
	require.True(t, seg.Observe(false))
	require.False(t, seg.Speaking())
}

func TestSegmenterOneBoundaryPerTimeoutWindow(t *testing.T) {
	t.Parallel()

	seg := NewSegmenter(0.064, 2.0)
	seg.Observe(true)

	// Three seconds of silence crosses the timeout exactly once; the counter
	// resets at the boundary and the remaining ~1s stays under it.
	boundaries := 0
	for i := 0; i < 47; i++ { // 47 * 64ms ≈ 3.0s
		if seg.Observe(false) {
			boundaries++
		}
	}
	require.Equal(t, 1, boundaries)
}

func TestSegmenterReset(t *testing.T) {
	t.Parallel()

	seg := NewSegmenter(0.064, 0.5)
	seg.Observe(true)
	for i := 0; i < 7; i++ {
		seg.Observe(false)
	}
	seg.Reset()
	require.False(t, seg.Speaking())

	// Accumulation starts over after reset.
	for i := 0; i < 7; i++ {
		require.False(t, seg.Observe(false))
	}
	require.True(t, seg.Observe(false))
}
