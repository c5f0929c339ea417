// Package vad classifies PCM chunks as speech or silence and segments
// utterances by accumulated silence.
package vad

import "encoding/binary"

const (
	// baseEnergyThreshold divided by sensitivity yields the speech cutoff:
	// higher sensitivity lowers the bar and catches quieter speech.
	baseEnergyThreshold = 500.0

	minSensitivity = 1
	maxSensitivity = 5
)

// Detector classifies one fixed-size PCM chunk.
type Detector interface {
	IsSpeech(chunk []byte) bool
}

// Energy computes the mean absolute amplitude of s16le samples. An empty or
// truncated chunk scores zero.
func Energy(chunk []byte) float64 {
	samples := len(chunk) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < samples; i++ {
		v := int16(binary.LittleEndian.Uint16(chunk[i*2:]))
		a := int32(v)
		if a < 0 {
			a = -a
		}
		sum += float64(a)
	}
	return sum / float64(samples)
}

// EnergyDetector is the canonical detector: speech when mean absolute
// amplitude reaches baseEnergyThreshold/sensitivity.
type EnergyDetector struct {
	threshold float64
}

// NewEnergyDetector builds a detector for a sensitivity in [1,5]; values
// outside the range are clamped.
func NewEnergyDetector(sensitivity int) *EnergyDetector {
	return &EnergyDetector{threshold: baseEnergyThreshold / float64(clampSensitivity(sensitivity))}
}

// Threshold exposes the effective energy cutoff for logging and diagnostics.
func (d *EnergyDetector) Threshold() float64 {
	return d.threshold
}

func (d *EnergyDetector) IsSpeech(chunk []byte) bool {
	return Energy(chunk) >= d.threshold
}

// ProbFunc scores a chunk with an external speech-probability model in [0,1].
type ProbFunc func(chunk []byte) float64

// ProbDetector adapts a probability model to the Detector interface. The
// sensitivity maps to a probability cutoff of sensitivity/5, bounded to
// [0.1, 0.9] so the model can neither be muted nor hair-triggered.
type ProbDetector struct {
	model     ProbFunc
	threshold float64
}

func NewProbDetector(model ProbFunc, sensitivity int) *ProbDetector {
	threshold := float64(clampSensitivity(sensitivity)) / 5.0
	if threshold < 0.1 {
		threshold = 0.1
	}
	if threshold > 0.9 {
		threshold = 0.9
	}
	return &ProbDetector{model: model, threshold: threshold}
}

func (d *ProbDetector) IsSpeech(chunk []byte) bool {
	return d.model(chunk) >= d.threshold
}

func clampSensitivity(v int) int {
	if v < minSensitivity {
		return minSensitivity
	}
	if v > maxSensitivity {
		return maxSensitivity
	}
	return v
}
