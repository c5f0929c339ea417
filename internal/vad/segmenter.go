package vad

// Segmenter tracks accumulated silence across a session and reports utterance
// boundaries. Each silent chunk adds one chunk duration; any speech chunk
// resets the counter. The boundary fires when accumulated silence exceeds the
// timeout, and fires again only after another full timeout of silence, so a
// long pause yields one boundary per window rather than one per chunk.
//
// Not safe for concurrent use; each capture loop owns its own Segmenter.
type Segmenter struct {
	chunkDur float64
	timeout  float64

	silence  float64
	speaking bool
}

// NewSegmenter builds a segmenter from the per-chunk duration and the
// silence timeout, both in seconds. Callers pass an already-clamped timeout.
func NewSegmenter(chunkDurSec, timeoutSec float64) *Segmenter {
	return &Segmenter{
		chunkDur: chunkDurSec,
		timeout:  timeoutSec,
	}
}

// Observe feeds one chunk classification and reports whether the silence
// timeout was crossed on this chunk.
func (s *Segmenter) Observe(speech bool) bool {
	if speech {
		s.speaking = true
		s.silence = 0
		return false
	}

	s.silence += s.chunkDur
	if s.silence > s.timeout {
		s.silence = 0
		s.speaking = false
		return true
	}
	return false
}

// Speaking reports whether speech was seen since the last boundary or reset.
// Streaming capture uses this to gate silence chunks before speech onset.
func (s *Segmenter) Speaking() bool {
	return s.speaking
}

// Reset clears silence accounting and the speaking flag.
func (s *Segmenter) Reset() {
	s.silence = 0
	s.speaking = false
}
