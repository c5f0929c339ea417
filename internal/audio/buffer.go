package audio

import "sync"

// BufferStats is a point-in-time view of the utterance buffer, derived under
// the buffer lock and never stored.
type BufferStats struct {
	Size        int     `json:"size"`
	Limit       int     `json:"limit"`
	Bytes       int64   `json:"bytes"`
	PercentFull float64 `json:"percent_full"`
}

// Buffer accumulates PCM chunks for the current utterance under a single
// mutex. When an append reaches the limit the oldest quarter is evicted, so
// unbounded silence can never exhaust memory and the retained tail is always
// the most recent audio.
type Buffer struct {
	mu     sync.Mutex
	chunks [][]byte
	limit  int
}

// NewBuffer returns a buffer bounded to limit chunks. Callers are expected to
// pass an already-clamped limit; anything below one is floored.
func NewBuffer(limit int) *Buffer {
	if limit < 1 {
		limit = 1
	}
	return &Buffer{limit: limit}
}

// Append adds one chunk, evicting the oldest limit/4 chunks when the append
// reaches the limit.
func (b *Buffer) Append(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, chunk)
	if len(b.chunks) < b.limit {
		return
	}

	evict := b.limit / 4
	if evict < 1 {
		evict = 1
	}
	if evict > len(b.chunks) {
		evict = len(b.chunks)
	}
	b.chunks = append([][]byte(nil), b.chunks[evict:]...)
}

// Drain returns the buffered chunks and clears the buffer in one critical
// section, so a concurrent Append lands in the next utterance, never between
// snapshot and clear.
func (b *Buffer) Drain() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.chunks
	b.chunks = nil
	return out
}

// Snapshot copies the current chunk list without clearing it.
func (b *Buffer) Snapshot() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([][]byte, len(b.chunks))
	copy(out, b.chunks)
	return out
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
}

// Len reports the current chunk count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// SetLimit changes the bound. Shrinking below the current length keeps only
// the newest chunks.
func (b *Buffer) SetLimit(limit int) {
	if limit < 1 {
		limit = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.limit = limit
	if len(b.chunks) > limit {
		b.chunks = append([][]byte(nil), b.chunks[len(b.chunks)-limit:]...)
	}
}

// Limit reports the current bound.
func (b *Buffer) Limit() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit
}

// Stats derives size, bound, byte usage, and fill percentage.
func (b *Buffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var bytes int64
	for _, chunk := range b.chunks {
		bytes += int64(len(chunk))
	}

	return BufferStats{
		Size:        len(b.chunks),
		Limit:       b.limit,
		Bytes:       bytes,
		PercentFull: float64(len(b.chunks)) / float64(b.limit) * 100,
	}
}
