package recognition

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/voxkit/voxd/internal/metrics"
)

const maxReconnectDelay = 10 * time.Second

// reconnectSource is the slice of capture-source behavior reconnection
// needs: tear down and rebuild the stream, then prove it delivers audio.
type reconnectSource interface {
	Reopen(ctx context.Context) error
	Read(ctx context.Context) ([]byte, error)
}

// Reconnector recovers a lost capture stream with exponential backoff. The
// attempts counter spans the lifetime of the orchestrator and is never
// reset, not even after a successful recovery: a device that keeps failing
// eventually exhausts its budget for good instead of flapping forever.
type Reconnector struct {
	maxAttempts int
	logger      *slog.Logger
	metrics     *metrics.Metrics

	// sleep is swappable so tests can observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error

	// attempts is read from status paths while the capture goroutine writes.
	attempts atomic.Int64
}

// NewReconnector builds a reconnector with the given lifetime attempt
// budget. A budget below one is floored to one.
func NewReconnector(maxAttempts int, logger *slog.Logger, m *metrics.Metrics) *Reconnector {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconnector{
		maxAttempts: maxAttempts,
		logger:      logger,
		metrics:     m,
		sleep:       sleepCtx,
	}
}

// Attempt makes one recovery attempt: back off, reopen the source on its
// configured device, and trial-read one chunk. It returns true when the new
// stream delivered audio.
//
// A nil source fails without consuming an attempt. Once the counter passes
// the budget, Attempt fails immediately with no sleep and no device I/O.
func (r *Reconnector) Attempt(ctx context.Context, src reconnectSource) bool {
	if src == nil {
		return false
	}

	attempt := int(r.attempts.Add(1))
	if attempt > r.maxAttempts {
		r.logger.Warn("reconnect budget exhausted", "attempts", attempt-1, "max_attempts", r.maxAttempts)
		return false
	}
	if r.metrics != nil {
		r.metrics.RecordReconnectAttempt()
	}

	delay := backoffDelay(attempt)
	r.logger.Info("reconnecting capture source", "attempt", attempt, "max_attempts", r.maxAttempts, "delay", delay.String())
	if err := r.sleep(ctx, delay); err != nil {
		return false
	}

	if err := src.Reopen(ctx); err != nil {
		r.logger.Warn("reopen capture source failed", "attempt", attempt, "error", err.Error())
		return false
	}

	chunk, err := src.Read(ctx)
	if err != nil || len(chunk) == 0 {
		if err != nil {
			r.logger.Warn("trial read after reopen failed", "attempt", attempt, "error", err.Error())
		} else {
			r.logger.Warn("trial read after reopen returned no audio", "attempt", attempt)
		}
		return false
	}

	r.logger.Info("capture source recovered", "attempt", attempt)
	return true
}

// Attempts reports how many attempts have been consumed.
func (r *Reconnector) Attempts() int {
	return int(r.attempts.Load())
}

// Exhausted reports whether the lifetime budget is used up.
func (r *Reconnector) Exhausted() bool {
	return r.attempts.Load() >= int64(r.maxAttempts)
}

// backoffDelay doubles from one second per attempt and caps at ten.
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt >= 5 {
		return maxReconnectDelay
	}
	return time.Second << (attempt - 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
