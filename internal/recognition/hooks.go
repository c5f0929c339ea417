package recognition

import "context"

// Hooks receive session lifecycle notifications, typically to play audio
// cues. Implementations must not block for long; they run on session
// goroutines.
type Hooks interface {
	SessionStarted(ctx context.Context)
	SessionStopped(ctx context.Context)
	SessionError(ctx context.Context, err error)
}

// NoopHooks preserves orchestrator flow when no hooks are wired.
type NoopHooks struct{}

func (NoopHooks) SessionStarted(context.Context)      {}
func (NoopHooks) SessionStopped(context.Context)      {}
func (NoopHooks) SessionError(context.Context, error) {}
