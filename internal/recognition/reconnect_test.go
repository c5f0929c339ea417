package recognition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedReconnectSource struct {
	reopenErrs  []error
	reopenCalls int
	readChunk   []byte
	readErr     error
	readCalls   int
}

func (s *scriptedReconnectSource) Reopen(context.Context) error {
	s.reopenCalls++
	if len(s.reopenErrs) == 0 {
		return nil
	}
	err := s.reopenErrs[0]
	s.reopenErrs = s.reopenErrs[1:]
	return err
}

func (s *scriptedReconnectSource) Read(context.Context) ([]byte, error) {
	s.readCalls++
	return s.readChunk, s.readErr
}

func newTestReconnector(maxAttempts int) (*Reconnector, *[]time.Duration) {
	r := NewReconnector(maxAttempts, nil, nil)
	delays := &[]time.Duration{}
	r.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return r, delays
}

func TestReconnectorBackoffSequence(t *testing.T) {
	t.Parallel()

	r, delays := newTestReconnector(5)
	src := &scriptedReconnectSource{
		reopenErrs: []error{
			errors.New("busy"), errors.New("busy"), errors.New("busy"), errors.New("busy"),
		},
		readChunk: []byte{1, 2},
	}

	var recovered bool
	for !r.Exhausted() {
		if r.Attempt(context.Background(), src) {
			recovered = true
			break
		}
	}

	require.True(t, recovered)
	require.Equal(t, 5, r.Attempts())
	require.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second,
	}, *delays)
	require.Equal(t, 5, src.reopenCalls)
}

func TestReconnectorCounterNeverResets(t *testing.T) {
	t.Parallel()

	r, delays := newTestReconnector(5)
	src := &scriptedReconnectSource{readChunk: []byte{1}}

	// First outage: three attempts, success on the third.
	src.reopenErrs = []error{errors.New("gone"), errors.New("gone")}
	for !r.Attempt(context.Background(), src) {
	}
	require.Equal(t, 3, r.Attempts())

	// Second outage: counter keeps climbing from where it left off.
	src.reopenErrs = []error{errors.New("gone")}
	for !r.Attempt(context.Background(), src) {
	}
	require.Equal(t, 5, r.Attempts())
	require.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second,
	}, *delays)

	// Budget is spent for the lifetime of the reconnector.
	require.True(t, r.Exhausted())
}

func TestReconnectorExhaustionSkipsSleepAndIO(t *testing.T) {
	t.Parallel()

	r, delays := newTestReconnector(1)
	src := &scriptedReconnectSource{reopenErrs: []error{errors.New("gone")}}

	require.False(t, r.Attempt(context.Background(), src))
	require.Equal(t, 1, r.Attempts())
	require.True(t, r.Exhausted())

	// A post-exhaustion attempt must not sleep, reopen, or read.
	sleeps := len(*delays)
	reopens := src.reopenCalls
	reads := src.readCalls
	require.False(t, r.Attempt(context.Background(), src))
	require.Equal(t, 2, r.Attempts())
	require.Len(t, *delays, sleeps)
	require.Equal(t, reopens, src.reopenCalls)
	require.Equal(t, reads, src.readCalls)
}

func TestReconnectorNilSourceDoesNotCount(t *testing.T) {
	t.Parallel()

	r, delays := newTestReconnector(5)
	require.False(t, r.Attempt(context.Background(), nil))
	require.Equal(t, 0, r.Attempts())
	require.Empty(t, *delays)
}

func TestReconnectorHonorsContextDuringSleep(t *testing.T) {
	t.Parallel()

	r := NewReconnector(5, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &scriptedReconnectSource{readChunk: []byte{1}}
	require.False(t, r.Attempt(ctx, src))
	require.Equal(t, 1, r.Attempts())
	require.Zero(t, src.reopenCalls)
}

func TestReconnectorTrialReadMustDeliverAudio(t *testing.T) {
	t.Parallel()

	r, _ := newTestReconnector(5)

	empty := &scriptedReconnectSource{}
	require.False(t, r.Attempt(context.Background(), empty))
	require.Equal(t, 1, empty.reopenCalls)
	require.Equal(t, 1, empty.readCalls)

	failing := &scriptedReconnectSource{readErr: errors.New("still dead")}
	require.False(t, r.Attempt(context.Background(), failing))
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	want := map[int]time.Duration{
		1: 1 * time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
		4: 8 * time.Second,
		5: 10 * time.Second,
		6: 10 * time.Second,
		9: 10 * time.Second,
	}
	for attempt, d := range want {
		require.Equal(t, d, backoffDelay(attempt), "attempt %d", attempt)
	}
}
