package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxkit/voxd/internal/config"
)

func mockForTest(t *testing.T) Engine {
	t.Helper()
	cfg := config.Default().Engine
	cfg.Backend = "mock"
	eng, err := New(cfg, nil)
	require.NoError(t, err)
	return eng
}

func TestMockFinalizeReportsClipSize(t *testing.T) {
	t.Parallel()

	eng := mockForTest(t)
	text, err := eng.Finalize(context.Background(), [][]byte{make([]byte, 2048), make([]byte, 100)})
	require.NoError(t, err)
	require.Equal(t, "[mock transcript chunks=2 bytes=2148]", text)
}

func TestMockStreamLifecycle(t *testing.T) {
	t.Parallel()

	eng := mockForTest(t)
	stream, err := eng.(StreamingEngine).OpenStream(context.Background())
	require.NoError(t, err)

	require.NoError(t, stream.Send(make([]byte, 2048)))
	require.NoError(t, stream.Send(make([]byte, 2048)))
	require.NoError(t, stream.CloseSend())
	require.ErrorIs(t, stream.Send(make([]byte, 2048)), ErrStreamClosed)

	var got []TranscriptEvent
	for ev := range stream.Events() {
		got = append(got, ev)
	}
	require.Equal(t, []TranscriptEvent{
		{Text: "[mock partial chunks=1]", Final: false},
		{Text: "[mock partial chunks=2]", Final: false},
		{Text: "[mock transcript chunks=2 bytes=4096]", Final: true},
	}, got)

	require.NoError(t, stream.Close())
}

func TestMockStreamCloseWithoutAudio(t *testing.T) {
	t.Parallel()

	eng := mockForTest(t)
	stream, err := eng.(StreamingEngine).OpenStream(context.Background())
	require.NoError(t, err)

	require.NoError(t, stream.CloseSend())
	_, open := <-stream.Events()
	require.False(t, open)
	require.NoError(t, stream.Close())
}
