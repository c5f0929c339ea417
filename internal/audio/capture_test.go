package audio

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnOnPCMChunkingAndStopFlushesPending(t *testing.T) {
	conn := &captureConn{
		chunkBytes: 2048,
		chunks:     make(chan []byte, 8),
		stopCh:     make(chan struct{}),
	}

	input := make([]byte, 2048+111)
	for i := range input {
		input[i] = byte(i % 255)
	}

	n, err := conn.onPCM(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)
	require.Equal(t, int64(len(input)), conn.bytes.Load())

	firstChunk := <-conn.chunks
	require.Len(t, firstChunk, 2048)

	conn.stop()

	remaining, ok := <-conn.chunks
	require.True(t, ok)
	require.Len(t, remaining, 111)

	_, ok = <-conn.chunks
	require.False(t, ok)
}

func TestConnOnPCMDropsWhenReaderLags(t *testing.T) {
	conn := &captureConn{
		chunkBytes: 4,
		chunks:     make(chan []byte, 1),
		stopCh:     make(chan struct{}),
	}

	// Three full chunks against a single-slot channel: one delivered, two dropped.
	n, err := conn.onPCM(make([]byte, 12))
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.Equal(t, int64(2), conn.dropped.Load())

	chunk := <-conn.chunks
	require.Len(t, chunk, 4)
}

func TestConnOnPCMReturnsEOFWhenStopped(t *testing.T) {
	conn := &captureConn{
		chunkBytes: 2048,
		chunks:     make(chan []byte, 1),
		stopCh:     make(chan struct{}),
	}
	close(conn.stopCh)

	n, err := conn.onPCM([]byte{1, 2, 3})
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, int64(0), conn.bytes.Load())
}

func TestConnStopIsIdempotent(t *testing.T) {
	conn := &captureConn{
		chunkBytes: 2048,
		chunks:     make(chan []byte, 1),
		stopCh:     make(chan struct{}),
	}
	conn.stop()
	conn.stop()

	_, ok := <-conn.chunks
	require.False(t, ok)
}

func TestSourceReadDeliversChunk(t *testing.T) {
	conn := &captureConn{
		chunkBytes: 4,
		chunks:     make(chan []byte, 2),
		stopCh:     make(chan struct{}),
	}
	conn.chunks <- []byte{1, 2, 3, 4}

	src := &Source{chunkBytes: 4, readTimeout: time.Second, conn: conn}

	chunk, err := src.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, chunk)
}

func TestSourceReadTimesOut(t *testing.T) {
	conn := &captureConn{
		chunkBytes: 4,
		chunks:     make(chan []byte, 1),
		stopCh:     make(chan struct{}),
	}
	src := &Source{chunkBytes: 4, readTimeout: 20 * time.Millisecond, conn: conn}

	_, err := src.Read(context.Background())
	require.ErrorIs(t, err, ErrReadTimeout)
}

func TestSourceReadReportsStreamEnd(t *testing.T) {
	conn := &captureConn{
		chunkBytes: 4,
		chunks:     make(chan []byte, 1),
		stopCh:     make(chan struct{}),
	}
	close(conn.chunks)

	src := &Source{chunkBytes: 4, readTimeout: time.Second, conn: conn}

	_, err := src.Read(context.Background())
	require.ErrorIs(t, err, ErrStreamEnded)
}

func TestSourceReadHonorsContextCancel(t *testing.T) {
	conn := &captureConn{
		chunkBytes: 4,
		chunks:     make(chan []byte, 1),
		stopCh:     make(chan struct{}),
	}
	src := &Source{chunkBytes: 4, readTimeout: time.Minute, conn: conn}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSourceReadAfterClose(t *testing.T) {
	conn := &captureConn{
		chunkBytes: 4,
		chunks:     make(chan []byte, 1),
		stopCh:     make(chan struct{}),
	}
	src := &Source{chunkBytes: 4, readTimeout: time.Second, conn: conn}
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err := src.Read(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestSourceReopenAfterCloseFails(t *testing.T) {
	src := &Source{chunkBytes: 4, readTimeout: time.Second}
	src.closed = true

	err := src.Reopen(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}
