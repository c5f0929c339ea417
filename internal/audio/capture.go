package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

var (
	// ErrClosed is returned by Read after Close; the source is gone for good.
	ErrClosed = errors.New("capture source closed")
	// ErrStreamEnded signals the record stream stopped delivering; recoverable by Reopen.
	ErrStreamEnded = errors.New("record stream ended")
	// ErrReadTimeout signals no audio arrived within the driver timeout; recoverable by Reopen.
	ErrReadTimeout = errors.New("no audio within read timeout")
)

// Source owns a Pulse record stream and hands out fixed-size PCM chunks
// through blocking reads. A Source survives stream loss: Reopen tears down
// the dead stream and builds a fresh one on the configured device.
type Source struct {
	chunkBytes  int
	readTimeout time.Duration

	mu          sync.Mutex
	deviceIndex int
	conn        *captureConn
	closed      bool
}

// Open enumerates devices, resolves deviceIndex (negative means default), and
// starts a 16kHz mono s16 record stream.
func Open(ctx context.Context, deviceIndex, chunkFrames int, readTimeout time.Duration) (*Source, error) {
	s := &Source{
		chunkBytes:  ChunkBytes(chunkFrames),
		readTimeout: readTimeout,
		deviceIndex: deviceIndex,
	}

	conn, err := openConn(ctx, s.deviceIndex, s.chunkBytes)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return s, nil
}

// Device returns metadata for the currently open stream's device.
func (s *Source) Device() Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return Device{}
	}
	return s.conn.device
}

// SetDeviceIndex changes the capture device for the next (re)open.
func (s *Source) SetDeviceIndex(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceIndex = index
}

// Read blocks until one full chunk arrives, the driver timeout elapses, the
// stream ends, or ctx is cancelled. Chunks are never empty.
func (s *Source) Read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()

	if closed || conn == nil {
		return nil, ErrClosed
	}

	timer := time.NewTimer(s.readTimeout)
	defer timer.Stop()

	select {
	case chunk, ok := <-conn.chunks:
		if !ok {
			return nil, ErrStreamEnded
		}
		return chunk, nil
	case <-timer.C:
		return nil, ErrReadTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reopen discards the current stream, re-resolves the configured device,
// and starts a fresh one. Safe to call after Close fails a Read; not safe
// concurrently with itself.
func (s *Source) Reopen(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	old := s.conn
	s.conn = nil
	index := s.deviceIndex
	s.mu.Unlock()

	if old != nil {
		old.stop()
	}

	conn, err := openConn(ctx, index, s.chunkBytes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.stop()
		return ErrClosed
	}
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// BytesCaptured reports total bytes accepted from Pulse on the current stream.
func (s *Source) BytesCaptured() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0
	}
	return s.conn.bytes.Load()
}

// Dropped reports chunks discarded because the reader lagged behind capture.
func (s *Source) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0
	}
	return s.conn.dropped.Load()
}

// Close releases the stream and Pulse client. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.stop()
	}
	return nil
}

// captureConn is one live record stream: Pulse client, stream, and the
// chunker that slices raw callbacks into fixed-size chunks.
type captureConn struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	chunkBytes int
	chunks     chan []byte
	stopCh     chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
	dropped  atomic.Int64
}

func openConn(ctx context.Context, deviceIndex, chunkBytes int) (*captureConn, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	device, err := ResolveDevice(devices, deviceIndex)
	if err != nil {
		return nil, err
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("voxd"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	conn := &captureConn{
		device:     device,
		client:     client,
		chunkBytes: chunkBytes,
		chunks:     make(chan []byte, 128),
		stopCh:     make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(conn.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(uint32(chunkBytes)),
		pulse.RecordMediaName("voxd dictation"),
	)
	if err != nil {
		conn.stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	conn.stream = stream
	stream.Start()
	return conn, nil
}

// stop halts the stream, flushes residual PCM, and closes chunks exactly once.
func (c *captureConn) stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	pending := append([]byte(nil), c.pending...)
	c.pending = nil
	c.mu.Unlock()

	if len(pending) > 0 {
		select {
		case c.chunks <- pending:
		default:
		}
	}

	close(c.chunks)
}

// onPCM receives raw Pulse frames and emits chunkBytes slices to c.chunks.
// When the reader lags and the channel is full, the chunk is dropped and
// counted instead of blocking the Pulse callback.
func (c *captureConn) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)

	c.pending = append(c.pending, buffer...)

	chunks := make([][]byte, 0, len(c.pending)/c.chunkBytes)
	for len(c.pending) >= c.chunkBytes {
		chunk := make([]byte, c.chunkBytes)
		copy(chunk, c.pending[:c.chunkBytes])
		c.pending = c.pending[c.chunkBytes:]
		chunks = append(chunks, chunk)
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, chunk := range chunks {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.chunks <- chunk:
		default:
			c.dropped.Add(1)
		}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
