package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, handler Handler) (string, func()) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), socketName)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, handler)
	}()

	return socketPath, func() {
		cancel()
		require.NoError(t, <-serveDone)
	}
}

func TestSendRoundTrip(t *testing.T) {
	socketPath, shutdown := startServer(t, HandlerFunc(func(_ context.Context, req Request) Response {
		require.Equal(t, CommandSetDevice, req.Command)
		require.NotNil(t, req.DeviceIndex)
		require.Equal(t, 2, *req.DeviceIndex)
		return Response{OK: true, State: "listening", Message: "device set"}
	}))
	defer shutdown()

	index := 2
	resp, err := Send(context.Background(), socketPath, Request{Command: CommandSetDevice, DeviceIndex: &index}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "listening", resp.State)
	require.Equal(t, "device set", resp.Message)
}

func TestSendCarriesOpaqueStats(t *testing.T) {
	socketPath, shutdown := startServer(t, HandlerFunc(func(_ context.Context, req Request) Response {
		require.Equal(t, CommandStats, req.Command)
		return Response{OK: true, Stats: json.RawMessage(`{"state":"listening","bytes_captured":4096}`)}
	}))
	defer shutdown()

	resp, err := Send(context.Background(), socketPath, Request{Command: CommandStats}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)

	var snapshot struct {
		State         string `json:"state"`
		BytesCaptured int64  `json:"bytes_captured"`
	}
	require.NoError(t, json.Unmarshal(resp.Stats, &snapshot))
	require.Equal(t, "listening", snapshot.State)
	require.Equal(t, int64(4096), snapshot.BytesCaptured)
}

func TestSendDecodeResponseError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), socketName)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestSendReadResponseError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), socketName)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
}

func TestServeDecodeRequestErrorResponse(t *testing.T) {
	socketPath, shutdown := startServer(t, HandlerFunc(func(context.Context, Request) Response {
		return Response{OK: true}
	}))
	defer shutdown()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")
}

func TestProbe(t *testing.T) {
	socketPath, shutdown := startServer(t, HandlerFunc(func(_ context.Context, req Request) Response {
		if req.Command == CommandStatus {
			return Response{OK: true, State: "idle"}
		}
		return Response{Error: "bad"}
	}))

	alive, err := Probe(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	shutdown()

	alive, err = Probe(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}
