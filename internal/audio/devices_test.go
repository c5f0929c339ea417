package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestChunkGeometry(t *testing.T) {
	t.Parallel()

	require.Equal(t, 2048, ChunkBytes(1024))
	require.Equal(t, 0.064, ChunkDuration(1024))
	require.Equal(t, ChunkBytes(DefaultChunkFrames), ChunkBytes(0))
	require.Equal(t, ChunkDuration(DefaultChunkFrames), ChunkDuration(-5))
}

func TestResolveDeviceNegativeIndexPicksDefault(t *testing.T) {
	t.Parallel()

	devices := []Device{
		{Index: 0, ID: "webcam", Available: true},
		{Index: 1, ID: "headset", Available: true, Default: true},
	}

	dev, err := ResolveDevice(devices, -1)
	require.NoError(t, err)
	require.Equal(t, "headset", dev.ID)
}

func TestResolveDeviceByIndex(t *testing.T) {
	t.Parallel()

	devices := []Device{
		{Index: 0, ID: "webcam", Available: true, Default: true},
		{Index: 1, ID: "headset", Available: true},
	}

	dev, err := ResolveDevice(devices, 1)
	require.NoError(t, err)
	require.Equal(t, "headset", dev.ID)
}

func TestResolveDeviceIndexOutOfRange(t *testing.T) {
	t.Parallel()

	devices := []Device{{Index: 0, ID: "webcam", Default: true}}

	_, err := ResolveDevice(devices, 3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of range")
}

func TestResolveDeviceNoDefaultFlagged(t *testing.T) {
	t.Parallel()

	devices := []Device{{Index: 0, ID: "webcam"}}

	_, err := ResolveDevice(devices, -1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "default audio source")
}

func TestResolveDeviceEmptyList(t *testing.T) {
	t.Parallel()

	_, err := ResolveDevice(nil, -1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no audio input devices")
}

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.Error(t, err)
}

func TestSourceStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(99)", sourceStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{})) // no ports => available

	available := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, available, []sourcePort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(available))

	notAvailable := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, notAvailable, []sourcePort{{name: "mic", available: 1}})
	require.False(t, sourceAvailable(notAvailable))
}

type sourcePort struct {
	name      string
	available uint32
}

func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	sliceType := reflect.TypeOf(reply.Ports)
	sliceValue := reflect.MakeSlice(sliceType, len(ports), len(ports))

	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}

	replyValue := reflect.ValueOf(reply).Elem().FieldByName("Ports")
	replyValue.Set(sliceValue)
}
