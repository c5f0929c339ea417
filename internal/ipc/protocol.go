// Package ipc exposes the daemon control surface: one newline-delimited JSON
// request per connection over a unix socket owned by the running daemon.
package ipc

import "encoding/json"

// Daemon commands. An unknown command yields an error response, never a
// dropped connection.
const (
	CommandStart     = "start"
	CommandStop      = "stop"
	CommandToggle    = "toggle"
	CommandStatus    = "status"
	CommandStats     = "stats"
	CommandSetDevice = "set-device"
)

type Request struct {
	Command string `json:"command"`
	// DeviceIndex accompanies set-device; negative selects the default
	// capture device.
	DeviceIndex *int `json:"device_index,omitempty"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	// Stats carries a pre-marshalled pipeline snapshot for the stats
	// command, opaque to this package.
	Stats json.RawMessage `json:"stats,omitempty"`
	Error string          `json:"error,omitempty"`
}
