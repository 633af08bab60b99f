package connection

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a Client.
type State uint8

const (
	// StateDisconnected is the initial state and the state after Disconnect.
	StateDisconnected State = iota

	// StateConnecting indicates a dial is in progress.
	StateConnecting

	// StateConnected indicates a live session with the heartbeat running.
	StateConnected

	// StateReconnectPending indicates a reconnect timer is armed.
	StateReconnectPending
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnectPending:
		return "RECONNECT_PENDING"
	default:
		return "UNKNOWN"
	}
}

// Connection errors.
var (
	// ErrNotConnected matches every *NotConnectedError.
	ErrNotConnected = errors.New("not connected")

	// ErrClientClosed is returned by Connect after Close.
	ErrClientClosed = errors.New("client closed")

	// ErrHeartbeatTimeout is the failure recorded when the peer stops
	// answering probes.
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")

	// ErrInvalidConfig is wrapped by Config.Validate errors.
	ErrInvalidConfig = errors.New("invalid connection config")
)

// NotConnectedError is returned by Send when the client is not CONNECTED.
// The envelope is dropped, not queued.
type NotConnectedError struct {
	State State
	App   string
	Type  string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("not connected (%s): dropped %s/%s", e.State, e.App, e.Type)
}

// Is lets errors.Is match ErrNotConnected.
func (e *NotConnectedError) Is(target error) bool {
	return target == ErrNotConnected
}
