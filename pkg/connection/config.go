package connection

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/zanderp25/DeskThing-Client/pkg/heartbeat"
	"github.com/zanderp25/DeskThing-Client/pkg/protolog"
	"github.com/zanderp25/DeskThing-Client/pkg/wire"
)

// Client defaults.
const (
	// DefaultReconnectDelay is the fixed wait in RECONNECT_PENDING.
	DefaultReconnectDelay = 5 * time.Second

	// DefaultSourceTag is stamped on outbound envelopes without an App.
	DefaultSourceTag = "server"
)

// Config configures a Client.
type Config struct {
	// Address is the remote endpoint. It never changes for the life of
	// the client.
	Address string

	// Heartbeat configures liveness probing. Zero fields take defaults.
	Heartbeat heartbeat.Config

	// ReconnectDelay is the wait before each reconnect attempt. Default: 5s.
	ReconnectDelay time.Duration

	// SourceTag is the App of probes and of sends that leave it empty.
	// Default: "server".
	SourceTag string

	// Codec serializes envelopes. Default: wire.JSON().
	Codec wire.Codec
}

func (c Config) withDefaults() Config {
	def := heartbeat.DefaultConfig()
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = def.Interval
	}
	if c.Heartbeat.Timeout == 0 {
		c.Heartbeat.Timeout = def.Timeout
	}
	if c.Heartbeat.MaxMisses == 0 {
		c.Heartbeat.MaxMisses = def.MaxMisses
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.SourceTag == "" {
		c.SourceTag = DefaultSourceTag
	}
	if c.Codec == nil {
		c.Codec = wire.JSON()
	}
	return c
}

// Validate checks a configuration after defaults are applied.
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	if c.ReconnectDelay < 0 {
		return fmt.Errorf("%w: reconnect delay must not be negative", ErrInvalidConfig)
	}
	if err := c.Heartbeat.Validate(); err != nil {
		return fmt.Errorf("%w: heartbeat: %v", ErrInvalidConfig, err)
	}
	return nil
}

// StateObserver is called after every state transition, outside the
// client lock.
type StateObserver func(from, to State)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProtocolLogger captures frames, envelopes, control traffic and
// state changes as protolog events.
func WithProtocolLogger(logger protolog.Logger) Option {
	return func(c *Client) {
		c.protoLogger = logger
	}
}

// WithStateObserver registers fn for state transitions.
func WithStateObserver(fn StateObserver) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

// WithAutoConnect makes New call Connect before returning.
func WithAutoConnect() Option {
	return func(c *Client) {
		c.autoConnect = true
	}
}
