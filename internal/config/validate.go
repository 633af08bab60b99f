package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zanderp25/DeskThing-Client/pkg/transport"
	"github.com/zanderp25/DeskThing-Client/pkg/wire"
)

// Validate checks that all required fields are set and values are valid.
// Defaults must be applied first.
func (c *Config) Validate() error {
	if c.Endpoint.Address == "" && c.Endpoint.Discovery.Instance == "" {
		return errors.New("endpoint.address or endpoint.discovery.instance is required")
	}
	if c.Endpoint.Address != "" {
		if _, err := transport.Scheme(c.Endpoint.Address); err != nil {
			return fmt.Errorf("endpoint.address: %w", err)
		}
	}
	switch c.Endpoint.Discovery.Scheme {
	case "ws", "wss", "tcp", "tls":
	default:
		return fmt.Errorf("endpoint.discovery.scheme must be ws, wss, tcp or tls, got %q", c.Endpoint.Discovery.Scheme)
	}

	if c.Heartbeat.Interval <= 0 {
		return errors.New("heartbeat.interval must be > 0")
	}
	if c.Heartbeat.Timeout <= 0 {
		return errors.New("heartbeat.timeout must be > 0")
	}
	if c.Heartbeat.Timeout >= c.Heartbeat.Interval {
		return fmt.Errorf("heartbeat.timeout (%s) must be shorter than heartbeat.interval (%s)",
			c.Heartbeat.Timeout, c.Heartbeat.Interval)
	}
	if c.Heartbeat.MaxMisses < 1 {
		return errors.New("heartbeat.max_misses must be >= 1")
	}

	if c.Reconnect.Delay < 0 {
		return errors.New("reconnect.delay must be >= 0")
	}

	if _, err := wire.CodecByName(c.Transport.Codec); err != nil {
		return fmt.Errorf("transport.codec: %w", err)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if c.Journal.DSN != "" {
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < c.Journal.BatchSize {
			return fmt.Errorf("journal.buffer_size (%d) cannot be less than journal.batch_size (%d)",
				c.Journal.BufferSize, c.Journal.BatchSize)
		}
		if !validIdentifier(c.Journal.Table) {
			return fmt.Errorf("journal.table %q is not a valid identifier", c.Journal.Table)
		}
	}

	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", level)
	}
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
