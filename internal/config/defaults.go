package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultDiscoveryService   = "_deskthing._tcp"
	DefaultDiscoveryScheme    = "ws"
	DefaultDiscoveryTimeout   = 5 * time.Second
	DefaultHeartbeatInterval  = 30 * time.Second
	DefaultHeartbeatTimeout   = 10 * time.Second
	DefaultHeartbeatMaxMisses = 3
	DefaultReconnectDelay     = 5 * time.Second
	DefaultCodec              = "deskthing"
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultWriteTimeout       = 10 * time.Second
	DefaultMaxMessageSize     = 4 << 20
	DefaultSourceTag          = "server"
	DefaultLogLevel           = "info"
	DefaultLogMaxSizeMB       = 10
	DefaultLogMaxBackups      = 3
	DefaultLogMaxAgeDays      = 28
	DefaultJournalTable       = "deskthing_messages"
	DefaultJournalBatchSize   = 100
	DefaultJournalFlush       = 1 * time.Second
	DefaultJournalBufferSize  = 1000
)

// Default returns a configuration with every default applied and no
// endpoint.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// Endpoint defaults
	if c.Endpoint.Discovery.Service == "" {
		c.Endpoint.Discovery.Service = DefaultDiscoveryService
	}
	if c.Endpoint.Discovery.Scheme == "" {
		c.Endpoint.Discovery.Scheme = DefaultDiscoveryScheme
	}
	if c.Endpoint.Discovery.Timeout == 0 {
		c.Endpoint.Discovery.Timeout = DefaultDiscoveryTimeout
	}

	// Heartbeat defaults
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = DefaultHeartbeatInterval
	}
	if c.Heartbeat.Timeout == 0 {
		c.Heartbeat.Timeout = DefaultHeartbeatTimeout
	}
	if c.Heartbeat.MaxMisses == 0 {
		c.Heartbeat.MaxMisses = DefaultHeartbeatMaxMisses
	}

	if c.Reconnect.Delay == 0 {
		c.Reconnect.Delay = DefaultReconnectDelay
	}

	// Transport defaults
	if c.Transport.Codec == "" {
		c.Transport.Codec = DefaultCodec
	}
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.MaxMessageSize == 0 {
		c.Transport.MaxMessageSize = DefaultMaxMessageSize
	}

	if c.Client.SourceTag == "" {
		c.Client.SourceTag = DefaultSourceTag
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = DefaultLogMaxAgeDays
	}

	// Journal defaults
	if c.Journal.Table == "" {
		c.Journal.Table = DefaultJournalTable
	}
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultJournalBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultJournalFlush
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultJournalBufferSize
	}
}
