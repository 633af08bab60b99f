package config

import "time"

// Config is the root configuration of a deskthing-client process.
type Config struct {
	Endpoint    EndpointConfig    `yaml:"endpoint"`
	Heartbeat   HeartbeatConfig   `yaml:"heartbeat"`
	Reconnect   ReconnectConfig   `yaml:"reconnect"`
	Transport   TransportConfig   `yaml:"transport"`
	Client      ClientConfig      `yaml:"client"`
	Log         LogConfig         `yaml:"log"`
	ProtocolLog ProtocolLogConfig `yaml:"protocol_log"`
	Journal     JournalConfig     `yaml:"journal"`
}

// EndpointConfig selects the remote endpoint.
type EndpointConfig struct {
	// Address is a ws://, wss://, tcp:// or tls:// URL. Left empty when
	// the endpoint is discovered.
	Address   string          `yaml:"address"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// DiscoveryConfig configures mDNS endpoint discovery.
type DiscoveryConfig struct {
	Service  string        `yaml:"service"`
	Instance string        `yaml:"instance"`
	Scheme   string        `yaml:"scheme"`
	Timeout  time.Duration `yaml:"timeout"`
}

// HeartbeatConfig configures liveness probing.
type HeartbeatConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxMisses int           `yaml:"max_misses"`
}

// ReconnectConfig configures reconnection.
type ReconnectConfig struct {
	Delay time.Duration `yaml:"delay"`
}

// TransportConfig configures the dialers and the wire codec.
type TransportConfig struct {
	Codec            string        `yaml:"codec"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	MaxMessageSize   uint32        `yaml:"max_message_size"`
}

// ClientConfig holds client identity settings.
type ClientConfig struct {
	// SourceTag is stamped on outbound envelopes that carry no app.
	SourceTag string `yaml:"source_tag"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ProtocolLogConfig configures protocol event capture. An empty path
// disables it.
type ProtocolLogConfig struct {
	Path string `yaml:"path"`
}

// JournalConfig configures the Postgres message journal. An empty DSN
// disables it.
type JournalConfig struct {
	DSN           string        `yaml:"dsn"`
	Table         string        `yaml:"table"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}
