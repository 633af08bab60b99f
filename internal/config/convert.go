package config

import (
	"github.com/zanderp25/DeskThing-Client/pkg/connection"
	"github.com/zanderp25/DeskThing-Client/pkg/heartbeat"
	"github.com/zanderp25/DeskThing-Client/pkg/transport"
	"github.com/zanderp25/DeskThing-Client/pkg/wire"
)

// Address returns the endpoint address the client dials. A discovered
// endpoint is addressed as mdns://<instance>.
func (c *Config) Address() string {
	if c.Endpoint.Address != "" {
		return c.Endpoint.Address
	}
	return "mdns://" + c.Endpoint.Discovery.Instance
}

// Codec returns the configured wire codec.
func (c *Config) Codec() (wire.Codec, error) {
	return wire.CodecByName(c.Transport.Codec)
}

// ConnectionConfig converts the file settings into a client config.
func (c *Config) ConnectionConfig() (connection.Config, error) {
	codec, err := c.Codec()
	if err != nil {
		return connection.Config{}, err
	}
	return connection.Config{
		Address: c.Address(),
		Heartbeat: heartbeat.Config{
			Interval:  c.Heartbeat.Interval,
			Timeout:   c.Heartbeat.Timeout,
			MaxMisses: c.Heartbeat.MaxMisses,
		},
		ReconnectDelay: c.Reconnect.Delay,
		SourceTag:      c.Client.SourceTag,
		Codec:          codec,
	}, nil
}

// TransportConfig converts the file settings into dialer settings. Frames
// are binary when the configured codec is.
func (c *Config) TransportConfig() transport.Config {
	tc := transport.Config{
		HandshakeTimeout: c.Transport.HandshakeTimeout,
		WriteTimeout:     c.Transport.WriteTimeout,
		MaxMessageSize:   c.Transport.MaxMessageSize,
	}
	if codec, err := c.Codec(); err == nil {
		tc.Binary = codec.Binary()
	}
	return tc
}
