package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/zanderp25/DeskThing-Client/pkg/protolog"
)

// StreamDialer dials tcp:// and tls:// endpoints and frames envelopes with
// a 4-byte big-endian length prefix.
type StreamDialer struct {
	config Config
}

// NewStreamDialer creates a stream dialer. Zero config fields take defaults.
func NewStreamDialer(config Config) *StreamDialer {
	return &StreamDialer{config: config.withDefaults()}
}

// Dial connects to a tcp://host:port or tls://host:port address.
func (d *StreamDialer) Dial(ctx context.Context, address string) (Conn, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid address %q: missing host", address)
	}

	netDialer := &net.Dialer{Timeout: d.config.HandshakeTimeout}

	var nc net.Conn
	switch u.Scheme {
	case "tcp":
		nc, err = netDialer.DialContext(ctx, "tcp", u.Host)
	case "tls":
		tlsConfig := d.config.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if tlsConfig.ServerName == "" {
			tlsConfig = tlsConfig.Clone()
			tlsConfig.ServerName = u.Hostname()
		}
		tlsDialer := &tls.Dialer{NetDialer: netDialer, Config: tlsConfig}
		nc, err = tlsDialer.DialContext(ctx, "tcp", u.Host)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	return &streamConn{
		conn:         nc,
		framer:       NewFramer(nc, d.config.MaxMessageSize),
		remote:       address,
		writeTimeout: d.config.WriteTimeout,
	}, nil
}

type streamConn struct {
	conn         net.Conn
	framer       *Framer
	remote       string
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (c *streamConn) SetLogger(logger protolog.Logger, connID string) {
	c.framer.SetLogger(logger, connID)
}

func (c *streamConn) ReadFrame() ([]byte, error) {
	return c.framer.ReadFrame()
}

func (c *streamConn) WriteFrame(data []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.framer.WriteFrame(data)
}

func (c *streamConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *streamConn) RemoteAddr() string {
	return c.remote
}

var (
	_ Dialer       = (*StreamDialer)(nil)
	_ Conn         = (*streamConn)(nil)
	_ LoggerSetter = (*streamConn)(nil)
)
