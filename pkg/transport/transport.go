package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zanderp25/DeskThing-Client/pkg/protolog"
)

// Transport defaults.
const (
	// DefaultHandshakeTimeout bounds dialing plus any protocol handshake.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second

	// MaxLogFrameDataSize is the maximum frame data kept in a frame event.
	MaxLogFrameDataSize = 4096
)

// Transport errors.
var (
	// ErrConnectionClosed is returned by operations on a closed Conn.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrUnsupportedScheme is returned for an address no dialer handles.
	ErrUnsupportedScheme = errors.New("unsupported address scheme")
)

// Conn is one live, bidirectional, frame-oriented session.
//
// ReadFrame is called from a single goroutine. WriteFrame and Close may be
// called concurrently with it and with each other.
type Conn interface {
	// ReadFrame blocks until the next frame arrives or the session ends.
	ReadFrame() ([]byte, error)

	// WriteFrame writes one frame without waiting for acknowledgment.
	WriteFrame(data []byte) error

	// Close releases the session. It is safe to call more than once.
	Close() error

	// RemoteAddr describes the peer.
	RemoteAddr() string
}

// Dialer opens sessions.
type Dialer interface {
	// Dial opens a session to address. It honors ctx cancellation.
	Dial(ctx context.Context, address string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, address string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, address string) (Conn, error) {
	return f(ctx, address)
}

// LoggerSetter is implemented by conns that can capture frame events.
type LoggerSetter interface {
	SetLogger(logger protolog.Logger, connID string)
}

// AttachLogger enables frame capture on conn when it supports it.
func AttachLogger(conn Conn, logger protolog.Logger, connID string) {
	if ls, ok := conn.(LoggerSetter); ok && logger != nil {
		ls.SetLogger(logger, connID)
	}
}

// Config configures the built-in dialers.
type Config struct {
	// HandshakeTimeout bounds dialing. Default: 10s.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single frame write. Default: 10s.
	WriteTimeout time.Duration

	// MaxMessageSize bounds inbound and outbound frames. Default: 4 MB.
	MaxMessageSize uint32

	// Binary selects binary WebSocket messages instead of text.
	Binary bool

	// TLSConfig is used for wss:// and tls:// endpoints. Nil uses defaults.
	TLSConfig *tls.Config
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	return c
}

// Mux routes Dial calls to a dialer by address scheme.
type Mux struct {
	mu      sync.RWMutex
	dialers map[string]Dialer
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{dialers: make(map[string]Dialer)}
}

// NewDefaultMux returns a Mux serving ws, wss, tcp and tls addresses.
func NewDefaultMux(config Config) *Mux {
	m := NewMux()
	ws := NewWebSocketDialer(config)
	m.Handle("ws", ws)
	m.Handle("wss", ws)
	stream := NewStreamDialer(config)
	m.Handle("tcp", stream)
	m.Handle("tls", stream)
	return m
}

// Handle registers d for scheme, replacing any previous dialer.
func (m *Mux) Handle(scheme string, d Dialer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialers[strings.ToLower(scheme)] = d
}

// Dial dispatches on the scheme of address.
func (m *Mux) Dial(ctx context.Context, address string) (Conn, error) {
	scheme, err := Scheme(address)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	d, ok := m.dialers[scheme]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return d.Dial(ctx, address)
}

// Scheme returns the lower-cased scheme of address. Addresses must have
// the form scheme://rest; a bare host:port has no scheme.
func Scheme(address string) (string, error) {
	scheme, _, found := strings.Cut(address, "://")
	if !found || scheme == "" {
		return "", fmt.Errorf("invalid address %q: missing scheme", address)
	}
	if !validScheme(scheme) {
		return "", fmt.Errorf("invalid address %q: malformed scheme %q", address, scheme)
	}
	return strings.ToLower(scheme), nil
}

// validScheme reports whether s is ALPHA *( ALPHA / DIGIT / "+" / "-" / "." ).
func validScheme(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// frameTap emits frame events to an optional protocol logger.
// It is configured before the conn is shared between goroutines.
type frameTap struct {
	logger protolog.Logger
	connID string
}

func (t *frameTap) set(logger protolog.Logger, connID string) {
	t.logger = logger
	t.connID = connID
}

func (t *frameTap) frame(dir protolog.Direction, data []byte, overhead int) {
	if t.logger == nil {
		return
	}

	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	t.logger.Log(protolog.Event{
		Timestamp:    time.Now(),
		ConnectionID: t.connID,
		Direction:    dir,
		Layer:        protolog.LayerTransport,
		Category:     protolog.CategoryMessage,
		Frame: &protolog.FrameEvent{
			Size:      overhead + len(data),
			Data:      frameData,
			Truncated: truncated,
		},
	})
}

var _ Dialer = (*Mux)(nil)
