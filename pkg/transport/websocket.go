package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zanderp25/DeskThing-Client/pkg/protolog"
)

// WebSocketDialer dials ws:// and wss:// endpoints.
type WebSocketDialer struct {
	config Config
	dialer *websocket.Dialer
	header http.Header
}

// NewWebSocketDialer creates a WebSocket dialer. Zero config fields take
// defaults.
func NewWebSocketDialer(config Config) *WebSocketDialer {
	config = config.withDefaults()
	return &WebSocketDialer{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			TLSClientConfig:  config.TLSConfig,
		},
		header: http.Header{},
	}
}

// SetHeader adds a header sent with every handshake.
func (d *WebSocketDialer) SetHeader(key, value string) {
	d.header.Set(key, value)
}

// Dial performs the WebSocket handshake.
func (d *WebSocketDialer) Dial(ctx context.Context, address string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, address, d.header.Clone())
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake with %s failed (%s): %w", address, resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", address, err)
	}
	conn.SetReadLimit(int64(d.config.MaxMessageSize))

	messageType := websocket.TextMessage
	if d.config.Binary {
		messageType = websocket.BinaryMessage
	}

	return &wsConn{
		conn:         conn,
		remote:       address,
		messageType:  messageType,
		writeTimeout: d.config.WriteTimeout,
	}, nil
}

// wsConn adapts a gorilla connection to Conn. One WebSocket message is one
// frame.
type wsConn struct {
	conn         *websocket.Conn
	remote       string
	messageType  int
	writeTimeout time.Duration
	tap          frameTap

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) SetLogger(logger protolog.Logger, connID string) {
	c.tap.set(logger, connID)
}

// ReadFrame returns the next data message. Control frames are handled by
// gorilla inside NextReader.
func (c *wsConn) ReadFrame() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
			}
			return nil, err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		c.tap.frame(protolog.DirectionIn, data, 0)
		return data, nil
	}
}

func (c *wsConn) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(c.messageType, data); err != nil {
		return err
	}
	c.tap.frame(protolog.DirectionOut, data, 0)
	return nil
}

// Close sends a normal-closure frame and releases the socket. WriteControl
// may run concurrently with WriteMessage, so writeMu is not taken.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}

var (
	_ Dialer       = (*WebSocketDialer)(nil)
	_ Conn         = (*wsConn)(nil)
	_ LoggerSetter = (*wsConn)(nil)
)
