package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zanderp25/DeskThing-Client/pkg/heartbeat"
	"github.com/zanderp25/DeskThing-Client/pkg/listener"
	"github.com/zanderp25/DeskThing-Client/pkg/protolog"
	"github.com/zanderp25/DeskThing-Client/pkg/transport"
	"github.com/zanderp25/DeskThing-Client/pkg/wire"
)

// Stats is a snapshot of client state and counters.
type Stats struct {
	State        State
	Epoch        uint64
	Address      string
	RemoteAddr   string
	ConnectionID string

	// Connects counts sessions that reached CONNECTED.
	Connects uint64
	// Reconnects counts entries into RECONNECT_PENDING.
	Reconnects   uint64
	DialFailures uint64

	MessagesSent     uint64
	MessagesReceived uint64
	Malformed        uint64

	LastError      string
	ConnectedSince time.Time

	Heartbeat heartbeat.Stats
}

// Client maintains a single session to a remote endpoint and reconnects
// after failures.
type Client struct {
	config   Config
	dialer   transport.Dialer
	codec    wire.Codec
	registry *listener.Registry
	monitor  *heartbeat.Monitor

	logger      *slog.Logger
	protoLogger protolog.Logger
	observer    StateObserver
	autoConnect bool

	mu             sync.Mutex
	state          State
	epoch          uint64
	closed         bool
	conn           transport.Conn
	connID         string
	dialCancel     context.CancelFunc
	reconnectTimer *time.Timer

	connects         uint64
	reconnects       uint64
	dialFailures     uint64
	messagesSent     uint64
	messagesReceived uint64
	malformed        uint64
	lastErr          error
	connectedSince   time.Time
}

// stateChange is a transition to report once the lock is released.
type stateChange struct {
	from, to State
	epoch    uint64
	reason   string
}

// New creates a disconnected client. With WithAutoConnect it starts
// connecting before returning.
func New(config Config, dialer transport.Dialer, opts ...Option) (*Client, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if dialer == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidConfig)
	}

	c := &Client{
		config: config,
		dialer: dialer,
		codec:  config.Codec,
		logger: slog.Default(),
		state:  StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	base := c.logger
	c.logger = base.With("component", "connection", "address", config.Address)
	c.registry = listener.NewRegistry(base)
	c.monitor = heartbeat.NewMonitor(config.Heartbeat, c.sendProbe, c.heartbeatDead, base)

	if c.autoConnect {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Address returns the configured remote address.
func (c *Client) Address() string {
	return c.config.Address
}

// State returns the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for inbound application envelopes.
func (c *Client) Subscribe(fn listener.Listener) listener.ID {
	return c.registry.Subscribe(fn)
}

// Unsubscribe removes a registration. Unknown IDs are ignored.
func (c *Client) Unsubscribe(id listener.ID) bool {
	return c.registry.Unsubscribe(id)
}

// Connect releases any held session and starts a new connection attempt.
// The dial runs in the background; Connect does not wait for it.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	old, change := c.beginConnectLocked("connect requested")
	c.mu.Unlock()

	c.finishTransition(old, change)
	c.startDial(change.epoch)
	return nil
}

// Disconnect closes the session and cancels every timer before returning.
// No automatic reconnection happens until the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	old, change := c.disconnectLocked("disconnect requested")
	c.mu.Unlock()

	c.finishTransition(old, change)
}

// Close disconnects and makes the client unusable.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	old, change := c.disconnectLocked("client closed")
	c.mu.Unlock()

	c.finishTransition(old, change)
	return nil
}

// Send writes an application envelope. It never waits for acknowledgment
// and never queues: when not CONNECTED the envelope is dropped and a
// *NotConnectedError returned. An empty App is stamped with the source tag.
func (c *Client) Send(env wire.Envelope) error {
	if env.Kind != wire.KindApplication {
		return fmt.Errorf("%w: only application envelopes can be sent, got %s", wire.ErrInvalidEnvelope, env.Kind)
	}
	if env.App == "" {
		env.App = c.config.SourceTag
	}

	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		err := &NotConnectedError{State: c.state, App: env.App, Type: env.Type}
		c.mu.Unlock()
		c.logger.Warn("send dropped", "state", err.State.String(), "app", env.App, "type", env.Type)
		return err
	}
	conn, epoch, connID := c.conn, c.epoch, c.connID
	c.mu.Unlock()

	data, err := c.codec.Encode(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", env.Type, err)
	}
	if err := conn.WriteFrame(data); err != nil {
		c.transportFailed(epoch, "write failed", err)
		return fmt.Errorf("send %s/%s: %w", env.App, env.Type, err)
	}

	c.mu.Lock()
	c.messagesSent++
	c.mu.Unlock()
	c.logMessage(protolog.DirectionOut, epoch, connID, env, 0)
	return nil
}

// Stats returns a snapshot of client state and counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		State:            c.state,
		Epoch:            c.epoch,
		Address:          c.config.Address,
		ConnectionID:     c.connID,
		Connects:         c.connects,
		Reconnects:       c.reconnects,
		DialFailures:     c.dialFailures,
		MessagesSent:     c.messagesSent,
		MessagesReceived: c.messagesReceived,
		Malformed:        c.malformed,
		ConnectedSince:   c.connectedSince,
		Heartbeat:        c.monitor.Stats(),
	}
	if c.conn != nil {
		s.RemoteAddr = c.conn.RemoteAddr()
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// beginConnectLocked tears down the current session and enters CONNECTING
// under a new epoch. The caller closes the returned handle and then calls
// startDial, so the old handle is gone before the new one is opened.
func (c *Client) beginConnectLocked(reason string) (transport.Conn, stateChange) {
	old := c.releaseLocked()
	c.epoch++
	change := c.setStateLocked(StateConnecting, reason)
	return old, change
}

func (c *Client) disconnectLocked(reason string) (transport.Conn, stateChange) {
	old := c.releaseLocked()
	c.epoch++
	return old, c.setStateLocked(StateDisconnected, reason)
}

// releaseLocked stops the monitor, the reconnect timer and any dial, and
// detaches the session handle.
func (c *Client) releaseLocked() transport.Conn {
	c.monitor.Stop()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	old := c.conn
	c.conn = nil
	c.connID = ""
	c.connectedSince = time.Time{}
	return old
}

func (c *Client) setStateLocked(to State, reason string) stateChange {
	change := stateChange{from: c.state, to: to, epoch: c.epoch, reason: reason}
	c.state = to
	return change
}

// finishTransition runs the side effects of a transition outside the lock.
func (c *Client) finishTransition(old transport.Conn, change stateChange) {
	if old != nil {
		if err := old.Close(); err != nil {
			c.logger.Debug("closing session", "error", err)
		}
	}
	if change.from == change.to {
		return
	}

	c.logger.Info("state changed",
		"from", change.from.String(),
		"to", change.to.String(),
		"epoch", change.epoch,
		"reason", change.reason)
	c.logEvent(protolog.Event{
		Direction: protolog.DirectionOut,
		Layer:     protolog.LayerClient,
		Category:  protolog.CategoryState,
		Epoch:     change.epoch,
		StateChange: &protolog.StateChangeEvent{
			Entity:   protolog.StateEntityConnection,
			OldState: change.from.String(),
			NewState: change.to.String(),
			Reason:   change.reason,
		},
	})
	if c.observer != nil {
		c.observer(change.from, change.to)
	}
}

// startDial launches the dial for epoch unless it was superseded while the
// previous handle was being closed.
func (c *Client) startDial(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.dialCancel = cancel
	c.mu.Unlock()

	go c.dial(ctx, epoch)
}

func (c *Client) dial(ctx context.Context, epoch uint64) {
	conn, err := c.dialer.Dial(ctx, c.config.Address)

	c.mu.Lock()
	if epoch != c.epoch || c.state != StateConnecting {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}

	if err != nil {
		c.dialFailures++
		c.lastErr = err
		change := c.enterReconnectPendingLocked("dial failed")
		c.mu.Unlock()

		c.logger.Warn("dial failed", "epoch", epoch, "error", err, "retry_in", c.config.ReconnectDelay)
		c.logError(epoch, "", protolog.LayerTransport, err, "dial")
		c.finishTransition(nil, change)
		return
	}

	connID := uuid.NewString()
	transport.AttachLogger(conn, c.protoLogger, connID)
	c.conn = conn
	c.connID = connID
	c.connects++
	c.connectedSince = time.Now()
	change := c.setStateLocked(StateConnected, "session open")
	c.monitor.Start(epoch)
	go c.readLoop(conn, epoch, connID)
	c.mu.Unlock()

	c.logger.Info("connected", "epoch", epoch, "conn_id", connID, "remote_addr", conn.RemoteAddr())
	c.finishTransition(nil, change)
}

// enterReconnectPendingLocked arms the single reconnect timer for the
// current epoch. A client that is already pending or disconnected is left
// alone.
func (c *Client) enterReconnectPendingLocked(reason string) stateChange {
	if c.state == StateReconnectPending || c.state == StateDisconnected {
		return stateChange{from: c.state, to: c.state}
	}

	c.reconnects++
	epoch := c.epoch
	c.reconnectTimer = time.AfterFunc(c.config.ReconnectDelay, func() {
		c.reconnectDue(epoch)
	})
	return c.setStateLocked(StateReconnectPending, reason)
}

func (c *Client) reconnectDue(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.state != StateReconnectPending || c.closed {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	old, change := c.beginConnectLocked("reconnect delay elapsed")
	c.mu.Unlock()

	c.finishTransition(old, change)
	c.startDial(change.epoch)
}

// transportFailed moves a CONNECTED session of epoch to RECONNECT_PENDING.
// Failures reported by superseded sessions are ignored.
func (c *Client) transportFailed(epoch uint64, reason string, err error) {
	c.mu.Lock()
	if epoch != c.epoch || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	connID := c.connID
	c.lastErr = err
	old := c.releaseLocked()
	change := c.enterReconnectPendingLocked(reason)
	c.mu.Unlock()

	c.logger.Warn("session lost",
		"epoch", epoch,
		"conn_id", connID,
		"reason", reason,
		"error", err,
		"retry_in", c.config.ReconnectDelay)
	c.logError(epoch, connID, protolog.LayerTransport, err, reason)
	c.finishTransition(old, change)
}

func (c *Client) heartbeatDead(epoch uint64) {
	c.transportFailed(epoch, "heartbeat timeout", ErrHeartbeatTimeout)
}

// current returns the handle of epoch if it is still the live session.
func (c *Client) current(epoch uint64) (transport.Conn, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.state != StateConnected || c.conn == nil {
		return nil, "", false
	}
	return c.conn, c.connID, true
}

// sendProbe is the heartbeat monitor's probe hook. It runs without the
// monitor lock held.
func (c *Client) sendProbe(epoch uint64) error {
	misses := c.monitor.Stats().Misses
	return c.writeControl(epoch, wire.Probe(c.config.SourceTag), protolog.ControlMsgProbe, misses)
}

func (c *Client) writeControl(epoch uint64, env wire.Envelope, msgType protolog.ControlMsgType, misses int) error {
	conn, connID, ok := c.current(epoch)
	if !ok {
		return ErrNotConnected
	}

	data, err := c.codec.Encode(env)
	if err != nil {
		return err
	}
	if err := conn.WriteFrame(data); err != nil {
		c.transportFailed(epoch, "write failed", err)
		return err
	}

	c.logEvent(protolog.Event{
		ConnectionID: connID,
		Direction:    protolog.DirectionOut,
		Layer:        protolog.LayerWire,
		Category:     protolog.CategoryControl,
		Epoch:        epoch,
		ControlMsg:   &protolog.ControlMsgEvent{Type: msgType, Misses: misses},
	})
	return nil
}

// readLoop dispatches inbound frames of one session in arrival order.
func (c *Client) readLoop(conn transport.Conn, epoch uint64, connID string) {
	for {
		data, err := conn.ReadFrame()
		if err != nil {
			if errors.Is(err, transport.ErrConnectionClosed) {
				c.transportFailed(epoch, "session closed", err)
			} else {
				c.transportFailed(epoch, "read failed", err)
			}
			return
		}
		if _, _, ok := c.current(epoch); !ok {
			return
		}

		env, err := c.codec.Decode(data)
		if err != nil {
			c.mu.Lock()
			c.malformed++
			c.mu.Unlock()
			c.logger.Warn("discarding malformed envelope", "epoch", epoch, "size", len(data), "error", err)
			c.logError(epoch, connID, protolog.LayerWire, err, "decode")
			continue
		}

		switch env.Kind {
		case wire.KindProbeResponse:
			if !c.monitor.Reset(epoch) {
				c.logger.Debug("ignoring stale probe response", "epoch", epoch)
			}
			c.logControlIn(epoch, connID, protolog.ControlMsgProbeResponse)
		case wire.KindProbe:
			c.logControlIn(epoch, connID, protolog.ControlMsgProbe)
			if err := c.writeControl(epoch, wire.ProbeResponse(c.config.SourceTag), protolog.ControlMsgProbeResponse, 0); err != nil {
				c.logger.Debug("probe response not sent", "epoch", epoch, "error", err)
			}
		default:
			c.mu.Lock()
			c.messagesReceived++
			c.mu.Unlock()
			result := c.registry.Notify(env)
			c.logMessage(protolog.DirectionIn, epoch, connID, env, result.Delivered)
		}
	}
}

func (c *Client) logEvent(ev protolog.Event) {
	if c.protoLogger == nil {
		return
	}
	ev.Timestamp = time.Now()
	if ev.RemoteAddr == "" {
		ev.RemoteAddr = c.config.Address
	}
	c.protoLogger.Log(ev)
}

func (c *Client) logMessage(dir protolog.Direction, epoch uint64, connID string, env wire.Envelope, listeners int) {
	c.logEvent(protolog.Event{
		ConnectionID: connID,
		Direction:    dir,
		Layer:        protolog.LayerWire,
		Category:     protolog.CategoryMessage,
		Epoch:        epoch,
		Message: &protolog.MessageEvent{
			App:       env.App,
			Type:      env.Type,
			Request:   env.Request,
			Payload:   env.Payload,
			Listeners: listeners,
		},
	})
}

func (c *Client) logControlIn(epoch uint64, connID string, msgType protolog.ControlMsgType) {
	c.logEvent(protolog.Event{
		ConnectionID: connID,
		Direction:    protolog.DirectionIn,
		Layer:        protolog.LayerWire,
		Category:     protolog.CategoryControl,
		Epoch:        epoch,
		ControlMsg:   &protolog.ControlMsgEvent{Type: msgType},
	})
}

func (c *Client) logError(epoch uint64, connID string, layer protolog.Layer, err error, op string) {
	c.logEvent(protolog.Event{
		ConnectionID: connID,
		Direction:    protolog.DirectionIn,
		Layer:        layer,
		Category:     protolog.CategoryError,
		Epoch:        epoch,
		Error: &protolog.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: op,
		},
	})
}
