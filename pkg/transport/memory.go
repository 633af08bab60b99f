package transport

import (
	"context"
	"sync"
	"sync/atomic"
)

const memoryQueueSize = 64

// MemoryDialer is an in-process Dialer. Every successful Dial creates a
// connected pair: the dialing side is returned to the caller and the peer
// side is queued for Accept.
type MemoryDialer struct {
	accepted chan *MemoryConn

	mu      sync.Mutex
	failErr error
	gate    chan struct{}

	dials   atomic.Int64
	live    atomic.Int64
	maxLive atomic.Int64
}

// NewMemoryDialer creates a memory dialer.
func NewMemoryDialer() *MemoryDialer {
	return &MemoryDialer{accepted: make(chan *MemoryConn, 16)}
}

// FailDials makes subsequent dials return err. Pass nil to let them succeed.
func (d *MemoryDialer) FailDials(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failErr = err
}

// Hold blocks subsequent dials until Release is called or their context ends.
func (d *MemoryDialer) Hold() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gate == nil {
		d.gate = make(chan struct{})
	}
}

// Release unblocks held dials.
func (d *MemoryDialer) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gate != nil {
		close(d.gate)
		d.gate = nil
	}
}

// Dial creates a connected pair unless dials are failing or held.
func (d *MemoryDialer) Dial(ctx context.Context, address string) (Conn, error) {
	d.dials.Add(1)

	d.mu.Lock()
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	failErr := d.failErr
	d.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}

	local, peer := newMemoryPair(address, d.onClose)
	n := d.live.Add(1)
	for {
		m := d.maxLive.Load()
		if n <= m || d.maxLive.CompareAndSwap(m, n) {
			break
		}
	}

	select {
	case d.accepted <- peer:
	default:
		// Nobody is accepting. The dialer still gets a live handle that
		// never receives anything.
	}
	return local, nil
}

// Accept returns the peer side of the next successful dial.
func (d *MemoryDialer) Accept(ctx context.Context) (*MemoryConn, error) {
	select {
	case c := <-d.accepted:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dials returns the number of Dial calls.
func (d *MemoryDialer) Dials() int {
	return int(d.dials.Load())
}

// Live returns the number of open pairs.
func (d *MemoryDialer) Live() int {
	return int(d.live.Load())
}

// MaxLive returns the highest number of simultaneously open pairs.
func (d *MemoryDialer) MaxLive() int {
	return int(d.maxLive.Load())
}

func (d *MemoryDialer) onClose() {
	d.live.Add(-1)
}

// memoryPipe is the state shared by both ends of a pair.
type memoryPipe struct {
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func (p *memoryPipe) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.onClose != nil {
			p.onClose()
		}
	})
}

// MemoryConn is one end of an in-process pair. Closing either end closes
// both.
type MemoryConn struct {
	pipe   *memoryPipe
	in     chan []byte
	peer   *MemoryConn
	remote string

	mu       sync.Mutex
	writeErr error
}

func newMemoryPair(address string, onClose func()) (*MemoryConn, *MemoryConn) {
	pipe := &memoryPipe{done: make(chan struct{}), onClose: onClose}
	a := &MemoryConn{pipe: pipe, in: make(chan []byte, memoryQueueSize), remote: address}
	b := &MemoryConn{pipe: pipe, in: make(chan []byte, memoryQueueSize), remote: "memory-client"}
	a.peer, b.peer = b, a
	return a, b
}

// Peer returns the other end of the pair.
func (c *MemoryConn) Peer() *MemoryConn {
	return c.peer
}

// FailWrites makes subsequent writes on this end return err. Pass nil to
// restore them.
func (c *MemoryConn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Closed is closed once the pair is closed.
func (c *MemoryConn) Closed() <-chan struct{} {
	return c.pipe.done
}

// IsClosed reports whether the pair is closed.
func (c *MemoryConn) IsClosed() bool {
	select {
	case <-c.pipe.done:
		return true
	default:
		return false
	}
}

// ReadFrame returns queued frames before reporting closure.
func (c *MemoryConn) ReadFrame() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.pipe.done:
		select {
		case data := <-c.in:
			return data, nil
		default:
			return nil, ErrConnectionClosed
		}
	}
}

// ReadFrameContext is ReadFrame bounded by ctx.
func (c *MemoryConn) ReadFrameContext(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.pipe.done:
		return c.ReadFrame()
	}
}

// WriteFrame queues a copy of data for the peer.
func (c *MemoryConn) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}

	c.mu.Lock()
	err := c.writeErr
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if c.IsClosed() {
		return ErrConnectionClosed
	}

	frame := make([]byte, len(data))
	copy(frame, data)
	select {
	case c.peer.in <- frame:
		return nil
	case <-c.pipe.done:
		return ErrConnectionClosed
	}
}

// Close closes both ends.
func (c *MemoryConn) Close() error {
	c.pipe.close()
	return nil
}

func (c *MemoryConn) RemoteAddr() string {
	return c.remote
}

var (
	_ Dialer = (*MemoryDialer)(nil)
	_ Conn   = (*MemoryConn)(nil)
)
