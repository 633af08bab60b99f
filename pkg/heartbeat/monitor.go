// Package heartbeat detects sessions that stay open but stop delivering data.
//
// A Monitor sends a probe every Interval and expects a probe-response within
// Timeout. After MaxMisses consecutive unanswered probes it reports the
// session dead and stops itself.
package heartbeat

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Heartbeat defaults.
const (
	// DefaultInterval is the time between probes.
	DefaultInterval = 30 * time.Second

	// DefaultTimeout is how long to wait for a probe-response.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxMisses is the number of consecutive misses that kill a session.
	DefaultMaxMisses = 3
)

// Config configures a Monitor.
type Config struct {
	// Interval is the time between probes.
	Interval time.Duration

	// Timeout is how long a probe waits for its response.
	// Must be shorter than Interval, since the next probe replaces the
	// armed timeout.
	Timeout time.Duration

	// MaxMisses is the number of consecutive misses before the session is
	// reported dead.
	MaxMisses int
}

// DefaultConfig returns the default heartbeat configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  DefaultInterval,
		Timeout:   DefaultTimeout,
		MaxMisses: DefaultMaxMisses,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Timeout >= c.Interval {
		return fmt.Errorf("timeout %s must be shorter than interval %s", c.Timeout, c.Interval)
	}
	if c.MaxMisses < 1 {
		return errors.New("max misses must be at least 1")
	}
	return nil
}

// DetectionDelay is the worst-case time from the last answered probe to
// the death signal.
func (c Config) DetectionDelay() time.Duration {
	return c.Interval*time.Duration(c.MaxMisses) + c.Timeout
}

// Stats is a snapshot of monitor state.
type Stats struct {
	Running      bool
	Epoch        uint64
	Misses       int
	ProbesSent   uint64
	LastProbe    time.Time
	LastResponse time.Time
}

// Monitor runs the probe schedule for one session at a time.
//
// Callbacks are invoked without the monitor lock held, so they may call
// back into the monitor. Each callback receives the epoch passed to Start,
// letting the owner discard callbacks from a superseded session.
type Monitor struct {
	config    Config
	sendProbe func(epoch uint64) error
	onDead    func(epoch uint64)
	logger    *slog.Logger

	mu           sync.Mutex
	running      bool
	gen          uint64 // bumped by Start and Stop; stale timer callbacks compare against it
	epoch        uint64
	misses       int
	probeTimer   *time.Timer
	timeoutTimer *time.Timer
	timeoutSeq   uint64 // identifies the armed response timeout
	probesSent   uint64
	lastProbe    time.Time
	lastResponse time.Time
}

// NewMonitor creates a stopped monitor. Zero config fields take defaults.
func NewMonitor(config Config, sendProbe func(epoch uint64) error, onDead func(epoch uint64), logger *slog.Logger) *Monitor {
	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxMisses == 0 {
		config.MaxMisses = DefaultMaxMisses
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		config:    config,
		sendProbe: sendProbe,
		onDead:    onDead,
		logger:    logger.With("component", "heartbeat"),
	}
}

// Config returns the monitor configuration.
func (m *Monitor) Config() Config {
	return m.config
}

// Start begins probing the session identified by epoch. Any previous
// schedule is cancelled and the miss counter is reset.
func (m *Monitor) Start(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.running = true
	m.gen++
	m.epoch = epoch
	m.misses = 0
	m.scheduleProbeLocked(m.gen)
}

// Stop cancels the probe schedule and any armed response timeout.
// It is safe to call on a stopped monitor.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Reset records a probe-response for the session identified by epoch: the
// miss counter returns to zero and the armed response timeout is
// cancelled. Responses for any other epoch, or while stopped, are ignored
// and Reset returns false.
func (m *Monitor) Reset(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || epoch != m.epoch {
		return false
	}
	m.misses = 0
	m.lastResponse = time.Now()
	m.cancelTimeoutLocked()
	return true
}

// IsRunning reports whether a probe schedule is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stats returns current monitor statistics.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Running:      m.running,
		Epoch:        m.epoch,
		Misses:       m.misses,
		ProbesSent:   m.probesSent,
		LastProbe:    m.lastProbe,
		LastResponse: m.lastResponse,
	}
}

func (m *Monitor) stopLocked() {
	if !m.running {
		return
	}
	m.running = false
	m.gen++
	if m.probeTimer != nil {
		m.probeTimer.Stop()
		m.probeTimer = nil
	}
	m.cancelTimeoutLocked()
}

func (m *Monitor) cancelTimeoutLocked() {
	m.timeoutSeq++
	if m.timeoutTimer != nil {
		m.timeoutTimer.Stop()
		m.timeoutTimer = nil
	}
}

func (m *Monitor) scheduleProbeLocked(gen uint64) {
	m.probeTimer = time.AfterFunc(m.config.Interval, func() { m.probeTick(gen) })
}

// probeTick sends one probe and arms its response timeout.
func (m *Monitor) probeTick(gen uint64) {
	m.mu.Lock()
	if !m.running || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.scheduleProbeLocked(gen)

	// Arm before sending so a fast response cannot race the arming.
	m.cancelTimeoutLocked()
	seq := m.timeoutSeq
	m.timeoutTimer = time.AfterFunc(m.config.Timeout, func() { m.responseTimeout(gen, seq) })
	epoch := m.epoch
	m.mu.Unlock()

	err := m.sendProbe(epoch)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	if err != nil {
		m.logger.Debug("probe not sent", "epoch", epoch, "error", err)
		if seq == m.timeoutSeq {
			m.cancelTimeoutLocked()
		}
		return
	}
	m.probesSent++
	m.lastProbe = time.Now()
}

// responseTimeout counts a miss for the probe armed under seq.
func (m *Monitor) responseTimeout(gen, seq uint64) {
	m.mu.Lock()
	if !m.running || gen != m.gen || seq != m.timeoutSeq {
		m.mu.Unlock()
		return
	}
	m.timeoutTimer = nil
	m.misses++
	misses := m.misses
	epoch := m.epoch
	m.logger.Warn("missed probe response",
		"epoch", epoch,
		"misses", misses,
		"max_misses", m.config.MaxMisses)

	if misses < m.config.MaxMisses {
		m.mu.Unlock()
		return
	}
	m.stopLocked()
	m.mu.Unlock()

	m.logger.Warn("session considered dead", "epoch", epoch, "misses", misses)
	if m.onDead != nil {
		m.onDead(epoch)
	}
}
