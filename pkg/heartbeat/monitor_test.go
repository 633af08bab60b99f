package heartbeat

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		Interval:  40 * time.Millisecond,
		Timeout:   10 * time.Millisecond,
		MaxMisses: 3,
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 30*time.Second, config.Interval)
	assert.Equal(t, 10*time.Second, config.Timeout)
	assert.Equal(t, 3, config.MaxMisses)
	assert.Equal(t, 100*time.Second, config.DetectionDelay())
	assert.NoError(t, config.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "zero interval", config: Config{Timeout: time.Second, MaxMisses: 1}},
		{name: "zero timeout", config: Config{Interval: time.Second, MaxMisses: 1}},
		{name: "timeout not shorter than interval", config: Config{Interval: time.Second, Timeout: time.Second, MaxMisses: 1}},
		{name: "no misses allowed", config: Config{Interval: 2 * time.Second, Timeout: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.config.Validate())
		})
	}
}

func TestNewMonitorAppliesDefaults(t *testing.T) {
	m := NewMonitor(Config{}, func(uint64) error { return nil }, nil, nil)
	assert.Equal(t, DefaultConfig(), m.Config())
	assert.False(t, m.IsRunning())
}

func TestMonitorSendsProbesWithEpoch(t *testing.T) {
	var mu sync.Mutex
	var epochs []uint64

	m := NewMonitor(fastConfig(), func(epoch uint64) error {
		mu.Lock()
		epochs = append(epochs, epoch)
		mu.Unlock()
		return nil
	}, nil, nil)

	m.Start(7)
	defer m.Stop()

	// Answer every probe so the monitor keeps running.
	assert.Eventually(t, func() bool {
		m.Reset(7)
		mu.Lock()
		defer mu.Unlock()
		return len(epochs) >= 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, e := range epochs {
		assert.Equal(t, uint64(7), e)
	}
}

func TestMonitorDeclaresDeathAfterMaxMisses(t *testing.T) {
	var probes atomic.Int32
	var deaths atomic.Int32
	var deadEpoch atomic.Uint64

	m := NewMonitor(fastConfig(),
		func(uint64) error {
			probes.Add(1)
			return nil
		},
		func(epoch uint64) {
			deaths.Add(1)
			deadEpoch.Store(epoch)
		},
		nil,
	)

	start := time.Now()
	m.Start(3)

	require.Eventually(t, func() bool { return deaths.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), fastConfig().DetectionDelay())
	assert.Equal(t, uint64(3), deadEpoch.Load())
	assert.False(t, m.IsRunning())
	assert.Equal(t, 3, m.Stats().Misses)

	sent := probes.Load()
	assert.Equal(t, int32(3), sent)

	// A dead monitor stays quiet.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, sent, probes.Load())
	assert.Equal(t, int32(1), deaths.Load())
}

func TestMonitorResetCancelsTimeout(t *testing.T) {
	var deaths atomic.Int32
	var m *Monitor
	m = NewMonitor(fastConfig(),
		func(epoch uint64) error {
			// Respond right away, as a healthy peer would.
			go m.Reset(epoch)
			return nil
		},
		func(uint64) { deaths.Add(1) },
		nil,
	)

	m.Start(1)
	time.Sleep(200 * time.Millisecond)
	m.Stop()

	stats := m.Stats()
	assert.Equal(t, int32(0), deaths.Load())
	assert.Equal(t, 0, stats.Misses)
	assert.GreaterOrEqual(t, stats.ProbesSent, uint64(3))
	assert.False(t, stats.LastResponse.IsZero())
}

func TestMonitorResetClearsMisses(t *testing.T) {
	m := NewMonitor(fastConfig(), func(uint64) error { return nil }, func(uint64) {}, nil)

	m.Start(1)
	defer m.Stop()

	require.Eventually(t, func() bool { return m.Stats().Misses >= 1 }, time.Second, 2*time.Millisecond)
	assert.True(t, m.Reset(1))
	assert.Equal(t, 0, m.Stats().Misses)
	assert.True(t, m.IsRunning())
}

func TestMonitorResetIgnoresOtherEpochs(t *testing.T) {
	config := fastConfig()
	config.MaxMisses = 100
	m := NewMonitor(config, func(uint64) error { return nil }, func(uint64) {}, nil)

	assert.False(t, m.Reset(0), "stopped monitor accepts no response")

	m.Start(2)
	defer m.Stop()

	require.Eventually(t, func() bool { return m.Stats().Misses >= 1 }, time.Second, 2*time.Millisecond)

	// A late response from the previous session must not clear the count.
	assert.False(t, m.Reset(1))
	stats := m.Stats()
	assert.GreaterOrEqual(t, stats.Misses, 1)
	assert.True(t, stats.LastResponse.IsZero())

	assert.True(t, m.Reset(2))
	assert.Equal(t, 0, m.Stats().Misses)

	m.Stop()
	assert.False(t, m.Reset(2), "stopped monitor accepts no response")
}

func TestMonitorSendFailureCountsNoMiss(t *testing.T) {
	var deaths atomic.Int32
	m := NewMonitor(fastConfig(),
		func(uint64) error { return errors.New("not connected") },
		func(uint64) { deaths.Add(1) },
		nil,
	)

	m.Start(1)
	time.Sleep(150 * time.Millisecond)
	m.Stop()

	assert.Equal(t, 0, m.Stats().Misses)
	assert.Equal(t, uint64(0), m.Stats().ProbesSent)
	assert.Equal(t, int32(0), deaths.Load())
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	var probes atomic.Int32
	m := NewMonitor(fastConfig(), func(uint64) error {
		probes.Add(1)
		return nil
	}, nil, nil)

	m.Stop()
	m.Start(1)
	m.Stop()
	m.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), probes.Load())
	assert.False(t, m.IsRunning())
}

func TestMonitorRestartIgnoresPreviousSession(t *testing.T) {
	var mu sync.Mutex
	var deadEpochs []uint64

	m := NewMonitor(fastConfig(), func(uint64) error { return nil }, func(epoch uint64) {
		mu.Lock()
		deadEpochs = append(deadEpochs, epoch)
		mu.Unlock()
	}, nil)

	m.Start(1)
	require.Eventually(t, func() bool { return m.Stats().Misses >= 1 }, time.Second, 2*time.Millisecond)

	m.Start(2)
	stats := m.Stats()
	assert.Equal(t, 0, stats.Misses)
	assert.Equal(t, uint64(2), stats.Epoch)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(deadEpochs) > 0
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{2}, deadEpochs)
}
