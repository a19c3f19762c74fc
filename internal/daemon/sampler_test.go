package daemon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// mockTracker implements Tracker for testing
type mockTracker struct {
	ticks     atomic.Int32
	reloads   atomic.Int32
	rollovers atomic.Int32
	reloadErr error
}

func (m *mockTracker) Tick(ctx context.Context) { m.ticks.Add(1) }

func (m *mockTracker) Reload() error {
	m.reloads.Add(1)
	return m.reloadErr
}

func (m *mockTracker) Rollover() bool {
	m.rollovers.Add(1)
	return true
}

// mockRegistry implements domain.DaemonRegistry for testing
type mockRegistry struct {
	mu         sync.Mutex
	info       *domain.DaemonInfo
	heartbeats int
	cleared    bool
}

func (m *mockRegistry) Register(info domain.DaemonInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info = &info
	return nil
}

func (m *mockRegistry) UpdateHeartbeat() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.info == nil {
		return domain.ErrDaemonNotRegistered
	}
	m.heartbeats++
	return nil
}

func (m *mockRegistry) Get() (*domain.DaemonInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.info == nil {
		return nil, domain.ErrDaemonNotRegistered
	}
	info := *m.info
	return &info, nil
}

func (m *mockRegistry) IsAlive() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info != nil, nil
}

func (m *mockRegistry) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info = nil
	m.cleared = true
	return nil
}

func (m *mockRegistry) GetRegistryPath() string { return "/tmp/daemon.json" }

func (m *mockRegistry) heartbeatCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heartbeats
}

func (m *mockRegistry) wasCleared() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

// TestDefaultSamplerConfig verifies default sampler configuration
func TestDefaultSamplerConfig(t *testing.T) {
	config := DefaultSamplerConfig()

	assert.Equal(t, time.Second, config.TickInterval)
	assert.Equal(t, 30*time.Second, config.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, config.ReloadInterval)
	assert.Equal(t, "@midnight", config.RolloverSchedule)
}

func TestSampler_Run(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := quartz.NewMock(t)
	trap := clock.Trap().NewTicker("sampler")
	defer trap.Close()

	tracker := &mockTracker{reloadErr: errors.New("store locked")}
	registry := &mockRegistry{}
	config := DefaultSamplerConfig()
	config.RolloverSchedule = ""
	s := NewSampler(config, tracker, registry, clock, domain.DaemonInfo{PID: 42}, zap.NewNop())

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- s.Run(runCtx) }()

	for i := 0; i < 3; i++ {
		call := trap.MustWait(ctx)
		call.MustRelease(ctx)
	}

	info, err := registry.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, info.PID)

	for i := 1; i <= 30; i++ {
		clock.Advance(time.Second).MustWait(ctx)
		want := int32(i)
		require.Eventually(t, func() bool { return tracker.ticks.Load() == want },
			time.Second, time.Millisecond)
	}
	require.Eventually(t, func() bool {
		return tracker.reloads.Load() == 3 && registry.heartbeatCount() == 1
	}, time.Second, time.Millisecond)

	stop()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, registry.wasCleared())
}

func TestSampler_RolloverSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := &mockTracker{}
	config := DefaultSamplerConfig()
	config.RolloverSchedule = "@every 1s"
	s := NewSampler(config, tracker, &mockRegistry{}, quartz.NewReal(), domain.DaemonInfo{PID: 1}, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return tracker.rollovers.Load() >= 1 },
		5*time.Second, 50*time.Millisecond)
	cancel()
	<-done
}

func TestSampler_InvalidScheduleFails(t *testing.T) {
	registry := &mockRegistry{}
	config := DefaultSamplerConfig()
	config.RolloverSchedule = "every full moon"
	s := NewSampler(config, &mockTracker{}, registry, quartz.NewMock(t), domain.DaemonInfo{PID: 1}, zap.NewNop())

	err := s.Run(context.Background())
	assert.Error(t, err)
	assert.True(t, registry.wasCleared())
}
