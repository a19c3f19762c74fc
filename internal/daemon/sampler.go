// Package daemon implements the tracking daemon loops.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/usecase"
)

// Tracker is the part of the engine the sampler drives.
type Tracker interface {
	Tick(ctx context.Context)
	Reload() error
	Rollover() bool
}

// SamplerConfig holds sampler daemon configuration.
type SamplerConfig struct {
	TickInterval      time.Duration // Sampling period, one second in production
	HeartbeatInterval time.Duration // How often to update heartbeat
	ReloadInterval    time.Duration // How often to re-read user settings
	RolloverSchedule  string        // Cron spec for the day rollover, empty disables
}

// DefaultSamplerConfig returns default sampler configuration.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		TickInterval:      usecase.TickInterval,
		HeartbeatInterval: 30 * time.Second,
		ReloadInterval:    10 * time.Second,
		RolloverSchedule:  "@midnight",
	}
}

// Sampler is the tracking daemon.
// It ticks the engine every second, keeps its registry heartbeat fresh,
// reloads settings changed by the CLI and rolls the day over at midnight.
type Sampler struct {
	config   SamplerConfig
	tracker  Tracker
	registry domain.DaemonRegistry
	clock    quartz.Clock
	info     domain.DaemonInfo
	logger   *zap.Logger
}

// NewSampler creates a new sampler daemon.
func NewSampler(
	config SamplerConfig,
	tracker Tracker,
	registry domain.DaemonRegistry,
	clock quartz.Clock,
	info domain.DaemonInfo,
	logger *zap.Logger,
) *Sampler {
	return &Sampler{
		config:   config,
		tracker:  tracker,
		registry: registry,
		clock:    clock,
		info:     info,
		logger:   logger,
	}
}

// Run starts the sampler loop.
// This blocks until context is canceled.
func (s *Sampler) Run(ctx context.Context) error {
	if err := s.registry.Register(s.info); err != nil {
		s.logger.Error("failed to register daemon", zap.Error(err))
		return err
	}
	defer func() {
		if err := s.registry.Clear(); err != nil {
			s.logger.Warn("failed to clear registry", zap.Error(err))
		}
	}()

	s.logger.Info("sampler daemon started",
		zap.Int("pid", s.info.PID),
		zap.Duration("tick", s.config.TickInterval))

	scheduler, err := s.scheduleRollover()
	if err != nil {
		return err
	}
	if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()
	}

	tickTicker := s.clock.NewTicker(s.config.TickInterval, "sampler", "tick")
	heartbeatTicker := s.clock.NewTicker(s.config.HeartbeatInterval, "sampler", "heartbeat")
	reloadTicker := s.clock.NewTicker(s.config.ReloadInterval, "sampler", "reload")

	defer func() {
		tickTicker.Stop()
		heartbeatTicker.Stop()
		reloadTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sampler daemon stopping")
			return ctx.Err()

		case <-tickTicker.C:
			s.tracker.Tick(ctx)

		case <-heartbeatTicker.C:
			if err := s.registry.UpdateHeartbeat(); err != nil {
				s.logger.Warn("failed to update heartbeat", zap.Error(err))
			}

		case <-reloadTicker.C:
			if err := s.tracker.Reload(); err != nil {
				s.logger.Warn("failed to reload settings", zap.Error(err))
			}
		}
	}
}

// scheduleRollover registers the day rollover job. The engine also rolls
// over on the first tick of a new day, so the job only matters while
// nothing ticks (suspended loop, long resolver call).
func (s *Sampler) scheduleRollover() (*cron.Cron, error) {
	if s.config.RolloverSchedule == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(s.config.RolloverSchedule, func() {
		if s.tracker.Rollover() {
			s.logger.Info("day rolled over by schedule")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid rollover schedule %q: %w", s.config.RolloverSchedule, err)
	}
	return c, nil
}
