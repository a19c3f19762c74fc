// Package config loads the static daemon configuration.
//
// Runtime user settings (thresholds, filter lists, end-using time) live in
// the encrypted settings store; this file only covers how the daemon itself
// runs and the defaults it seeds into the store.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/policy"
)

// AppName names the data and config directories.
const AppName = "appusage"

// Config holds the complete daemon configuration
type Config struct {
	DataDir     string           `mapstructure:"data_dir"`
	MetricsAddr string           `mapstructure:"metrics_addr"`
	Log         LogConfig        `mapstructure:"log"`
	Sampler     SamplerConfig    `mapstructure:"sampler"`
	Reminders   RemindersConfig  `mapstructure:"reminders"`
	Enrichment  EnrichmentConfig `mapstructure:"enrichment"`
	Hosts       HostsConfig      `mapstructure:"hosts"`
	Defaults    DefaultsConfig   `mapstructure:"defaults"`
}

// LogConfig selects the log files. Relative paths are under DataDir.
type LogConfig struct {
	File      string `mapstructure:"file"`
	ErrorFile string `mapstructure:"error_file"`
	Level     string `mapstructure:"level"`
}

// SamplerConfig controls the daemon loops. The tick period itself is
// fixed at one second.
type SamplerConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	ReloadInterval    time.Duration `mapstructure:"reload_interval"`
	RolloverSchedule  string        `mapstructure:"rollover_schedule"`
}

// RemindersConfig sizes the reminder queue between engine and notifier.
type RemindersConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

// EnrichmentConfig bounds metadata lookups.
type EnrichmentConfig struct {
	MaxConcurrent int64  `mapstructure:"max_concurrent"`
	IconDir       string `mapstructure:"icon_dir"`
}

// HostsConfig lists the host processes unwrapped to the real application.
type HostsConfig struct {
	ShellFrames []string `mapstructure:"shell_frames"`
	Containers  []string `mapstructure:"containers"`
}

// DefaultsConfig seeds user settings that are missing from the store.
type DefaultsConfig struct {
	TotalUsedRemindTime      time.Duration `mapstructure:"total_used_remind_time"`
	ContinuousUsedRemindTime time.Duration `mapstructure:"continuous_used_remind_time"`
	ContinuousUsedResetTime  time.Duration `mapstructure:"continuous_used_reset_time"`
	NoTimeNames              string        `mapstructure:"no_time_names"`
	NoInfoNames              string        `mapstructure:"no_info_names"`
}

// Settings returns the defaults as domain settings.
func (d DefaultsConfig) Settings() domain.Settings {
	return domain.Settings{
		Thresholds: domain.Thresholds{
			TotalUsedRemindTime:      d.TotalUsedRemindTime,
			ContinuousUsedRemindTime: d.ContinuousUsedRemindTime,
			ContinuousUsedResetTime:  d.ContinuousUsedResetTime,
		},
		NoTimeNames: d.NoTimeNames,
		NoInfoNames: d.NoInfoNames,
	}
}

// DefaultConfigPath returns the XDG config file location.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// DefaultDataDir returns the XDG data directory for the application.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Load reads configuration from configPath (optional), APPUSAGE_* env
// variables and defaults. An empty path means DefaultConfigPath.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == "" {
		configPath = DefaultConfigPath()
	}
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("APPUSAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// SetConfigFile reports a missing file as a PathError, not
	// ConfigFileNotFoundError.
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("metrics_addr", "")

	v.SetDefault("log.file", "appusage.log")
	v.SetDefault("log.error_file", "appusage.err.log")
	v.SetDefault("log.level", "info")

	v.SetDefault("sampler.heartbeat_interval", "30s")
	v.SetDefault("sampler.reload_interval", "10s")
	v.SetDefault("sampler.rollover_schedule", "@midnight")

	v.SetDefault("reminders.queue_size", 8)

	v.SetDefault("enrichment.max_concurrent", 2)
	v.SetDefault("enrichment.icon_dir", "icons")

	v.SetDefault("hosts.shell_frames", policy.DefaultShellFrames)
	v.SetDefault("hosts.containers", policy.DefaultContainers)

	v.SetDefault("defaults.total_used_remind_time", domain.DefaultTotalUsedRemindTime.String())
	v.SetDefault("defaults.continuous_used_remind_time", domain.DefaultContinuousUsedRemindTime.String())
	v.SetDefault("defaults.continuous_used_reset_time", domain.DefaultContinuousUsedResetTime.String())
	v.SetDefault("defaults.no_time_names", domain.DefaultNoTimeNames)
	v.SetDefault("defaults.no_info_names", domain.DefaultNoInfoNames)
}

func validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if cfg.Sampler.HeartbeatInterval <= 0 {
		return fmt.Errorf("invalid heartbeat interval: %s", cfg.Sampler.HeartbeatInterval)
	}
	if cfg.Sampler.ReloadInterval <= 0 {
		return fmt.Errorf("invalid reload interval: %s", cfg.Sampler.ReloadInterval)
	}
	if cfg.Reminders.QueueSize <= 0 {
		return fmt.Errorf("invalid reminder queue size: %d", cfg.Reminders.QueueSize)
	}
	if cfg.Enrichment.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid enrichment concurrency: %d", cfg.Enrichment.MaxConcurrent)
	}
	d := cfg.Defaults
	if d.TotalUsedRemindTime <= 0 || d.ContinuousUsedRemindTime <= 0 || d.ContinuousUsedResetTime <= 0 {
		return fmt.Errorf("default thresholds must be positive")
	}

	cfg.Log.File = cfg.resolve(cfg.Log.File)
	cfg.Log.ErrorFile = cfg.resolve(cfg.Log.ErrorFile)
	cfg.Enrichment.IconDir = cfg.resolve(cfg.Enrichment.IconDir)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// resolve makes a relative path absolute under DataDir.
func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
