// Package main is the CLI entry point for appusage.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/app_usage/internal/config"
	"github.com/eliteGoblin/focusd/app_usage/internal/daemon"
	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/infra"
	"github.com/eliteGoblin/focusd/app_usage/internal/metrics"
	"github.com/eliteGoblin/focusd/app_usage/internal/policy"
	"github.com/eliteGoblin/focusd/app_usage/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "appusage",
	Short: "Application usage tracker - counts foreground time and reminds you to rest",
	Long: `appusage samples the foreground window every second and records how long
each application was in front today. It reminds you when the daily total
or an unbroken stretch of use passes your limits, and at a chosen end time.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start tracking in the background",
	Long:  `Spawns the tracking daemon detached from the terminal.`,
	RunE:  runStart,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracker in the foreground",
	Long:  `Runs the tracking daemon attached to the terminal, logging to stderr as well as the log file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTracker(true)
	},
}

// Hidden daemon command - used for self-exec when spawning the daemon
var daemonCmd = &cobra.Command{
	Use:    daemon.DaemonCommand,
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTracker(false)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state and today's usage",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/appusage/config.yaml)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	registry := infra.NewFileRegistry(cfg.DataDir, infra.NewProcessManager())
	if alive, _ := registry.IsAlive(); alive {
		fmt.Println("appusage is already running")
		return nil
	}

	if err := daemon.StartDaemon(configPath); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait a moment for the daemon to register
	time.Sleep(500 * time.Millisecond)

	if alive, _ := registry.IsAlive(); !alive {
		fmt.Printf("Daemon did not register yet, check %s\n", cfg.Log.File)
		return nil
	}
	fmt.Println("appusage started")
	fmt.Printf("Data: %s\n", cfg.DataDir)
	return nil
}

// runTracker runs the engine, the sampler and the reminder worker until
// a shutdown signal arrives.
func runTracker(foreground bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := createLogger(cfg, foreground)
	defer func() { _ = logger.Sync() }()

	notifier := infra.NewDesktopNotifier(logger)
	defer func() { _ = notifier.Close() }()

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(cfg.DataDir, pm)
	if info, err := registry.Get(); err == nil && info.PID != os.Getpid() && pm.IsRunning(info.PID) {
		return fmt.Errorf("daemon already running with pid %d", info.PID)
	}

	settingsDB, err := infra.OpenSettings(cfg.DataDir)
	if err != nil {
		return initFailed(logger, notifier, fmt.Errorf("open settings: %w", err))
	}
	defer func() { _ = settingsDB.Close() }()

	cache := infra.NewJSONMetadataCache(cfg.DataDir, logger)
	enricher := usecase.NewEnricher(
		usecase.EnricherConfig{MaxConcurrent: cfg.Enrichment.MaxConcurrent},
		cache,
		infra.NewDesktopEntryResolver(logger),
		infra.NewPNGIconStore(cfg.Enrichment.IconDir),
		logger,
	)

	clock := quartz.NewReal()
	engine, err := usecase.NewEngine(
		usecase.EngineConfig{ReminderQueueSize: cfg.Reminders.QueueSize},
		usecase.EngineDeps{
			Clock:      clock,
			Foreground: infra.NewForegroundResolver(pm),
			Processes:  pm,
			Settings:   usecase.NewSettingsService(settingsDB, cfg.Defaults.Settings(), logger),
			Ledger:     infra.NewFileLedger(cfg.DataDir, logger),
			Metadata:   cache,
			Hosts:      policy.NewHostRegistryWith(cfg.Hosts.ShellFrames, cfg.Hosts.Containers),
			Enricher:   enricher,
			Logger:     logger,
		},
	)
	if err != nil {
		return initFailed(logger, notifier, err)
	}

	// Set up graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr, logger)
		server.Start()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = server.Stop(shutdownCtx)
		}()
	}

	sampler := daemon.NewSampler(
		daemon.SamplerConfig{
			TickInterval:      usecase.TickInterval,
			HeartbeatInterval: cfg.Sampler.HeartbeatInterval,
			ReloadInterval:    cfg.Sampler.ReloadInterval,
			RolloverSchedule:  cfg.Sampler.RolloverSchedule,
		},
		engine,
		registry,
		clock,
		domain.DaemonInfo{PID: os.Getpid(), AppVersion: Version},
		logger,
	)
	worker := daemon.NewReminderWorker(engine.Reminders(), notifier, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sampler.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })

	err = g.Wait()
	enricher.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("received shutdown signal")
		return nil
	}
	return err
}

// initFailed logs a startup failure and tries to tell the user.
func initFailed(logger *zap.Logger, notifier domain.ReminderDispatcher, err error) error {
	logger.Error("tracker failed to start", zap.Error(err))
	_, notifyErr := notifier.Fire(context.Background(), domain.Reminder{
		Kind:    domain.ReminderError,
		Message: "Usage tracking could not start: " + err.Error(),
		At:      time.Now(),
	})
	if notifyErr != nil {
		logger.Warn("failed to show startup error", zap.Error(notifyErr))
	}
	return err
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := createLogger(cfg, false)
	defer func() { _ = logger.Sync() }()

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(cfg.DataDir, pm)

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("=== appusage Status ===")

	info, err := registry.Get()
	alive, _ := registry.IsAlive()
	switch {
	case err != nil || info == nil:
		red.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'appusage start' to begin tracking.")
	case !alive:
		yellow.Printf("Status: STALE (pid %d is gone)\n", info.PID)
	default:
		green.Printf("Status: RUNNING (pid %d)\n", info.PID)
		if info.LastHeartbeat > 0 {
			lastBeat := time.Unix(info.LastHeartbeat, 0)
			fmt.Printf("Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
		}
	}

	settings, closeFn, err := openSettingsService(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	now := time.Now()
	counters, sameDay, err := settings.LoadCounters(now.Format(domain.DayKeyLayout))
	if err != nil {
		return err
	}
	userSettings, err := settings.Load()
	if err != nil {
		return err
	}

	fmt.Println("\nToday:")
	if !sameDay {
		fmt.Println("  No usage recorded yet")
	} else {
		total := green
		if counters.TotalUsedTime >= userSettings.TotalUsedRemindTime {
			total = red
		}
		total.Printf("  Total used:      %s (limit %s)\n",
			domain.FormatDuration(counters.TotalUsedTime),
			domain.FormatDuration(userSettings.TotalUsedRemindTime))
		fmt.Printf("  Continuous use:  %s (limit %s)\n",
			domain.FormatDuration(counters.ContinuousUsedTime),
			domain.FormatDuration(userSettings.ContinuousUsedRemindTime))
	}
	end, err := settings.EndUsingTime(now)
	if err != nil {
		return err
	}
	if !end.IsZero() {
		fmt.Printf("  End using at:    %s\n", end.Format(domain.EndUsingLayout))
	}
	cyan.Println("=======================")
	return nil
}

// openSettingsService opens the encrypted settings store for a CLI command.
func openSettingsService(cfg *config.Config, logger *zap.Logger) (*usecase.SettingsService, func(), error) {
	db, err := infra.OpenSettings(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open settings: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return usecase.NewSettingsService(db, cfg.Defaults.Settings(), logger), closeFn, nil
}

func createLogger(cfg *config.Config, foreground bool) *zap.Logger {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{cfg.Log.File}
	zc.ErrorOutputPaths = []string{cfg.Log.ErrorFile}
	if foreground {
		zc.OutputPaths = append(zc.OutputPaths, "stderr")
		zc.ErrorOutputPaths = append(zc.ErrorOutputPaths, "stderr")
	}
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if level, err := zap.ParseAtomicLevel(cfg.Log.Level); err == nil {
		zc.Level = level
	}

	logger, err := zc.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("appusage %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
