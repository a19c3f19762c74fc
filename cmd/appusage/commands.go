package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/app_usage/internal/config"
	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/infra"
	"github.com/eliteGoblin/focusd/app_usage/internal/usecase"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List today's most used applications",
	Long: `Lists applications by time spent in front today, most used first.
The run currently in front of a live daemon is counted once it ends.`,
	RunE: runTop,
}

var endTimeCmd = &cobra.Command{
	Use:   "end-time",
	Short: "Manage the end-of-use alarm",
}

var endTimeSetCmd = &cobra.Command{
	Use:   "set HH:MM",
	Short: "Remind at HH:MM today to stop using the computer",
	Args:  cobra.ExactArgs(1),
	RunE:  runEndTimeSet,
}

var endTimeResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the end-of-use alarm",
	RunE:  runEndTimeReset,
}

var endTimeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the end-of-use alarm",
	RunE:  runEndTimeShow,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read or change reminder thresholds and filter lists",
	Long: `Settings are shared with the running daemon, which picks up changes
within its reload interval. Durations use Go syntax (90m, 2h).`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the application metadata cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget display names and icons so they are looked up again",
	RunE:  runCacheClear,
}

var (
	topCount int
	topJSON  bool
)

func init() {
	topCmd.Flags().IntVarP(&topCount, "count", "n", 10, "Number of applications to show (0 for all)")
	topCmd.Flags().BoolVar(&topJSON, "json", false, "Output as JSON")

	endTimeCmd.AddCommand(endTimeSetCmd)
	endTimeCmd.AddCommand(endTimeResetCmd)
	endTimeCmd.AddCommand(endTimeShowCmd)

	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(endTimeCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(cacheCmd)
}

// topEntry is the JSON shape of one row of `top --json`.
type topEntry struct {
	ProcessName   string  `json:"processName"`
	DisplayName   string  `json:"displayName"`
	IconReference string  `json:"iconReference"`
	Seconds       float64 `json:"seconds"`
}

func runTop(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := createLogger(cfg, false)
	defer func() { _ = logger.Sync() }()

	settings, closeFn, err := openSettingsService(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	report := usecase.NewReport(
		infra.NewFileLedger(cfg.DataDir, logger),
		infra.NewJSONMetadataCache(cfg.DataDir, logger),
		settings,
		logger,
	)
	usage, err := report.Top(topCount, time.Now())
	if err != nil {
		return err
	}

	if topJSON {
		rows := make([]topEntry, 0, len(usage))
		for _, u := range usage {
			rows = append(rows, topEntry{
				ProcessName:   u.ProcessName,
				DisplayName:   u.DisplayName,
				IconReference: u.IconReference,
				Seconds:       u.UsedTime.Seconds(),
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(usage) == 0 {
		fmt.Println("No usage recorded today.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tAPPLICATION\tPROCESS\tTIME")
	for i, u := range usage {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, u.DisplayName, u.ProcessName, domain.FormatDuration(u.UsedTime))
	}
	return w.Flush()
}

func runEndTimeSet(cmd *cobra.Command, args []string) error {
	settings, closeFn, err := cliSettings()
	if err != nil {
		return err
	}
	defer closeFn()

	now := time.Now()
	at, err := usecase.ParseEndUsingTime(args[0], now)
	if err != nil {
		return err
	}
	stored, err := settings.SetEndUsingTime(at, now)
	if errors.Is(err, domain.ErrEndTimeInPast) {
		return fmt.Errorf("%s has already passed today", at.Format(domain.EndUsingLayout))
	}
	if err != nil {
		return err
	}
	fmt.Printf("End using time set to %s (in %s)\n",
		stored.Format(domain.EndUsingLayout), domain.FormatDuration(stored.Sub(now)))
	return nil
}

func runEndTimeReset(cmd *cobra.Command, args []string) error {
	settings, closeFn, err := cliSettings()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := settings.ResetEndUsingTime(); err != nil {
		return err
	}
	fmt.Println("End using time cleared")
	return nil
}

func runEndTimeShow(cmd *cobra.Command, args []string) error {
	settings, closeFn, err := cliSettings()
	if err != nil {
		return err
	}
	defer closeFn()

	at, err := settings.EndUsingTime(time.Now())
	if err != nil {
		return err
	}
	if at.IsZero() {
		fmt.Println("No end using time set")
		return nil
	}
	fmt.Println(at.Format(domain.EndUsingLayout))
	return nil
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	settings, closeFn, err := cliSettings()
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := settings.List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.Key, e.Value)
	}
	return w.Flush()
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	settings, closeFn, err := cliSettings()
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := settings.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Key == args[0] {
			fmt.Println(e.Value)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrUnknownSetting, args[0])
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	settings, closeFn, err := cliSettings()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := settings.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("%s updated\n", args[0])
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := createLogger(cfg, false)
	defer func() { _ = logger.Sync() }()

	if err := infra.NewJSONMetadataCache(cfg.DataDir, logger).Clear(); err != nil {
		return err
	}
	fmt.Println("Metadata cache cleared. Names are looked up again the next time each application comes to the front.")
	return nil
}

// cliSettings loads config and opens the settings store for a command.
func cliSettings() (*usecase.SettingsService, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := createLogger(cfg, false)
	settings, closeFn, err := openSettingsService(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return settings, func() {
		closeFn()
		_ = logger.Sync()
	}, nil
}
