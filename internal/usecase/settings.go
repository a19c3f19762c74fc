// Package usecase contains application business logic.
package usecase

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// userKeys are the settings a user may change, in display order.
var userKeys = []string{
	domain.KeyTotalUsedRemindTime,
	domain.KeyContinuousUsedRemindTime,
	domain.KeyContinuousUsedResetTime,
	domain.KeyNoTimeNames,
	domain.KeyNoInfoNames,
}

// IsUserSetting reports whether key can be changed with Set.
func IsUserSetting(key string) bool {
	for _, k := range userKeys {
		if k == key {
			return true
		}
	}
	return false
}

// SettingsService gives typed access to the settings store shared by the
// daemon and the CLI. Missing or malformed values fall back to defaults.
type SettingsService struct {
	store    domain.SettingsStore
	defaults domain.Settings
	logger   *zap.Logger
}

// NewSettingsService creates a settings service over store.
func NewSettingsService(store domain.SettingsStore, defaults domain.Settings, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		store:    store,
		defaults: defaults,
		logger:   logger,
	}
}

// Defaults returns the settings used for missing values.
func (s *SettingsService) Defaults() domain.Settings {
	return s.defaults
}

// SeedDefaults writes the defaults for user settings missing from the store.
func (s *SettingsService) SeedDefaults() error {
	all, err := s.store.All()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	missing := make(map[string]string)
	for key, value := range defaultValues(s.defaults) {
		if _, ok := all[key]; !ok {
			missing[key] = value
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if err := s.store.SetMany(missing); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	s.logger.Info("seeded default settings", zap.Int("count", len(missing)))
	return nil
}

// Load returns the typed user settings.
func (s *SettingsService) Load() (domain.Settings, error) {
	all, err := s.store.All()
	if err != nil {
		return s.defaults, fmt.Errorf("read settings: %w", err)
	}
	d := s.defaults
	return domain.Settings{
		Thresholds: domain.Thresholds{
			TotalUsedRemindTime:      s.threshold(all, domain.KeyTotalUsedRemindTime, d.TotalUsedRemindTime),
			ContinuousUsedRemindTime: s.threshold(all, domain.KeyContinuousUsedRemindTime, d.ContinuousUsedRemindTime),
			ContinuousUsedResetTime:  s.threshold(all, domain.KeyContinuousUsedResetTime, d.ContinuousUsedResetTime),
		},
		NoTimeNames: stringOr(all, domain.KeyNoTimeNames, d.NoTimeNames),
		NoInfoNames: stringOr(all, domain.KeyNoInfoNames, d.NoInfoNames),
	}, nil
}

// LoadCounters returns the persisted counters when they belong to day.
// sameDay is false when the stored day key differs (or is missing), in
// which case the zero counters are returned.
func (s *SettingsService) LoadCounters(day string) (domain.Counters, bool, error) {
	all, err := s.store.All()
	if err != nil {
		return domain.Counters{}, false, fmt.Errorf("read counters: %w", err)
	}
	if all[domain.KeyToday] != day {
		return domain.Counters{}, false, nil
	}
	reminded, _ := strconv.ParseBool(all[domain.KeyHasTotalReminded])
	return domain.Counters{
		TotalUsedTime:      s.duration(all, domain.KeyTotalUsedTime, 0),
		ContinuousUsedTime: s.duration(all, domain.KeyContinuousUsedTime, 0),
		HasTotalReminded:   reminded,
	}, true, nil
}

// PersistCounters writes the day key and the tick counters in one
// transaction. The end-using time is written separately.
func (s *SettingsService) PersistCounters(day string, c domain.Counters) error {
	return s.store.SetMany(map[string]string{
		domain.KeyToday:              day,
		domain.KeyTotalUsedTime:      c.TotalUsedTime.String(),
		domain.KeyContinuousUsedTime: c.ContinuousUsedTime.String(),
		domain.KeyHasTotalReminded:   strconv.FormatBool(c.HasTotalReminded),
	})
}

// EndUsingTime returns the stored end-using alarm as a time on now's day.
// A missing, malformed or already passed alarm is the zero time.
func (s *SettingsService) EndUsingTime(now time.Time) (time.Time, error) {
	raw, ok, err := s.store.Get(domain.KeyEndUsingTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("read end using time: %w", err)
	}
	if !ok || raw == "" {
		return time.Time{}, nil
	}
	at, err := ParseEndUsingTime(raw, now)
	if err != nil {
		s.logger.Warn("ignoring malformed end using time", zap.String("value", raw))
		return time.Time{}, nil
	}
	if endTimePassed(at, now) {
		return time.Time{}, nil
	}
	return at, nil
}

// SetEndUsingTime stores at (time of day). Times already passed today
// return domain.ErrEndTimeInPast.
func (s *SettingsService) SetEndUsingTime(at, now time.Time) (time.Time, error) {
	at = onDay(at, now)
	if endTimePassed(at, now) {
		return time.Time{}, domain.ErrEndTimeInPast
	}
	if err := s.store.Set(domain.KeyEndUsingTime, at.Format(domain.EndUsingLayout)); err != nil {
		return time.Time{}, fmt.Errorf("store end using time: %w", err)
	}
	return at, nil
}

// ResetEndUsingTime clears the end-using alarm.
func (s *SettingsService) ResetEndUsingTime() error {
	if err := s.store.Set(domain.KeyEndUsingTime, ""); err != nil {
		return fmt.Errorf("clear end using time: %w", err)
	}
	return nil
}

// Set validates and stores a user setting.
func (s *SettingsService) Set(key, value string) error {
	if !IsUserSetting(key) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSetting, key)
	}
	switch key {
	case domain.KeyTotalUsedRemindTime, domain.KeyContinuousUsedRemindTime, domain.KeyContinuousUsedResetTime:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
		value = d.String()
	default:
		value = normalizeNameList(value)
	}
	return s.store.Set(key, value)
}

// Entry is one row of List.
type Entry struct {
	Key   string
	Value string
}

// List returns every stored value, user settings first, then the
// remaining keys sorted.
func (s *SettingsService) List() ([]Entry, error) {
	all, err := s.store.All()
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	defaults := defaultValues(s.defaults)
	entries := make([]Entry, 0, len(all)+len(userKeys))
	for _, key := range userKeys {
		value, ok := all[key]
		if !ok {
			value = defaults[key]
		}
		entries = append(entries, Entry{Key: key, Value: value})
		delete(all, key)
	}
	rest := make([]string, 0, len(all))
	for key := range all {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		entries = append(entries, Entry{Key: key, Value: all[key]})
	}
	return entries, nil
}

// ParseEndUsingTime parses "15:04" as a time on now's day.
func ParseEndUsingTime(value string, now time.Time) (time.Time, error) {
	t, err := time.Parse(domain.EndUsingLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid end using time %q: %w", value, err)
	}
	return onDay(t, now), nil
}

func (s *SettingsService) duration(all map[string]string, key string, def time.Duration) time.Duration {
	raw, ok := all[key]
	if !ok || raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		s.logger.Warn("ignoring malformed setting",
			zap.String("key", key),
			zap.String("value", raw))
		return def
	}
	return d
}

// threshold is duration for reminder thresholds, which must be positive.
func (s *SettingsService) threshold(all map[string]string, key string, def time.Duration) time.Duration {
	d := s.duration(all, key, def)
	if d <= 0 {
		s.logger.Warn("ignoring non-positive threshold",
			zap.String("key", key),
			zap.Duration("value", d))
		return def
	}
	return d
}

func stringOr(all map[string]string, key, def string) string {
	if v, ok := all[key]; ok {
		return v
	}
	return def
}

func defaultValues(d domain.Settings) map[string]string {
	return map[string]string{
		domain.KeyTotalUsedRemindTime:      d.TotalUsedRemindTime.String(),
		domain.KeyContinuousUsedRemindTime: d.ContinuousUsedRemindTime.String(),
		domain.KeyContinuousUsedResetTime:  d.ContinuousUsedResetTime.String(),
		domain.KeyNoTimeNames:              d.NoTimeNames,
		domain.KeyNoInfoNames:              d.NoInfoNames,
	}
}

func normalizeNameList(raw string) string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return strings.Join(names, ",")
}

// onDay moves the time of day of t onto now's date, minute precision.
func onDay(t, now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
}

func endTimePassed(at, now time.Time) bool {
	return at.Before(now.Truncate(time.Minute))
}
