package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/metrics"
	"github.com/eliteGoblin/focusd/app_usage/internal/policy"
)

// TickInterval is the sampling period. Every trackable tick adds exactly
// one interval to the counters.
const TickInterval = time.Second

// debounceThreshold is how long a process must stay in front before the
// streak counts toward continuous use.
const debounceThreshold = 6 * TickInterval

// Error categories reported once per day through an error reminder.
const (
	errCategoryLedger   = "ledger"
	errCategorySettings = "settings"
)

// MetadataEnricher enriches a process with display name and icon in the
// background. Enrich must not block.
type MetadataEnricher interface {
	Enrich(identity domain.ProcessIdentity)
}

// EngineConfig holds engine settings.
type EngineConfig struct {
	// ReminderQueueSize is the buffer of the reminder channel.
	ReminderQueueSize int
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ReminderQueueSize: 8,
	}
}

// EngineDeps are the collaborators of the engine. Enricher may be nil.
type EngineDeps struct {
	Clock      quartz.Clock
	Foreground domain.ForegroundResolver
	Processes  domain.ProcessManager
	Settings   *SettingsService
	Ledger     domain.UsageLedger
	Metadata   domain.MetadataCache
	Hosts      *policy.HostRegistry
	Enricher   MetadataEnricher
	Logger     *zap.Logger
}

// Engine is the time accounting state machine. Tick must be called from a
// single goroutine; every other method is safe for concurrent use.
type Engine struct {
	clock      quartz.Clock
	foreground domain.ForegroundResolver
	processes  domain.ProcessManager
	settings   *SettingsService
	ledgerFile domain.UsageLedger
	metadata   domain.MetadataCache
	hosts      *policy.HostRegistry
	enricher   MetadataEnricher
	filter     *policy.FilterPolicy
	logger     *zap.Logger

	reminders chan domain.Reminder

	// lastResolveErr is only touched by Tick.
	lastResolveErr string

	mu                 sync.Mutex
	thresholds         domain.Thresholds
	counters           domain.Counters
	today              string
	ledger             map[string]float64
	lastProcess        *domain.ProcessIdentity
	lastActivationTime time.Time
	lastRecordTime     time.Time
	reportedErrors     map[string]bool
	// ledgerStale is set while the file may still hold an earlier day.
	ledgerStale bool
}

// NewEngine loads settings and today's state. When the stored day differs
// from today the counters, the ledger and the end-using alarm are reset.
func NewEngine(cfg EngineConfig, deps EngineDeps) (*Engine, error) {
	if cfg.ReminderQueueSize <= 0 {
		cfg.ReminderQueueSize = DefaultEngineConfig().ReminderQueueSize
	}
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	if deps.Hosts == nil {
		deps.Hosts = policy.NewHostRegistry()
	}

	e := &Engine{
		clock:          deps.Clock,
		foreground:     deps.Foreground,
		processes:      deps.Processes,
		settings:       deps.Settings,
		ledgerFile:     deps.Ledger,
		metadata:       deps.Metadata,
		hosts:          deps.Hosts,
		enricher:       deps.Enricher,
		logger:         deps.Logger,
		reminders:      make(chan domain.Reminder, cfg.ReminderQueueSize),
		reportedErrors: make(map[string]bool),
	}

	if err := e.settings.SeedDefaults(); err != nil {
		return nil, err
	}
	settings, err := e.settings.Load()
	if err != nil {
		return nil, err
	}
	e.thresholds = settings.Thresholds
	e.filter = policy.NewFilterPolicy(settings.NoTimeNames, settings.NoInfoNames)

	now := e.clock.Now()
	e.today = now.Format(domain.DayKeyLayout)
	e.lastRecordTime = now

	counters, sameDay, err := e.settings.LoadCounters(e.today)
	if err != nil {
		return nil, err
	}
	if !sameDay {
		e.logger.Info("new day, resetting usage", zap.String("day", e.today))
		if err := e.ledgerFile.Truncate(); err != nil {
			return nil, fmt.Errorf("truncate ledger: %w", err)
		}
		if err := e.settings.ResetEndUsingTime(); err != nil {
			return nil, err
		}
		if err := e.settings.PersistCounters(e.today, counters); err != nil {
			return nil, fmt.Errorf("persist counters: %w", err)
		}
		e.ledger = make(map[string]float64)
	} else {
		e.ledger, err = e.ledgerFile.Load()
		if err != nil {
			return nil, fmt.Errorf("load ledger: %w", err)
		}
	}

	counters.EndUsingTime, err = e.settings.EndUsingTime(now)
	if err != nil {
		return nil, err
	}
	e.counters = counters
	metrics.TotalUsedSeconds.Set(counters.TotalUsedTime.Seconds())

	if sameDay && counters.HasTotalReminded {
		if policy.ShouldClearTotalReminded(e.counters, e.thresholds.TotalUsedRemindTime) {
			// The limit was raised while the daemon was down.
			e.counters.HasTotalReminded = false
			e.persistCounters()
		} else {
			// Remind again on restart once the daily limit is already reached.
			e.emit(domain.Reminder{Kind: domain.ReminderTotal, Value: counters.TotalUsedTime, At: now})
		}
	}

	e.logger.Info("engine ready",
		zap.String("day", e.today),
		zap.Duration("total", counters.TotalUsedTime),
		zap.Int("ledger_entries", len(e.ledger)))
	return e, nil
}

// Reminders returns the channel reminders are emitted on.
func (e *Engine) Reminders() <-chan domain.Reminder {
	return e.reminders
}

// Tick samples the foreground once and advances the state machine.
func (e *Engine) Tick(ctx context.Context) {
	identity := e.resolve(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.rollover(now)
	before := e.counters

	if policy.EndUsingDue(e.counters, now) {
		e.fire(domain.ReminderEndUsing, now)
		if err := e.settings.ResetEndUsingTime(); err != nil {
			e.persistFailed(errCategorySettings, err)
		}
	}

	if identity == nil || !e.filter.ShouldTrackTime(identity.Name) {
		e.idleTick(now)
	} else {
		e.activeTick(*identity, now)
	}

	if e.counters.TotalUsedTime != before.TotalUsedTime ||
		e.counters.ContinuousUsedTime != before.ContinuousUsedTime ||
		e.counters.HasTotalReminded != before.HasTotalReminded {
		e.persistCounters()
	}
}

// idleTick handles a tick without a trackable foreground process.
func (e *Engine) idleTick(now time.Time) {
	metrics.TicksTotal.WithLabelValues("idle").Inc()
	if e.lastProcess != nil {
		e.finalize(now)
		e.lastProcess = nil
		e.counters.SingleContinuousUsedTime = 0
		return
	}
	if e.counters.ContinuousUsedTime != 0 && now.Sub(e.lastRecordTime) >= e.thresholds.ContinuousUsedResetTime {
		e.logger.Debug("continuous use reset after break",
			zap.Duration("continuous", e.counters.ContinuousUsedTime))
		e.counters.ContinuousUsedTime = 0
	}
}

// activeTick accounts one interval to identity.
func (e *Engine) activeTick(identity domain.ProcessIdentity, now time.Time) {
	metrics.TicksTotal.WithLabelValues("active").Inc()
	metrics.TrackedSeconds.Add(TickInterval.Seconds())

	if now.Sub(e.lastRecordTime) >= e.thresholds.ContinuousUsedResetTime {
		// No tick was recorded for a whole break (sleep, suspend). The run
		// in front ended right after the last recorded tick.
		if e.lastProcess != nil {
			e.logger.Info("gap detected, closing run",
				zap.String("process", e.lastProcess.Name),
				zap.Duration("gap", now.Sub(e.lastRecordTime)))
			e.finalize(e.lastRecordTime.Add(TickInterval))
			e.lastProcess = nil
			e.counters.SingleContinuousUsedTime = 0
		}
		e.counters.ContinuousUsedTime = 0
	}

	same := e.lastProcess != nil && e.lastProcess.Name == identity.Name

	e.counters.TotalUsedTime += TickInterval
	metrics.TotalUsedSeconds.Set(e.counters.TotalUsedTime.Seconds())

	if same {
		e.counters.SingleContinuousUsedTime += TickInterval
	} else {
		e.counters.SingleContinuousUsedTime = TickInterval
	}
	switch {
	case e.counters.SingleContinuousUsedTime == debounceThreshold:
		e.counters.ContinuousUsedTime += debounceThreshold
	case e.counters.SingleContinuousUsedTime > debounceThreshold:
		e.counters.ContinuousUsedTime += TickInterval
	}
	e.lastRecordTime = now

	for i := 0; i < 3; i++ {
		kind, due := policy.NextReminder(e.counters, e.thresholds, now)
		if !due {
			break
		}
		e.fire(kind, now)
	}

	if same {
		e.lastProcess.PID = identity.PID
		e.lastProcess.Title = identity.Title
		return
	}

	e.finalize(now)
	e.lastProcess = &identity
	e.lastActivationTime = now
	e.logger.Debug("foreground switched",
		zap.String("process", identity.Name),
		zap.Int("pid", identity.PID))

	if e.enricher != nil && e.filter.ShouldTrackMetadata(identity.Name) {
		e.enricher.Enrich(identity)
	}
}

// finalize adds the elapsed time of the tracked run to the ledger.
func (e *Engine) finalize(end time.Time) {
	p := e.lastProcess
	if p == nil || !e.filter.ShouldTrackTime(p.Name) {
		return
	}
	elapsed := end.Sub(e.lastActivationTime)
	if elapsed <= 0 {
		return
	}
	e.ledger[p.Name] += elapsed.Seconds()
	if err := e.writeLedger(p.Name); err != nil {
		e.logger.Error("failed to record usage",
			zap.String("process", p.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		e.persistFailed(errCategoryLedger, err)
	}
}

// writeLedger persists the record for name. After a failed truncate the
// file is rebuilt from memory so earlier days' lines do not come back.
func (e *Engine) writeLedger(name string) error {
	if !e.ledgerStale {
		return e.ledgerFile.Upsert(name, e.ledger[name])
	}
	if err := e.ledgerFile.Truncate(); err != nil {
		return err
	}
	e.ledgerStale = false
	for n, seconds := range e.ledger {
		if err := e.ledgerFile.Upsert(n, seconds); err != nil {
			e.ledgerStale = true
			return err
		}
	}
	return nil
}

// fire applies and emits one reminder.
func (e *Engine) fire(kind domain.ReminderKind, now time.Time) {
	value := policy.ApplyReminder(&e.counters, kind)
	e.logger.Info("reminder due",
		zap.String("kind", string(kind)),
		zap.Duration("value", value))
	e.emit(domain.Reminder{Kind: kind, Value: value, At: now})
}

// emit queues a reminder without blocking the tick.
func (e *Engine) emit(r domain.Reminder) {
	select {
	case e.reminders <- r:
	default:
		metrics.RemindersTotal.WithLabelValues(string(r.Kind), "dropped").Inc()
		e.logger.Warn("reminder queue full, dropping reminder", zap.String("kind", string(r.Kind)))
	}
}

// persistFailed surfaces a write failure once per category and day.
func (e *Engine) persistFailed(category string, err error) {
	metrics.PersistErrors.WithLabelValues(category).Inc()
	if e.reportedErrors[category] {
		return
	}
	e.reportedErrors[category] = true
	e.emit(domain.Reminder{
		Kind:    domain.ReminderError,
		Message: fmt.Sprintf("Usage data could not be saved (%s): %v", category, err),
		At:      e.clock.Now(),
	})
}

func (e *Engine) persistCounters() {
	if err := e.settings.PersistCounters(e.today, e.counters); err != nil {
		e.logger.Error("failed to persist counters", zap.Error(err))
		e.persistFailed(errCategorySettings, err)
	}
}

// rollover resets the day when now is on a later day than the state.
// The process in front keeps being tracked from the start of the new day.
func (e *Engine) rollover(now time.Time) bool {
	day := now.Format(domain.DayKeyLayout)
	if day == e.today {
		return false
	}
	e.logger.Info("day rollover",
		zap.String("from", e.today),
		zap.String("to", day),
		zap.Duration("total", e.counters.TotalUsedTime))

	e.today = day
	e.counters = domain.Counters{}
	e.ledger = make(map[string]float64)
	e.reportedErrors = make(map[string]bool)
	metrics.TotalUsedSeconds.Set(0)

	if e.lastProcess != nil {
		y, m, d := now.Date()
		e.lastActivationTime = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
	e.ledgerStale = false
	if err := e.ledgerFile.Truncate(); err != nil {
		e.logger.Error("failed to truncate ledger", zap.Error(err))
		e.ledgerStale = true
		e.persistFailed(errCategoryLedger, err)
	}
	if err := e.settings.ResetEndUsingTime(); err != nil {
		e.persistFailed(errCategorySettings, err)
	}
	e.persistCounters()
	return true
}

// Rollover resets the day if the clock moved past midnight. Safe to call
// any number of times.
func (e *Engine) Rollover() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rollover(e.clock.Now())
}

// Reload re-reads user settings and the end-using alarm from the store.
func (e *Engine) Reload() error {
	settings, err := e.settings.Load()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	end, err := e.settings.EndUsingTime(now)
	if err != nil {
		return err
	}

	if settings.Thresholds != e.thresholds {
		e.logger.Info("thresholds changed",
			zap.Duration("total", settings.TotalUsedRemindTime),
			zap.Duration("continuous", settings.ContinuousUsedRemindTime),
			zap.Duration("reset", settings.ContinuousUsedResetTime))
	}
	if policy.ShouldClearTotalReminded(e.counters, settings.TotalUsedRemindTime) {
		e.counters.HasTotalReminded = false
		e.persistCounters()
	}
	e.thresholds = settings.Thresholds
	e.filter.Update(settings.NoTimeNames, settings.NoInfoNames)
	e.counters.EndUsingTime = end
	return nil
}

// resolve returns the trackable identity in front, or nil.
func (e *Engine) resolve(ctx context.Context) *domain.ProcessIdentity {
	window, err := e.foreground.CurrentForeground(ctx)
	if err != nil {
		e.resolveFailed("foreground query failed", err)
		return nil
	}
	if window == nil || window.PID <= 0 {
		return nil
	}

	identity, err := e.processes.Lookup(window.PID)
	if err != nil {
		e.resolveFailed("process lookup failed", err)
		return nil
	}

	switch e.hosts.Classify(identity.Name) {
	case policy.HostShellFrame:
		chrome, err := e.foreground.IsChromeWindow(ctx, window.Handle)
		if err != nil {
			e.resolveFailed("window class check failed", err)
			return nil
		}
		if chrome {
			return nil
		}
	case policy.HostContainer:
		pid, ok, err := e.foreground.ResolveHostedProcess(ctx, *window)
		if err != nil {
			e.resolveFailed("hosted process lookup failed", err)
			return nil
		}
		if !ok {
			return nil
		}
		identity, err = e.processes.Lookup(pid)
		if err != nil {
			e.resolveFailed("hosted process lookup failed", err)
			return nil
		}
	}

	e.lastResolveErr = ""
	identity.Title = window.Title
	return identity
}

// resolveFailed logs a resolution error once until it changes.
func (e *Engine) resolveFailed(msg string, err error) {
	metrics.ResolveErrors.Inc()
	text := msg + ": " + err.Error()
	if text == e.lastResolveErr {
		return
	}
	e.lastResolveErr = text
	e.logger.Warn(msg, zap.Error(err))
}

// GetTotalUsedTime returns today's total used time.
func (e *Engine) GetTotalUsedTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters.TotalUsedTime
}

// Counters returns a copy of the counters.
func (e *Engine) Counters() domain.Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}

// Thresholds returns the thresholds in effect.
func (e *Engine) Thresholds() domain.Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thresholds
}

// GetTopProcesses returns up to n processes ranked by today's used time
// (n <= 0 means all). The run in progress is included up to now.
func (e *Engine) GetTopProcesses(n int) []domain.ProcessUsage {
	e.mu.Lock()
	seconds := make(map[string]float64, len(e.ledger)+1)
	for name, s := range e.ledger {
		seconds[name] = s
	}
	if p := e.lastProcess; p != nil && e.filter.ShouldTrackTime(p.Name) {
		if elapsed := e.clock.Now().Sub(e.lastActivationTime); elapsed > 0 {
			seconds[p.Name] += elapsed.Seconds()
		}
	}
	e.mu.Unlock()

	meta, err := e.metadata.All()
	if err != nil {
		e.logger.Warn("metadata cache unreadable, using fallback names", zap.Error(err))
		meta = nil
	}
	return rankUsage(seconds, meta, n)
}

// GetEndUsingTime returns the end-using alarm; ok is false when unset.
func (e *Engine) GetEndUsingTime() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	end := e.counters.EndUsingTime
	if end.IsZero() || endTimePassed(end, e.clock.Now()) {
		return time.Time{}, false
	}
	return end, true
}

// SetEndUsingTime sets the end-using alarm to the time of day of at.
func (e *Engine) SetEndUsingTime(at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	end, err := e.settings.SetEndUsingTime(at, e.clock.Now())
	if err != nil {
		return err
	}
	e.counters.EndUsingTime = end
	e.logger.Info("end using time set", zap.String("at", end.Format(domain.EndUsingLayout)))
	return nil
}

// ResetEndUsingTime clears the end-using alarm.
func (e *Engine) ResetEndUsingTime() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.settings.ResetEndUsingTime(); err != nil {
		return err
	}
	e.counters.EndUsingTime = time.Time{}
	return nil
}
