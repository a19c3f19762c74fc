package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gen2brain/beeep"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// NotifyFuncs are the desktop calls used by DesktopNotifier.
type NotifyFuncs struct {
	Notify func(title, message string) error
	Alert  func(title, message string) error
	Beep   func() error
}

// DefaultNotifyFuncs uses native notifications via beeep.
func DefaultNotifyFuncs() NotifyFuncs {
	return NotifyFuncs{
		Notify: func(title, message string) error { return beeep.Notify(title, message, "") },
		Alert:  func(title, message string) error { return beeep.Alert(title, message, "") },
		Beep:   func() error { return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration) },
	}
}

// DesktopNotifier implements domain.ReminderDispatcher with native desktop
// notifications. A per-user lock file keeps two running instances from
// both notifying.
type DesktopNotifier struct {
	lock   *flock.Flock
	funcs  NotifyFuncs
	logger *zap.Logger
}

// NewDesktopNotifier creates a notifier with the per-user lock in the temp dir.
func NewDesktopNotifier(logger *zap.Logger) *DesktopNotifier {
	lockPath := filepath.Join(os.TempDir(), "appusage-notify-"+strconv.Itoa(os.Getuid()))
	return NewDesktopNotifierWithDeps(lockPath, DefaultNotifyFuncs(), logger)
}

// NewDesktopNotifierWithDeps creates a notifier with injectable dependencies (for testing).
func NewDesktopNotifierWithDeps(lockPath string, funcs NotifyFuncs, logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		lock:   flock.New(lockPath),
		funcs:  funcs,
		logger: logger,
	}
}

// Fire shows the reminder. The end-using reminder is an alert; the others
// are plain notifications. When delivery fails a beep is the fallback.
func (n *DesktopNotifier) Fire(ctx context.Context, r domain.Reminder) (bool, error) {
	locked, err := n.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("notification lock: %w", err)
	}
	if !locked {
		n.logger.Debug("another instance owns notifications", zap.String("kind", string(r.Kind)))
		return false, nil
	}

	title, body := domain.ReminderText(r)
	show := n.funcs.Notify
	if r.Kind == domain.ReminderEndUsing {
		show = n.funcs.Alert
	}
	if err := show(title, body); err != nil {
		if beepErr := n.funcs.Beep(); beepErr != nil {
			n.logger.Warn("fallback beep failed", zap.Error(beepErr))
		}
		return false, fmt.Errorf("show %s reminder: %w", r.Kind, err)
	}
	return true, nil
}

// Close releases the notification lock.
func (n *DesktopNotifier) Close() error {
	return n.lock.Unlock()
}

// Ensure DesktopNotifier implements domain.ReminderDispatcher.
var _ domain.ReminderDispatcher = (*DesktopNotifier)(nil)
