package daemon

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/metrics"
)

// ReminderWorker delivers reminders emitted by the engine.
// Delivery may block on the desktop, so it runs apart from the tick loop.
type ReminderWorker struct {
	reminders  <-chan domain.Reminder
	dispatcher domain.ReminderDispatcher
	logger     *zap.Logger
}

// NewReminderWorker creates a new reminder worker.
func NewReminderWorker(
	reminders <-chan domain.Reminder,
	dispatcher domain.ReminderDispatcher,
	logger *zap.Logger,
) *ReminderWorker {
	return &ReminderWorker{
		reminders:  reminders,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run delivers reminders until the context is canceled or the channel
// is closed.
func (w *ReminderWorker) Run(ctx context.Context) error {
	w.logger.Info("reminder worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker stopping")
			return ctx.Err()

		case r, ok := <-w.reminders:
			if !ok {
				return nil
			}
			w.deliver(ctx, r)
		}
	}
}

func (w *ReminderWorker) deliver(ctx context.Context, r domain.Reminder) {
	shown, err := w.dispatcher.Fire(ctx, r)
	switch {
	case err != nil:
		metrics.RemindersTotal.WithLabelValues(string(r.Kind), "failed").Inc()
		w.logger.Error("failed to show reminder",
			zap.String("kind", string(r.Kind)),
			zap.Error(err))
	case !shown:
		metrics.RemindersTotal.WithLabelValues(string(r.Kind), "suppressed").Inc()
		w.logger.Debug("reminder suppressed", zap.String("kind", string(r.Kind)))
	default:
		metrics.RemindersTotal.WithLabelValues(string(r.Kind), "shown").Inc()
		w.logger.Info("reminder shown",
			zap.String("kind", string(r.Kind)),
			zap.Duration("value", r.Value))
	}
}
