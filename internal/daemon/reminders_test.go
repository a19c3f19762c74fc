package daemon

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// mockDispatcher implements domain.ReminderDispatcher for testing
type mockDispatcher struct {
	fired []domain.ReminderKind
	errs  map[domain.ReminderKind]error
	quiet bool
}

func (m *mockDispatcher) Fire(ctx context.Context, r domain.Reminder) (bool, error) {
	m.fired = append(m.fired, r.Kind)
	if err := m.errs[r.Kind]; err != nil {
		return false, err
	}
	return !m.quiet, nil
}

func TestReminderWorker_DeliversUntilClosed(t *testing.T) {
	reminders := make(chan domain.Reminder, 3)
	reminders <- domain.Reminder{Kind: domain.ReminderTotal}
	reminders <- domain.Reminder{Kind: domain.ReminderError, Message: "ledger"}
	reminders <- domain.Reminder{Kind: domain.ReminderContinuous}
	close(reminders)

	dispatcher := &mockDispatcher{errs: map[domain.ReminderKind]error{
		domain.ReminderError: errors.New("no notification server"),
	}}
	w := NewReminderWorker(reminders, dispatcher, zap.NewNop())

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, []domain.ReminderKind{
		domain.ReminderTotal,
		domain.ReminderError,
		domain.ReminderContinuous,
	}, dispatcher.fired)
}

func TestReminderWorker_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewReminderWorker(make(chan domain.Reminder), &mockDispatcher{quiet: true}, zap.NewNop())
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
}
