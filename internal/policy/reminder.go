package policy

import (
	"time"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// EndUsingDue reports whether the end-using alarm matches now, compared
// at minute precision.
func EndUsingDue(c domain.Counters, now time.Time) bool {
	if c.EndUsingTime.IsZero() {
		return false
	}
	return c.EndUsingTime.Truncate(time.Minute).Equal(now.Truncate(time.Minute))
}

// TotalDue reports whether the daily total reminder should fire.
func TotalDue(c domain.Counters, t domain.Thresholds) bool {
	return !c.HasTotalReminded && c.TotalUsedTime >= t.TotalUsedRemindTime
}

// ContinuousDue reports whether the continuous-use reminder should fire.
func ContinuousDue(c domain.Counters, t domain.Thresholds) bool {
	return c.ContinuousUsedTime != 0 && c.ContinuousUsedTime >= t.ContinuousUsedRemindTime
}

// NextReminder returns the next reminder to fire, if any.
// Priority: end-using, total, continuous.
func NextReminder(c domain.Counters, t domain.Thresholds, now time.Time) (domain.ReminderKind, bool) {
	switch {
	case EndUsingDue(c, now):
		return domain.ReminderEndUsing, true
	case TotalDue(c, t):
		return domain.ReminderTotal, true
	case ContinuousDue(c, t):
		return domain.ReminderContinuous, true
	}
	return "", false
}

// ApplyReminder updates the counters after kind fired and returns the
// counter value the reminder reports.
func ApplyReminder(c *domain.Counters, kind domain.ReminderKind) time.Duration {
	switch kind {
	case domain.ReminderEndUsing:
		c.EndUsingTime = time.Time{}
		return 0
	case domain.ReminderTotal:
		c.HasTotalReminded = true
		return c.TotalUsedTime
	case domain.ReminderContinuous:
		v := c.ContinuousUsedTime
		c.ContinuousUsedTime = 0
		return v
	}
	return 0
}

// ShouldClearTotalReminded reports whether a new total threshold re-arms
// the total reminder that already fired today.
func ShouldClearTotalReminded(c domain.Counters, newThreshold time.Duration) bool {
	return c.HasTotalReminded && newThreshold > c.TotalUsedTime
}
