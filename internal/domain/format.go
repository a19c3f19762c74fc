package domain

import (
	"fmt"
	"time"
)

// FormatDuration renders a duration for people: "< 1m", "45m", "1h05m", "2d3h".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return "< 1m"
	}
	d = d.Truncate(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d%(24*time.Hour)) / int(time.Hour)
	minutes := int(d%time.Hour) / int(time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// ReminderText returns the title and body shown for a reminder.
func ReminderText(r Reminder) (string, string) {
	switch r.Kind {
	case ReminderTotal:
		return "Daily usage reached", fmt.Sprintf("You have used the computer for %s today.", FormatDuration(r.Value))
	case ReminderContinuous:
		return "Time for a break", fmt.Sprintf("You have been busy for %s without a pause.", FormatDuration(r.Value))
	case ReminderEndUsing:
		return "Time to stop", "You planned to stop using the computer now."
	case ReminderError:
		return "Usage tracking problem", r.Message
	}
	return "appusage", r.Message
}
