// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// DefaultIconRef is the icon reference used when no richer icon is known.
const DefaultIconRef = "appusage://icons/default"

// ProcessIdentity identifies the process that owns the foreground window.
type ProcessIdentity struct {
	PID   int
	Name  string
	Exe   string
	Title string // Main window title, may be empty
}

// ForegroundWindow is the raw answer of a foreground query.
// Handle is opaque and only meaningful to the resolver that produced it.
type ForegroundWindow struct {
	Handle string
	PID    int
	Title  string
}

// Counters is the daily accounting state.
type Counters struct {
	TotalUsedTime            time.Duration
	ContinuousUsedTime       time.Duration
	SingleContinuousUsedTime time.Duration // Not persisted
	HasTotalReminded         bool
	EndUsingTime             time.Time // Zero means unset
}

// Thresholds holds the reminder thresholds.
type Thresholds struct {
	TotalUsedRemindTime      time.Duration
	ContinuousUsedRemindTime time.Duration
	ContinuousUsedResetTime  time.Duration
}

// Settings is the typed view of the user settings.
type Settings struct {
	Thresholds
	NoTimeNames string // Comma-separated names excluded from accounting
	NoInfoNames string // Comma-separated names tracked without metadata
}

// ProcessMetadata is one record of the metadata cache.
type ProcessMetadata struct {
	ProcessName   string `json:"processName"`
	DisplayName   string `json:"displayName"`
	IconReference string `json:"iconReference"`
}

// FallbackMetadata returns the metadata used for a name that was never enriched.
func FallbackMetadata(name string) ProcessMetadata {
	return ProcessMetadata{
		ProcessName:   name,
		DisplayName:   name,
		IconReference: DefaultIconRef,
	}
}

// ProcessUsage is one row of the ranked usage list.
type ProcessUsage struct {
	ProcessMetadata
	UsedTime time.Duration
}

// PackageInfo is what a package resolver knows about an installed application.
type PackageInfo struct {
	DisplayName string
	IconPath    string // Empty when the package has no usable icon
}

// ReminderKind identifies which reminder fired.
type ReminderKind string

const (
	ReminderTotal      ReminderKind = "total"
	ReminderContinuous ReminderKind = "continuous"
	ReminderEndUsing   ReminderKind = "end_using"
	ReminderError      ReminderKind = "error"
)

// Reminder is an event emitted by the engine for the dispatcher.
type Reminder struct {
	Kind    ReminderKind
	Value   time.Duration // Counter value that triggered it
	Message string        // Set for error reminders
	At      time.Time
}

// DaemonInfo describes the running tracking daemon.
type DaemonInfo struct {
	PID           int    `json:"pid"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
	AppVersion    string `json:"app_version,omitempty"`
}
