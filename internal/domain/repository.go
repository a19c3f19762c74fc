package domain

import "context"

// ProcessManager handles OS process lookups.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// Lookup returns the identity of a running process.
	Lookup(pid int) (*ProcessIdentity, error)

	// Children returns the PIDs of the direct children of a process.
	Children(pid int) ([]int, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// ForegroundResolver answers which window currently has the user's attention.
// Implementations are per windowing system (X11, macOS).
type ForegroundResolver interface {
	// CurrentForeground returns the focused window, or nil when there is none.
	CurrentForeground(ctx context.Context) (*ForegroundWindow, error)

	// IsChromeWindow reports whether the window is desktop chrome
	// (desktop background, dock, panel) rather than user content.
	IsChromeWindow(ctx context.Context, handle string) (bool, error)

	// ResolveHostedProcess returns the application process hosted by a
	// container window. ok is false when nothing is hosted.
	ResolveHostedProcess(ctx context.Context, window ForegroundWindow) (pid int, ok bool, err error)
}

// SettingsStore is string key/value storage shared with the CLI.
// Implementation: SQLCipher encrypted database.
type SettingsStore interface {
	// Get returns the value and whether the key exists.
	Get(key string) (string, bool, error)

	// Set stores a single value.
	Set(key, value string) error

	// SetMany stores several values in one transaction.
	SetMany(values map[string]string) error

	// All returns every stored key/value pair.
	All() (map[string]string, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// UsageLedger is the durable per-process seconds store for the day.
type UsageLedger interface {
	// Load returns all valid records; malformed records are skipped.
	Load() (map[string]float64, error)

	// Upsert replaces (or appends) the record for name.
	Upsert(name string, seconds float64) error

	// Truncate empties the ledger.
	Truncate() error
}

// MetadataCache stores enriched display names and icons.
type MetadataCache interface {
	// Lookup returns the cached record for name, if any.
	Lookup(name string) (*ProcessMetadata, bool, error)

	// Append adds a record unless one already exists for the name.
	Append(meta ProcessMetadata) error

	// All returns every cached record keyed by process name.
	All() (map[string]ProcessMetadata, error)
}

// PackageResolver finds the installed package behind a process.
// Returns ErrNoPackage when the process is not a packaged application.
type PackageResolver interface {
	Resolve(ctx context.Context, identity ProcessIdentity) (*PackageInfo, error)
}

// IconStore persists a normalized copy of an application icon.
type IconStore interface {
	// Save stores the icon for name and returns its reference.
	Save(name, srcPath string) (string, error)
}

// ReminderDispatcher delivers reminders to the user.
type ReminderDispatcher interface {
	// Fire delivers the reminder and reports whether it was shown.
	Fire(ctx context.Context, reminder Reminder) (bool, error)
}

// DaemonRegistry provides daemon discovery for the CLI.
// Implementation: JSON file in the data directory.
type DaemonRegistry interface {
	// Register saves the running daemon's info.
	Register(info DaemonInfo) error

	// UpdateHeartbeat updates timestamp for liveness check.
	UpdateHeartbeat() error

	// Get returns the registered daemon, or nil when none is registered.
	Get() (*DaemonInfo, error)

	// IsAlive checks if the registered daemon is running via PID.
	IsAlive() (bool, error)

	// Clear removes the registration.
	Clear() error

	// GetRegistryPath returns the registry file path (for tests).
	GetRegistryPath() string
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
