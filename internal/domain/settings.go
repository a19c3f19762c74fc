package domain

import (
	"errors"
	"time"
)

// Settings store keys.
const (
	KeyTotalUsedRemindTime      = "TotalUsedRemindTime"
	KeyContinuousUsedRemindTime = "ContinuousUsedRemindTime"
	KeyContinuousUsedResetTime  = "ContinuousUsedResetTime"
	KeyNoTimeNames              = "NoTimeNames"
	KeyNoInfoNames              = "NoInfoNames"
	KeyToday                    = "Today"
	KeyTotalUsedTime            = "TotalUsedTime"
	KeyContinuousUsedTime       = "ContinuousUsedTime"
	KeyHasTotalReminded         = "HasTotalReminded"
	KeyEndUsingTime             = "EndUsingTime"
)

// DayKeyLayout formats the Today key.
const DayKeyLayout = "2006-01-02"

// EndUsingLayout formats the EndUsingTime key (time of day).
const EndUsingLayout = "15:04"

// Documented defaults for missing settings.
const (
	DefaultTotalUsedRemindTime      = 2 * time.Hour
	DefaultContinuousUsedRemindTime = 30 * time.Minute
	DefaultContinuousUsedResetTime  = 10 * time.Minute

	// Screen lockers and login windows never count as usage.
	DefaultNoTimeNames = "gnome-screensaver,xscreensaver,light-locker,i3lock,loginwindow,ScreenSaverEngine"
	// Desktop shell pieces are counted but never enriched.
	DefaultNoInfoNames = "gnome-shell,plasmashell,xfce4-panel,xfdesktop,Dock,SystemUIServer,Spotlight"
)

// DefaultSettings returns the settings used when the store has no values.
func DefaultSettings() Settings {
	return Settings{
		Thresholds: Thresholds{
			TotalUsedRemindTime:      DefaultTotalUsedRemindTime,
			ContinuousUsedRemindTime: DefaultContinuousUsedRemindTime,
			ContinuousUsedResetTime:  DefaultContinuousUsedResetTime,
		},
		NoTimeNames: DefaultNoTimeNames,
		NoInfoNames: DefaultNoInfoNames,
	}
}

var (
	// ErrNoPackage is returned by a PackageResolver for applications that
	// are not installed as a package (no desktop entry / bundle).
	ErrNoPackage = errors.New("process has no package identity")

	// ErrEndTimeInPast is returned when an end-using time has already passed today.
	ErrEndTimeInPast = errors.New("end using time is in the past")

	// ErrDaemonNotRegistered is returned when no daemon is registered.
	ErrDaemonNotRegistered = errors.New("daemon not registered")

	// ErrUnknownSetting is returned for keys that are not user settings.
	ErrUnknownSetting = errors.New("unknown setting")
)
