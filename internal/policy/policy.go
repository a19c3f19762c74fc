// Package policy implements the decision rules of the tracking engine:
// which processes are accounted, how host windows are unwrapped and
// when reminders fire. Nothing here performs I/O.
package policy

// HostKind tells the engine how to unwrap a foreground process.
type HostKind int

const (
	// HostNone is an ordinary application process.
	HostNone HostKind = iota

	// HostShellFrame is a desktop shell process (file manager, desktop)
	// whose windows may be either user content or desktop chrome.
	HostShellFrame

	// HostContainer is a sandbox or frame process that hosts the real
	// application in another process.
	HostContainer
)

func (k HostKind) String() string {
	switch k {
	case HostShellFrame:
		return "shell-frame"
	case HostContainer:
		return "container"
	default:
		return "none"
	}
}

// Default host process names. Shell frames are checked for chrome,
// containers are replaced by the process they host.
var (
	DefaultShellFrames = []string{"explorer", "nautilus", "pcmanfm", "xfdesktop", "Finder"}
	DefaultContainers  = []string{"ApplicationFrameHost", "bwrap"}
)
