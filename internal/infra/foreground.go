package infra

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// NewForegroundResolver returns the resolver for the current platform.
func NewForegroundResolver(pm domain.ProcessManager) domain.ForegroundResolver {
	if runtime.GOOS == "darwin" {
		return NewDarwinResolver(pm)
	}
	return NewX11Resolver(pm)
}

// X11Resolver implements domain.ForegroundResolver with xprop and EWMH hints.
type X11Resolver struct {
	runner CommandRunner
	pm     domain.ProcessManager
}

// NewX11Resolver creates an X11 resolver.
func NewX11Resolver(pm domain.ProcessManager) *X11Resolver {
	return NewX11ResolverWithDeps(NewCommandRunner(), pm)
}

// NewX11ResolverWithDeps creates a resolver with injectable dependencies (for testing).
func NewX11ResolverWithDeps(runner CommandRunner, pm domain.ProcessManager) *X11Resolver {
	return &X11Resolver{runner: runner, pm: pm}
}

// CurrentForeground reads _NET_ACTIVE_WINDOW and the window's pid and title.
func (r *X11Resolver) CurrentForeground(ctx context.Context) (*domain.ForegroundWindow, error) {
	out, err := r.runner.Output(ctx, "xprop", "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		return nil, fmt.Errorf("query active window: %w", err)
	}
	handle := parseActiveWindow(string(out))
	if handle == "" {
		return nil, nil
	}

	props, err := r.windowProps(ctx, handle, "_NET_WM_PID", "_NET_WM_NAME", "WM_NAME")
	if err != nil {
		return nil, err
	}

	win := &domain.ForegroundWindow{Handle: handle}
	if v, ok := props["_NET_WM_PID"]; ok {
		win.PID, _ = strconv.Atoi(v)
	}
	win.Title = unquoteXprop(props["_NET_WM_NAME"])
	if win.Title == "" {
		win.Title = unquoteXprop(props["WM_NAME"])
	}
	return win, nil
}

// IsChromeWindow treats desktop and dock windows as chrome.
func (r *X11Resolver) IsChromeWindow(ctx context.Context, handle string) (bool, error) {
	props, err := r.windowProps(ctx, handle, "_NET_WM_WINDOW_TYPE")
	if err != nil {
		return false, err
	}
	windowType := props["_NET_WM_WINDOW_TYPE"]
	return strings.Contains(windowType, "_NET_WM_WINDOW_TYPE_DESKTOP") ||
		strings.Contains(windowType, "_NET_WM_WINDOW_TYPE_DOCK"), nil
}

// ResolveHostedProcess returns the first child of the container process.
func (r *X11Resolver) ResolveHostedProcess(ctx context.Context, window domain.ForegroundWindow) (int, bool, error) {
	return firstChild(r.pm, window.PID)
}

func (r *X11Resolver) windowProps(ctx context.Context, handle string, names ...string) (map[string]string, error) {
	args := append([]string{"-id", handle}, names...)
	out, err := r.runner.Output(ctx, "xprop", args...)
	if err != nil {
		return nil, fmt.Errorf("query window %s: %w", handle, err)
	}
	return parseXprop(string(out)), nil
}

// parseActiveWindow extracts the window id from
// "_NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007".
func parseActiveWindow(out string) string {
	idx := strings.Index(out, "#")
	if idx < 0 {
		return ""
	}
	fields := strings.Fields(out[idx+1:])
	if len(fields) == 0 {
		return ""
	}
	id := strings.TrimSuffix(fields[0], ",")
	if id == "0x0" || !strings.HasPrefix(id, "0x") {
		return ""
	}
	return id
}

// parseXprop parses "NAME(TYPE) = value" lines. Missing properties
// ("NAME:  not found.") are left out.
func parseXprop(out string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		if i := strings.Index(key, "("); i >= 0 {
			key = key[:i]
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return props
}

func unquoteXprop(v string) string {
	if v == "" {
		return ""
	}
	if s, err := strconv.Unquote(v); err == nil {
		return s
	}
	return strings.Trim(v, `"`)
}

// DarwinResolver implements domain.ForegroundResolver with AppleScript.
// Window handles are the owning pid as text.
type DarwinResolver struct {
	runner CommandRunner
	pm     domain.ProcessManager
}

// NewDarwinResolver creates a macOS resolver.
func NewDarwinResolver(pm domain.ProcessManager) *DarwinResolver {
	return NewDarwinResolverWithDeps(NewCommandRunner(), pm)
}

// NewDarwinResolverWithDeps creates a resolver with injectable dependencies (for testing).
func NewDarwinResolverWithDeps(runner CommandRunner, pm domain.ProcessManager) *DarwinResolver {
	return &DarwinResolver{runner: runner, pm: pm}
}

const frontmostScript = `tell application "System Events"
	set p to first application process whose frontmost is true
	set t to ""
	try
		set t to name of front window of p
	end try
	return (unix id of p as text) & tab & t
end tell`

// CurrentForeground returns the frontmost application's pid and window title.
func (r *DarwinResolver) CurrentForeground(ctx context.Context) (*domain.ForegroundWindow, error) {
	out, err := r.runner.Output(ctx, "osascript", "-e", frontmostScript)
	if err != nil {
		return nil, fmt.Errorf("query frontmost application: %w", err)
	}
	pidText, title, _ := strings.Cut(strings.TrimRight(string(out), "\r\n"), "\t")
	pid, err := strconv.Atoi(strings.TrimSpace(pidText))
	if err != nil || pid <= 0 {
		return nil, nil
	}
	return &domain.ForegroundWindow{
		Handle: strconv.Itoa(pid),
		PID:    pid,
		Title:  title,
	}, nil
}

// IsChromeWindow treats a frontmost application without windows as the desktop.
func (r *DarwinResolver) IsChromeWindow(ctx context.Context, handle string) (bool, error) {
	script := fmt.Sprintf(`tell application "System Events" to count windows of (first application process whose unix id is %s)`, handle)
	out, err := r.runner.Output(ctx, "osascript", "-e", script)
	if err != nil {
		return false, fmt.Errorf("count windows of %s: %w", handle, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return false, fmt.Errorf("count windows of %s: %w", handle, err)
	}
	return n == 0, nil
}

// ResolveHostedProcess returns the first child of the container process.
func (r *DarwinResolver) ResolveHostedProcess(ctx context.Context, window domain.ForegroundWindow) (int, bool, error) {
	return firstChild(r.pm, window.PID)
}

func firstChild(pm domain.ProcessManager, pid int) (int, bool, error) {
	children, err := pm.Children(pid)
	if err != nil {
		return 0, false, err
	}
	if len(children) == 0 {
		return 0, false, nil
	}
	return children[0], true, nil
}

// Ensure resolvers implement domain.ForegroundResolver.
var (
	_ domain.ForegroundResolver = (*X11Resolver)(nil)
	_ domain.ForegroundResolver = (*DarwinResolver)(nil)
)
