package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

const (
	activeCmd = "xprop -root _NET_ACTIVE_WINDOW"
	propsCmd  = "xprop -id 0x3a00007 _NET_WM_PID _NET_WM_NAME WM_NAME"
	typeCmd   = "xprop -id 0x3a00007 _NET_WM_WINDOW_TYPE"
)

func TestX11Resolver_CurrentForeground(t *testing.T) {
	tests := []struct {
		name    string
		active  string
		props   string
		want    *domain.ForegroundWindow
		wantErr bool
	}{
		{
			name:   "focused window with pid and title",
			active: "_NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007\n",
			props: "_NET_WM_PID(CARDINAL) = 4711\n" +
				"_NET_WM_NAME(UTF8_STRING) = \"notes.txt - gedit\"\n" +
				"WM_NAME(STRING) = \"notes.txt - gedit\"\n",
			want: &domain.ForegroundWindow{Handle: "0x3a00007", PID: 4711, Title: "notes.txt - gedit"},
		},
		{
			name:   "falls back to WM_NAME",
			active: "_NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007, 0x0\n",
			props: "_NET_WM_PID(CARDINAL) = 4711\n" +
				"_NET_WM_NAME:  not found.\n" +
				"WM_NAME(STRING) = \"xterm\"\n",
			want: &domain.ForegroundWindow{Handle: "0x3a00007", PID: 4711, Title: "xterm"},
		},
		{
			name:   "no pid hint",
			active: "_NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007\n",
			props:  "_NET_WM_PID:  not found.\n_NET_WM_NAME:  not found.\nWM_NAME:  not found.\n",
			want:   &domain.ForegroundWindow{Handle: "0x3a00007"},
		},
		{
			name:   "no active window",
			active: "_NET_ACTIVE_WINDOW(WINDOW): window id # 0x0\n",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newMockCommandRunner()
			runner.on(activeCmd, tt.active)
			runner.on(propsCmd, tt.props)
			r := NewX11ResolverWithDeps(runner, newMockProcessManager())

			got, err := r.CurrentForeground(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestX11Resolver_CurrentForegroundCommandFails(t *testing.T) {
	runner := newMockCommandRunner()
	runner.errs[activeCmd] = errors.New("cannot open display")
	r := NewX11ResolverWithDeps(runner, newMockProcessManager())

	_, err := r.CurrentForeground(context.Background())
	assert.Error(t, err)
}

func TestX11Resolver_IsChromeWindow(t *testing.T) {
	tests := []struct {
		name  string
		props string
		want  bool
	}{
		{name: "desktop", props: "_NET_WM_WINDOW_TYPE(ATOM) = _NET_WM_WINDOW_TYPE_DESKTOP\n", want: true},
		{name: "dock", props: "_NET_WM_WINDOW_TYPE(ATOM) = _NET_WM_WINDOW_TYPE_DOCK\n", want: true},
		{name: "normal", props: "_NET_WM_WINDOW_TYPE(ATOM) = _NET_WM_WINDOW_TYPE_NORMAL\n", want: false},
		{name: "missing", props: "_NET_WM_WINDOW_TYPE:  not found.\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newMockCommandRunner()
			runner.on(typeCmd, tt.props)
			r := NewX11ResolverWithDeps(runner, newMockProcessManager())

			got, err := r.IsChromeWindow(context.Background(), "0x3a00007")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveHostedProcess(t *testing.T) {
	pm := newMockProcessManager()
	pm.children[100] = []int{101, 102}
	r := NewX11ResolverWithDeps(newMockCommandRunner(), pm)

	pid, ok, err := r.ResolveHostedProcess(context.Background(), domain.ForegroundWindow{PID: 100})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 101, pid)

	_, ok, err = r.ResolveHostedProcess(context.Background(), domain.ForegroundWindow{PID: 200})
	require.NoError(t, err)
	assert.False(t, ok)

	pm.childrenErr = errors.New("access denied")
	_, _, err = r.ResolveHostedProcess(context.Background(), domain.ForegroundWindow{PID: 100})
	assert.Error(t, err)
}

func TestDarwinResolver(t *testing.T) {
	runner := newMockCommandRunner()
	runner.on("osascript -e "+frontmostScript, "812\tInbox - Mail\n")
	runner.on(`osascript -e tell application "System Events" to count windows of (first application process whose unix id is 812)`, "0\n")
	r := NewDarwinResolverWithDeps(runner, newMockProcessManager())

	win, err := r.CurrentForeground(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &domain.ForegroundWindow{Handle: "812", PID: 812, Title: "Inbox - Mail"}, win)

	chrome, err := r.IsChromeWindow(context.Background(), win.Handle)
	require.NoError(t, err)
	assert.True(t, chrome)
}
