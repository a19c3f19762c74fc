package fixtures

import (
	"context"
	"fmt"
	"sync"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// ScriptedSession stands in for a desktop session: tests decide which
// process is in front. It serves both the foreground and process queries.
type ScriptedSession struct {
	mu        sync.Mutex
	processes map[int]string
	front     int
}

// NewScriptedSession creates a session with the given pid -> name table.
func NewScriptedSession(processes map[int]string) *ScriptedSession {
	return &ScriptedSession{processes: processes}
}

// Focus brings pid to the front.
func (s *ScriptedSession) Focus(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.front = pid
}

// Blank leaves no window in front, as when the screen is locked.
func (s *ScriptedSession) Blank() {
	s.Focus(0)
}

func (s *ScriptedSession) CurrentForeground(ctx context.Context) (*domain.ForegroundWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.front == 0 {
		return nil, nil
	}
	return &domain.ForegroundWindow{
		Handle: fmt.Sprintf("0x%x", s.front),
		PID:    s.front,
		Title:  s.processes[s.front],
	}, nil
}

func (s *ScriptedSession) IsChromeWindow(ctx context.Context, handle string) (bool, error) {
	return false, nil
}

func (s *ScriptedSession) ResolveHostedProcess(ctx context.Context, window domain.ForegroundWindow) (int, bool, error) {
	return 0, false, nil
}

func (s *ScriptedSession) Lookup(pid int) (*domain.ProcessIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.processes[pid]
	if !ok {
		return nil, fmt.Errorf("process %d not found", pid)
	}
	return &domain.ProcessIdentity{PID: pid, Name: name, Exe: "/usr/bin/" + name}, nil
}

func (s *ScriptedSession) Children(pid int) ([]int, error) { return nil, nil }

func (s *ScriptedSession) IsRunning(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processes[pid]
	return ok
}

func (s *ScriptedSession) GetCurrentPID() int { return 1 }

var (
	_ domain.ForegroundResolver = (*ScriptedSession)(nil)
	_ domain.ProcessManager     = (*ScriptedSession)(nil)
)
