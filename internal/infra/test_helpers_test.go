package infra

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
	processes   map[int]domain.ProcessIdentity
	children    map[int][]int
	childrenErr error
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		processes:   make(map[int]domain.ProcessIdentity),
		children:    make(map[int][]int),
	}
}

func (m *mockProcessManager) Lookup(pid int) (*domain.ProcessIdentity, error) {
	p, ok := m.processes[pid]
	if !ok {
		return nil, fmt.Errorf("process %d not found", pid)
	}
	return &p, nil
}

func (m *mockProcessManager) Children(pid int) ([]int, error) {
	if m.childrenErr != nil {
		return nil, m.childrenErr
	}
	return m.children[pid], nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// mockCommandRunner returns canned output keyed by the full command line.
type mockCommandRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
	}
}

func (m *mockCommandRunner) on(cmdline, output string) {
	m.outputs[cmdline] = output
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")
	m.calls = append(m.calls, cmdline)
	if err, ok := m.errs[cmdline]; ok {
		return nil, err
	}
	out, ok := m.outputs[cmdline]
	if !ok {
		return nil, fmt.Errorf("unexpected command: %s", cmdline)
	}
	return []byte(out), nil
}
