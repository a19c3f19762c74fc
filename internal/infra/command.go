package infra

import (
	"context"
	"os/exec"
	"time"
)

// DefaultCommandTimeout bounds every external query so a stuck helper
// never stalls the sampling tick.
const DefaultCommandTimeout = 2 * time.Second

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes real system commands
type RealCommandRunner struct {
	Timeout time.Duration
}

// NewCommandRunner creates a runner with the default timeout.
func NewCommandRunner() *RealCommandRunner {
	return &RealCommandRunner{Timeout: DefaultCommandTimeout}
}

// Output executes a command and returns its stdout
func (r *RealCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return exec.CommandContext(ctx, name, args...).Output()
}
