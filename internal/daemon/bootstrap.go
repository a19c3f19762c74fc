package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// DaemonCommand is the hidden CLI command that runs the daemon.
const DaemonCommand = "daemon"

// StartDaemon spawns the tracking daemon from the current executable.
// The daemon is detached from the parent process (runs independently).
func StartDaemon(configPath string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	return StartDaemonWithPath(executable, configPath)
}

// StartDaemonWithPath spawns the daemon from a specific binary path.
func StartDaemonWithPath(binaryPath, configPath string) error {
	cmd := exec.Command(binaryPath, DaemonArgs(configPath)...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	return cmd.Start()
}

// DaemonArgs returns the arguments of the self-exec.
func DaemonArgs(configPath string) []string {
	args := []string{DaemonCommand}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return args
}
