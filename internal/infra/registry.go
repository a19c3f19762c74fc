package infra

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

const registryFileName = "daemon.json"

// FileRegistry implements domain.DaemonRegistry using a JSON file in the
// data directory. The CLI reads it to find the running daemon.
type FileRegistry struct {
	path           string
	lock           *flock.Flock
	processManager domain.ProcessManager
}

// NewFileRegistry creates a registry in the data directory.
func NewFileRegistry(dataDir string, pm domain.ProcessManager) *FileRegistry {
	return NewFileRegistryWithPath(filepath.Join(dataDir, registryFileName), pm)
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, pm domain.ProcessManager) *FileRegistry {
	return &FileRegistry{
		path:           path,
		lock:           flock.New(path + ".lock"),
		processManager: pm,
	}
}

// GetRegistryPath returns the registry file path.
func (r *FileRegistry) GetRegistryPath() string {
	return r.path
}

// Register saves the daemon's info. A second daemon started concurrently
// serializes on the lock file; the last one wins.
func (r *FileRegistry) Register(info domain.DaemonInfo) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = r.lock.Unlock() }()

	if info.StartedAt == 0 {
		info.StartedAt = time.Now().Unix()
	}
	info.LastHeartbeat = time.Now().Unix()
	return r.write(&info)
}

// UpdateHeartbeat updates timestamp for liveness check.
func (r *FileRegistry) UpdateHeartbeat() error {
	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = r.lock.Unlock() }()

	info, err := r.Get()
	if err != nil {
		return err
	}
	if info == nil {
		return domain.ErrDaemonNotRegistered
	}
	info.LastHeartbeat = time.Now().Unix()
	return r.write(info)
}

// Get returns the registered daemon, or nil when none is registered.
func (r *FileRegistry) Get() (*domain.DaemonInfo, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var info domain.DaemonInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// IsAlive checks if the registered daemon is running via PID.
func (r *FileRegistry) IsAlive() (bool, error) {
	info, err := r.Get()
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}
	return r.processManager.IsRunning(info.PID), nil
}

// Clear removes the registry file.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (r *FileRegistry) write(info *domain.DaemonInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return atomic.WriteFile(r.path, bytes.NewReader(data))
}

// Ensure FileRegistry implements domain.DaemonRegistry.
var _ domain.DaemonRegistry = (*FileRegistry)(nil)
