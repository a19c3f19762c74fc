package infra

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

const metadataFileName = "info.json"

// JSONMetadataCache implements domain.MetadataCache as a JSON list file.
// Appends take an in-process mutex and a file lock, then read-modify-write
// the whole list, so concurrent enrichments never lose each other's records.
type JSONMetadataCache struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	logger *zap.Logger
}

// NewJSONMetadataCache creates a cache in the data directory.
func NewJSONMetadataCache(dataDir string, logger *zap.Logger) *JSONMetadataCache {
	return NewJSONMetadataCacheWithPath(filepath.Join(dataDir, metadataFileName), logger)
}

// NewJSONMetadataCacheWithPath creates a cache at a specific path (for testing).
func NewJSONMetadataCacheWithPath(path string, logger *zap.Logger) *JSONMetadataCache {
	return &JSONMetadataCache{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

// Lookup returns the cached record for name.
func (c *JSONMetadataCache) Lookup(name string) (*domain.ProcessMetadata, bool, error) {
	records, err := c.read()
	if err != nil {
		return nil, false, err
	}
	for i := range records {
		if records[i].ProcessName == name {
			return &records[i], true, nil
		}
	}
	return nil, false, nil
}

// All returns every record keyed by process name. The first record wins
// if a name appears twice.
func (c *JSONMetadataCache) All() (map[string]domain.ProcessMetadata, error) {
	records, err := c.read()
	if err != nil {
		return nil, err
	}
	all := make(map[string]domain.ProcessMetadata, len(records))
	for _, r := range records {
		if _, ok := all[r.ProcessName]; !ok {
			all[r.ProcessName] = r
		}
	}
	return all, nil
}

// Append adds meta unless the name is already cached.
func (c *JSONMetadataCache) Append(meta domain.ProcessMetadata) error {
	if meta.ProcessName == "" {
		return fmt.Errorf("metadata without process name")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("lock metadata cache: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()

	records, err := c.read()
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.ProcessName == meta.ProcessName {
			return nil
		}
	}
	records = append(records, meta)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(c.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write metadata cache: %w", err)
	}
	return nil
}

// Clear removes all records.
func (c *JSONMetadataCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// read loads the list. A missing or empty file is an empty cache;
// malformed records are skipped one by one.
func (c *JSONMetadataCache) read() ([]domain.ProcessMetadata, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read metadata cache: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Warn("metadata cache is not a JSON list, ignoring it",
			zap.String("path", c.path),
			zap.Error(err))
		return nil, nil
	}

	records := make([]domain.ProcessMetadata, 0, len(raw))
	for i, msg := range raw {
		var r domain.ProcessMetadata
		if err := json.Unmarshal(msg, &r); err != nil || r.ProcessName == "" {
			c.logger.Warn("skipping malformed metadata record", zap.Int("index", i))
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// Ensure JSONMetadataCache implements domain.MetadataCache.
var _ domain.MetadataCache = (*JSONMetadataCache)(nil)
