package infra

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

const ledgerFileName = "usage.dat"

// FileLedger implements domain.UsageLedger as a "name|seconds" text file.
// Single writer; every write replaces the file atomically so readers
// never see a partial state.
type FileLedger struct {
	path   string
	logger *zap.Logger
}

// NewFileLedger creates a ledger in the data directory.
func NewFileLedger(dataDir string, logger *zap.Logger) *FileLedger {
	return NewFileLedgerWithPath(filepath.Join(dataDir, ledgerFileName), logger)
}

// NewFileLedgerWithPath creates a ledger at a specific path (for testing).
func NewFileLedgerWithPath(path string, logger *zap.Logger) *FileLedger {
	return &FileLedger{path: path, logger: logger}
}

// Path returns the ledger file path.
func (l *FileLedger) Path() string {
	return l.path
}

// Load returns all valid records. A missing file is an empty ledger.
func (l *FileLedger) Load() (map[string]float64, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]float64{}, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return l.parse(data), nil
}

// Upsert replaces the record for name, or appends it.
func (l *FileLedger) Upsert(name string, seconds float64) error {
	if name == "" || strings.ContainsAny(name, "|\r\n") {
		return fmt.Errorf("invalid ledger name %q", name)
	}
	records, err := l.Load()
	if err != nil {
		return err
	}
	records[name] = seconds
	return l.write(records)
}

// Truncate empties the ledger.
func (l *FileLedger) Truncate() error {
	return l.write(nil)
}

func (l *FileLedger) parse(data []byte) map[string]float64 {
	records := make(map[string]float64)
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 2 || parts[0] == "" {
			l.logger.Warn("skipping malformed ledger line",
				zap.Int("line", i+1),
				zap.String("content", line))
			continue
		}
		seconds, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			l.logger.Warn("skipping ledger line with invalid seconds",
				zap.Int("line", i+1),
				zap.String("content", line))
			continue
		}
		records[parts[0]] = seconds
	}
	return records
}

func (l *FileLedger) write(records map[string]float64) error {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		buf.WriteString(name)
		buf.WriteByte('|')
		buf.WriteString(strconv.FormatFloat(records[name], 'f', -1, 64))
		buf.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	if err := atomic.WriteFile(l.path, &buf); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// Ensure FileLedger implements domain.UsageLedger.
var _ domain.UsageLedger = (*FileLedger)(nil)
