package usecase

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// Report builds the ranked usage list straight from the data files, for
// callers that do not run the engine (the CLI).
type Report struct {
	ledger   domain.UsageLedger
	metadata domain.MetadataCache
	settings *SettingsService
	logger   *zap.Logger
}

// NewReport creates a report reader. settings tells which day the ledger
// belongs to.
func NewReport(ledger domain.UsageLedger, metadata domain.MetadataCache, settings *SettingsService, logger *zap.Logger) *Report {
	return &Report{
		ledger:   ledger,
		metadata: metadata,
		settings: settings,
		logger:   logger,
	}
}

// Top returns up to n processes ranked by recorded time (n <= 0 means all).
// The run in progress in a live daemon is not included. A ledger left
// from an earlier day reads as empty.
func (r *Report) Top(n int, now time.Time) ([]domain.ProcessUsage, error) {
	_, sameDay, err := r.settings.LoadCounters(now.Format(domain.DayKeyLayout))
	if err != nil {
		return nil, err
	}
	if !sameDay {
		return []domain.ProcessUsage{}, nil
	}

	seconds, err := r.ledger.Load()
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	meta, err := r.metadata.All()
	if err != nil {
		r.logger.Warn("metadata cache unreadable, using fallback names", zap.Error(err))
		meta = nil
	}
	return rankUsage(seconds, meta, n), nil
}

// rankUsage sorts by used time descending, ties by name, and attaches
// metadata (fallback for names never enriched).
func rankUsage(seconds map[string]float64, meta map[string]domain.ProcessMetadata, n int) []domain.ProcessUsage {
	usage := make([]domain.ProcessUsage, 0, len(seconds))
	for name, s := range seconds {
		m, ok := meta[name]
		if !ok {
			m = domain.FallbackMetadata(name)
		}
		usage = append(usage, domain.ProcessUsage{
			ProcessMetadata: m,
			UsedTime:        time.Duration(s * float64(time.Second)),
		})
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].UsedTime != usage[j].UsedTime {
			return usage[i].UsedTime > usage[j].UsedTime
		}
		return usage[i].ProcessName < usage[j].ProcessName
	})
	if n > 0 && len(usage) > n {
		usage = usage[:n]
	}
	return usage
}
