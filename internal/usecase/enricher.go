package usecase

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/metrics"
)

type taskState int

const (
	taskIdle taskState = iota
	taskInFlight
	taskDone
)

// EnricherConfig holds enricher settings.
type EnricherConfig struct {
	// MaxConcurrent bounds the lookups running at once.
	MaxConcurrent int64
}

// DefaultEnricherConfig returns sensible defaults.
func DefaultEnricherConfig() EnricherConfig {
	return EnricherConfig{
		MaxConcurrent: 2,
	}
}

// Enricher fills the metadata cache with display names and icons.
// A process name is resolved again only when its cache entry is missing.
type Enricher struct {
	cache    domain.MetadataCache
	packages domain.PackageResolver
	icons    domain.IconStore
	sem      *semaphore.Weighted
	logger   *zap.Logger

	mu    sync.Mutex
	tasks map[string]taskState
	wg    sync.WaitGroup
}

// NewEnricher creates an enricher.
func NewEnricher(
	cfg EnricherConfig,
	cache domain.MetadataCache,
	packages domain.PackageResolver,
	icons domain.IconStore,
	logger *zap.Logger,
) *Enricher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultEnricherConfig().MaxConcurrent
	}
	return &Enricher{
		cache:    cache,
		packages: packages,
		icons:    icons,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:   logger,
		tasks:    make(map[string]taskState),
	}
}

// Enrich starts enrichment of identity in the background. Names already
// in flight are ignored. Done names only re-check the cache, so a cleared
// cache is refilled on the next switch.
func (e *Enricher) Enrich(identity domain.ProcessIdentity) {
	if identity.Name == "" {
		return
	}
	e.mu.Lock()
	if e.tasks[identity.Name] == taskInFlight {
		e.mu.Unlock()
		return
	}
	e.tasks[identity.Name] = taskInFlight
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		state := taskDone
		if !e.run(identity) {
			state = taskIdle
		}
		e.mu.Lock()
		e.tasks[identity.Name] = state
		e.mu.Unlock()
	}()
}

// Wait blocks until all started enrichments finished.
func (e *Enricher) Wait() {
	e.wg.Wait()
}

func (e *Enricher) run(identity domain.ProcessIdentity) bool {
	ctx := context.Background()
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer e.sem.Release(1)

	_, found, err := e.cache.Lookup(identity.Name)
	if err != nil {
		e.logger.Warn("metadata cache lookup failed",
			zap.String("process", identity.Name),
			zap.Error(err))
	}
	if found {
		metrics.EnrichmentsTotal.WithLabelValues("cached").Inc()
		return true
	}

	meta, outcome := e.describe(ctx, identity)
	if err := e.cache.Append(meta); err != nil {
		metrics.EnrichmentsTotal.WithLabelValues("failed").Inc()
		e.logger.Error("failed to store metadata",
			zap.String("process", identity.Name),
			zap.Error(err))
		return false
	}
	metrics.EnrichmentsTotal.WithLabelValues(outcome).Inc()
	e.logger.Debug("process enriched",
		zap.String("process", identity.Name),
		zap.String("display_name", meta.DisplayName),
		zap.String("outcome", outcome))
	return true
}

// describe builds the metadata record for identity.
func (e *Enricher) describe(ctx context.Context, identity domain.ProcessIdentity) (domain.ProcessMetadata, string) {
	info, err := e.packages.Resolve(ctx, identity)
	switch {
	case errors.Is(err, domain.ErrNoPackage):
		meta := domain.FallbackMetadata(identity.Name)
		if identity.Title != "" {
			meta.DisplayName = identity.Title
		}
		return meta, "unpackaged"
	case err != nil:
		e.logger.Warn("package lookup failed",
			zap.String("process", identity.Name),
			zap.Error(err))
		return domain.FallbackMetadata(identity.Name), "fallback"
	}

	meta := domain.FallbackMetadata(identity.Name)
	if info.DisplayName != "" {
		meta.DisplayName = info.DisplayName
	}
	if info.IconPath != "" {
		ref, err := e.icons.Save(identity.Name, info.IconPath)
		if err != nil {
			e.logger.Warn("icon unusable, keeping default",
				zap.String("process", identity.Name),
				zap.String("icon", info.IconPath),
				zap.Error(err))
		} else {
			meta.IconReference = ref
		}
	}
	return meta, "packaged"
}

// Ensure Enricher implements MetadataEnricher.
var _ MetadataEnricher = (*Enricher)(nil)
