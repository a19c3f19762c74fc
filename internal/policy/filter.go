package policy

import (
	"strings"
	"sync"
)

// nameSet is a parsed comma-separated name list, remembered together
// with the string it was parsed from.
type nameSet struct {
	raw   string
	names map[string]struct{}
}

// update reparses the list only when the backing string changed.
func (s *nameSet) update(raw string) {
	if s.names != nil && raw == s.raw {
		return
	}
	s.raw = raw
	s.names = parseNameList(raw)
}

func (s *nameSet) contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// parseNameList splits a comma-separated list. Entries are trimmed and
// empty entries (stray commas) are dropped so they never match.
func parseNameList(raw string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		names[part] = struct{}{}
	}
	return names
}

// FilterPolicy decides which processes are accounted and which are enriched.
// Safe for concurrent use.
type FilterPolicy struct {
	mu     sync.RWMutex
	noTime nameSet
	noInfo nameSet
}

// NewFilterPolicy creates a policy from the two settings lists.
func NewFilterPolicy(noTimeNames, noInfoNames string) *FilterPolicy {
	f := &FilterPolicy{}
	f.Update(noTimeNames, noInfoNames)
	return f
}

// Update refreshes the lists after a settings change.
func (f *FilterPolicy) Update(noTimeNames, noInfoNames string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noTime.update(noTimeNames)
	f.noInfo.update(noInfoNames)
}

// ShouldTrackTime reports whether time spent in name is accounted.
func (f *FilterPolicy) ShouldTrackTime(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.noTime.contains(name)
}

// ShouldTrackMetadata reports whether name gets a display name and icon.
// Names excluded from accounting are never enriched either.
func (f *FilterPolicy) ShouldTrackMetadata(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.noTime.contains(name) && !f.noInfo.contains(name)
}
