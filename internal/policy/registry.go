package policy

import "sort"

// HostRegistry maps process names to the unwrapping they need.
type HostRegistry struct {
	hosts map[string]HostKind
}

// NewHostRegistry creates a registry with the default host names.
func NewHostRegistry() *HostRegistry {
	return NewHostRegistryWith(DefaultShellFrames, DefaultContainers)
}

// NewHostRegistryWith creates a registry with custom host names (config, tests).
func NewHostRegistryWith(shellFrames, containers []string) *HostRegistry {
	r := &HostRegistry{
		hosts: make(map[string]HostKind),
	}
	for _, name := range shellFrames {
		r.Register(name, HostShellFrame)
	}
	for _, name := range containers {
		r.Register(name, HostContainer)
	}
	return r
}

// Register adds or replaces the kind of a host process name.
func (r *HostRegistry) Register(name string, kind HostKind) {
	if name == "" {
		return
	}
	r.hosts[name] = kind
}

// Classify returns the host kind of a process name.
func (r *HostRegistry) Classify(name string) HostKind {
	return r.hosts[name]
}

// Names returns the registered names of one kind, sorted.
func (r *HostRegistry) Names(kind HostKind) []string {
	var names []string
	for name, k := range r.hosts {
		if k == kind {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
