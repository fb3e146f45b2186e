package changeset

import (
	"slices"
	"sync"
)

// Registry is a static, in-process Source. Registration order is
// irrelevant.
type Registry struct {
	mu    sync.RWMutex
	items []Changeset
}

// NewRegistry returns a registry holding cs.
func NewRegistry(cs ...Changeset) *Registry {
	return &Registry{items: slices.Clone(cs)}
}

// Register adds changesets. Duplicates are kept and reported by Validate
// when the registry is discovered.
func (r *Registry) Register(cs ...Changeset) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, cs...)
	return r
}

// Changesets returns a copy of the registered changesets.
func (r *Registry) Changesets() []Changeset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.items)
}

// Len returns the number of registered changesets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

type multiSource []Source

func (m multiSource) Changesets() []Changeset {
	var out []Changeset
	for _, s := range m {
		if s == nil {
			continue
		}
		out = append(out, s.Changesets()...)
	}
	return out
}

// Merge concatenates several sources into one.
func Merge(sources ...Source) Source {
	return multiSource(slices.Clone(sources))
}
