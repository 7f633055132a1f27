package engine

import (
	"sync"

	"github.com/loomdb/loomdb/pkg/collection"
)

// registry is the engine's thread-safe name -> collection map.
type registry struct {
	mu   sync.RWMutex
	byID map[string]*collection.Collection
}

func newRegistry() *registry {
	return &registry{byID: make(map[string]*collection.Collection)}
}

// add registers c under name, returning false if name is already taken.
func (r *registry) add(name string, c *collection.Collection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[name]; exists {
		return false
	}
	r.byID[name] = c
	return true
}

func (r *registry) remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[name]; !exists {
		return false
	}
	delete(r.byID, name)
	return true
}

func (r *registry) get(name string) (*collection.Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[name]
	return c, ok
}

func (r *registry) all() []*collection.Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*collection.Collection, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}
