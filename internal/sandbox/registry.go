package sandbox

import "sync"

// Registry is the in-process thread→backend cache. It is not authoritative:
// the persisted thread metadata decides whether a sandbox exists, because
// this map is lost on restart. Entries are invalidated whenever a reconnect
// fails.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Get returns the cached backend for a thread, if any.
func (r *Registry) Get(threadID string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	backend, ok := r.backends[threadID]
	return backend, ok
}

// Put caches a backend for a thread, replacing any previous entry.
func (r *Registry) Put(threadID string, backend Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[threadID] = backend
}

// Delete invalidates the cache entry for a thread.
func (r *Registry) Delete(threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, threadID)
}
