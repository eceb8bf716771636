// Package registry owns the engine's shared state: one cache store for the
// repository and one context store per live session. Everything is reached
// through an explicit Registry value; nothing here is a package global, so
// two registries in one process never share or clobber state.
package registry

import (
	"sort"
	"sync"

	"cab/internal/cache"
	"cab/internal/contextstore"
	"cab/internal/logging"
)

// Registry hands out the shared cache and per-session context stores.
type Registry struct {
	cache  *cache.Store
	logger *logging.Logger

	mu       sync.Mutex
	contexts map[string]*contextstore.Store
}

// New wraps an opened cache store.
func New(cacheStore *cache.Store, logger *logging.Logger) *Registry {
	return &Registry{
		cache:    cacheStore,
		logger:   logger,
		contexts: make(map[string]*contextstore.Store),
	}
}

// Cache returns the repository-wide cache store.
func (r *Registry) Cache() *cache.Store {
	return r.cache
}

// ContextFor returns the session's context store, creating it on first use.
func (r *Registry) ContextFor(sessionID string) *contextstore.Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, ok := r.contexts[sessionID]
	if !ok {
		store = contextstore.New(sessionID, r.logger)
		r.contexts[sessionID] = store
		r.logger.Debug("created context store", logging.Fields{"session": sessionID})
	}
	return store
}

// DropContext releases a session's context store.
func (r *Registry) DropContext(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, sessionID)
}

// LiveSessions lists sessions with an in-memory context store, sorted.
func (r *Registry) LiveSessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.contexts))
	for id := range r.contexts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close releases the underlying cache store.
func (r *Registry) Close() error {
	return r.cache.Close()
}
