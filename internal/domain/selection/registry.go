package selection

import (
	"sync"
	"time"
)

// SessionKey identifies the selection of one user in one view.
func SessionKey(userID, view string) string {
	return userID + ":" + view
}

type registryEntry[ID comparable, F any] struct {
	store    *Store[ID, F]
	lastSeen time.Time
}

// Registry holds one Store per view session.
type Registry[ID comparable, F any] struct {
	mu       sync.Mutex
	sessions map[string]*registryEntry[ID, F]
	idleTTL  time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry whose idle sessions expire after idleTTL.
// A zero idleTTL disables expiry.
func NewRegistry[ID comparable, F any](idleTTL time.Duration) *Registry[ID, F] {
	return &Registry[ID, F]{
		sessions: make(map[string]*registryEntry[ID, F]),
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Get returns the Store for key, creating an empty one on first use.
func (r *Registry[ID, F]) Get(key string) *Store[ID, F] {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[key]
	if !ok {
		e = &registryEntry[ID, F]{store: NewStore[ID, F]()}
		r.sessions[key] = e
	}
	e.lastSeen = r.now()
	return e.store
}

// Lookup returns the Store for key without creating it.
func (r *Registry[ID, F]) Lookup(key string) (*Store[ID, F], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[key]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.store, true
}

// Drop forgets a session.
func (r *Registry[ID, F]) Drop(key string) {
	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry[ID, F]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed. Sessions with live subscribers are kept.
func (r *Registry[ID, F]) Sweep(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, e := range r.sessions {
		if now.Sub(e.lastSeen) <= r.idleTTL {
			continue
		}
		if e.store.Subscribers() > 0 {
			continue
		}
		delete(r.sessions, key)
		removed++
	}
	return removed
}
