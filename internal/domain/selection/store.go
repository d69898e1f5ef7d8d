package selection

import (
	"sync"
)

// Listener receives every committed snapshot together with its version.
// Versions grow monotonically per Store, so a consumer can drop stale
// deliveries that arrive out of order.
type Listener[ID comparable, F any] func(version uint64, s State[ID, F])

// Store owns the selection of a single view.
//
// Dispatch applies the reducer to the latest committed snapshot under a lock,
// so rapid toggles from concurrent callers are never lost. Listeners run
// after the lock is released.
type Store[ID comparable, F any] struct {
	mu        sync.Mutex
	state     State[ID, F]
	version   uint64
	listeners map[uint64]Listener[ID, F]
	nextSub   uint64
}

// NewStore creates a Store in ModeNone.
func NewStore[ID comparable, F any]() *Store[ID, F] {
	return &Store[ID, F]{
		state:     Empty[ID, F](),
		listeners: make(map[uint64]Listener[ID, F]),
	}
}

// Snapshot returns an independent copy of the current state and its version.
func (s *Store[ID, F]) Snapshot() (State[ID, F], uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), s.version
}

// Dispatch applies cmd and returns the resulting snapshot.
func (s *Store[ID, F]) Dispatch(cmd Command[ID, F]) State[ID, F] {
	next, _ := s.DispatchAll(cmd)
	return next
}

// DispatchAll applies a batch of commands as one transition and returns the
// resulting snapshot with the version it was committed under.
func (s *Store[ID, F]) DispatchAll(cmds ...Command[ID, F]) (State[ID, F], uint64) {
	s.mu.Lock()
	return s.commitLocked(ApplyAll(s.state, cmds...))
}

// ResetIfVersion resets the selection only when no transition happened
// since version. It reports whether the reset was applied.
func (s *Store[ID, F]) ResetIfVersion(version uint64) bool {
	s.mu.Lock()
	if s.version != version {
		s.mu.Unlock()
		return false
	}
	s.commitLocked(Empty[ID, F]())
	return true
}

// commitLocked stores next, releases the lock and notifies listeners.
func (s *Store[ID, F]) commitLocked(next State[ID, F]) (State[ID, F], uint64) {
	s.state = next
	s.version++
	version := s.version
	listeners := make([]Listener[ID, F], 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(version, next.Clone())
	}
	return next.Clone(), version
}

func (s *Store[ID, F]) Reset() State[ID, F] {
	return s.Dispatch(ResetCommand[ID, F]())
}

func (s *Store[ID, F]) SelectAllFiltered(f F) State[ID, F] {
	return s.Dispatch(SelectAllCommand[ID](f))
}

func (s *Store[ID, F]) Toggle(v ID, selected bool) State[ID, F] {
	return s.Dispatch(ToggleCommand[ID, F](v, selected))
}

// Subscribe registers l and returns a function that removes it.
func (s *Store[ID, F]) Subscribe(l Listener[ID, F]) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSub++
	key := s.nextSub
	s.listeners[key] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, key)
			s.mu.Unlock()
		})
	}
}

// Subscribers returns the number of registered listeners.
func (s *Store[ID, F]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
