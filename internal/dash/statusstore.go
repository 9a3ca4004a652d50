package dash

import "sync"

// StatusStore is the ephemeral key-value record of conversion state,
// keyed by track id. It is deliberately dumb: last write wins, no
// compare-and-swap. The Service's own write ordering is the only
// concurrency guard. Implementations can be in-memory or backed by an
// external cache.
type StatusStore interface {
	// Get returns the status for id, or ok=false if none was recorded.
	Get(id int64) (Status, bool)

	// Set overwrites the status for id.
	Set(id int64, st Status)

	// Snapshot returns a copy of every recorded status.
	Snapshot() map[int64]Status
}

// InMemoryStatusStore is a concurrency-safe in-memory StatusStore.
type InMemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[int64]Status
}

// NewInMemoryStatusStore returns a new empty status store.
func NewInMemoryStatusStore() *InMemoryStatusStore {
	return &InMemoryStatusStore{statuses: make(map[int64]Status)}
}

// Get implements StatusStore.Get.
func (s *InMemoryStatusStore) Get(id int64) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[id]
	return st, ok
}

// Set implements StatusStore.Set.
func (s *InMemoryStatusStore) Set(id int64, st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = st
}

// Snapshot implements StatusStore.Snapshot.
func (s *InMemoryStatusStore) Snapshot() map[int64]Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]Status, len(s.statuses))
	for id, st := range s.statuses {
		out[id] = st
	}
	return out
}
