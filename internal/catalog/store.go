package catalog

import (
	"context"
	"sort"
	"sync"
)

// Store is the persistence abstraction for the track catalog.
// Implementations can be in-memory or database-backed; callers do not
// need to know which. Upserts are keyed by source path: a later upsert
// for the same path overwrites the earlier record, never duplicates it.
type Store interface {
	// Upsert inserts or updates the track identified by t.Path and
	// fills in t.ID with the stored identifier.
	Upsert(ctx context.Context, t *Track) error

	// GetByID returns the track with the given id, or ok=false.
	GetByID(ctx context.Context, id int64) (*Track, bool, error)

	// List returns all tracks ordered by id.
	List(ctx context.Context) ([]Track, error)

	Close() error
}

// MemoryStore is a concurrency-safe in-memory Store, used in tests and
// wherever durability is not needed.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byPath map[string]*Track
}

// NewMemoryStore returns a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, byPath: make(map[string]*Track)}
}

// Upsert implements Store.Upsert.
func (s *MemoryStore) Upsert(_ context.Context, t *Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byPath[t.Path]; ok {
		t.ID = existing.ID
	} else {
		t.ID = s.nextID
		s.nextID++
	}
	cp := *t
	s.byPath[t.Path] = &cp
	return nil
}

// GetByID implements Store.GetByID.
func (s *MemoryStore) GetByID(_ context.Context, id int64) (*Track, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.byPath {
		if t.ID == id {
			cp := *t
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

// List implements Store.List.
func (s *MemoryStore) List(_ context.Context) ([]Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Track, 0, len(s.byPath))
	for _, t := range s.byPath {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close implements Store.Close.
func (s *MemoryStore) Close() error { return nil }
