package quota

import (
	"context"
	"sync"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// MemStore is an in-memory CounterStore for development and tests. Each
// (accountID, counterName) key owns its own lock, so operations on
// different keys never contend -- matching the contention contract of the
// production store.
type MemStore struct {
	entries sync.Map // key string -> *memEntry
}

type memEntry struct {
	mu      sync.Mutex
	counter types.Counter
}

// NewMemStore creates an empty in-memory counter store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func memKey(accountID string, name types.CounterName) string {
	return accountID + "/" + string(name)
}

func (s *MemStore) entry(accountID string, name types.CounterName) *memEntry {
	e, _ := s.entries.LoadOrStore(memKey(accountID, name), &memEntry{})
	return e.(*memEntry)
}

// Get implements CounterStore. Missing counters read as the zero Counter.
func (s *MemStore) Get(_ context.Context, accountID string, name types.CounterName) (types.Counter, error) {
	e := s.entry(accountID, name)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counter, nil
}

// CompareAndSwap implements CounterStore.
func (s *MemStore) CompareAndSwap(_ context.Context, accountID string, name types.CounterName, expected, next types.Counter) (bool, error) {
	e := s.entry(accountID, name)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counter.Count != expected.Count || !e.counter.WindowStart.Equal(expected.WindowStart) {
		return false, nil
	}
	e.counter = next
	return true, nil
}

// Seed sets a counter directly, bypassing CAS. Test fixture helper.
func (s *MemStore) Seed(accountID string, name types.CounterName, c types.Counter) {
	e := s.entry(accountID, name)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counter = c
}
