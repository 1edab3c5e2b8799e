package store

import (
	"context"
	"sync"
)

// MemStore is an in-memory implementation of Store.
//
// Designed for:
//   - Testing and development
//   - Single-process evaluations where cross-run persistence isn't needed
//   - Warm caches shared between successive evaluations in one process
//
// MemStore is thread-safe. Values are held as-is (no serialization), so
// unlike the SQL-backed stores it does not require JSON-serializable
// values.
type MemStore struct {
	mu     sync.RWMutex
	values map[valueKey][]Record // newest record last
	events map[string]EventSet
}

type valueKey struct {
	function string
	argument string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		values: make(map[valueKey][]Record),
		events: make(map[string]EventSet),
	}
}

// SaveValue implements Store.
func (m *MemStore) SaveValue(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := valueKey{function: rec.Function, argument: rec.Argument}
	records := m.values[key]
	for i, existing := range records {
		if existing.Version == rec.Version {
			records[i] = rec
			return nil
		}
	}
	m.values[key] = append(records, rec)
	return nil
}

// LookupValue implements Store: it returns the record with the highest
// version not exceeding the requested one.
func (m *MemStore) LookupValue(_ context.Context, function, argument string, version int64) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best Record
	found := false
	for _, rec := range m.values[valueKey{function: function, argument: argument}] {
		if rec.Version > version {
			continue
		}
		if !found || rec.Version > best.Version {
			best = rec
			found = true
		}
	}
	return best, found, nil
}

// SaveEventSet implements Store.
func (m *MemStore) SaveEventSet(_ context.Context, set EventSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[set.ID] = set
	return nil
}

// LookupEventSet implements Store.
func (m *MemStore) LookupEventSet(_ context.Context, id string) (EventSet, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.events[id]
	return set, ok, nil
}

// Close implements Store. It is a no-op for MemStore.
func (m *MemStore) Close() error { return nil }

// Len returns the number of distinct (function, argument) identities with
// at least one stored value. Diagnostic helper for tests.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
