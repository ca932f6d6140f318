package cache

import "sync"

// Memory is an unbounded in-memory cache. This is the default used by the
// loader: entries live until explicitly deleted or cleared.
type Memory[K comparable, V any] struct {
	entries map[K]V
	mu      sync.RWMutex
}

// NewMemory creates a new in-memory cache
func NewMemory[K comparable, V any]() *Memory[K, V] {
	return &Memory[K, V]{
		entries: make(map[K]V),
	}
}

// Get retrieves an entry from the cache
func (m *Memory[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	value, ok := m.entries[key]
	m.mu.RUnlock()
	return value, ok
}

// Set stores an entry in the cache
func (m *Memory[K, V]) Set(key K, value V) {
	m.mu.Lock()
	m.entries[key] = value
	m.mu.Unlock()
}

// Delete removes an entry from the cache
func (m *Memory[K, V]) Delete(key K) bool {
	m.mu.Lock()
	_, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return ok
}

// Clear removes all entries
func (m *Memory[K, V]) Clear() {
	m.mu.Lock()
	m.entries = make(map[K]V)
	m.mu.Unlock()
}

// Len returns the number of entries currently cached
func (m *Memory[K, V]) Len() int {
	m.mu.RLock()
	n := len(m.entries)
	m.mu.RUnlock()
	return n
}

// Noop is a cache that never stores anything. Plugging it into a loader
// disables deduplication and result caching: every load within a batching
// window is forwarded to the batch function.
type Noop[K comparable, V any] struct{}

// NewNoop creates a new no-op cache
func NewNoop[K comparable, V any]() *Noop[K, V] {
	return &Noop[K, V]{}
}

// Get always returns not found
func (n *Noop[K, V]) Get(key K) (V, bool) {
	var zero V
	return zero, false
}

// Set does nothing
func (n *Noop[K, V]) Set(key K, value V) {}

// Delete does nothing
func (n *Noop[K, V]) Delete(key K) bool { return false }

// Clear does nothing
func (n *Noop[K, V]) Clear() {}
