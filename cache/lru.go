package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a size-bounded cache backed by an LRU eviction policy. Unlike the
// default Memory cache it can silently drop entries under pressure; an
// evicted in-flight entry only weakens deduplication (a later load for the
// same key starts a fresh fetch), it never loses a pending result.
type LRU[K comparable, V any] struct {
	cache *lru.Cache[K, V]
}

// NewLRU creates a new LRU cache holding at most size entries
func NewLRU[K comparable, V any](size int) (*LRU[K, V], error) {
	cache, err := lru.New[K, V](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &LRU[K, V]{cache: cache}, nil
}

// Get retrieves an entry from the cache
func (l *LRU[K, V]) Get(key K) (V, bool) {
	return l.cache.Get(key)
}

// Set stores an entry in the cache
func (l *LRU[K, V]) Set(key K, value V) {
	l.cache.Add(key, value)
}

// Delete removes an entry from the cache
func (l *LRU[K, V]) Delete(key K) bool {
	return l.cache.Remove(key)
}

// Clear removes all entries
func (l *LRU[K, V]) Clear() {
	l.cache.Purge()
}

// Len returns the number of entries currently cached
func (l *LRU[K, V]) Len() int {
	return l.cache.Len()
}
