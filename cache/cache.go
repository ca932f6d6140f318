package cache

// Cache defines the mapping used by the loader to deduplicate keys.
// Implementations must be safe for concurrent use. The loader stores one
// entry per in-flight or completed key; anything satisfying this interface
// (bounded, sharded, instrumented, ...) can be plugged in.
type Cache[K comparable, V any] interface {
	// Get retrieves the entry for key.
	// Returns the entry and true if present, the zero value and false otherwise.
	Get(key K) (V, bool)

	// Set stores an entry under key, replacing any existing one.
	Set(key K, value V)

	// Delete removes the entry for key.
	// Returns true if an entry was present.
	Delete(key K) bool

	// Clear removes all entries.
	Clear()
}
