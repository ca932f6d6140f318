package loader

import (
	"time"

	"github.com/rs/zerolog"

	"keyfetch/cache"
)

const defaultWait = 16 * time.Millisecond

// Option configures a Loader.
type Option[K comparable, V any] func(*Loader[K, V])

// WithMaxBatch caps the number of keys per batch function invocation.
// A flush holding more keys is split into consecutive sub-batches of at most
// n keys, dispatched concurrently. n <= 0 means unbounded (the default).
func WithMaxBatch[K comparable, V any](n int) Option[K, V] {
	return func(l *Loader[K, V]) {
		l.maxBatch = n
	}
}

// WithWait sets how long the default scheduler keeps a batching window open.
// Ignored when WithScheduler is used.
func WithWait[K comparable, V any](wait time.Duration) Option[K, V] {
	return func(l *Loader[K, V]) {
		l.sched = waitScheduler{wait: wait}
	}
}

// WithScheduler replaces the flush scheduler.
func WithScheduler[K comparable, V any](s Scheduler) Option[K, V] {
	return func(l *Loader[K, V]) {
		l.sched = s
	}
}

// WithCache replaces the result cache. The default is an unbounded
// cache.Memory; pass a cache.LRU to bound it or a cache.Noop to disable
// deduplication entirely.
func WithCache[K comparable, V any](c cache.Cache[K, Thunk[V]]) Option[K, V] {
	return func(l *Loader[K, V]) {
		l.cache = c
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger[K comparable, V any](logger zerolog.Logger) Option[K, V] {
	return func(l *Loader[K, V]) {
		l.logger = logger.With().Str("component", "loader").Logger()
	}
}
