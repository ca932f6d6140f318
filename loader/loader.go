package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"keyfetch/cache"
)

// Result is the outcome for a single key position in a batch. Err set means
// that key failed while the batch as a whole succeeded; the loader caches
// such rejections (see the failure rules on dispatch).
type Result[V any] struct {
	Value V
	Err   error
}

// BatchFunc fetches values for keys in one call. The returned slice must be
// positionally aligned with keys: same length, same order. A non-nil error
// means the whole call failed and no per-key results are available.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]Result[V], error)

// request is one queued load awaiting dispatch.
type request[K comparable, V any] struct {
	key  K
	call *call[V]
}

// Loader batches and deduplicates loads against a single BatchFunc.
// All methods are safe for concurrent use.
type Loader[K comparable, V any] struct {
	fetch    BatchFunc[K, V]
	sched    Scheduler
	cache    cache.Cache[K, Thunk[V]]
	maxBatch int
	logger   zerolog.Logger

	// mu guards the queue, the scheduled flag, the window context and the
	// check-then-set dedup path on the cache.
	mu        sync.Mutex
	queue     []request[K, V]
	scheduled bool
	windowCtx context.Context
}

// New creates a Loader around fetch. Panics if fetch is nil.
func New[K comparable, V any](fetch BatchFunc[K, V], opts ...Option[K, V]) *Loader[K, V] {
	if fetch == nil {
		panic("loader: nil batch function")
	}

	l := &Loader[K, V]{
		fetch:  fetch,
		sched:  waitScheduler{wait: defaultWait},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cache == nil {
		l.cache = cache.NewMemory[K, Thunk[V]]()
	}
	return l
}

// Load fetches the value for key, blocking until the batch containing it has
// settled. Repeated loads of a cached key return its cached outcome without
// invoking the batch function again.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	return l.LoadThunk(ctx, key)()
}

// LoadThunk enqueues key and returns a thunk that blocks only when called.
// Use it to fan out loads across several loaders before waiting on any of
// them. Loads of the same key return thunks backed by the same pending call.
func (l *Loader[K, V]) LoadThunk(ctx context.Context, key K) Thunk[V] {
	l.mu.Lock()
	defer l.mu.Unlock()

	if thunk, ok := l.cache.Get(key); ok {
		return thunk
	}

	c := newCall[V]()
	thunk := c.thunk()
	l.queue = append(l.queue, request[K, V]{key: key, call: c})
	l.cache.Set(key, thunk)

	// First key since the last flush opens a new batching window.
	if !l.scheduled {
		l.scheduled = true
		l.windowCtx = ctx
		l.sched.Defer(l.flush)
	}

	return thunk
}

// LoadMany fetches all keys, preserving input order. It returns once every
// key has settled successfully, or with the first error encountered.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) ([]V, error) {
	return l.LoadManyThunk(ctx, keys)()
}

// LoadManyThunk enqueues all keys and returns a thunk over the combined
// outcome with LoadMany semantics.
func (l *Loader[K, V]) LoadManyThunk(ctx context.Context, keys []K) Thunk[[]V] {
	thunks := make([]Thunk[V], len(keys))
	for i, key := range keys {
		thunks[i] = l.LoadThunk(ctx, key)
	}

	return func() ([]V, error) {
		values := make([]V, len(thunks))
		for i, thunk := range thunks {
			value, err := thunk()
			if err != nil {
				return nil, err
			}
			values[i] = value
		}
		return values, nil
	}
}

// Prime seeds the cache with an already-resolved value for key, bypassing
// the batch function. No-op if key already has an entry; returns true if the
// value was installed. To overwrite, Clear the key first.
func (l *Loader[K, V]) Prime(key K, value V) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cache.Get(key); ok {
		return false
	}
	l.cache.Set(key, settled(value, nil))
	return true
}

// PrimeError seeds the cache with an already-rejected entry for key.
// Same overwrite rules as Prime.
func (l *Loader[K, V]) PrimeError(key K, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cache.Get(key); ok {
		return false
	}
	var zero V
	l.cache.Set(key, settled(zero, err))
	return true
}

// Clear removes the cache entry for key, if any. The next Load for key goes
// through the batch function again. Returns true if an entry was removed.
func (l *Loader[K, V]) Clear(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Delete(key)
}

// ClearAll empties the cache.
func (l *Loader[K, V]) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Clear()
}

// flush drains the current queue and dispatches it. Runs once per batching
// window, scheduled by LoadThunk on the window's first key.
func (l *Loader[K, V]) flush() {
	l.mu.Lock()
	queue := l.queue
	ctx := l.windowCtx
	l.queue = nil
	l.windowCtx = nil
	l.scheduled = false
	l.mu.Unlock()

	if len(queue) == 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	batches := split(queue, l.maxBatch)

	l.logger.Debug().
		Int("keys", len(queue)).
		Int("batches", len(batches)).
		Msg("flushing batch window")

	// Sub-batches fetch concurrently; ordering between them is not
	// guaranteed, alignment within each one is.
	for _, batch := range batches {
		go l.dispatch(ctx, batch)
	}
}

// dispatch invokes the batch function for one sub-batch and settles every
// queued call in it.
//
// Failure rules: if the batch function itself errors (or returns a
// misaligned result), every key in the sub-batch has its cache entry removed
// so a later Load retries from scratch, and every call is rejected with that
// error. A per-position Result.Err rejects only that key and the rejection
// stays cached until cleared.
func (l *Loader[K, V]) dispatch(ctx context.Context, batch []request[K, V]) {
	keys := make([]K, len(batch))
	for i, req := range batch {
		keys[i] = req.key
	}

	results, err := l.fetch(ctx, keys)
	if err == nil && len(results) != len(keys) {
		err = fmt.Errorf("batch function returned %d results for %d keys", len(results), len(keys))
	}

	if err != nil {
		l.logger.Debug().
			Err(err).
			Int("keys", len(keys)).
			Msg("batch failed")

		l.mu.Lock()
		for _, req := range batch {
			l.cache.Delete(req.key)
		}
		l.mu.Unlock()

		for _, req := range batch {
			req.call.reject(err)
		}
		return
	}

	for i, req := range batch {
		if rerr := results[i].Err; rerr != nil {
			req.call.reject(rerr)
		} else {
			req.call.resolve(results[i].Value)
		}
	}
}

// split cuts the queue into consecutive sub-batches of at most maxBatch
// requests, preserving order. maxBatch <= 0 means one batch.
func split[K comparable, V any](queue []request[K, V], maxBatch int) [][]request[K, V] {
	if maxBatch <= 0 || len(queue) <= maxBatch {
		return [][]request[K, V]{queue}
	}

	batches := make([][]request[K, V], 0, (len(queue)+maxBatch-1)/maxBatch)
	for start := 0; start < len(queue); start += maxBatch {
		end := start + maxBatch
		if end > len(queue) {
			end = len(queue)
		}
		batches = append(batches, queue[start:end])
	}
	return batches
}
