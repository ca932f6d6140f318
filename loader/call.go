package loader

import "sync"

// Thunk blocks until the load it belongs to has settled, then returns the
// outcome. Calling it more than once is cheap and returns the same outcome.
type Thunk[V any] func() (V, error)

// call is a settle-once future shared between a cached thunk and the queue
// entry holding its resolve/reject side.
type call[V any] struct {
	wg sync.WaitGroup

	// value and err are written exactly once before the WaitGroup is done
	// and only read after the WaitGroup is done.
	value V
	err   error
}

func newCall[V any]() *call[V] {
	c := &call[V]{}
	c.wg.Add(1)
	return c
}

func (c *call[V]) resolve(value V) {
	c.value = value
	c.wg.Done()
}

func (c *call[V]) reject(err error) {
	c.err = err
	c.wg.Done()
}

func (c *call[V]) thunk() Thunk[V] {
	return func() (V, error) {
		c.wg.Wait()
		return c.value, c.err
	}
}

// settled returns a thunk that is already resolved or rejected. Used by
// Prime and PrimeError to seed the cache without going through a batch.
func settled[V any](value V, err error) Thunk[V] {
	return func() (V, error) {
		return value, err
	}
}
