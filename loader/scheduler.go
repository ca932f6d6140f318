package loader

import "time"

// Scheduler decides when a batching window closes. Defer is called once per
// window, when the first key is enqueued; the scheduler must run flush
// exactly once, some time after Defer returns. Everything enqueued before
// flush runs is included in that flush.
type Scheduler interface {
	Defer(flush func())
}

// waitScheduler closes the window after a fixed wait. This is the default:
// a short timer gives concurrent goroutines a chance to pile their keys into
// the same batch, the closest Go equivalent of a next-tick hook.
type waitScheduler struct {
	wait time.Duration
}

func (s waitScheduler) Defer(flush func()) {
	time.AfterFunc(s.wait, flush)
}

// immediateScheduler runs the flush on its own goroutine right away.
// Batching then only coalesces keys enqueued before the goroutine is
// scheduled; useful when latency matters more than batch size.
type immediateScheduler struct{}

func (immediateScheduler) Defer(flush func()) {
	go flush()
}

// Immediate returns a Scheduler that flushes without waiting.
func Immediate() Scheduler {
	return immediateScheduler{}
}
