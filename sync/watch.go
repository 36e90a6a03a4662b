package sync

import (
	"sync"

	"github.com/loopcraft/reactor"
)

// Watch is a single-slot, multi-receiver broadcast cell: every Send
// replaces the current value and wakes everyone currently parked on
// Changed. Grounded on tokio-sync's watch channel.
type Watch[T any] struct {
	mu      sync.Mutex
	val     T
	version uint64
	waiters []*reactor.Waker
}

// NewWatch constructs a Watch seeded with initial.
func NewWatch[T any](initial T) *Watch[T] { return &Watch[T]{val: initial} }

// WatchResult is the output of a [Watch.Changed] future.
type WatchResult[T any] struct {
	Value   T
	Version uint64
}

// Send replaces the current value and wakes every parked receiver.
func (w *Watch[T]) Send(val T) {
	w.mu.Lock()
	w.val = val
	w.version++
	waiters := w.waiters
	w.waiters = nil
	w.mu.Unlock()
	for _, waiter := range waiters {
		waiter.Wake()
	}
}

// Get returns the current value and its version, without waiting.
func (w *Watch[T]) Get() (T, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.val, w.version
}

// Changed returns a Future that resolves once the watch's version
// advances past lastSeen (typically the version returned by a prior
// Get or Changed call), yielding the new value.
func (w *Watch[T]) Changed(lastSeen uint64) reactor.Future[WatchResult[T]] {
	return &watchFuture[T]{w: w, lastSeen: lastSeen}
}

type watchFuture[T any] struct {
	w        *Watch[T]
	lastSeen uint64
}

func (f *watchFuture[T]) Poll(cx *reactor.Context) (WatchResult[T], bool) {
	w := f.w
	w.mu.Lock()
	if w.version != f.lastSeen {
		res := WatchResult[T]{Value: w.val, Version: w.version}
		w.mu.Unlock()
		return res, true
	}
	w.waiters = append(w.waiters, cx.Waker())
	w.mu.Unlock()
	return WatchResult[T]{}, false
}
