package sync

import (
	"sync"

	"github.com/loopcraft/reactor"
)

// BiLock is a two-handle exclusive lock around a shared value,
// grounded on futures::sync::BiLock (referenced by original_source's
// udp_frame.rs as the mechanism for splitting a Framed UDP socket into
// independent read/write halves).
type BiLock[T any] struct {
	state *biLockState[T]
}

type biLockState[T any] struct {
	mu      sync.Mutex
	val     T
	locked  bool
	waiters []*reactor.Waker
}

// NewBiLock splits val into two handles, exactly one of which can hold
// the lock at a time.
func NewBiLock[T any](val T) (*BiLock[T], *BiLock[T]) {
	s := &biLockState[T]{val: val}
	return &BiLock[T]{state: s}, &BiLock[T]{state: s}
}

// Lock returns a Future that resolves to a guard once this handle
// acquires exclusive access.
func (b *BiLock[T]) Lock() reactor.Future[*BiLockGuard[T]] {
	return &biLockFuture[T]{b: b}
}

type biLockFuture[T any] struct{ b *BiLock[T] }

func (f *biLockFuture[T]) Poll(cx *reactor.Context) (*BiLockGuard[T], bool) {
	s := f.b.state
	s.mu.Lock()
	if !s.locked {
		s.locked = true
		s.mu.Unlock()
		return &BiLockGuard[T]{state: s}, true
	}
	s.waiters = append(s.waiters, cx.Waker())
	s.mu.Unlock()
	return nil, false
}

// BiLockGuard grants exclusive access to the value behind a BiLock
// until Unlock is called.
type BiLockGuard[T any] struct {
	state    *biLockState[T]
	released bool
}

// Value returns the current guarded value.
func (g *BiLockGuard[T]) Value() T { return g.state.val }

// Set replaces the guarded value.
func (g *BiLockGuard[T]) Set(val T) { g.state.val = val }

// Unlock releases the lock, waking the oldest waiter (if any) to race
// for it next. Calling Unlock again on the same guard is a no-op.
func (g *BiLockGuard[T]) Unlock() {
	if g.released {
		return
	}
	g.released = true
	s := g.state
	s.mu.Lock()
	s.locked = false
	var w *reactor.Waker
	if len(s.waiters) > 0 {
		w = s.waiters[0]
		s.waiters = s.waiters[1:]
	}
	s.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}
