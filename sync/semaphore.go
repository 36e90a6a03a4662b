package sync

import (
	"sync"

	"github.com/loopcraft/reactor"
)

// Semaphore is an async-acquire counting semaphore, grounded on
// tokio-sync's semaphore.
type Semaphore struct {
	mu      sync.Mutex
	permits int
	waiters []*reactor.Waker
}

// NewSemaphore constructs a Semaphore with n initial permits.
func NewSemaphore(n int) *Semaphore { return &Semaphore{permits: n} }

// Acquire returns a Future that resolves once a permit is available,
// having consumed it.
func (s *Semaphore) Acquire() reactor.Future[struct{}] {
	return &semAcquireFuture{s: s}
}

type semAcquireFuture struct{ s *Semaphore }

func (f *semAcquireFuture) Poll(cx *reactor.Context) (struct{}, bool) {
	s := f.s
	s.mu.Lock()
	if s.permits > 0 {
		s.permits--
		s.mu.Unlock()
		return struct{}{}, true
	}
	s.waiters = append(s.waiters, cx.Waker())
	s.mu.Unlock()
	return struct{}{}, false
}

// Release returns a permit to the pool and wakes the oldest parked
// waiter, if any, which takes the permit on its next poll. The permit
// is not reserved for that waiter: an Acquire polled before it can
// take the permit first, in which case the woken waiter parks again.
func (s *Semaphore) Release() {
	s.mu.Lock()
	s.permits++
	if len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		s.mu.Unlock()
		w.Wake()
		return
	}
	s.mu.Unlock()
}
