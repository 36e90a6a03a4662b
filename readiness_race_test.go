package reactor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReadinessConcurrentWakeRace exercises the wake-then-replace
// wakerCell contract (spec.md §9's resolved Open Question on avoiding
// lost wakeups) under concurrent Wake/park activity, intended to be run
// with -race: many goroutines race to park a waker on the same
// Readiness at the same moment another goroutine delivers a readiness
// event, and the test asserts that every goroutine either observes the
// readiness bit directly or is woken, so no parked goroutine is lost.
func TestReadinessConcurrentWakeRace(t *testing.T) {
	const n = 200

	var r Readiness
	var wg sync.WaitGroup
	var mu sync.Mutex
	woken := 0

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			sched := &countingScheduler{}
			th := newTaskHeader(sched)
			th.refs.Store(1)
			th.andNotState(taskNotified)
			cx := &Context{task: th}

			if r.PollRead(cx) {
				// Already ready by the time this goroutine ran; nothing
				// was parked, so nothing to wait for.
				mu.Lock()
				woken++
				mu.Unlock()
				return
			}
			sched.wait()
			mu.Lock()
			woken++
			mu.Unlock()
		}()
	}

	// Deliver the readiness event concurrently with the above parking,
	// racing setBits/park against each goroutine's PollRead.
	go r.onEvent(ReadyRead)

	wg.Wait()
	require.Equal(t, n, woken)
}

// countingScheduler blocks wait() until schedule/yieldNow fires at
// least once, standing in for a real run-queue handoff without pulling
// in the reactor's own queue machinery.
type countingScheduler struct {
	mu    sync.Mutex
	cond  *sync.Cond
	fired bool
}

func (s *countingScheduler) schedule(*taskHeader) { s.fire() }
func (s *countingScheduler) yieldNow(*taskHeader) { s.fire() }

func (s *countingScheduler) fire() {
	s.mu.Lock()
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
	s.fired = true
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *countingScheduler) wait() {
	s.mu.Lock()
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
	for !s.fired {
		s.cond.Wait()
	}
	s.mu.Unlock()
}
