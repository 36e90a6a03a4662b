package reactor

import (
	"container/heap"
	"time"
)

// timer.go implements timers as a collaborator that records a deadline
// in the reactor's own timer heap, separate from the source registry
// (spec.md §1 Non-goals: "timers are a collaborator ... no
// timer-wheel design"). A min-heap keyed on deadline is more than
// sufficient at the scale this runtime targets; it is touched only by
// the reactor goroutine, since timers are only ever registered from
// inside a poll.

type timerEntry struct {
	deadline time.Time
	waker    *Waker
	index    int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

type timerQueue struct {
	h timerHeap
}

func newTimerQueue() *timerQueue { return &timerQueue{} }

func (q *timerQueue) add(deadline time.Time, w *Waker) *timerEntry {
	e := &timerEntry{deadline: deadline, waker: w}
	heap.Push(&q.h, e)
	return e
}

func (q *timerQueue) remove(e *timerEntry) {
	if e.index < 0 || e.index >= len(q.h) || q.h[e.index] != e {
		return
	}
	heap.Remove(&q.h, e.index)
}

// nextTimeout reports the duration until the earliest pending deadline,
// or ok=false if there are none (spec.md §4.1 phase 3).
func (q *timerQueue) nextTimeout(now time.Time) (d time.Duration, ok bool) {
	if len(q.h) == 0 {
		return 0, false
	}
	d = q.h[0].deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// fireDue wakes and removes every entry whose deadline has elapsed.
func (q *timerQueue) fireDue(now time.Time) {
	for len(q.h) > 0 && !q.h[0].deadline.After(now) {
		e := heap.Pop(&q.h).(*timerEntry)
		e.waker.Wake()
	}
}

// Timer is a Future[struct{}] that resolves once its deadline elapses
// (spec.md §5 "Timeouts": "Implemented by a timer collaborator; no core
// machinery").
type Timer struct {
	h        *Handle
	duration time.Duration
	entry    *timerEntry
	fired    bool
}

// NewTimer constructs a timer future that becomes Ready after d elapses
// once polled. Must be polled from the reactor goroutine, like any
// other Future.
func (h *Handle) NewTimer(d time.Duration) *Timer {
	return &Timer{h: h, duration: d}
}

func (t *Timer) Poll(cx *Context) (struct{}, bool) {
	if t.fired {
		return struct{}{}, true
	}
	if t.entry == nil {
		t.entry = t.h.reactor.timers.add(time.Now().Add(t.duration), cx.Waker())
		return struct{}{}, false
	}
	// Re-polled before firing (e.g. spurious wake): recheck the clock
	// directly rather than trust only the heap's own dispatch.
	if !time.Now().Before(t.entry.deadline) {
		t.h.reactor.timers.remove(t.entry)
		t.fired = true
		return struct{}{}, true
	}
	t.h.reactor.timers.remove(t.entry)
	t.entry = t.h.reactor.timers.add(t.entry.deadline, cx.Waker())
	return struct{}{}, false
}
