package reactor

import (
	"sync/atomic"
)

// Future is a value polled with a [Context] carrying a waker; it
// returns either (output, true) and is never polled again, or (zero,
// false) having guaranteed a later wake when progress is possible
// (spec.md §3 "Future").
type Future[T any] interface {
	Poll(cx *Context) (out T, ready bool)
}

// FutureFunc adapts a plain poll function to the Future interface, the
// way http.HandlerFunc adapts a function to http.Handler.
type FutureFunc[T any] func(cx *Context) (T, bool)

func (f FutureFunc[T]) Poll(cx *Context) (T, bool) { return f(cx) }

// scheduler is the capability a task header needs from whatever drives
// it (spec.md §4.4 "scheduler trait"). *Reactor's schedule pushes onto
// the FIFO run queue consumed between reactor turns; Await's private
// blockingScheduler (await.go) is the other implementation.
type scheduler interface {
	schedule(t *taskHeader)
	yieldNow(t *taskHeader)
}

var taskIDSeq atomic.Int64

// taskHeader is the reference-counted, type-erased task object
// (spec.md §3 "Task", §4.4). The concrete Future[T] is captured inside
// pollOnce at Spawn time; the header itself never mentions T, which is
// what lets JoinHandle[T] be generic while the scheduler's run queue
// stays a plain *taskHeader ring.
type taskHeader struct {
	id    int64
	state atomic.Uint32 // taskState bits, CAS-modified
	refs  atomic.Int64
	sched scheduler

	joinWaker wakerCell

	// pollOnce advances the captured Future[T] exactly once; it stores
	// the type-erased output or panic value on Ready and returns
	// whether the task completed this call.
	pollOnce func(cx *Context) bool

	output   any
	panicVal any
}

func newTaskHeader(sched scheduler) *taskHeader {
	t := &taskHeader{id: taskIDSeq.Add(1), sched: sched}
	t.state.Store(uint32(taskNotified))
	t.refs.Store(3) // run queue, join handle, the task's own waker factory
	return t
}

func (t *taskHeader) loadState() taskState { return taskState(t.state.Load()) }

func (t *taskHeader) casState(from, to taskState) bool {
	return t.state.CompareAndSwap(uint32(from), uint32(to))
}

func (t *taskHeader) orState(bit taskState) taskState {
	for {
		old := t.state.Load()
		nv := old | uint32(bit)
		if nv == old {
			return taskState(old)
		}
		if t.state.CompareAndSwap(old, nv) {
			return taskState(old)
		}
	}
}

func (t *taskHeader) andNotState(bit taskState) taskState {
	for {
		old := t.state.Load()
		nv := old &^ uint32(bit)
		if old == nv || t.state.CompareAndSwap(old, nv) {
			return taskState(old)
		}
	}
}

// incRef/decRef implement the ref-counting contract from spec.md §4.4:
// the allocation is released when the count reaches zero. Go's GC
// reclaims the Go value regardless, but the count itself is load-bearing
// for the spec's testable invariants (no double-release, no premature
// release) and is what release() uses to drop the retained output.
func (t *taskHeader) incRef() { t.refs.Add(1) }

func (t *taskHeader) decRef() {
	if t.refs.Add(-1) == 0 {
		t.release()
	}
}

func (t *taskHeader) release() {
	t.output = nil
	t.panicVal = nil
}

// notify sets NOTIFIED; on the rising edge (the task was not already
// NOTIFIED or RUNNING) it hands one reference to the scheduler's run
// queue (spec.md §4.4 "Waker").
func (t *taskHeader) notify() {
	for {
		old := taskState(t.state.Load())
		if old.has(taskComplete) {
			return
		}
		nv := old | taskNotified
		if old == nv {
			return // already notified; no new reference to hand off
		}
		if !t.state.CompareAndSwap(uint32(old), uint32(nv)) {
			continue
		}
		if !old.has(taskRunning) {
			t.incRef()
			t.sched.schedule(t)
		}
		return
	}
}

// poll drives one poll step if the task is NOTIFIED and not already
// RUNNING (spec.md §4.4 "Poll start"). Called from the reactor goroutine
// for run-queue tasks, and from the calling goroutine inside Await.
func (t *taskHeader) poll() {
	for {
		old := t.loadState()
		if old.has(taskComplete) || old.has(taskRunning) {
			return // already finished, or coalesced with an in-flight poll
		}
		if !old.has(taskNotified) {
			return // spurious run-queue entry; nothing to do
		}
		nv := (old &^ taskNotified) | taskRunning
		if t.state.CompareAndSwap(uint32(old), uint32(nv)) {
			break
		}
	}

	if t.loadState().has(taskCancelled) {
		t.finish(nil, true)
		return
	}

	cx := &Context{task: t}
	ready := t.runPollOnce(cx)
	if ready {
		return // runPollOnce already called finish
	}

	// Pending: clear RUNNING; if NOTIFIED arrived while running, re-enqueue.
	prev := t.andNotState(taskRunning)
	if prev.has(taskNotified) {
		t.incRef()
		t.sched.schedule(t)
	}
}

func (t *taskHeader) runPollOnce(cx *Context) (ready bool) {
	defer func() {
		if r := recover(); r != nil {
			t.finish(r, false)
			ready = true
		}
	}()
	if t.pollOnce(cx) {
		t.finish(nil, false)
		return true
	}
	return false
}

// finish transitions the task to COMPLETE, clearing RUNNING, and wakes
// the join waker if a join handle is still interested. panicVal is set
// when the future panicked; cancelled is set for a shutdown-driven
// completion that never invoked the future on this poll.
func (t *taskHeader) finish(panicVal any, cancelled bool) {
	t.panicVal = panicVal
	for {
		old := taskState(t.state.Load())
		nv := (old | taskComplete) &^ (taskRunning | taskNotified)
		if cancelled {
			nv |= taskCancelled
		}
		if t.state.CompareAndSwap(uint32(old), uint32(nv)) {
			if old.has(taskJoinInterest) {
				if w := t.joinWaker.take(); w != nil {
					w.Wake()
				}
			}
			// The task will never poll again, so it never manufactures
			// another waker: release the waker-factory ref counted at
			// Spawn (spec.md §4.4 "ref-count = 3").
			t.decRef()
			return
		}
	}
}

// shutdown requests cancellation (spec.md §4.4 "shutdown()"): the next
// poll (or this call, if the task is idle) drops the future without
// invoking it.
func (t *taskHeader) shutdown() {
	old := t.orState(taskCancelled)
	if old.has(taskComplete) || old.has(taskRunning) {
		return
	}
	t.notify()
}

// Spawn schedules fut for execution under h's reactor and returns a
// handle for observing its completion (spec.md §4.1 "Handle::spawn",
// §4.4 "Task").
func Spawn[T any](h *Handle, fut Future[T]) *JoinHandle[T] {
	th := newTaskHeader(h.reactor)
	th.orState(taskJoinInterest)
	th.pollOnce = func(cx *Context) bool {
		out, ready := fut.Poll(cx)
		if ready {
			th.output = out
		}
		return ready
	}
	jh := &JoinHandle[T]{header: th}
	h.scheduleNewTask(th)
	return jh
}
