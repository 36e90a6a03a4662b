package reactor

// Context is handed to a Future on every poll. It carries the means to
// produce a Waker bound to the polling task (spec.md §3 "Future").
type Context struct {
	task *taskHeader
}

// Waker returns a new, independently-owned Waker for the task being
// polled under cx. Every call increments the task's ref-count; the
// returned Waker must eventually be woken or dropped (garbage
// collection reclaims the Go value, but only [Waker.Wake] or
// [Waker.Drop] releases the ref-count it was cloned with).
func (cx *Context) Waker() *Waker {
	return newWaker(cx.task)
}

// Waker is the opaque, Send/Sync handle whose invocation schedules a
// task for another poll (spec.md §4.4). A Waker is two things
// conceptually — a vtable and a task-header pointer — collapsed here
// into a single concrete type: dispatch to whichever scheduler drives
// the task already goes through the task header's scheduler interface,
// so there is no need for Rust's dynamic RawWaker vtable indirection.
type Waker struct {
	task *taskHeader
}

func newWaker(t *taskHeader) *Waker {
	t.incRef()
	return &Waker{task: t}
}

// Clone returns a new Waker referencing the same task, incrementing
// its ref-count.
func (w *Waker) Clone() *Waker {
	w.task.incRef()
	return &Waker{task: w.task}
}

// Wake notifies the task and releases this Waker's ref-count. After
// Wake returns, this Waker must not be used again.
func (w *Waker) Wake() {
	w.task.notify()
	w.task.decRef()
}

// WakeByRef notifies the task without releasing this Waker's
// ref-count, so the same Waker value may be woken again later.
func (w *Waker) WakeByRef() {
	w.task.notify()
}

// WillWake reports whether w and other would wake the same task.
func (w *Waker) WillWake(other *Waker) bool {
	return other != nil && w.task == other.task
}

// Drop releases this Waker's ref-count without waking the task. Call
// this instead of letting a Waker value simply go out of scope whenever
// the ref-count accounting matters (e.g. in tests asserting invariant 6
// from spec.md §8).
func (w *Waker) Drop() {
	w.task.decRef()
}
