package reactor

import "time"

// metrics holds the optional runtime counters gated by WithMetrics.
// Touched only by the reactor goroutine, so plain fields suffice.
type metrics struct {
	Turns    uint64
	Polls    uint64
	TasksRun uint64
}

// Metrics is a point-in-time snapshot of a Reactor's counters (spec.md
// §6), all zero unless WithMetrics(true) was passed to New.
type Metrics struct {
	Turns    uint64
	Polls    uint64
	TasksRun uint64
}

// Reactor is the single-threaded runtime core (spec.md §4.1): it owns
// the poller, the source registry, and the inbox, and is driven
// exclusively by [Run]. Every other interaction happens through a
// [Handle].
type Reactor struct {
	opts   *reactorOptions
	logger Logger

	registry  *registry
	timers    *timerQueue
	poller    poller
	wake      *selfWake
	wakeToken Token

	inbox    *inbox
	runQueue *taskRunQueue

	state  fastState
	inTurn bool

	metrics  metrics
	eventBuf []PollEvent
}

// Handle is a cheap, Send/Sync capability for interacting with a
// Reactor from any goroutine (spec.md §4.1, §6). Calls made from the
// reactor goroutine are still routed through the inbox rather than
// special-cased inline, trading one redundant self-wake for not having
// to track goroutine identity.
type Handle struct {
	reactor *Reactor
}

// New constructs a Reactor and its root Handle (spec.md §4.1 "new()").
func New(opts ...Option) (*Reactor, *Handle, error) {
	cfg := resolveOptions(opts)

	p, err := newPoller(cfg.pollBatchSize)
	if err != nil {
		return nil, nil, err
	}
	w, err := newSelfWake()
	if err != nil {
		_ = p.close()
		return nil, nil, err
	}

	rx := &Reactor{
		opts:     cfg,
		logger:   cfg.logger,
		registry: newRegistry(p),
		timers:   newTimerQueue(),
		poller:   p,
		wake:     w,
		inbox:    newRing[message](),
		runQueue: newRing[*taskHeader](),
		eventBuf: make([]PollEvent, 0, cfg.pollBatchSize),
	}

	tok, _, err := rx.registry.register(w.readFD(), ReadyRead)
	if err != nil {
		_ = w.close()
		_ = p.close()
		return nil, nil, err
	}
	rx.wakeToken = tok

	return rx, &Handle{reactor: rx}, nil
}

// Handle returns a new Handle bound to rx. Handles are cheap; calling
// this repeatedly is fine.
func (rx *Reactor) Handle() *Handle { return &Handle{reactor: rx} }

// Metrics returns a snapshot of rx's runtime counters.
func (rx *Reactor) Metrics() Metrics {
	return Metrics{Turns: rx.metrics.Turns, Polls: rx.metrics.Polls, TasksRun: rx.metrics.TasksRun}
}

// Run drives fut to completion on rx (spec.md §4.1 "Reactor::run"),
// blocking the calling goroutine for the reactor's entire lifetime. It
// must not be called reentrantly from the reactor goroutine itself
// (that returns ErrReentrantRun), nor concurrently from two goroutines
// on the same Reactor (ErrReactorAlreadyRunning), nor after a prior Run
// has already returned (ErrReactorClosed).
//
// Generic methods aren't expressible in Go, so Run is a package-level
// function parameterized over the root future's output type rather
// than a method on *Reactor.
func Run[T any](rx *Reactor, fut Future[T]) (T, error) {
	var zero T

	if rx.inTurn {
		return zero, ErrReentrantRun
	}
	if !rx.state.TryTransition(stateAwake, stateRunning) {
		if rx.state.Load() == stateClosed {
			return zero, ErrReactorClosed
		}
		return zero, ErrReactorAlreadyRunning
	}

	root := newTaskHeader(rx)
	var output T
	root.pollOnce = func(cx *Context) bool {
		out, ready := fut.Poll(cx)
		if ready {
			output = out
		}
		return ready
	}
	rx.runQueue.Push(root)

	for !root.loadState().has(taskComplete) {
		rx.turn()
	}

	rx.state.Store(stateClosed)
	rx.teardown()

	if root.loadState().has(taskCancelled) {
		return zero, ErrCancelled
	}
	if root.panicVal != nil {
		return zero, &PanicError{Value: root.panicVal}
	}
	return output, nil
}

// turn runs one iteration of the five-phase algorithm from spec.md
// §4.1: drain inbox, drain the task run queue, compute a poll timeout,
// block on the OS poller, and dispatch the resulting readiness events.
func (rx *Reactor) turn() {
	rx.inTurn = true
	defer func() { rx.inTurn = false }()

	rx.drainInbox()
	rx.registry.reclaim()

	rx.drainRunQueue()

	timeoutMs := rx.computeTimeout()
	rx.pollOnce(timeoutMs)

	if rx.opts.metricsEnabled {
		rx.metrics.Turns++
	}
}

// drainInbox applies every pending control message (spec.md §4.1 phase
// 1). Reactor-goroutine only.
func (rx *Reactor) drainInbox() {
	for {
		m, ok := rx.inbox.Pop()
		if !ok {
			return
		}
		rx.applyMessage(m)
	}
}

func (rx *Reactor) applyMessage(m message) {
	switch m.kind {
	case msgRegister:
		tok, readiness, err := rx.registry.register(m.fd, m.interest)
		m.reply.complete(RegisterResult{Token: tok, Readiness: readiness, Err: err})
	case msgDeregister:
		if err := rx.registry.deregister(m.token); err != nil {
			logError(rx.logger, "registry", "deregister failed", err, map[string]any{"token": m.token})
		}
	case msgRun:
		rx.runClosure(m.fn)
	}
}

// runClosure executes a run_on_loop closure with panic recovery, so a
// bad closure cannot take down the reactor goroutine (spec.md §4.1
// "Termination": "Panics inside a waker are caught per-wake").
func (rx *Reactor) runClosure(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logError(rx.logger, "reactor", "run_on_loop closure panicked", nil, map[string]any{"panic": r})
		}
	}()
	fn()
}

// drainRunQueue polls every task currently in the run queue, including
// any that re-notify themselves and are re-enqueued while this turn is
// still draining it. A task that keeps waking itself synchronously
// will starve the poller for this turn; that tradeoff is accepted in
// place of the teacher's budget-and-overload-callback machinery (see
// DESIGN.md).
func (rx *Reactor) drainRunQueue() {
	for {
		t, ok := rx.runQueue.Pop()
		if !ok {
			return
		}
		t.poll()
		if rx.opts.metricsEnabled {
			rx.metrics.TasksRun++
		}
		t.decRef()
	}
}

// computeTimeout returns the millisecond timeout for the next blocking
// poll call (spec.md §4.1 phase 3): the time to the earliest timer
// deadline (zero if it is already due, rounded up to 1ms if it is under
// a millisecond away), or -1 (block indefinitely) if no timer is
// registered. The run queue is not consulted: drainRunQueue has just
// emptied it, and any later schedule call self-wakes the poller.
func (rx *Reactor) computeTimeout() int {
	d, ok := rx.timers.nextTimeout(time.Now())
	if !ok {
		return -1
	}
	ms := int(d / time.Millisecond)
	if d > 0 && ms == 0 {
		ms = 1
	}
	return ms
}

// pollOnce blocks on the OS poller for up to timeoutMs and dispatches
// the resulting events (spec.md §4.1 phase 4): OR each event's mask
// into its source's readiness word and wake whichever direction wakers
// are now satisfied.
func (rx *Reactor) pollOnce(timeoutMs int) {
	events, err := rx.poller.wait(timeoutMs, rx.eventBuf[:0])
	if err != nil {
		// A poller failure indicates a kernel-level problem; spec.md §7
		// treats it as fatal rather than something a caller can recover
		// from.
		panic(&PollError{Err: err})
	}
	rx.eventBuf = events

	rx.timers.fireDue(time.Now())

	for _, ev := range events {
		if ev.Token == rx.wakeToken {
			rx.wake.drain()
			continue
		}
		readiness, ok := rx.registry.readinessFor(ev.Token)
		if !ok {
			continue
		}
		readiness.onEvent(ev.Mask)
	}

	if rx.opts.metricsEnabled {
		rx.metrics.Polls++
	}
}

// teardown runs once the root future has completed (spec.md §4.1
// "Termination"): dispatch whatever final control messages arrived
// during the last turn, deregister every remaining source, and release
// the poller and self-wake handles.
func (rx *Reactor) teardown() {
	rx.drainInbox()
	rx.registry.shutdown()
	_ = rx.wake.close()
	_ = rx.poller.close()
}

// wakeSelf interrupts a blocking poller wait from any goroutine
// (spec.md §4.1 phase 2 "wakes the poller").
func (rx *Reactor) wakeSelf() {
	_ = rx.wake.wake()
}

// schedule implements the scheduler interface consumed by taskHeader
// (spec.md §4.4 "schedule pushes onto a FIFO run queue").
func (rx *Reactor) schedule(t *taskHeader) {
	rx.runQueue.Push(t)
	rx.wakeSelf()
}

// yieldNow implements the scheduler interface's voluntary-yield entry
// point: re-enqueue t without otherwise touching its state bits.
func (rx *Reactor) yieldNow(t *taskHeader) {
	rx.runQueue.Push(t)
	rx.wakeSelf()
}

// send pushes a control message onto the inbox and wakes the reactor,
// unconditionally, whether or not the caller happens to already be on
// the reactor goroutine (spec.md §5 "the inbox is a lock-free MPSC
// queue"; see the [Handle] doc for why this skips goroutine-identity
// checks).
func (h *Handle) send(m message) {
	h.reactor.inbox.Push(m)
	h.reactor.wakeSelf()
}

// scheduleNewTask enqueues a freshly spawned task's first run (spec.md
// §4.4 "Spawn"). Unlike notify(), no ref-count adjustment is needed:
// the run-queue's ref was already accounted for in the task's initial
// count of three.
func (h *Handle) scheduleNewTask(t *taskHeader) {
	h.reactor.runQueue.Push(t)
	h.reactor.wakeSelf()
}

// Deregister removes tok's source from the reactor (spec.md §4.1
// "Handle::deregister"): fire-and-forget, delivered through the inbox
// so it always runs on the reactor goroutine regardless of caller.
func (h *Handle) Deregister(tok Token) {
	h.send(message{kind: msgDeregister, token: tok})
}

// RunOnLoop hops fn onto the reactor goroutine (spec.md §6
// "run_on_loop(closure)"), where it runs with the same panic-recovery
// guarantee as any other control message.
func (h *Handle) RunOnLoop(fn func()) {
	if fn == nil {
		return
	}
	h.send(message{kind: msgRun, fn: fn})
}
