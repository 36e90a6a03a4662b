// Package reactor is a single-threaded, event-driven async I/O runtime
// core: an OS-readiness poller (epoll on Linux, kqueue on Darwin) feeding
// a cooperatively scheduled task/future/waker substrate.
//
// # Architecture
//
// A [Reactor] owns the poller, a [Token]-indexed source registry, and an
// inbox of control messages. A clonable, thread-safe [Handle] is how any
// goroutine registers a source, parks a waker on read/write readiness,
// spawns a task, or hops a closure onto the reactor goroutine.
// [Run] drives a single root future to completion, polling tasks and the
// OS poller in alternation.
//
// # Platform support
//
// The poller adapter is implemented per platform:
//   - Linux: epoll (poller_linux.go)
//   - Darwin: kqueue (poller_darwin.go)
//
// # Thread safety
//
// The poller, registry, and run queue are touched only by the reactor
// goroutine. [Handle] methods are safe to call from any goroutine: every
// call, including one made from the reactor goroutine itself, is applied
// through the lock-free control-message inbox and a self-wake
// notification. [Waker] is Send/Sync — waking a task from any
// goroutine is always safe.
//
// # Execution model
//
// Futures are polled only on the reactor goroutine (see [Future]). A
// future returns Pending only after guaranteeing a later wake; the core
// never polls a future preemptively or concurrently with itself.
//
// # Collaborators
//
// TCP/UDP transports (reactor/net), frame codecs (reactor/codec),
// child-process supervision (reactor/procs), and synchronization
// primitives (reactor/sync) are built entirely on the [Handle]/[Future]/
// [Waker]/[JoinHandle] contract exported here; none of them reach into
// reactor internals.
//
// # Usage
//
//	rx, h, err := reactor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = h
//	out, err := reactor.Run[int](rx, reactor.FutureFunc[int](func(cx *reactor.Context) (int, bool) {
//	    return 42, true
//	}))
package reactor
