package sync

import (
	"sync"

	"github.com/loopcraft/reactor"
)

// Oneshot is a single-value, single-producer/single-consumer channel
// future, grounded on tokio-sync's oneshot channel.
type Oneshot[T any] struct {
	mu     sync.Mutex
	val    T
	sent   bool
	closed bool
	waker  *reactor.Waker
}

// NewOneshot constructs an empty channel.
func NewOneshot[T any]() *Oneshot[T] { return &Oneshot[T]{} }

// OneshotResult is the output of a [Oneshot.Recv] future.
type OneshotResult[T any] struct {
	Value T
	Err   error
}

// Send delivers val to the receiver, waking it if parked. Returns
// false if a value was already sent or Close was already called.
func (o *Oneshot[T]) Send(val T) bool {
	o.mu.Lock()
	if o.sent || o.closed {
		o.mu.Unlock()
		return false
	}
	o.val = val
	o.sent = true
	w := o.waker
	o.waker = nil
	o.mu.Unlock()
	if w != nil {
		w.Wake()
	}
	return true
}

// Close marks the channel closed without ever sending a value; a
// pending or future Recv observes [ErrClosed]. A no-op once a value
// has already been sent.
func (o *Oneshot[T]) Close() {
	o.mu.Lock()
	if o.sent || o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	w := o.waker
	o.waker = nil
	o.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// Recv returns a Future that resolves to the sent value, or
// [ErrClosed] if the channel was closed first.
func (o *Oneshot[T]) Recv() reactor.Future[OneshotResult[T]] {
	return (*oneshotRecvFuture[T])(o)
}

type oneshotRecvFuture[T any] Oneshot[T]

func (f *oneshotRecvFuture[T]) Poll(cx *reactor.Context) (OneshotResult[T], bool) {
	o := (*Oneshot[T])(f)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sent {
		return OneshotResult[T]{Value: o.val}, true
	}
	if o.closed {
		return OneshotResult[T]{Err: ErrClosed}, true
	}
	if old := o.waker; old != nil {
		old.Drop()
	}
	o.waker = cx.Waker()
	return OneshotResult[T]{}, false
}
