package sync

import (
	"sync"

	"github.com/loopcraft/reactor"
)

// MPSC is a bounded, multi-producer/single-consumer channel future,
// grounded on tokio-sync's bounded mpsc channel.
type MPSC[T any] struct {
	mu         sync.Mutex
	buf        []T
	head       int
	count      int
	closed     bool
	recvWaker  *reactor.Waker
	sendWakers []*reactor.Waker
}

// NewMPSC constructs a channel with the given bounded capacity.
func NewMPSC[T any](capacity int) *MPSC[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &MPSC[T]{buf: make([]T, capacity)}
}

// MPSCResult is the output of a [MPSC.Recv] future: Ok is false once
// the channel is closed and drained.
type MPSCResult[T any] struct {
	Value T
	Ok    bool
}

func (m *MPSC[T]) tryPushLocked(val T) bool {
	if m.count == len(m.buf) {
		return false
	}
	idx := (m.head + m.count) % len(m.buf)
	m.buf[idx] = val
	m.count++
	return true
}

func (m *MPSC[T]) tryPopLocked() (T, bool) {
	var zero T
	if m.count == 0 {
		return zero, false
	}
	v := m.buf[m.head]
	m.buf[m.head] = zero
	m.head = (m.head + 1) % len(m.buf)
	m.count--
	return v, true
}

// TrySend attempts a non-blocking send, returning [ErrFull] if the
// channel has no free capacity and [ErrClosed] if the receiver is
// gone.
func (m *MPSC[T]) TrySend(val T) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if !m.tryPushLocked(val) {
		m.mu.Unlock()
		return ErrFull
	}
	w := m.recvWaker
	m.recvWaker = nil
	m.mu.Unlock()
	if w != nil {
		w.Wake()
	}
	return nil
}

// Send returns a Future that parks until there is capacity, then
// enqueues val.
func (m *MPSC[T]) Send(val T) reactor.Future[error] {
	return &mpscSendFuture[T]{m: m, val: val}
}

type mpscSendFuture[T any] struct {
	m    *MPSC[T]
	val  T
	done bool
}

func (f *mpscSendFuture[T]) Poll(cx *reactor.Context) (error, bool) {
	if f.done {
		return nil, true
	}
	m := f.m
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		f.done = true
		return ErrClosed, true
	}
	if m.tryPushLocked(f.val) {
		w := m.recvWaker
		m.recvWaker = nil
		m.mu.Unlock()
		f.done = true
		if w != nil {
			w.Wake()
		}
		return nil, true
	}
	m.sendWakers = append(m.sendWakers, cx.Waker())
	m.mu.Unlock()
	return nil, false
}

// Recv returns a Future resolving to the next queued value, or a
// zero MPSCResult (Ok=false) once the channel is closed and empty.
func (m *MPSC[T]) Recv() reactor.Future[MPSCResult[T]] {
	return &mpscRecvFuture[T]{m: m}
}

type mpscRecvFuture[T any] struct{ m *MPSC[T] }

func (f *mpscRecvFuture[T]) Poll(cx *reactor.Context) (MPSCResult[T], bool) {
	m := f.m
	m.mu.Lock()
	if v, ok := m.tryPopLocked(); ok {
		var w *reactor.Waker
		if len(m.sendWakers) > 0 {
			w = m.sendWakers[0]
			m.sendWakers = m.sendWakers[1:]
		}
		m.mu.Unlock()
		if w != nil {
			w.Wake()
		}
		return MPSCResult[T]{Value: v, Ok: true}, true
	}
	if m.closed {
		m.mu.Unlock()
		return MPSCResult[T]{}, true
	}
	if old := m.recvWaker; old != nil {
		old.Drop()
	}
	m.recvWaker = cx.Waker()
	m.mu.Unlock()
	return MPSCResult[T]{}, false
}

// Close marks the channel closed: pending and future Recv calls drain
// whatever remains buffered, then report Ok=false; blocked Send
// futures wake to observe ErrClosed.
func (m *MPSC[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	w := m.recvWaker
	m.recvWaker = nil
	waiters := m.sendWakers
	m.sendWakers = nil
	m.mu.Unlock()
	if w != nil {
		w.Wake()
	}
	for _, sw := range waiters {
		sw.Wake()
	}
}
