package reactor

import "sync"

// RegisterResult is the output of a register Future (spec.md §4.2
// "I/O-token future"): the new Token and a pointer to its shared
// Readiness word, or an error if the poller rejected the handle.
type RegisterResult struct {
	Token     Token
	Readiness *Readiness
	Err       error
}

// registerReply is the one-shot, write-once reply slot a register
// Future hands to the reactor via a Register control message
// (spec.md §3 "Control Message", §4.2).
type registerReply struct {
	mu     sync.Mutex
	done   bool
	result RegisterResult
	waker  *Waker
}

func (r *registerReply) complete(res RegisterResult) {
	r.mu.Lock()
	r.result = res
	r.done = true
	w := r.waker
	r.waker = nil
	r.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// registerFuture is the Future a caller off the reactor goroutine
// constructs to hand a raw OS handle onto the loop (spec.md §4.2).
type registerFuture struct {
	h        *Handle
	fd       int
	interest Interest
	reply    *registerReply
	sent     bool
}

func (f *registerFuture) Poll(cx *Context) (RegisterResult, bool) {
	if f.reply == nil {
		f.reply = &registerReply{}
	}
	if !f.sent {
		f.sent = true
		f.h.send(message{kind: msgRegister, fd: f.fd, interest: f.interest, reply: f.reply})
	}

	f.reply.mu.Lock()
	defer f.reply.mu.Unlock()
	if f.reply.done {
		return f.reply.result, true
	}
	f.reply.waker = cx.Waker()
	return RegisterResult{}, false
}

// Register returns a Future that installs fd with the reactor's
// poller under the given interest mask (spec.md §4.1
// "Handle::register").
func (h *Handle) Register(fd int, interest Interest) Future[RegisterResult] {
	return &registerFuture{h: h, fd: fd, interest: interest}
}
