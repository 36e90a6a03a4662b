//go:build darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// kqueuePoller implements poller over kqueue. Unlike epoll, kqueue's
// Kevent_t.Udata field type varies by architecture, so rather than
// smuggle a Token through it unsafely this adapter keeps a small
// fd -> Token side table; it is touched only by the reactor goroutine
// (the poller's sole owner) so it needs no locking. Grounded on the
// teacher's FastPoller but stripped of its per-fd callback dispatch
// table (see poller_linux.go).
type kqueuePoller struct {
	kq       int
	eventBuf []unix.Kevent_t
	tokens   map[int]Token
}

func newPoller(batchSize int) (poller, error) {
	if batchSize <= 0 {
		batchSize = 256
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{kq: kq, eventBuf: make([]unix.Kevent_t, batchSize), tokens: make(map[int]Token)}, nil
}

func (p *kqueuePoller) add(fd int, token Token, interest Interest) error {
	p.tokens[fd] = token
	changes := filterKevents(fd, interest, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR)
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) modify(fd int, token Token, interest Interest) error {
	p.tokens[fd] = token
	var changes []unix.Kevent_t
	if interest&ReadyRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE | unix.EV_CLEAR})
	} else {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE})
	}
	if interest&ReadyWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_ENABLE | unix.EV_CLEAR})
	} else {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) remove(fd int) error {
	delete(p.tokens, fd)
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	// Best-effort: either filter may never have been registered.
	_, _ = unix.Kevent(p.kq, changes, nil, nil)
	return nil
}

func (p *kqueuePoller) wait(timeoutMs int, dst []PollEvent) ([]PollEvent, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{Sec: int64(timeoutMs / 1000), Nsec: int64((timeoutMs % 1000) * 1_000_000)}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}
	for i := 0; i < n; i++ {
		ev := &p.eventBuf[i]
		tok, ok := p.tokens[int(ev.Ident)]
		if !ok {
			continue
		}
		var mask Interest
		switch ev.Filter {
		case unix.EVFILT_READ:
			mask = ReadyRead
		case unix.EVFILT_WRITE:
			mask = ReadyWrite
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			mask |= ReadyError
		}
		if ev.Flags&unix.EV_EOF != 0 {
			mask |= ReadyHangup
		}
		dst = append(dst, PollEvent{Token: tok, Mask: mask})
	}
	return dst, nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.kq)
}

func filterKevents(fd int, interest Interest, flags uint16) []unix.Kevent_t {
	var out []unix.Kevent_t
	if interest&ReadyRead != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if interest&ReadyWrite != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return out
}
