//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// epollPoller implements poller over epoll in edge-triggered mode. The
// Token is carried in EpollEvent's Fd field (the kernel never
// interprets it beyond echoing it back), so no fd -> token side table
// is needed, grounded on the teacher's FastPoller but stripped of its
// per-fd callback dispatch: this adapter only returns (token, mask)
// pairs, leaving dispatch to the reactor turn (spec.md §4.1).
type epollPoller struct {
	epfd     int
	eventBuf []unix.EpollEvent
}

func newPoller(batchSize int) (poller, error) {
	if batchSize <= 0 {
		batchSize = 256
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: epfd, eventBuf: make([]unix.EpollEvent, batchSize)}, nil
}

func (p *epollPoller) add(fd int, token Token, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest) | unix.EPOLLET, Fd: int32(token)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) modify(fd int, token Token, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest) | unix.EPOLLET, Fd: int32(token)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(timeoutMs int, dst []PollEvent) ([]PollEvent, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}
	for i := 0; i < n; i++ {
		dst = append(dst, PollEvent{
			Token: Token(uint32(p.eventBuf[i].Fd)),
			Mask:  fromEpollEvents(p.eventBuf[i].Events),
		})
	}
	return dst, nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}

func toEpollEvents(bits Interest) uint32 {
	var e uint32
	if bits&ReadyRead != 0 {
		e |= unix.EPOLLIN
	}
	if bits&ReadyWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpollEvents(e uint32) Interest {
	var bits Interest
	if e&unix.EPOLLIN != 0 {
		bits |= ReadyRead
	}
	if e&unix.EPOLLOUT != 0 {
		bits |= ReadyWrite
	}
	if e&unix.EPOLLERR != 0 {
		bits |= ReadyError
	}
	if e&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		bits |= ReadyHangup
	}
	return bits
}
