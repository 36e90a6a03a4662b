//go:build darwin

package reactor

import (
	"syscall"
)

// selfWake lets any goroutine interrupt the reactor's blocking poller
// wait (spec.md §4.1 phase 2). Darwin has no eventfd, so this is a
// non-blocking self-pipe: a byte written to the write end becomes a
// readable event on the read end, which is the fd actually registered
// with the poller.
type selfWake struct {
	readFd  int
	writeFd int
}

func newSelfWake() (*selfWake, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return nil, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, err
	}
	return &selfWake{readFd: fds[0], writeFd: fds[1]}, nil
}

func (w *selfWake) readFD() int { return w.readFd }

func (w *selfWake) wake() error {
	_, err := syscall.Write(w.writeFd, []byte{1})
	if err != nil && err != syscall.EAGAIN {
		return err
	}
	return nil
}

func (w *selfWake) drain() {
	var buf [64]byte
	for {
		if _, err := syscall.Read(w.readFd, buf[:]); err != nil {
			return
		}
	}
}

func (w *selfWake) close() error {
	_ = syscall.Close(w.writeFd)
	return syscall.Close(w.readFd)
}
