//go:build linux

package reactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// selfWake lets any goroutine interrupt the reactor's blocking poller
// wait (spec.md §4.1 phase 2 "wakes the poller"). On Linux this is a
// single eventfd used as both read and write end.
type selfWake struct {
	fd int
}

func newSelfWake() (*selfWake, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &selfWake{fd: fd}, nil
}

func (w *selfWake) readFD() int { return w.fd }

// wake writes one unit to the eventfd, unblocking a pending wait.
func (w *selfWake) wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(w.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// drain must be called after every readiness event on the wake fd,
// consistent with the edge-triggered drain-to-WOULDBLOCK discipline
// (spec.md §4.1 "Edge vs level").
func (w *selfWake) drain() {
	var buf [8]byte
	for {
		if _, err := unix.Read(w.fd, buf[:]); err != nil {
			return
		}
	}
}

func (w *selfWake) close() error {
	return unix.Close(w.fd)
}
