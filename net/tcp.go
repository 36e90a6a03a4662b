// Package net provides TCP and UDP adapters over a reactor.Reactor,
// grounded on original_source's src/net/tcp.rs and src/tcp.rs: the same
// bind/accept/connect shape, rebuilt on Readiness.PollRead/PollWrite and
// NeedRead/NeedWrite instead of mio's PollEvented.
package net

import (
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/loopcraft/reactor"
)

func resolveTCPAddr(addr string) (*net.TCPAddr, error) {
	return net.ResolveTCPAddr("tcp", addr)
}

func sockaddrFromTCPAddr(addr *net.TCPAddr) (unix.Sockaddr, int, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	ip6 := addr.IP.To16()
	if ip6 == nil {
		if addr.IP == nil {
			// The zero IP means "any"; default to IPv4 any.
			return &unix.SockaddrInet4{Port: addr.Port}, unix.AF_INET, nil
		}
		return nil, 0, fmt.Errorf("net: invalid address %v", addr)
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], ip6)
	return sa, unix.AF_INET6, nil
}

func tcpAddrFromSockaddr(sa unix.Sockaddr) *net.TCPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append(net.IP(nil), v.Addr[:]...), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append(net.IP(nil), v.Addr[:]...), Port: v.Port}
	default:
		return nil
	}
}

// Listener is a non-blocking TCP listener registered with a reactor
// (spec.md §6.1, SPEC_FULL.md §6.1).
type Listener struct {
	h         *reactor.Handle
	fd        int
	token     reactor.Token
	readiness *reactor.Readiness
	addr      *net.TCPAddr

	// regFut is the listening fd's own registration handshake, driven
	// lazily on the first Accept poll rather than blocked on inside
	// Listen: Listen typically runs before Run, when nothing is turning
	// the reactor to drain the Register control message an Await-based
	// handshake would need (see [reactor.Await]'s doc comment).
	regFut reactor.Future[reactor.RegisterResult]

	pending *connRegistration

	closeOnce sync.Once
}

// connRegistration tracks a just-accepted (or just-dialed) fd across
// however many polls its Register handshake takes to complete: the
// handshake is itself a Future, and Accept/Dial must propagate Pending
// rather than block the reactor goroutine waiting on it (see
// [reactor.Await]'s doc comment on why blocking from inside a poll call
// is never safe).
type connRegistration struct {
	fd     int
	remote *net.TCPAddr
	fut    reactor.Future[reactor.RegisterResult]
}

func newConnRegistration(h *reactor.Handle, fd int, remote *net.TCPAddr) *connRegistration {
	return &connRegistration{fd: fd, remote: remote, fut: h.Register(fd, reactor.ReadyRead|reactor.ReadyWrite)}
}

// poll drives the registration handshake; on completion it returns the
// finished *Conn (or error) and true, consuming pr.
func (pr *connRegistration) poll(h *reactor.Handle, cx *reactor.Context) (*Conn, bool, error) {
	result, ready := pr.fut.Poll(cx)
	if !ready {
		return nil, false, nil
	}
	if result.Err != nil {
		_ = unix.Close(pr.fd)
		return nil, true, result.Err
	}
	return newConnFromRegistered(h, pr.fd, pr.remote, result), true, nil
}

// Listen binds addr and prepares the resulting socket for registration
// with h's reactor (SPEC_FULL.md §6.1 "net.Listen"). Registration itself
// is deferred to the first Accept poll: Listen is ordinarily called
// before Run starts turning the reactor, and nothing would be left to
// drain the Register control message a synchronous handshake here would
// need to send.
func Listen(h *reactor.Handle, addr string) (*Listener, error) {
	tcpAddr, err := resolveTCPAddr(addr)
	if err != nil {
		return nil, err
	}
	sa, domain, err := sockaddrFromTCPAddr(tcpAddr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	local, err := unix.Getsockname(fd)
	if err == nil {
		if la := tcpAddrFromSockaddr(local); la != nil {
			tcpAddr = la
		}
	}

	return &Listener{h: h, fd: fd, regFut: h.Register(fd, reactor.ReadyRead), addr: tcpAddr}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.addr }

// Accept is a Future[*Conn]-shaped poll method (SPEC_FULL.md §6.1): it
// returns at most one connection per call. The read-readiness bit is
// cleared (NeedRead) only when accept reports EAGAIN, per the
// edge-triggered drain discipline (spec.md §4.1 "Edge vs level"), so a
// caller keeps calling Accept until it reports Pending.
func (l *Listener) Accept(cx *reactor.Context) (*Conn, bool, error) {
	if l.readiness == nil {
		result, ready := l.regFut.Poll(cx)
		if !ready {
			return nil, false, nil
		}
		if result.Err != nil {
			_ = unix.Close(l.fd)
			return nil, true, result.Err
		}
		l.token = result.Token
		l.readiness = result.Readiness
		l.regFut = nil
	}

	if l.pending != nil {
		conn, ready, err := l.pending.poll(l.h, cx)
		if ready {
			l.pending = nil
		}
		return conn, ready, err
	}

	if !l.readiness.PollRead(cx) {
		return nil, false, nil
	}
	for {
		fd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				l.readiness.NeedRead(cx)
				return nil, false, nil
			}
			return nil, true, err
		}
		pr := newConnRegistration(l.h, fd, tcpAddrFromSockaddr(sa))
		conn, ready, err := pr.poll(l.h, cx)
		if !ready {
			l.pending = pr
			return nil, false, nil
		}
		return conn, true, err
	}
}

// Close deregisters and closes the listener.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.readiness != nil {
			l.h.Deregister(l.token)
		}
		err = unix.Close(l.fd)
	})
	return err
}

// Conn is a non-blocking, registered TCP connection (SPEC_FULL.md
// §6.1).
type Conn struct {
	h          *reactor.Handle
	fd         int
	token      reactor.Token
	readiness  *reactor.Readiness
	localAddr  net.Addr
	remoteAddr net.Addr

	closeOnce sync.Once
}

// newConnFromRegistered builds a Conn from an fd whose registration
// handshake has already completed successfully.
func newConnFromRegistered(h *reactor.Handle, fd int, remote *net.TCPAddr, result reactor.RegisterResult) *Conn {
	var local net.Addr
	if sa, err := unix.Getsockname(fd); err == nil {
		local = tcpAddrFromSockaddr(sa)
	}
	return &Conn{h: h, fd: fd, token: result.Token, readiness: result.Readiness, localAddr: local, remoteAddr: remote}
}

// DialResult is the output of a [Dial] future: either a connected Conn,
// or the error that aborted the handshake.
type DialResult struct {
	Conn *Conn
	Err  error
}

// Dial establishes an outbound TCP connection. It is itself a Future
// so connect storms (spec.md §8) don't block the reactor goroutine
// while the three-way handshake completes.
func Dial(h *reactor.Handle, addr string) (reactor.Future[DialResult], error) {
	tcpAddr, err := resolveTCPAddr(addr)
	if err != nil {
		return nil, err
	}
	sa, domain, err := sockaddrFromTCPAddr(tcpAddr)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	connectErr := unix.Connect(fd, sa)
	if connectErr != nil && connectErr != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, connectErr
	}
	return &dialFuture{h: h, fd: fd, remote: tcpAddr}, nil
}

type dialFuture struct {
	h      *reactor.Handle
	fd     int
	remote *net.TCPAddr

	regFut    reactor.Future[reactor.RegisterResult]
	token     reactor.Token
	readiness *reactor.Readiness
}

func (f *dialFuture) Poll(cx *reactor.Context) (DialResult, bool) {
	if f.readiness == nil {
		if f.regFut == nil {
			f.regFut = f.h.Register(f.fd, reactor.ReadyRead|reactor.ReadyWrite)
		}
		result, ready := f.regFut.Poll(cx)
		if !ready {
			return DialResult{}, false
		}
		if result.Err != nil {
			_ = unix.Close(f.fd)
			return DialResult{Err: result.Err}, true
		}
		f.token = result.Token
		f.readiness = result.Readiness
	}
	if !f.readiness.PollWrite(cx) {
		return DialResult{}, false
	}
	errno, gerr := unix.GetsockoptInt(f.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if gerr != nil {
		_ = unix.Close(f.fd)
		return DialResult{Err: gerr}, true
	}
	if errno != 0 {
		_ = unix.Close(f.fd)
		return DialResult{Err: unix.Errno(errno)}, true
	}
	conn := newConnFromRegistered(f.h, f.fd, f.remote, reactor.RegisterResult{Token: f.token, Readiness: f.readiness})
	return DialResult{Conn: conn}, true
}

// Read is a Future[int]-shaped poll method (SPEC_FULL.md §6.1).
func (c *Conn) Read(cx *reactor.Context, p []byte) (n int, ready bool, err error) {
	if !c.readiness.PollRead(cx) {
		return 0, false, nil
	}
	n, err = unix.Read(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			c.readiness.NeedRead(cx)
			return 0, false, nil
		}
		return 0, true, err
	}
	if n == 0 {
		return 0, true, io.EOF
	}
	return n, true, nil
}

// Write is a Future[int]-shaped poll method.
func (c *Conn) Write(cx *reactor.Context, p []byte) (n int, ready bool, err error) {
	if !c.readiness.PollWrite(cx) {
		return 0, false, nil
	}
	n, err = unix.Write(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			c.readiness.NeedWrite(cx)
			return 0, false, nil
		}
		return 0, true, err
	}
	return n, true, nil
}

// LocalAddr and RemoteAddr report this connection's endpoints.
func (c *Conn) LocalAddr() net.Addr  { return c.localAddr }
func (c *Conn) RemoteAddr() net.Addr { return c.remoteAddr }

// Close deregisters and closes the connection (spec.md §5
// "Cancellation": dropping the adapter enqueues a Deregister message).
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.h.Deregister(c.token)
		err = unix.Close(c.fd)
	})
	return err
}
