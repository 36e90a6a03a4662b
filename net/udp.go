package net

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/loopcraft/reactor"
)

// UDPSocket is a non-blocking, registered UDP socket (SPEC_FULL.md §6.2,
// grounded on the datagram side of original_source's udp_frame.rs:
// recv_from/send_to driven by readiness rather than a buffered Framed
// adapter, since codec.go owns framing).
type UDPSocket struct {
	h         *reactor.Handle
	fd        int
	token     reactor.Token
	readiness *reactor.Readiness
	localAddr *net.UDPAddr

	// regFut is the socket's own registration handshake, driven lazily
	// by ensureRegistered on the first RecvFrom/SendTo poll. See
	// Listener.regFut in tcp.go for why this can't happen inside
	// ListenUDP itself.
	regFut reactor.Future[reactor.RegisterResult]

	closeOnce sync.Once
}

// ListenUDP binds addr for datagram traffic and prepares the socket for
// registration with h's reactor. Like Listen, registration is deferred
// to the first RecvFrom/SendTo poll rather than performed here.
func ListenUDP(h *reactor.Handle, addr string) (*UDPSocket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	tcpAddr := &net.TCPAddr{IP: udpAddr.IP, Port: udpAddr.Port, Zone: udpAddr.Zone}
	sa, domain, err := sockaddrFromTCPAddr(tcpAddr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(domain, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	local := udpAddr
	if sockname, err := unix.Getsockname(fd); err == nil {
		if ta := tcpAddrFromSockaddr(sockname); ta != nil {
			local = &net.UDPAddr{IP: ta.IP, Port: ta.Port}
		}
	}

	return &UDPSocket{h: h, fd: fd, regFut: h.Register(fd, reactor.ReadyRead|reactor.ReadyWrite), localAddr: local}, nil
}

// LocalAddr returns the socket's bound address.
func (c *UDPSocket) LocalAddr() net.Addr { return c.localAddr }

// ensureRegistered drives the socket's registration handshake to
// completion, one non-blocking step at a time. Returns (true, nil) once
// c.readiness is usable, (false, nil) on Pending, or (false, err) if the
// handshake itself failed.
func (c *UDPSocket) ensureRegistered(cx *reactor.Context) (bool, error) {
	if c.readiness != nil {
		return true, nil
	}
	result, ready := c.regFut.Poll(cx)
	if !ready {
		return false, nil
	}
	if result.Err != nil {
		_ = unix.Close(c.fd)
		return false, result.Err
	}
	c.token = result.Token
	c.readiness = result.Readiness
	c.regFut = nil
	return true, nil
}

// RecvFrom is a Future-shaped poll method reading one datagram into p
// (SPEC_FULL.md §6.2): it is edge-triggered, so a caller must keep
// calling it after every readable notification until it reports
// Pending.
func (c *UDPSocket) RecvFrom(cx *reactor.Context, p []byte) (n int, from *net.UDPAddr, ready bool, err error) {
	ok, rerr := c.ensureRegistered(cx)
	if rerr != nil {
		return 0, nil, true, rerr
	}
	if !ok {
		return 0, nil, false, nil
	}
	if !c.readiness.PollRead(cx) {
		return 0, nil, false, nil
	}
	n, sa, rerr := unix.Recvfrom(c.fd, p, 0)
	if rerr != nil {
		if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK {
			c.readiness.NeedRead(cx)
			return 0, nil, false, nil
		}
		return 0, nil, true, rerr
	}
	if ta := tcpAddrFromSockaddr(sa); ta != nil {
		from = &net.UDPAddr{IP: ta.IP, Port: ta.Port}
	}
	return n, from, true, nil
}

// SendTo is a Future-shaped poll method writing one datagram to addr.
func (c *UDPSocket) SendTo(cx *reactor.Context, p []byte, addr *net.UDPAddr) (ready bool, err error) {
	ok, rerr := c.ensureRegistered(cx)
	if rerr != nil {
		return true, rerr
	}
	if !ok {
		return false, nil
	}
	if !c.readiness.PollWrite(cx) {
		return false, nil
	}
	tcpAddr := &net.TCPAddr{IP: addr.IP, Port: addr.Port, Zone: addr.Zone}
	sa, _, err := sockaddrFromTCPAddr(tcpAddr)
	if err != nil {
		return true, err
	}
	if serr := unix.Sendto(c.fd, p, 0, sa); serr != nil {
		if serr == unix.EAGAIN || serr == unix.EWOULDBLOCK {
			c.readiness.NeedWrite(cx)
			return false, nil
		}
		return true, serr
	}
	return true, nil
}

// Close deregisters and closes the socket.
func (c *UDPSocket) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.readiness != nil {
			c.h.Deregister(c.token)
		}
		err = unix.Close(c.fd)
	})
	return err
}
