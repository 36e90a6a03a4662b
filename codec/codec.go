// Package codec provides frame codecs usable over a byte stream
// (reactor/net's Conn) or datagram-by-datagram (reactor/net's
// UDPSocket), grounded on original_source's src/io/udp_frame.rs.
package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// ErrFrameTooLarge is returned by Decode when a length-delimited
// header declares a frame past MaxFrameSize.
var ErrFrameTooLarge = errors.New("codec: frame exceeds maximum size")

// LengthDelimited encodes frames as a big-endian uint32 length prefix
// followed by that many payload bytes.
//
// The send path resolves the "short write buffer" hazard the original
// Sink::poll_complete carried: that code compared the syscall's
// returned byte count against self.wr.len() *after* calling
// self.wr.clear(), which made the comparison always see a zero-length
// buffer and so could never detect a short write. Encode here captures
// the buffer's length into a local before doing anything that could
// reset it, and compares the write call's return value against that
// captured value instead.
type LengthDelimited struct {
	// MaxFrameSize bounds the accepted frame length; zero means
	// unbounded.
	MaxFrameSize uint32
}

// Encode writes one length-prefixed frame to w.
func (c LengthDelimited) Encode(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	// Captured before any write can report a short count: the
	// comparison below must check against the buffer's real length,
	// not whatever it becomes after the call completes.
	wantN := len(payload)
	n, err := w.Write(payload)
	if err != nil {
		return err
	}
	if n != wantN {
		return io.ErrShortWrite
	}
	return nil
}

// Decode reads one length-prefixed frame from r.
func (c LengthDelimited) Decode(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if c.MaxFrameSize != 0 && n > c.MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Line encodes frames as a payload followed by a single Delim byte,
// with the delimiter stripped on decode.
type Line struct {
	// Delim is the line terminator; the zero value defaults to '\n'.
	Delim byte
}

func (c Line) delim() byte {
	if c.Delim == 0 {
		return '\n'
	}
	return c.Delim
}

// Encode writes payload followed by the delimiter to w.
func (c Line) Encode(w io.Writer, payload []byte) error {
	wantN := len(payload)
	n, err := w.Write(payload)
	if err != nil {
		return err
	}
	if n != wantN {
		return io.ErrShortWrite
	}
	if _, err := w.Write([]byte{c.delim()}); err != nil {
		return err
	}
	return nil
}

// Decode reads one delimiter-terminated frame from r, returning the
// payload with the delimiter stripped. Pass the same *bufio.Reader on
// every call when decoding a stream of multiple lines: wrapping a
// plain io.Reader here discards any lookahead buffered past the
// delimiter once Decode returns.
func (c Line) Decode(r io.Reader) ([]byte, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	line, err := br.ReadBytes(c.delim())
	if err != nil {
		return nil, err
	}
	return line[:len(line)-1], nil
}
