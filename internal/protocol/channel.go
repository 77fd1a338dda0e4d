package protocol

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"unicode/utf8"

	"rfs/internal/errors"
	"rfs/internal/metrics"
	"rfs/util"
)

// Channel frames reads and writes on one connection.  All reads go
// through a single buffered reader, so bytes buffered past the end of
// one frame are the start of the next.
//
// A Channel is not safe for concurrent use; each session owns one.
type Channel struct {
	conn    net.Conn
	r       *bufio.Reader
	addr    string
	metrics *metrics.Collector
}

// NewChannel wraps conn.  m may be nil.
func NewChannel(conn net.Conn, m *metrics.Collector) *Channel {
	return &Channel{
		conn:    conn,
		r:       bufio.NewReaderSize(conn, util.DefaultBufSize),
		addr:    util.RemoteAddr(conn),
		metrics: m,
	}
}

// RemoteAddr returns the peer address as a string.
func (c *Channel) RemoteAddr() string { return c.addr }

// Close closes the underlying connection.
func (c *Channel) Close() error { return c.conn.Close() }

// ── Text frames ──────────────────────────────────────────────────────

// WriteText sends s as one text frame.  Strings longer than
// MaxTextLen are rejected with ErrFrameTooLarge before anything is
// written, so the channel stays usable.
func (c *Channel) WriteText(s string) error {
	if len(s) > MaxTextLen {
		return errors.ErrFrameTooLarge
	}
	buf := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(buf, uint16(len(s)))
	copy(buf[2:], s)
	return c.write(buf)
}

// ReadText reads one text frame.
func (c *Channel) ReadText() (string, error) {
	var hdr [2]byte
	if err := c.readFull(hdr[:], true); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(hdr[:])
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if err := c.readFull(buf, false); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", errors.Wrap("read", c.addr, ErrInvalidUTF8)
	}
	return string(buf), nil
}

// ── Binary frames ────────────────────────────────────────────────────

// WriteLength sends the 8-byte header of a binary frame.
func (c *Channel) WriteLength(n uint64) error {
	var hdr [8]byte
	binary.BigEndian.PutUint64(hdr[:], n)
	return c.write(hdr[:])
}

// ReadLength reads the 8-byte header of a binary frame.
func (c *Channel) ReadLength() (uint64, error) {
	var hdr [8]byte
	if err := c.readFull(hdr[:], true); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(hdr[:]), nil
}

// WriteBytes writes p verbatim.
func (c *Channel) WriteBytes(p []byte) error {
	return c.write(p)
}

// ReadBytes reads exactly n raw bytes.  A negative n is rejected with
// ErrNegativeCount and nothing is read.
func (c *Channel) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.ErrNegativeCount
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if err := c.readFull(buf, false); err != nil {
		return nil, err
	}
	return buf, nil
}

// SendPayload copies exactly n bytes from src to the connection in
// chunks.  If src ends early or fails, the frame can no longer be
// completed and a ConnectionError is returned.
func (c *Channel) SendPayload(src io.Reader, n uint64) error {
	bp := util.GetBuf()
	defer util.PutBuf(bp)
	buf := *bp

	for remaining := n; remaining > 0; {
		chunk := buf
		if uint64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		if _, err := io.ReadFull(src, chunk); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return errors.Wrap("write", c.addr, err)
		}
		if err := c.write(chunk); err != nil {
			return err
		}
		remaining -= uint64(len(chunk))
	}
	return nil
}

// RecvPayload reads exactly n bytes from the connection into dst.
//
// A failing dst does not stop the read: the rest of the payload is
// discarded so the stream stays aligned on the next frame, and dst's
// error is returned.  Connection failures are returned as
// ConnectionErrors and take precedence.
func (c *Channel) RecvPayload(dst io.Writer, n uint64) error {
	bp := util.GetBuf()
	defer util.PutBuf(bp)
	buf := *bp

	var sinkErr error
	for remaining := n; remaining > 0; {
		chunk := buf
		if uint64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		if err := c.readFull(chunk, false); err != nil {
			return err
		}
		if sinkErr == nil {
			if _, err := dst.Write(chunk); err != nil {
				sinkErr = err
			}
		}
		remaining -= uint64(len(chunk))
	}
	return sinkErr
}

// ── Internals ────────────────────────────────────────────────────────

func (c *Channel) write(p []byte) error {
	n, err := c.conn.Write(p)
	c.metrics.BytesSent(int64(n))
	if err != nil {
		return errors.Wrap("write", c.addr, err)
	}
	return nil
}

// readFull fills p.  atBoundary says whether p starts a new frame: a
// close before its first byte is a clean io.EOF, any other short read
// is io.ErrUnexpectedEOF.
func (c *Channel) readFull(p []byte, atBoundary bool) error {
	n, err := io.ReadFull(c.r, p)
	c.metrics.BytesReceived(int64(n))
	if err != nil {
		if err == io.EOF && !atBoundary {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrap("read", c.addr, err)
	}
	return nil
}
