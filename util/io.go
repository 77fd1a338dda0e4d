package util

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// DefaultBufSize is the chunk size for file payloads on the wire.  It
// trades memory per transfer against syscall count; receivers must not
// rely on it.
const DefaultBufSize = 4096

// IsHarmless returns true for errors that mean the peer went away at a
// point where nothing was lost: a clean EOF, a closed connection, or a
// reset by a client that simply quit.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
