package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// TCPDialer establishes plain TCP connections, optionally from a fixed
// source port.
type TCPDialer struct {
	Timeout   time.Duration
	LocalPort int // 0 = ephemeral
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}

	if d.LocalPort > 0 {
		a, err := net.ResolveTCPAddr(network, ":"+strconv.Itoa(d.LocalPort))
		if err != nil {
			return nil, fmt.Errorf("resolve local addr: %w", err)
		}
		dialer.LocalAddr = a
	}

	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op.
func (d *TCPDialer) Close() error { return nil }
