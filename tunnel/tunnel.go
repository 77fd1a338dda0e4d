// Package tunnel reaches an rfs server that is only visible from an SSH
// gateway.  The client dials the gateway once and then opens its rfs
// connection as a direct-tcpip channel through it.
//
// The tunnel only provides reachability.  The rfs protocol carried
// inside it is unchanged.
package tunnel

import (
	"context"
	"net"
)

// Tunnel is a gateway through which TCP connections can be opened.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address through the tunnel.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close tears down the tunnel and frees resources.
	Close() error

	// IsAlive reports whether the underlying connection is still up.
	IsAlive() bool
}
