// Package transport opens the client's connection to an rfs server,
// either directly over TCP or through an SSH jump host.  What runs over
// the connection is the client package's business.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections.
type Dialer interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases long-lived resources such as an SSH session.
	// Stateless dialers return nil.
	Close() error
}
