// Package core is the orchestration layer.  It turns a Config into one
// of the two things rfs does: serve a directory or connect to a server.
//
// Architecture layers (bottom → top):
//
//	protocol → transfer/workspace → session → server/client → core → cmd
package core

import "context"

// Mode is a complete operational mode of rfs.  Each mode owns its full
// lifecycle from connection establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
