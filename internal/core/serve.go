package core

import (
	"context"

	"rfs/internal/server"
	"rfs/util"
)

// ServeMode exposes a directory to rfs clients until ctx is cancelled.
type ServeMode struct {
	Address string // "host:port"; an empty host means every interface
	Options server.Options
	Logger  *util.Logger

	// Started, when set, receives the server once it is bound.
	Started func(*server.Server)
}

// Run binds the listener and serves sessions.  A bind failure is
// returned before any client is accepted.
func (m *ServeMode) Run(ctx context.Context) error {
	srv, err := server.Listen(m.Address, m.Options)
	if err != nil {
		return err
	}
	m.Logger.Verbose("serving %s", m.Options.Root)
	if m.Started != nil {
		m.Started(srv)
	}
	return srv.Serve(ctx)
}
