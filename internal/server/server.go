// Package server accepts rfs clients on a TCP listener and runs one
// session per connection, each in its own goroutine.
package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"rfs/internal/errors"
	"rfs/internal/metrics"
	"rfs/internal/retry"
	"rfs/internal/session"
	"rfs/util"
)

// Options configures a Server.
type Options struct {
	// Root is the directory every session starts in and is confined to.
	Root string
	// MaxClients bounds concurrently served connections.  0 means no
	// bound.
	MaxClients int
	Logger     *util.Logger
	Metrics    *metrics.Collector
}

// Server is a bound listener plus the bookkeeping for its sessions.
type Server struct {
	ln      net.Listener
	root    string
	sem     *semaphore.Weighted
	logger  *util.Logger
	metrics *metrics.Collector
	backoff *retry.Backoff

	nextID atomic.Uint32

	mu    sync.Mutex
	conns map[uint32]net.Conn
}

// Listen binds addr.  Failure is a *errors.BindError.
func Listen(addr string, opts Options) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &errors.BindError{Addr: addr, Err: err}
	}

	logger := opts.Logger
	if logger == nil {
		logger = util.NewLogger(int(util.LogNormal))
	}
	s := &Server{
		ln:      ln,
		root:    opts.Root,
		logger:  logger,
		metrics: opts.Metrics,
		backoff: retry.AcceptBackoff(),
		conns:   make(map[uint32]net.Conn),
	}
	if opts.MaxClients > 0 {
		s.sem = semaphore.NewWeighted(int64(opts.MaxClients))
	}

	s.logger.Info("the server is running on %s", ln.Addr())
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Close stops accepting.  Serve then shuts down its sessions and
// returns.
func (s *Server) Close() error { return s.ln.Close() }

// Active returns the number of open client connections.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed, then closes every client connection and waits for all
// sessions to finish.  A closed listener is a normal stop and returns
// nil.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		_ = s.ln.Close()
		s.closeAll()
		return nil
	})

	g.Go(func() error {
		defer cancel()
		return s.acceptLoop(ctx, g)
	})

	err := g.Wait()
	s.logger.Info("server stopped after %d sessions", s.metrics.TotalSessions())
	s.logger.Verbose("metrics: %s", s.metrics.JSON())
	return err
}

func (s *Server) acceptLoop(ctx context.Context, g *errgroup.Group) error {
	failures := 0
	for {
		if s.sem != nil {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return nil
			}
		}

		conn, err := s.ln.Accept()
		if err != nil {
			s.release()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			failures++
			s.metrics.RecordError(err.Error())
			s.logger.Error("accept: %v; retrying in %v", err, s.backoff.Delay(failures))
			if err := s.backoff.Wait(ctx, failures); err != nil {
				return nil
			}
			continue
		}
		failures = 0

		id := s.nextID.Add(1)
		s.track(id, conn)
		g.Go(func() error {
			defer s.release()
			defer s.untrack(id)
			s.serve(ctx, id, conn)
			return nil
		})
	}
}

func (s *Server) serve(ctx context.Context, id uint32, conn net.Conn) {
	sess, err := session.New(id, conn, s.root, s.logger, s.metrics)
	if err != nil {
		s.logger.Error("client#%d: %v", id, err)
		s.metrics.RecordError(err.Error())
		_ = conn.Close()
		return
	}
	// Session errors are logged by the session itself.
	_ = sess.Run(ctx)
}

func (s *Server) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}

func (s *Server) track(id uint32, conn net.Conn) {
	s.mu.Lock()
	s.conns[id] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(id uint32) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.conns {
		_ = conn.Close()
		s.logger.Debug("closed client#%d for shutdown", id)
	}
}
