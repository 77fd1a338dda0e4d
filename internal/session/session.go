// Package session runs the server side of one client connection: it
// greets the client, then reads commands, executes them against the
// session's workspace, and answers with response frames followed by
// the completion marker.
//
// Filesystem failures and unknown verbs are answered as text and the
// session keeps serving.  Connection failures end it.
package session

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"rfs/internal/command"
	"rfs/internal/errors"
	"rfs/internal/metrics"
	"rfs/internal/protocol"
	"rfs/internal/transfer"
	"rfs/internal/workspace"
	"rfs/util"
)

// State is the lifecycle position of a session.
type State int

const (
	StateGreeting State = iota
	StateServing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateGreeting:
		return "greeting"
	case StateServing:
		return "serving"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is the state of one connected client.
type Session struct {
	ID      uint32
	TraceID string

	ch      *protocol.Channel
	ws      *workspace.Workspace
	router  *command.Router
	logger  *util.Logger
	metrics *metrics.Collector
	state   State
}

// New binds a session to conn with its cursor at root.  m may be nil.
func New(id uint32, conn net.Conn, root string, logger *util.Logger, m *metrics.Collector) (*Session, error) {
	ws, err := workspace.New(root)
	if err != nil {
		return nil, err
	}
	ch := protocol.NewChannel(conn, m)
	traceID := uuid.NewString()

	s := &Session{
		ID:      id,
		TraceID: traceID,
		ch:      ch,
		ws:      ws,
		logger:  logger.With("client", id).With("trace", traceID).With("remote", ch.RemoteAddr()),
		metrics: m,
		state:   StateGreeting,
	}

	r := command.NewRouter()
	r.Handle(command.List, s.list)
	r.Handle(command.Mkdir, s.mkdir)
	r.Handle(command.Chdir, s.chdir)
	r.Handle(command.Upload, s.upload)
	r.Handle(command.Download, s.download)
	r.Handle(command.Delete, s.delete)
	s.router = r

	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Dir returns the session's current directory.
func (s *Session) Dir() string { return s.ws.Dir() }

// Run serves the connection until the client exits, the connection
// fails, or ctx is cancelled.  The connection is closed on return.  A
// client that simply goes away is not an error.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.ch.Close() })
	defer stop()
	defer s.close()

	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	s.logger.Info("new connection with client#%d", s.ID)

	if err := s.ch.WriteText(protocol.Greeting(s.ID)); err != nil {
		return s.fail(err)
	}
	s.state = StateServing

	for {
		line, err := s.ch.ReadText()
		if err != nil {
			return s.fail(err)
		}
		cmd := command.Parse(line)
		s.logger.With("verb", cmd.Verb).With("arg", cmd.Arg).
			Info("[%s - %s] : %s", s.ch.RemoteAddr(), time.Now().Format("2006-01-02@15:04:05"), line)

		if cmd.Verb == command.Exit {
			s.logger.Verbose("client#%d requested exit", s.ID)
			return nil
		}
		s.metrics.CommandHandled()

		if err := s.router.Dispatch(ctx, cmd); err != nil {
			var pe *errors.ProtocolError
			if !errors.As(err, &pe) {
				return s.fail(err)
			}
			if err := s.reply("Unknown command: " + pe.Verb); err != nil {
				return s.fail(err)
			}
		}
		if err := s.reply(protocol.CompletionMarker); err != nil {
			return s.fail(err)
		}
	}
}

func (s *Session) close() {
	s.state = StateClosed
	_ = s.ch.Close()
	s.logger.Info("connection with client#%d closed", s.ID)
}

// fail logs err and decides whether it is worth reporting.  Peers that
// disconnect between frames, and shutdown closing the socket under a
// blocked read, end the session quietly.
func (s *Session) fail(err error) error {
	if util.IsHarmless(err) {
		s.logger.Debug("client#%d disconnected: %v", s.ID, err)
		return nil
	}
	s.logger.Error("client#%d: %v", s.ID, err)
	s.metrics.RecordError(err.Error())
	return err
}

// reply sends text as one frame.  Replies that echo a client argument
// can outgrow a frame; those are clipped so the session keeps serving.
func (s *Session) reply(text string) error {
	return s.ch.WriteText(clip(text, protocol.MaxTextLen))
}

// clip shortens text to at most limit bytes, cutting on a rune boundary
// and marking the cut with "...".
func clip(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	const ellipsis = "..."
	cut := limit - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + ellipsis
}

// replyLines sends head and lines newline-joined, starting a new frame
// whenever the next line would overflow the current one.
func (s *Session) replyLines(head string, lines []string) error {
	var b strings.Builder
	b.WriteString(head)
	for _, l := range lines {
		if b.Len()+1+len(l) > protocol.MaxTextLen {
			if err := s.reply(b.String()); err != nil {
				return err
			}
			b.Reset()
			b.WriteString(l)
			continue
		}
		b.WriteByte('\n')
		b.WriteString(l)
	}
	return s.reply(b.String())
}

// ── Handlers ─────────────────────────────────────────────────────────
//
// Handlers return only errors that end the session.

func (s *Session) list(context.Context, command.Command) error {
	names, err := s.ws.List()
	if err != nil {
		return s.reply("Error listing files: " + err.Error())
	}
	return s.replyLines("Files in "+s.ws.Dir()+":", names)
}

func (s *Session) mkdir(_ context.Context, cmd command.Command) error {
	p, err := s.ws.Mkdir(cmd.Arg)
	if err != nil {
		return s.reply("Error creating directory: " + err.Error())
	}
	return s.reply("Created directory: " + p)
}

func (s *Session) chdir(_ context.Context, cmd command.Command) error {
	dir, err := s.ws.Chdir(cmd.Arg)
	switch {
	case err == nil:
		return s.reply("Current directory changed to: " + dir)
	case errors.Is(err, errors.ErrNoParent):
		return s.reply("Already at the root directory: " + s.ws.Dir())
	case errors.Is(err, errors.ErrOutsideRoot):
		return s.reply("Directory is outside the served root: " + cmd.Arg)
	default:
		if dir == "" {
			dir = cmd.Arg
		}
		return s.reply("Directory does not exist: " + dir)
	}
}

// upload always consumes the binary frame that follows the command,
// even when the destination is rejected.
func (s *Session) upload(_ context.Context, cmd command.Command) error {
	name := cmd.Arg
	p, err := s.ws.FilePath(name)
	if err != nil {
		if _, derr := transfer.Discard(s.ch); derr != nil {
			return derr
		}
		return s.reply(fmt.Sprintf("Error saving file %s: %v", name, err))
	}

	start := time.Now()
	n, err := transfer.ReceiveFile(s.ch, p)
	if err != nil {
		if errors.IsConnection(err) {
			return err
		}
		s.metrics.RecordError(err.Error())
		return s.reply(fmt.Sprintf("Error saving file %s: %v", name, err))
	}
	s.metrics.UploadCompleted()
	s.logger.Verbose("received %s (%d bytes in %s)", p, n, util.Since(start))
	return s.reply(fmt.Sprintf("File %s has been saved.", name))
}

func (s *Session) download(_ context.Context, cmd command.Command) error {
	name := cmd.Arg
	p, err := s.ws.Resolve(name)
	if err != nil {
		return s.reply(protocol.ProbeMissing)
	}
	src, err := transfer.Open(p)
	if err != nil {
		return s.reply(protocol.ProbeMissing)
	}
	defer src.Close()

	if err := s.reply(protocol.ProbeSending); err != nil {
		return err
	}
	start := time.Now()
	if err := src.Send(s.ch); err != nil {
		return err
	}
	s.metrics.DownloadCompleted()
	s.logger.Verbose("sent %s (%d bytes in %s)", p, src.Size(), util.Since(start))
	return s.reply(fmt.Sprintf("File %s has been sent.", name))
}

func (s *Session) delete(_ context.Context, cmd command.Command) error {
	p, err := s.ws.Remove(cmd.Arg)
	switch {
	case err == nil:
		return s.reply("Deleted: " + p)
	case errors.Is(err, errors.ErrNotFound):
		return s.reply("File or directory does not exist: " + p)
	default:
		if p == "" {
			p = cmd.Arg
		}
		return s.reply(fmt.Sprintf("Error deleting %s: %v", p, err))
	}
}
