// Package command parses client command lines and routes them to
// handlers by verb.
package command

import (
	"context"
	"strings"

	"rfs/internal/errors"
)

// Verbs understood by the server.  Matching is exact and case-sensitive.
const (
	List     = "ls"
	Mkdir    = "mkdir"
	Chdir    = "cd"
	Upload   = "upload"
	Download = "download"
	Delete   = "delete"
	Exit     = "exit"
)

// Command is one parsed command line.
type Command struct {
	Verb string
	Arg  string
}

// Parse splits line on its first space.  Everything after that space is
// the argument, spaces included; there is no quoting or escaping.
func Parse(line string) Command {
	line = strings.TrimRight(line, "\r\n")
	verb, arg, _ := strings.Cut(line, " ")
	return Command{Verb: verb, Arg: arg}
}

// String re-encodes the command as a line.
func (c Command) String() string {
	if c.Arg == "" {
		return c.Verb
	}
	return c.Verb + " " + c.Arg
}

// HandlerFunc executes one command.
type HandlerFunc func(ctx context.Context, cmd Command) error

// Router maps verbs to handlers.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Handle registers fn for verb, replacing any earlier registration.
func (r *Router) Handle(verb string, fn HandlerFunc) {
	r.handlers[verb] = fn
}

// Dispatch runs the handler for cmd.Verb.  An unregistered verb yields
// a *errors.ProtocolError.
func (r *Router) Dispatch(ctx context.Context, cmd Command) error {
	fn, ok := r.handlers[cmd.Verb]
	if !ok {
		return &errors.ProtocolError{Verb: cmd.Verb}
	}
	return fn(ctx, cmd)
}
