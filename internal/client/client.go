// Package client is the user side of rfs: it dials a server, issues
// commands, streams uploads and downloads, and prints every response
// up to the completion marker.
package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"

	"rfs/internal/command"
	"rfs/internal/errors"
	"rfs/internal/protocol"
	"rfs/internal/retry"
	"rfs/internal/transfer"
	"rfs/internal/transport"
	"rfs/util"
)

// Options configures a Client.
type Options struct {
	// DownloadDir receives downloaded files.  Empty means the working
	// directory.
	DownloadDir string
	// Backoff controls dial retries.  Nil means retry.DefaultBackoff.
	Backoff *retry.Backoff
	Logger  *util.Logger
}

// Client is one connection to an rfs server.
type Client struct {
	// Greeting is the server's first frame.
	Greeting string

	conn        net.Conn
	ch          *protocol.Channel
	downloadDir string
	logger      *util.Logger
	closeOnce   sync.Once
}

// Dial connects to addr through d, retrying refused or timed-out
// dials, and reads the server greeting.
func Dial(ctx context.Context, d transport.Dialer, addr string, opts Options) (*Client, error) {
	b := opts.Backoff
	if b == nil {
		b = retry.DefaultBackoff()
	}
	logger := loggerOrDefault(opts.Logger)

	var conn net.Conn
	err := b.Do(ctx, func(attempt int) error {
		c, err := d.Dial(ctx, "tcp", addr)
		if err != nil {
			ce := errors.Wrap("dial", addr, err)
			if !errors.IsRetryable(ce) || ctx.Err() != nil {
				return retry.Permanent(ce)
			}
			logger.Verbose("dial %s failed (attempt %d): %v", addr, attempt, err)
			return ce
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return New(conn, opts)
}

// New wraps an established connection and reads the greeting.  The
// connection is closed if the greeting cannot be read.
func New(conn net.Conn, opts Options) (*Client, error) {
	c := &Client{
		conn:        conn,
		ch:          protocol.NewChannel(conn, nil),
		downloadDir: opts.DownloadDir,
		logger:      loggerOrDefault(opts.Logger),
	}
	if c.downloadDir == "" {
		c.downloadDir = "."
	}

	greeting, err := c.ch.ReadText()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	c.Greeting = greeting
	c.logger.Verbose("connected to %s", c.ch.RemoteAddr())
	return c, nil
}

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() string { return c.ch.RemoteAddr() }

// Exec sends line as a command and copies the responses to out.
func (c *Client) Exec(line string, out io.Writer) error {
	if err := c.ch.WriteText(line); err != nil {
		return err
	}
	return c.printResponses(out)
}

// Upload sends a local file under its base name.  A missing local file
// is reported on out and nothing is sent.
func (c *Client) Upload(localPath string, out io.Writer) error {
	src, err := transfer.Open(localPath)
	if err != nil {
		fmt.Fprintln(out, "File doesn't exist")
		c.logger.Debug("upload: %v", err)
		return nil
	}
	defer src.Close()

	if err := c.ch.WriteText(command.Command{Verb: command.Upload, Arg: filepath.Base(localPath)}.String()); err != nil {
		return err
	}
	if err := src.Send(c.ch); err != nil {
		return err
	}
	c.logger.Verbose("sent %s (%d bytes)", localPath, src.Size())
	return c.printResponses(out)
}

// Download requests name and stores it in the download directory under
// its base name.  A local write failure is reported on out; the payload
// is still consumed.
func (c *Client) Download(name string, out io.Writer) error {
	if err := c.ch.WriteText(command.Command{Verb: command.Download, Arg: name}.String()); err != nil {
		return err
	}
	probe, err := c.ch.ReadText()
	if err != nil {
		return err
	}
	if probe != protocol.ProbeSending {
		fmt.Fprintln(out, probe)
		return c.printResponses(out)
	}

	dst := filepath.Join(c.downloadDir, filepath.Base(name))
	n, err := transfer.ReceiveFile(c.ch, dst)
	switch {
	case errors.IsIO(err):
		fmt.Fprintf(out, "Error saving %s: %v\n", dst, err)
	case err != nil:
		return err
	default:
		c.logger.Verbose("received %s (%d bytes)", dst, n)
	}
	return c.printResponses(out)
}

// Run executes one REPL line.  upload and download move file contents;
// everything else, including unknown verbs, goes to the server as is.
func (c *Client) Run(line string, out io.Writer) error {
	cmd := command.Parse(line)
	switch cmd.Verb {
	case command.Upload:
		return c.Upload(cmd.Arg, out)
	case command.Download:
		return c.Download(cmd.Arg, out)
	case command.Exit:
		return c.Close()
	default:
		return c.Exec(cmd.String(), out)
	}
}

// Close tells the server the session is over and closes the
// connection.  It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.ch.WriteText(command.Exit)
		err = c.conn.Close()
	})
	return err
}

// printResponses copies text frames to out until the completion marker.
func (c *Client) printResponses(out io.Writer) error {
	for {
		text, err := c.ch.ReadText()
		if err != nil {
			return err
		}
		if text == protocol.CompletionMarker {
			return nil
		}
		fmt.Fprintln(out, text)
	}
}

func loggerOrDefault(l *util.Logger) *util.Logger {
	if l != nil {
		return l
	}
	return util.NewLogger(int(util.LogQuiet))
}
