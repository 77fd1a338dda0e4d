package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"rfs/internal/command"
)

// Prompt is printed before each command when prompting is enabled.
const Prompt = "Enter your command: "

// Interact reads one command per line from in and runs it, printing
// responses to out.  It stops at exit, at the end of in, or when ctx
// is cancelled, and closes the client on the way out.
func (c *Client) Interact(ctx context.Context, in io.Reader, out io.Writer, prompt bool) error {
	defer c.Close()

	// Cancellation must not wait for the next line of input.
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		scanErr <- sc.Err()
	}()

	fmt.Fprintln(out, "Message from server: "+c.Greeting)
	for {
		if prompt {
			fmt.Fprint(out, Prompt)
		}

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Disconnected")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out, "Disconnected")
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if command.Parse(line).Verb == command.Exit {
			fmt.Fprintln(out, "Disconnected")
			return nil
		}
		if err := c.Run(line, out); err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(out, "Disconnected")
				return nil
			}
			return err
		}
	}
}
