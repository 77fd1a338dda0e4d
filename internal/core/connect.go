package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"rfs/internal/client"
	"rfs/internal/transport"
	"rfs/util"
)

// ConnectMode dials an rfs server and runs the interactive command
// loop over stdin and stdout.
type ConnectMode struct {
	Dialer  transport.Dialer
	Address string
	Options client.Options
	// Prompt prints "Enter your command: " before each line.
	Prompt bool
	Logger *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run connects, prints the banner and hands the terminal to the REPL.
// The dialer is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	m.Logger.Verbose("connecting to %s", m.Address)

	c, err := client.Dial(ctx, m.Dialer, m.Address, m.Options)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", m.Address, err)
	}

	fmt.Fprintf(m.stdout(), "Connected to the server [%s]\n", m.Address)
	return c.Interact(ctx, m.stdin(), m.stdout(), m.Prompt)
}
