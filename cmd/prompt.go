package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"rfs/config"
	"rfs/util"
)

// needsPrompt reports whether a required address part is missing.
// The server only needs a port; an empty host binds every interface.
func needsPrompt(cfg *config.Config) bool {
	if cfg.Listen {
		return cfg.Port == 0
	}
	return cfg.Host == "" || cfg.Port == 0
}

// prompter asks for the server address on a terminal, repeating each
// question until the answer is usable.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
	cfg *config.Config
}

func newPrompter(in io.Reader, out io.Writer, cfg *config.Config) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out, cfg: cfg}
}

func (p *prompter) run() error {
	if !p.cfg.Listen && p.cfg.Host == "" {
		host, err := p.ask("Enter the IP address of your server:  ",
			"Invalid IP address! Please enter a value in the form x.x.x.x with a size of 1 byte: ",
			util.IsIPv4)
		if err != nil {
			return err
		}
		p.cfg.Host = host
	}

	if p.cfg.Port == 0 || !p.cfg.InPortRange(p.cfg.Port) {
		invalid := fmt.Sprintf("Invalid port! Please enter a value between %d and %d: ", p.cfg.PortMin, p.cfg.PortMax)
		port, err := p.ask("Enter the port address of your server: ", invalid, func(s string) bool {
			n, err := strconv.Atoi(s)
			return err == nil && p.cfg.InPortRange(n)
		})
		if err != nil {
			return err
		}
		p.cfg.Port, _ = strconv.Atoi(port)
	}
	return nil
}

func (p *prompter) ask(question, retry string, valid func(string) bool) (string, error) {
	fmt.Fprintln(p.out, question)
	for p.in.Scan() {
		answer := strings.TrimSpace(p.in.Text())
		if valid(answer) {
			return answer, nil
		}
		fmt.Fprintln(p.out, retry)
	}
	if err := p.in.Err(); err != nil {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return "", io.ErrUnexpectedEOF
}
