// Package cmd wires up the CLI flags and dispatches to the rfs modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"rfs/config"
	"rfs/internal/core"
	"rfs/internal/errors"
	"rfs/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X rfs/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// options are the flags that steer the CLI itself rather than rfs.
type options struct {
	configPath  string
	envFile     string
	dryRun      bool
	showVersion bool
	showHelp    bool
	verbosity   int
}

// Execute parses args and runs the selected rfs mode.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
}

func execute(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, interactive bool) error {
	// Phase 1: find --config / --env-file and the early exits.
	var o options
	pre := newFlagSet(config.Defaults(), &o)
	if err := pre.Parse(args); err != nil {
		return err
	}
	if o.showHelp || len(args) == 0 {
		printUsage(pre)
		return nil
	}
	if o.showVersion {
		fmt.Fprintf(stdout, "rfs %s\n", version)
		return nil
	}

	// Phase 2: defaults < file < env < flags.
	cfg, err := load(o)
	if err != nil {
		return err
	}
	fs := newFlagSet(cfg, &o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.Changed("verbose") {
		cfg.Verbose = o.verbosity
	}
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	if interactive && needsPrompt(cfg) {
		if err := newPrompter(stdin, stdout, cfg).run(); err != nil {
			return err
		}
	}

	if err := cfg.Resolve(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if o.dryRun {
		return dumpConfig(stdout, cfg)
	}

	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

func newFlagSet(cfg *config.Config, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("rfs", flag.ContinueOnError)

	// ── server / target ──────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Serve a directory (server mode)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Port to bind (server) or dial (client)")
	fs.StringVarP(&cfg.Root, "root", "r", cfg.Root, "Directory exposed to clients")
	fs.IntVar(&cfg.MaxClients, "max-clients", cfg.MaxClients, "Concurrent sessions (0 = unlimited)")
	fs.IntVar(&cfg.PortMin, "port-min", cfg.PortMin, "Lowest accepted port")
	fs.IntVar(&cfg.PortMax, "port-max", cfg.PortMax, "Highest accepted port")

	// ── client ───────────────────────────────────────────────────
	fs.StringVarP(&cfg.DownloadDir, "download-dir", "d", cfg.DownloadDir, "Where downloads are stored")
	fs.IntVarP(&cfg.Timeout, "timeout", "w", cfg.Timeout, "Dial timeout in seconds")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Dial attempts")
	fs.IntVarP(&cfg.SourcePort, "source-port", "s", cfg.SourcePort, "Local port to dial from (0 = ephemeral)")

	// ── SSH jump host ────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Reach the server via SSH [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")
	fs.IntVar(&cfg.KeepAlive, "ssh-keepalive", cfg.KeepAlive, "SSH keepalive interval in seconds (0 = off)")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&o.verbosity, "verbose", "v", "Increase verbosity (repeatable)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: console or json")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also append logs to this file")

	// ── CLI ──────────────────────────────────────────────────────
	fs.StringVar(&o.configPath, "config", o.configPath, "YAML config file (default $RFS_CONFIG)")
	fs.StringVar(&o.envFile, "env-file", o.envFile, "Load RFS_* variables from a dotenv file")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Print the resolved configuration and exit")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&o.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }
	return fs
}

// load builds the configuration that flags are parsed on top of.
func load(o options) (*config.Config, error) {
	if o.envFile != "" {
		if err := config.LoadEnvFile(o.envFile); err != nil {
			return nil, err
		}
	}

	cfg := config.Defaults()
	path := o.configPath
	if path == "" {
		path = os.Getenv("RFS_CONFIG")
	}
	if path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional reads "HOST [PORT]" for both modes.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
	case 1:
		cfg.Host = remaining[0]
	case 2:
		cfg.Host = remaining[0]
		port, err := strconv.Atoi(remaining[1])
		if err != nil {
			return &errors.ConfigError{Field: "port", Value: remaining[1], Message: "not a number"}
		}
		cfg.Port = port
	default:
		return &errors.ConfigError{Field: "host", Value: remaining[2:], Message: "too many arguments",
			Hint: "rfs [options] <host> <port>"}
	}
	return nil
}

func buildLogger(cfg *config.Config) (*util.Logger, func(), error) {
	logger := util.NewLogger(cfg.Verbose)
	logger.SetJSON(cfg.LogFormat == config.LogFormatJSON)

	if cfg.LogFile == "" {
		return logger, func() {}, nil
	}
	f, err := util.OpenLogFile(cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	logger.SetTimestamps(true)
	logger.SetOutput(io.MultiWriter(os.Stderr, f))
	return logger, func() { f.Close() }, nil
}

func dumpConfig(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("dry-run: %w", err)
	}
	return enc.Close()
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `rfs – remote filesystem over TCP v%s

Serve a directory to many clients, or browse one from the command line.

Usage:
  rfs -l -p <port> [options] [host]           Serve the current directory
  rfs [options] <host> <port>                 Connect
  rfs -T user@gateway <host> <port>           Connect through an SSH jump host

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Client commands:
  ls | mkdir <dir> | cd <dir> | upload <file> | download <file> | delete <path> | exit

Examples:
  rfs -l -p 5000 -r /srv/share                Serve /srv/share on port 5000
  rfs 192.168.1.20 5000                       Connect to a server
  rfs --config rfs.yaml -vv                   Settings from a file, verbose logs
`)
}
