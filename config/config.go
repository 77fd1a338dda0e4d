// Package config defines the runtime configuration for rfs and the
// helpers that fill it from a YAML file, the environment and flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"rfs/internal/errors"
	"rfs/util"
)

// Config holds every tuneable for one rfs process.
type Config struct {
	// ── Server / target ──────────────────────────────────────────────
	Listen     bool   `yaml:"listen"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Root       string `yaml:"root"`
	MaxClients int    `yaml:"max_clients"`

	// ── Client ───────────────────────────────────────────────────────
	DownloadDir string `yaml:"download_dir"`
	Timeout     int    `yaml:"timeout"` // dial timeout, seconds
	Retries     int    `yaml:"retries"`
	SourcePort  int    `yaml:"source_port"` // 0 = ephemeral

	// ── SSH jump host ────────────────────────────────────────────────
	TunnelSpec     string `yaml:"tunnel"` // [user@]host[:port]
	SSHKeyPath     string `yaml:"ssh_key"`
	SSHPassword    bool   `yaml:"ssh_password"`
	UseSSHAgent    bool   `yaml:"ssh_agent"`
	StrictHostKey  bool   `yaml:"strict_hostkey"`
	KnownHostsPath string `yaml:"known_hosts"`
	KeepAlive      int    `yaml:"ssh_keepalive"` // seconds, 0 = off

	TunnelEnabled bool   `yaml:"-"`
	TunnelUser    string `yaml:"-"`
	TunnelHost    string `yaml:"-"`
	TunnelPort    int    `yaml:"-"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose   int    `yaml:"verbose"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`

	// ── Accepted port range ──────────────────────────────────────────
	PortMin int `yaml:"port_min"`
	PortMax int `yaml:"port_max"`
}

// DialTimeout returns Timeout as a duration.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// InPortRange reports whether p lies in [PortMin, PortMax].
func (c *Config) InPortRange(p int) bool {
	return p >= c.PortMin && p <= c.PortMax
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q, expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// Resolve fills the derived fields: the tunnel parts and an absolute
// root.  It runs after every source has been applied.
func (c *Config) Resolve() error {
	if c.TunnelSpec != "" {
		user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
		if err != nil {
			return &errors.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: err.Error(),
				Hint: "use --tunnel user@gateway[:port]"}
		}
		if user == "" {
			user = os.Getenv("USER")
		}
		c.TunnelEnabled = true
		c.TunnelUser, c.TunnelHost, c.TunnelPort = user, host, port
	}

	if c.Root == "" {
		c.Root = "."
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return &errors.ConfigError{Field: "root", Value: c.Root, Message: err.Error()}
	}
	c.Root = abs
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Every failure is a *errors.ConfigError.
func (c *Config) Validate() error {
	if c.PortMin < 1 || c.PortMax > 65535 || c.PortMin > c.PortMax {
		return &errors.ConfigError{
			Field:   "port-min",
			Value:   fmt.Sprintf("%d-%d", c.PortMin, c.PortMax),
			Message: "invalid port range",
			Hint:    "port_min and port_max must satisfy 1 <= port_min <= port_max <= 65535",
		}
	}

	if c.Host != "" && !util.IsIPv4(c.Host) {
		return &errors.ConfigError{
			Field:   "host",
			Value:   c.Host,
			Message: "not an IPv4 address",
			Hint:    "enter a value in the form x.x.x.x with each part between 0 and 255",
		}
	}

	if c.Port == 0 {
		return &errors.ConfigError{
			Field:   "port",
			Message: "port is required",
			Hint:    fmt.Sprintf("use -p <port> with a port between %d and %d", c.PortMin, c.PortMax),
		}
	}
	if !c.InPortRange(c.Port) {
		return &errors.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "port out of range",
			Hint:    fmt.Sprintf("use a port between %d and %d", c.PortMin, c.PortMax),
		}
	}

	if c.Listen {
		if err := c.validateServer(); err != nil {
			return err
		}
	} else if err := c.validateClient(); err != nil {
		return err
	}

	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		return &errors.ConfigError{
			Field:   "log-format",
			Value:   c.LogFormat,
			Message: "unknown log format",
			Hint:    "use console or json",
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	info, err := os.Stat(c.Root)
	switch {
	case err != nil:
		return &errors.ConfigError{Field: "root", Value: c.Root, Message: "cannot be served: " + err.Error(),
			Hint: "point -r at an existing directory"}
	case !info.IsDir():
		return &errors.ConfigError{Field: "root", Value: c.Root, Message: "not a directory",
			Hint: "point -r at an existing directory"}
	}

	if c.MaxClients < 0 {
		return &errors.ConfigError{Field: "max-clients", Value: c.MaxClients, Message: "must not be negative",
			Hint: "use 0 for no limit"}
	}
	if c.TunnelEnabled {
		return &errors.ConfigError{Field: "tunnel", Value: c.TunnelSpec,
			Message: "the SSH jump host is only used when connecting",
			Hint:    "drop -T when running with -l"}
	}
	return nil
}

func (c *Config) validateClient() error {
	if c.Host == "" {
		return &errors.ConfigError{Field: "host", Message: "server address is required",
			Hint: "rfs <host> <port>"}
	}
	if c.Timeout < 0 {
		return &errors.ConfigError{Field: "timeout", Value: c.Timeout, Message: "must not be negative"}
	}
	if c.SourcePort < 0 || c.SourcePort > 65535 {
		return &errors.ConfigError{Field: "source-port", Value: c.SourcePort, Message: "invalid source port",
			Hint: "use 0 for an ephemeral port or a value up to 65535"}
	}
	if c.Retries < 1 {
		return &errors.ConfigError{Field: "retries", Value: c.Retries, Message: "at least one dial attempt is needed",
			Hint: fmt.Sprintf("the default is %d", DefaultRetries)}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &errors.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	if c.KeepAlive < 0 {
		return &errors.ConfigError{Field: "ssh-keepalive", Value: c.KeepAlive, Message: "must not be negative",
			Hint: "use 0 to disable keepalives"}
	}
	return nil
}
