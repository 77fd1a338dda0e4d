package config

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultPortMin and DefaultPortMax bound the ports rfs accepts.
	DefaultPortMin = 5000
	DefaultPortMax = 5500

	// DefaultTimeout is the client dial timeout in seconds.
	DefaultTimeout = 30

	// DefaultRetries is how many times the client tries to dial.
	DefaultRetries = 3

	// DefaultKeepAlive is the SSH keepalive interval in seconds.
	DefaultKeepAlive = 30

	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	return &Config{
		Root:      ".",
		Timeout:   DefaultTimeout,
		Retries:   DefaultRetries,
		KeepAlive: DefaultKeepAlive,
		LogFormat: LogFormatConsole,
		PortMin:   DefaultPortMin,
		PortMax:   DefaultPortMax,
	}
}
