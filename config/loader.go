package config

// loader.go - configuration loading from files and the environment.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables, including a --env-file
//   3. YAML config file
//   4. Defaults   (defaults.go)

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rfs/internal/errors"
)

// LoadFile overlays the YAML document at path onto cfg.  Keys that are
// not Config fields are rejected so typos do not pass silently.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return &errors.ConfigError{Field: "config", Value: path, Message: err.Error(),
			Hint: "see the yaml keys listed in --help"}
	}
	return nil
}

// LoadEnvFile loads KEY=value pairs from a dotenv file into the process
// environment.  Variables that are already set keep their values.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file: %w", err)
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the RFS_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.
func LoadFromEnv(cfg *Config) error {
	if envBool("RFS_LISTEN") {
		cfg.Listen = true
	}
	if v := os.Getenv("RFS_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("RFS_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("RFS_DOWNLOAD_DIR"); v != "" {
		cfg.DownloadDir = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"RFS_PORT", &cfg.Port},
		{"RFS_MAX_CLIENTS", &cfg.MaxClients},
		{"RFS_TIMEOUT", &cfg.Timeout},
		{"RFS_RETRIES", &cfg.Retries},
		{"RFS_SOURCE_PORT", &cfg.SourcePort},
		{"RFS_SSH_KEEPALIVE", &cfg.KeepAlive},
		{"RFS_VERBOSE", &cfg.Verbose},
		{"RFS_PORT_MIN", &cfg.PortMin},
		{"RFS_PORT_MAX", &cfg.PortMax},
	}
	for _, e := range ints {
		if err := envInt(e.key, e.dst); err != nil {
			return err
		}
	}

	// SSH jump host
	if v := os.Getenv("RFS_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("RFS_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("RFS_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("RFS_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("RFS_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("RFS_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := os.Getenv("RFS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv("RFS_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		field := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, "RFS_"), "_", "-"))
		return &errors.ConfigError{Field: field, Value: v, Message: key + " is not an integer"}
	}
	*dst = n
	return nil
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}
