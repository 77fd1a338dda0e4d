package core

import (
	"os"
	"time"

	"golang.org/x/term"

	"rfs/config"
	"rfs/internal/client"
	"rfs/internal/metrics"
	"rfs/internal/retry"
	"rfs/internal/server"
	"rfs/internal/transport"
	"rfs/tunnel"
	"rfs/util"
)

// Build constructs the Mode selected by cfg.  cfg must already be
// resolved and validated.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.Listen {
		return buildServe(cfg, logger), nil
	}
	return buildConnect(cfg, logger), nil
}

func buildServe(cfg *config.Config, logger *util.Logger) Mode {
	return &ServeMode{
		Address: util.FormatAddr(cfg.Host, cfg.Port),
		Options: server.Options{
			Root:       cfg.Root,
			MaxClients: cfg.MaxClients,
			Logger:     logger,
			Metrics:    metrics.New(),
		},
		Logger: logger,
	}
}

func buildConnect(cfg *config.Config, logger *util.Logger) Mode {
	b := retry.DefaultBackoff()
	b.MaxAttempts = cfg.Retries

	return &ConnectMode{
		Dialer:  buildDialer(cfg, logger),
		Address: util.FormatAddr(cfg.Host, cfg.Port),
		Options: client.Options{
			DownloadDir: cfg.DownloadDir,
			Backoff:     b,
			Logger:      logger,
		},
		Prompt: term.IsTerminal(int(os.Stdin.Fd())),
		Logger: logger,
	}
}

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.DialTimeout(),
			KeepAlive:     time.Duration(cfg.KeepAlive) * time.Second,
		}, logger)
	}

	return &transport.TCPDialer{Timeout: cfg.DialTimeout(), LocalPort: cfg.SourcePort}
}
