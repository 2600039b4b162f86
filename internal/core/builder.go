package core

import (
	"fmt"

	"pcremote/config"
	"pcremote/internal/command"
	"pcremote/internal/metrics"
	"pcremote/internal/peer"
	"pcremote/internal/retry"
	"pcremote/internal/session"
	"pcremote/internal/transport"
	"pcremote/tunnel"
	"pcremote/util"
)

// Build constructs the appropriate Mode from the given configuration.
// m may be nil.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	if cfg.Listen {
		return buildServe(cfg, logger)
	}
	return buildRun(cfg, logger, m)
}

// ── mode builders ────────────────────────────────────────────────────

func buildRun(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	if err := util.CheckHost(cfg.Host, cfg.NoDNS); err != nil {
		return nil, err
	}

	cmds, err := buildCommands(cfg.Verbs)
	if err != nil {
		return nil, err
	}

	return &RunMode{
		Options: session.Options{
			Dialer:             buildDialer(cfg, logger),
			Dispatcher:         buildDispatcher(cfg),
			ConnectTimeout:     cfg.ConnectTimeout,
			CommunicateTimeout: cfg.CommunicateTimeout,
			Logger:             logger,
			Metrics:            m,
		},
		Host:     cfg.Host,
		Port:     cfg.Port,
		Commands: cmds,
		Retries:  cfg.Retries,
		Backoff:  retry.DefaultBackoff(),
		Output:   cfg.Output,
		Logger:   logger,
	}, nil
}

func buildServe(cfg *config.Config, logger *util.Logger) (Mode, error) {
	srv := &peer.Server{
		Addr:      fmt.Sprintf(":%d", cfg.LocalPort),
		ImageLine: cfg.ImageLine,
		Respond:   peer.NewResponder(cfg.ConnectLine, cfg.DisconnectLine),
		Timeout:   config.DefaultServeTimeout,
		Logger:    logger,
	}
	if cfg.ImageFile != "" {
		srv.ImageAddr = fmt.Sprintf(":%d", cfg.ImagePort)
		srv.Image = peer.ImageFile(cfg.ImageFile)
	}
	return &ServeMode{Server: srv}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

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
			ConnTimeout:   config.DefaultSSHTimeout,
		}, logger)
	}

	return &transport.TCPDialer{LocalPort: cfg.LocalPort}
}

// buildDispatcher applies the configured sentinels and image port.
func buildDispatcher(cfg *config.Config) *command.Dispatcher {
	d := command.NewDispatcher()
	if cfg.ConnectLine != "" {
		d.ConnectLine = cfg.ConnectLine
	}
	if cfg.DisconnectLine != "" {
		d.DisconnectLine = cfg.DisconnectLine
	}
	if cfg.ImageLine != "" {
		d.ImageLine = cfg.ImageLine
	}
	if cfg.ImagePort > 0 {
		d.ImagePort = cfg.ImagePort
	}
	return d
}

// buildCommands maps CLI verbs to commands.
func buildCommands(verbs []config.Verb) ([]command.Command, error) {
	out := make([]command.Command, 0, len(verbs))
	for _, v := range verbs {
		switch v.Name {
		case config.VerbConnect:
			out = append(out, command.NewConnect())
		case config.VerbDisconnect:
			out = append(out, command.NewDisconnect())
		case config.VerbImage:
			out = append(out, command.NewFetchImage())
		case config.VerbAction:
			out = append(out, command.NewAction(v.Arg))
		default:
			return nil, fmt.Errorf("unknown verb %q", v.Name)
		}
	}
	return out, nil
}
