// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"pcremote/config"
	"pcremote/internal/core"
	"pcremote/internal/metrics"
	"pcremote/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X pcremote/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the appropriate pcremote mode.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fv := config.Defaults() // flag values; applied only when set
	fs := flag.NewFlagSet("pcremote", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── endpoint ─────────────────────────────────────────────────
	fs.IntVar(&fv.ImagePort, "image-port", fv.ImagePort, "Auxiliary port for image fetches")
	fs.DurationVar(&fv.ConnectTimeout, "connect-timeout", fv.ConnectTimeout, "Bound on connection establishment")
	fs.DurationVarP(&fv.CommunicateTimeout, "timeout", "w", fv.CommunicateTimeout, "Bound on reading each response")
	fs.BoolVarP(&fv.NoDNS, "no-dns", "n", false, "Numeric-only, no DNS resolution")
	fs.IntVarP(&fv.LocalPort, "port", "p", 0, "Listen port (with -l) or local source port")

	// ── commands ─────────────────────────────────────────────────
	fs.IntVar(&fv.Retries, "retries", 0, "Extra attempts for connect errors and timeouts")
	fs.StringVarP(&fv.Output, "output", "o", "", "Write image data to file (- for stdout)")

	// ── serve ────────────────────────────────────────────────────
	fs.BoolVarP(&fv.Listen, "listen", "l", false, "Serve as a stand-in PC companion")
	fs.StringVar(&fv.ImageFile, "image-file", "", "Image served on --image-port (with -l)")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&fv.TunnelSpec, "tunnel", "T", "", "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&fv.SSHKeyPath, "ssh-key", "", "SSH private key file")
	fs.BoolVar(&fv.SSHPassword, "ssh-password", false, "Prompt for SSH password")
	fs.BoolVar(&fv.UseSSHAgent, "ssh-agent", false, "Use SSH agent")
	fs.BoolVar(&fv.StrictHostKey, "strict-hostkey", false, "Verify SSH host keys")
	fs.StringVar(&fv.KnownHostsPath, "known-hosts", "", "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&fv.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.StringVar(&fv.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.BoolVar(&fv.Stats, "stats", false, "Print a JSON metrics snapshot on exit")
	fs.BoolVar(&fv.DryRun, "dry-run", false, "Validate configuration and exit")

	var configPath string
	fs.StringVar(&configPath, "config", "", "YAML configuration file")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(stderr, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(stderr, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "pcremote %s\n", version)
		return nil
	}

	// ── layer: defaults → file → env → flags ─────────────────────
	cfg := config.Defaults()
	if configPath != "" {
		if err := config.LoadFile(configPath, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)
	applyFlags(fs, fv, cfg)

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		fmt.Fprintln(stderr, describe(cfg))
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)
	collector := metrics.New()

	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, collector, logger)
		if err != nil {
			return err
		}
		defer stop()
	}
	if cfg.Stats {
		defer func() { fmt.Fprintln(stderr, collector.JSON()) }()
	}

	mode, err := core.Build(cfg, logger, collector)
	if err != nil {
		return err
	}
	if rm, ok := mode.(*core.RunMode); ok {
		rm.Stdout = stdout
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// applyFlags copies every explicitly set flag from fv onto cfg, so
// flags override the file and environment but defaults do not.
func applyFlags(fs *flag.FlagSet, fv, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "image-port":
			cfg.ImagePort = fv.ImagePort
		case "connect-timeout":
			cfg.ConnectTimeout = fv.ConnectTimeout
		case "timeout":
			cfg.CommunicateTimeout = fv.CommunicateTimeout
		case "no-dns":
			cfg.NoDNS = fv.NoDNS
		case "port":
			cfg.LocalPort = fv.LocalPort
		case "retries":
			cfg.Retries = fv.Retries
		case "output":
			cfg.Output = fv.Output
		case "listen":
			cfg.Listen = fv.Listen
		case "image-file":
			cfg.ImageFile = fv.ImageFile
		case "tunnel":
			cfg.TunnelSpec = fv.TunnelSpec
		case "ssh-key":
			cfg.SSHKeyPath = fv.SSHKeyPath
		case "ssh-password":
			cfg.SSHPassword = fv.SSHPassword
		case "ssh-agent":
			cfg.UseSSHAgent = fv.UseSSHAgent
		case "strict-hostkey":
			cfg.StrictHostKey = fv.StrictHostKey
		case "known-hosts":
			cfg.KnownHostsPath = fv.KnownHostsPath
		case "verbose":
			cfg.Verbose = fv.Verbose
		case "metrics-addr":
			cfg.MetricsAddr = fv.MetricsAddr
		case "stats":
			cfg.Stats = fv.Stats
		case "dry-run":
			cfg.DryRun = fv.DryRun
		}
	})
}

// parsePositional reads "<host> <port> <verb>..." in run mode.  Host
// and port may be omitted when the file or environment supplies both.
func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		if len(remaining) > 0 {
			return fmt.Errorf("serve mode takes no positional arguments")
		}
		return nil
	}

	if len(remaining) >= 2 && !isVerb(remaining[0]) {
		cfg.Host = remaining[0]
		port, err := parsePort(remaining[1])
		if err != nil {
			return err
		}
		cfg.Port = port
		remaining = remaining[2:]
	}

	verbs, err := config.ParseVerbs(remaining)
	if err != nil {
		return err
	}
	cfg.Verbs = verbs
	return nil
}

func isVerb(s string) bool {
	switch strings.ToLower(s) {
	case config.VerbConnect, config.VerbDisconnect, config.VerbImage, config.VerbAction:
		return true
	}
	return false
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}

// serveMetrics exposes the collector on addr/metrics until stop is
// called.
func serveMetrics(addr string, c *metrics.Collector, logger *util.Logger) (stop func(), err error) {
	h, err := metrics.Handler(c)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server: %v", err)
		}
	}()
	logger.Verbose("metrics on http://%s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx) //nolint:errcheck
	}, nil
}

// describe summarises a validated config for --dry-run.
func describe(cfg *config.Config) string {
	if cfg.Listen {
		s := fmt.Sprintf("serve on :%d", cfg.LocalPort)
		if cfg.ImageFile != "" {
			s += fmt.Sprintf(", image %s on :%d", cfg.ImageFile, cfg.ImagePort)
		}
		return s
	}
	verbs := make([]string, len(cfg.Verbs))
	for i, v := range cfg.Verbs {
		verbs[i] = v.String()
	}
	s := fmt.Sprintf("run %s against %s (image port %d, connect %v, timeout %v)",
		strings.Join(verbs, ", "), util.FormatAddr(cfg.Host, cfg.Port),
		cfg.ImagePort, cfg.ConnectTimeout, cfg.CommunicateTimeout)
	if cfg.TunnelEnabled {
		s += fmt.Sprintf(" via %s", util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
	}
	return s
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `pcremote – remote control client for a PC companion v%s

Usage:
  pcremote [options] <host> <port> <verb>...   Run commands in order
  pcremote -l -p <port> [options]              Serve as a stand-in PC
  pcremote -T user@gateway <host> <port> ...   Reach the PC through SSH

Verbs:
  connect             send the connect sentinel
  disconnect          send the disconnect sentinel
  action <text>       send text verbatim
  image               fetch the clipboard image from --image-port

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  pcremote 192.168.1.20 8000 connect                  Handshake
  pcremote 192.168.1.20 8000 action "volume up"       Send an action
  pcremote -o clip.png 192.168.1.20 8000 image        Save the clipboard image
  pcremote -l -p 8000 --image-port 9116 --image-file clip.png
`)
}
