package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"pcremote/tunnel"
	"pcremote/util"
)

// SSHDialer routes connections through an SSH tunnel.  The tunnel is
// connected lazily on the first Dial and re-established if the gateway
// dropped it between commands.
type SSHDialer struct {
	tunnel tunnel.Tunnel
	logger *util.Logger
	mu     sync.Mutex
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH jump host.  Nothing is dialed until the first Dial.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return NewTunnelDialer(tunnel.NewSSHTunnel(cfg, logger), logger)
}

// NewTunnelDialer wraps an existing Tunnel implementation.
func NewTunnelDialer(t tunnel.Tunnel, logger *util.Logger) *SSHDialer {
	if logger == nil {
		logger = util.Nop()
	}
	return &SSHDialer{tunnel: t, logger: logger}
}

// connect establishes the tunnel if it is not currently alive.
func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tunnel.IsAlive() {
		return nil
	}

	d.logger.Verbose("establishing SSH tunnel")
	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	return nil
}

// Dial connects to address through the SSH tunnel.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunnel.Close()
}
