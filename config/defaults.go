package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultImagePort is the PC companion's auxiliary image port.
	DefaultImagePort = 116

	// DefaultConnectTimeout bounds socket establishment.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultCommunicateTimeout bounds the read phase of one command.
	DefaultCommunicateTimeout = 6 * time.Second

	// DefaultSSHTimeout bounds the SSH handshake with a jump host.
	DefaultSSHTimeout = 30 * time.Second

	// DefaultServeTimeout is the per-connection deadline in serve mode.
	DefaultServeTimeout = 30 * time.Second

	// DefaultShutdownGrace is how long a run waits for queued commands
	// after an interrupt.
	DefaultShutdownGrace = 5 * time.Second

	// DefaultConnectLine, DefaultDisconnectLine and DefaultImageLine are
	// the sentinels the PC companion understands.
	DefaultConnectLine    = "CONNECT"
	DefaultDisconnectLine = "DISCONNECT"
	DefaultImageLine      = "#readImage#"
)

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		ImagePort:          DefaultImagePort,
		ConnectTimeout:     DefaultConnectTimeout,
		CommunicateTimeout: DefaultCommunicateTimeout,
		ConnectLine:        DefaultConnectLine,
		DisconnectLine:     DefaultDisconnectLine,
		ImageLine:          DefaultImageLine,
	}
}
