// Package config defines the runtime configuration for pcremote and
// provides helpers for parsing tunnel specifications and command verbs.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds every tuneable for one pcremote run.
type Config struct {
	// ── Endpoint ─────────────────────────────────────────────────────
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	ImagePort int    `yaml:"image_port"`
	LocalPort int    `yaml:"local_port"` // connect: source port; serve: -p listen port
	NoDNS     bool   `yaml:"no_dns"`

	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	CommunicateTimeout time.Duration `yaml:"timeout"`

	// ── Wire sentinels ───────────────────────────────────────────────
	ConnectLine    string `yaml:"connect_line"`
	DisconnectLine string `yaml:"disconnect_line"`
	ImageLine      string `yaml:"image_line"`

	// ── Commands ─────────────────────────────────────────────────────
	Verbs   []Verb `yaml:"-"`
	Retries int    `yaml:"retries"`
	Output  string `yaml:"output"` // image destination; "-" is stdout

	// ── Serve mode ───────────────────────────────────────────────────
	Listen    bool   `yaml:"listen"`
	ImageFile string `yaml:"image_file"`

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string `yaml:"tunnel"` // raw user@host[:port] from -T
	TunnelEnabled  bool   `yaml:"-"`
	TunnelUser     string `yaml:"-"`
	TunnelHost     string `yaml:"-"`
	TunnelPort     int    `yaml:"-"`
	SSHKeyPath     string `yaml:"ssh_key"`
	SSHPassword    bool   `yaml:"ssh_password"` // true → prompt interactively
	UseSSHAgent    bool   `yaml:"ssh_agent"`
	StrictHostKey  bool   `yaml:"strict_hostkey"`
	KnownHostsPath string `yaml:"known_hosts"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose     int    `yaml:"verbose"`
	MetricsAddr string `yaml:"metrics_addr"`
	Stats       bool   `yaml:"stats"`
	DryRun      bool   `yaml:"-"`
}

// ── Verbs ────────────────────────────────────────────────────────────

// Verb names accepted on the command line.
const (
	VerbConnect    = "connect"
	VerbDisconnect = "disconnect"
	VerbImage      = "image"
	VerbAction     = "action"
)

// Verb is one CLI command word with its argument (action only).
type Verb struct {
	Name string
	Arg  string
}

func (v Verb) String() string {
	if v.Name == VerbAction {
		return fmt.Sprintf("%s %q", v.Name, v.Arg)
	}
	return v.Name
}

// ParseVerbs turns "connect action 'vol up' image disconnect" into
// verbs.  action consumes the following word as its text.
func ParseVerbs(args []string) ([]Verb, error) {
	var out []Verb
	for i := 0; i < len(args); i++ {
		switch name := strings.ToLower(args[i]); name {
		case VerbConnect, VerbDisconnect, VerbImage:
			out = append(out, Verb{Name: name})
		case VerbAction:
			if i+1 >= len(args) {
				return nil, fmt.Errorf("action requires a text argument")
			}
			i++
			out = append(out, Verb{Name: VerbAction, Arg: args[i]})
		default:
			return nil, fmt.Errorf("unknown verb %q (want connect, disconnect, image or action <text>)", args[i])
		}
	}
	return out, nil
}

// HasImage reports whether any verb fetches an image.
func (c *Config) HasImage() bool {
	for _, v := range c.Verbs {
		if v.Name == VerbImage {
			return true
		}
	}
	return false
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q: expected [user@]host[:port]", spec)
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
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec, if set, into the Tunnel* fields.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}
