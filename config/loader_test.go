package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Endpoint(t *testing.T) {
	t.Setenv("PCREMOTE_HOST", "desktop.example.com")
	t.Setenv("PCREMOTE_PORT", "8000")
	t.Setenv("PCREMOTE_IMAGE_PORT", "1160")
	cfg := Defaults()
	LoadFromEnv(cfg)
	if cfg.Host != "desktop.example.com" || cfg.Port != 8000 || cfg.ImagePort != 1160 {
		t.Errorf("got host=%q port=%d image=%d", cfg.Host, cfg.Port, cfg.ImagePort)
	}
}

func TestLoadFromEnv_Durations(t *testing.T) {
	t.Setenv("PCREMOTE_CONNECT_TIMEOUT", "2")
	t.Setenv("PCREMOTE_TIMEOUT", "1500ms")
	cfg := Defaults()
	LoadFromEnv(cfg)
	if cfg.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout = %v, want 2s", cfg.ConnectTimeout)
	}
	if cfg.CommunicateTimeout != 1500*time.Millisecond {
		t.Errorf("CommunicateTimeout = %v, want 1.5s", cfg.CommunicateTimeout)
	}
}

func TestLoadFromEnv_InvalidIgnored(t *testing.T) {
	t.Setenv("PCREMOTE_PORT", "not-a-number")
	t.Setenv("PCREMOTE_TIMEOUT", "soon")
	cfg := Defaults()
	LoadFromEnv(cfg)
	if cfg.Port != 0 {
		t.Errorf("Port = %d, want 0", cfg.Port)
	}
	if cfg.CommunicateTimeout != DefaultCommunicateTimeout {
		t.Errorf("CommunicateTimeout = %v, want default", cfg.CommunicateTimeout)
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	tests := []struct {
		key   string
		value string
		get   func(*Config) bool
	}{
		{"PCREMOTE_NO_DNS", "1", func(c *Config) bool { return c.NoDNS }},
		{"PCREMOTE_SSH_PASSWORD", "true", func(c *Config) bool { return c.SSHPassword }},
		{"PCREMOTE_SSH_AGENT", "YES", func(c *Config) bool { return c.UseSSHAgent }},
		{"PCREMOTE_STRICT_HOSTKEY", "True", func(c *Config) bool { return c.StrictHostKey }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := &Config{}
			LoadFromEnv(cfg)
			if !tt.get(cfg) {
				t.Errorf("%s=%s not applied", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFromEnv_BoolFalseValues(t *testing.T) {
	for _, v := range []string{"0", "false", "no", "nope"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("PCREMOTE_NO_DNS", v)
			cfg := &Config{}
			LoadFromEnv(cfg)
			if cfg.NoDNS {
				t.Errorf("PCREMOTE_NO_DNS=%s should not enable NoDNS", v)
			}
		})
	}
}

func TestLoadFromEnv_Tunnel(t *testing.T) {
	t.Setenv("PCREMOTE_TUNNEL", "ops@jump:2222")
	t.Setenv("PCREMOTE_SSH_KEY", "/tmp/id")
	t.Setenv("PCREMOTE_KNOWN_HOSTS", "/tmp/kh")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.TunnelSpec != "ops@jump:2222" || cfg.SSHKeyPath != "/tmp/id" || cfg.KnownHostsPath != "/tmp/kh" {
		t.Errorf("tunnel env not applied: %+v", cfg)
	}
}

func TestLoadFromEnv_NoOverrideWhenEmpty(t *testing.T) {
	cfg := &Config{Host: "original", Port: 8000}
	LoadFromEnv(cfg)
	if cfg.Host != "original" || cfg.Port != 8000 {
		t.Errorf("empty env overrode values: %+v", cfg)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pcremote.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
host: 192.168.1.20
port: 8000
image_port: 1160
connect_timeout: 2s
timeout: 1500ms
retries: 2
tunnel: ops@jump
`)
	cfg := Defaults()
	if err := LoadFile(path, cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Host != "192.168.1.20" || cfg.Port != 8000 || cfg.ImagePort != 1160 {
		t.Errorf("endpoint = %s:%d image %d", cfg.Host, cfg.Port, cfg.ImagePort)
	}
	if cfg.ConnectTimeout != 2*time.Second || cfg.CommunicateTimeout != 1500*time.Millisecond {
		t.Errorf("timeouts = %v / %v", cfg.ConnectTimeout, cfg.CommunicateTimeout)
	}
	if cfg.Retries != 2 || cfg.TunnelSpec != "ops@jump" {
		t.Errorf("retries=%d tunnel=%q", cfg.Retries, cfg.TunnelSpec)
	}
	if cfg.ConnectLine != DefaultConnectLine {
		t.Errorf("absent key overwrote default: %q", cfg.ConnectLine)
	}
}

func TestLoadFile_Empty(t *testing.T) {
	cfg := Defaults()
	if err := LoadFile(writeFile(t, ""), cfg); err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if cfg.ImagePort != DefaultImagePort {
		t.Errorf("ImagePort = %d", cfg.ImagePort)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &Config{}); err == nil {
		t.Error("expected error for missing file")
	}
	if err := LoadFile(writeFile(t, "hots: typo\n"), &Config{}); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := LoadFile(writeFile(t, "port: [1, 2]\n"), &Config{}); err == nil {
		t.Error("expected error for wrong type")
	}
}

// TestPrecedence_FileThenEnv verifies env vars win over the file.
func TestPrecedence_FileThenEnv(t *testing.T) {
	path := writeFile(t, "host: from-file\nport: 1000\n")
	t.Setenv("PCREMOTE_PORT", "2000")

	cfg := Defaults()
	if err := LoadFile(path, cfg); err != nil {
		t.Fatal(err)
	}
	LoadFromEnv(cfg)
	if cfg.Host != "from-file" || cfg.Port != 2000 {
		t.Errorf("got %s:%d, want from-file:2000", cfg.Host, cfg.Port)
	}
}
