package config

// loader.go - configuration loading from a YAML file and environment
// variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables
//   3. Config file (--config)
//   4. Defaults   (defaults.go)

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ── Config file ──────────────────────────────────────────────────────

// LoadFile overlays the YAML document at path onto cfg.  Keys absent
// from the file leave the existing value untouched; unknown keys are
// an error.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty file
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the PCREMOTE_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("1500ms") or whole seconds ("5").

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flags are applied so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("PCREMOTE_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("PCREMOTE_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := envInt("PCREMOTE_IMAGE_PORT"); v > 0 {
		cfg.ImagePort = v
	}
	if v := envDuration("PCREMOTE_CONNECT_TIMEOUT"); v > 0 {
		cfg.ConnectTimeout = v
	}
	if v := envDuration("PCREMOTE_TIMEOUT"); v > 0 {
		cfg.CommunicateTimeout = v
	}
	if envBool("PCREMOTE_NO_DNS") {
		cfg.NoDNS = true
	}
	if v := envInt("PCREMOTE_RETRIES"); v > 0 {
		cfg.Retries = v
	}
	if v := os.Getenv("PCREMOTE_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("PCREMOTE_IMAGE_FILE"); v != "" {
		cfg.ImageFile = v
	}

	// SSH tunnel
	if v := os.Getenv("PCREMOTE_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("PCREMOTE_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("PCREMOTE_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("PCREMOTE_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("PCREMOTE_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("PCREMOTE_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := os.Getenv("PCREMOTE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := envInt("PCREMOTE_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
