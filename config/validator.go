package config

import (
	"fmt"

	rcerr "pcremote/internal/errors"
	"pcremote/util"
)

// Validate checks that the configuration is internally consistent.
// Failures are *rcerr.ConfigError values carrying a hint.
func (c *Config) Validate() error {
	if c.Listen {
		return c.validateServe()
	}
	return c.validateRun()
}

func (c *Config) validateServe() error {
	if !util.ValidPort(c.LocalPort) {
		return &rcerr.ConfigError{
			Field:   "port",
			Value:   nilIfZero(c.LocalPort),
			Message: "serve mode requires a listen port",
			Hint:    "pass -p <port>, e.g. pcremote -l -p 8000",
		}
	}
	if c.ImageFile != "" {
		if !util.ValidPort(c.ImagePort) {
			return portError("image-port", c.ImagePort)
		}
		if c.ImagePort == c.LocalPort {
			return &rcerr.ConfigError{
				Field:   "image-port",
				Value:   c.ImagePort,
				Message: "must differ from the listen port",
			}
		}
	}
	if c.TunnelEnabled {
		return &rcerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: "serve mode through an SSH tunnel is not supported",
		}
	}
	return nil
}

func (c *Config) validateRun() error {
	if err := util.CheckHost(c.Host, c.NoDNS); err != nil {
		return &rcerr.ConfigError{
			Field:   "host",
			Value:   c.Host,
			Message: err.Error(),
			Hint:    "usage: pcremote [options] <host> <port> <verb>...",
		}
	}
	if !util.ValidPort(c.Port) {
		return portError("port", c.Port)
	}
	if !util.ValidPort(c.ImagePort) {
		return portError("image-port", c.ImagePort)
	}
	if c.LocalPort != 0 && !util.ValidPort(c.LocalPort) {
		return portError("local-port", c.LocalPort)
	}
	if len(c.Verbs) == 0 {
		return &rcerr.ConfigError{
			Field:   "verb",
			Message: "at least one verb is required",
			Hint:    "verbs are connect, disconnect, image and action <text>",
		}
	}
	if c.ConnectTimeout < 0 {
		return &rcerr.ConfigError{Field: "connect-timeout", Value: c.ConnectTimeout, Message: "must not be negative"}
	}
	if c.CommunicateTimeout < 0 {
		return &rcerr.ConfigError{Field: "timeout", Value: c.CommunicateTimeout, Message: "must not be negative"}
	}
	if c.Retries < 0 {
		return &rcerr.ConfigError{Field: "retries", Value: c.Retries, Message: "must not be negative"}
	}
	if c.Output != "" && !c.HasImage() {
		return &rcerr.ConfigError{
			Field:   "output",
			Value:   c.Output,
			Message: "only image results are written to a file",
			Hint:    "add the image verb or drop -o",
		}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &rcerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: "tunnel host is required",
			Hint:    "use -T [user@]host[:port]",
		}
	}
	return nil
}

func portError(field string, port int) error {
	return &rcerr.ConfigError{
		Field:   field,
		Value:   port,
		Message: fmt.Sprintf("port %d out of range 1-65535", port),
	}
}

func nilIfZero(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
