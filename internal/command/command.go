// Package command defines the commands a caller can issue to the PC,
// the endpoint they target, and the outcome each one produces.
package command

import (
	"time"

	rcerr "pcremote/internal/errors"
	"pcremote/util"
)

// Kind identifies a command's intent.
type Kind int

const (
	Connect Kind = iota
	Disconnect
	Action
	FetchImage
)

func (k Kind) String() string {
	switch k {
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	case Action:
		return "action"
	case FetchImage:
		return "fetch-image"
	default:
		return "unknown"
	}
}

// Command is one request to the PC.  A Command is a value; submitting
// it twice runs it twice.
type Command struct {
	Kind    Kind
	Payload string        // Action only: text sent verbatim
	Port    int           // Action only: overrides the endpoint port when > 0
	Timeout time.Duration // read phase bound; 0 uses the session default
}

// NewConnect returns a Connect command.
func NewConnect() Command { return Command{Kind: Connect} }

// NewDisconnect returns a Disconnect command.
func NewDisconnect() Command { return Command{Kind: Disconnect} }

// NewAction returns an Action command carrying text.
func NewAction(text string) Command { return Command{Kind: Action, Payload: text} }

// NewActionOn returns an Action command sent to port on the endpoint
// host instead of the endpoint port.
func NewActionOn(text string, port int) Command {
	return Command{Kind: Action, Payload: text, Port: port}
}

// NewFetchImage returns a FetchImage command.
func NewFetchImage() Command { return Command{Kind: FetchImage} }

// WithTimeout returns a copy of c with its own read timeout.
func (c Command) WithTimeout(d time.Duration) Command {
	c.Timeout = d
	return c
}

// ── Endpoint ─────────────────────────────────────────────────────────

// Endpoint is the address of the PC companion.
type Endpoint struct {
	Host string
	Port int
}

// NewEndpoint validates host and port.  An empty host or a port outside
// 1-65535 is InvalidEndpoint.
func NewEndpoint(host string, port int) (Endpoint, error) {
	if host == "" {
		return Endpoint{}, rcerr.New(rcerr.InvalidEndpoint, "configure", "", "host is empty")
	}
	if !util.ValidPort(port) {
		return Endpoint{}, rcerr.New(rcerr.InvalidEndpoint, "configure", "", "port out of range 1-65535")
	}
	return Endpoint{Host: host, Port: port}, nil
}

// Addr returns host:port.
func (e Endpoint) Addr() string { return util.FormatAddr(e.Host, e.Port) }

// AddrOn returns the endpoint host with a different port.
func (e Endpoint) AddrOn(port int) string { return util.FormatAddr(e.Host, port) }

func (e Endpoint) String() string { return e.Addr() }

// ── Outcome ──────────────────────────────────────────────────────────

// Outcome is the result of one command.  Err is nil on success; Text or
// Data then holds the payload according to the command's shape.
type Outcome struct {
	ID      string
	Command Kind
	Addr    string
	Text    string
	Data    []byte
	Err     *rcerr.CommandError
	Elapsed time.Duration
}

// Success reports whether the command completed without error.
func (o Outcome) Success() bool { return o.Err == nil }

// Kind returns the failure kind, or KindUnknown on success.
func (o Outcome) Kind() rcerr.Kind {
	if o.Err == nil {
		return rcerr.KindUnknown
	}
	return o.Err.Kind
}

// Error returns the failure as an error value, or nil.
func (o Outcome) Error() error {
	if o.Err == nil {
		return nil
	}
	return o.Err
}
