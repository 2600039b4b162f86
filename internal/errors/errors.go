// Package errors provides domain-specific error types for pcremote.
//
// Every command failure is classified into a [Kind] so that callers can
// decide on retry or user feedback without parsing strings.  The
// structured types carry the operation and address that failed.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrShutdown           = errors.New("session is shut down")
	ErrAlreadyInitialized = errors.New("engine already initialized")
	ErrNotConnected       = errors.New("not connected")
	ErrEmptyResult        = errors.New("no image available")
	ErrCancelled          = errors.New("command cancelled")
	ErrAuthFailed         = errors.New("authentication failed")
)

// ── Failure taxonomy ─────────────────────────────────────────────────

// Kind classifies why a command failed.
type Kind int

const (
	KindUnknown Kind = iota
	// InvalidEndpoint is a precondition violation rejected before any I/O.
	InvalidEndpoint
	// ConnectTimeout means socket establishment did not finish in time.
	ConnectTimeout
	// ConnectError is any other failure while establishing the socket.
	ConnectError
	// CommunicateTimeout means the read phase exceeded its deadline.
	CommunicateTimeout
	// CommunicateError is any other post-connect I/O failure.
	CommunicateError
	// EmptyResult is returned by image fetches when the PC has nothing.
	EmptyResult
	// InvalidCommand is a malformed command (e.g. payload with a newline).
	InvalidCommand
	// Cancelled marks a command withdrawn before it started.
	Cancelled
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	InvalidEndpoint:    "invalid-endpoint",
	ConnectTimeout:     "connect-timeout",
	ConnectError:       "connect-error",
	CommunicateTimeout: "communicate-timeout",
	CommunicateError:   "communicate-error",
	EmptyResult:        "empty-result",
	InvalidCommand:     "invalid-command",
	Cancelled:          "cancelled",
}

// Kinds lists every classified kind, in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames)-1)
	for k := InvalidEndpoint; int(k) < len(kindNames); k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Retryable reports whether a caller may reasonably try the same command
// again.  The engine itself never retries.
func (k Kind) Retryable() bool {
	switch k {
	case ConnectTimeout, ConnectError, CommunicateTimeout:
		return true
	default:
		return false
	}
}

// ── Structured error types ───────────────────────────────────────────

// CommandError is the failure half of an Outcome.
type CommandError struct {
	Kind   Kind
	Op     string // "configure", "dial", "write", "read", "plan"
	Addr   string // network address involved (may be empty)
	Detail string // human-readable explanation
	Err    error  // underlying error (may be nil)
}

func (e *CommandError) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s += " " + e.Op
	}
	if e.Addr != "" {
		s += " " + e.Addr
	}
	switch {
	case e.Detail != "" && e.Err != nil:
		s += ": " + e.Detail + ": " + e.Err.Error()
	case e.Detail != "":
		s += ": " + e.Detail
	case e.Err != nil:
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *CommandError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "channel"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// New creates a CommandError with a detail message and no cause.
func New(kind Kind, op, addr, detail string) *CommandError {
	return &CommandError{Kind: kind, Op: op, Addr: addr, Detail: detail}
}

// Wrap creates a CommandError around err.
func Wrap(kind Kind, op, addr string, err error) *CommandError {
	return &CommandError{Kind: kind, Op: op, Addr: addr, Err: err}
}

// WrapDial classifies a dial failure as ConnectTimeout or ConnectError.
func WrapDial(addr string, err error) *CommandError {
	if ce, ok := asCommandError(err); ok {
		return ce
	}
	kind := ConnectError
	if IsTimeout(err) {
		kind = ConnectTimeout
	}
	return Wrap(kind, "dial", addr, err)
}

// WrapIO classifies a post-connect failure as CommunicateTimeout or
// CommunicateError.
func WrapIO(op, addr string, err error) *CommandError {
	if ce, ok := asCommandError(err); ok {
		return ce
	}
	kind := CommunicateError
	if IsTimeout(err) {
		kind = CommunicateTimeout
	}
	return Wrap(kind, op, addr, err)
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// KindOf extracts the failure kind from err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if ce, ok := asCommandError(err); ok {
		return ce.Kind
	}
	if errors.Is(err, ErrEmptyResult) {
		return EmptyResult
	}
	if errors.Is(err, ErrCancelled) {
		return Cancelled
	}
	return KindUnknown
}

// IsTimeout reports whether err is a deadline expiry from the network
// stack or a context.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func asCommandError(err error) (*CommandError, bool) {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
