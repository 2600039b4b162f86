// Package engine is the caller-facing entry point: one session manager
// behind convenience methods for each command, plus an explicitly
// initialized process-wide instance.
package engine

import (
	"context"
	"sync"

	"pcremote/internal/command"
	"pcremote/internal/delivery"
	rcerr "pcremote/internal/errors"
	"pcremote/internal/session"
)

// Engine issues commands to one PC endpoint.
type Engine struct {
	mgr *session.Manager
}

// New creates an independent Engine.
func New(opts session.Options) *Engine {
	return &Engine{mgr: session.NewManager(opts)}
}

// Configure sets the PC endpoint.
func (e *Engine) Configure(host string, port int) error {
	return e.mgr.Configure(host, port)
}

// Submit queues cmd; h may be nil.
func (e *Engine) Submit(cmd command.Command, h delivery.Handler) (*session.Ticket, error) {
	return e.mgr.Submit(cmd, h)
}

// Connect configures the endpoint and queues a Connect command.
func (e *Engine) Connect(host string, port int, h delivery.Handler) (*session.Ticket, error) {
	if err := e.Configure(host, port); err != nil {
		return nil, err
	}
	return e.Submit(command.NewConnect(), h)
}

// Disconnect queues a Disconnect command.
func (e *Engine) Disconnect(h delivery.Handler) (*session.Ticket, error) {
	return e.Submit(command.NewDisconnect(), h)
}

// Action queues text as an Action command.
func (e *Engine) Action(text string, h delivery.Handler) (*session.Ticket, error) {
	return e.Submit(command.NewAction(text), h)
}

// FetchImage queues an image fetch.
func (e *Engine) FetchImage(h delivery.Handler) (*session.Ticket, error) {
	return e.Submit(command.NewFetchImage(), h)
}

// Session exposes the underlying manager for state and queue queries.
func (e *Engine) Session() *session.Manager { return e.mgr }

// Shutdown drains pending commands and stops the worker.  Idempotent.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.mgr.Shutdown(ctx)
}

// ── Process-wide instance ────────────────────────────────────────────

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Init creates the process-wide Engine.  Only the first call has an
// effect; later calls return ErrAlreadyInitialized and leave the
// existing instance in place.
func Init(opts session.Options) (*Engine, error) {
	created := false
	defaultOnce.Do(func() {
		defaultEngine = New(opts)
		created = true
	})
	if !created {
		return defaultEngine, rcerr.ErrAlreadyInitialized
	}
	return defaultEngine, nil
}

// Default returns the process-wide Engine, creating it with default
// options if Init was never called.
func Default() *Engine {
	defaultOnce.Do(func() {
		defaultEngine = New(session.Options{})
	})
	return defaultEngine
}
