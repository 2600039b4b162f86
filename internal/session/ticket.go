package session

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"pcremote/internal/command"
	"pcremote/internal/delivery"
)

const (
	ticketQueued int32 = iota
	ticketRunning
	ticketCancelled
)

// Ticket tracks one submitted command.
type Ticket struct {
	id      string
	cmd     command.Command
	handler delivery.Handler

	state   atomic.Int32
	done    chan struct{}
	outcome command.Outcome
}

func newTicket(cmd command.Command, h delivery.Handler) *Ticket {
	return &Ticket{
		id:      uuid.New().String(),
		cmd:     cmd,
		handler: h,
		done:    make(chan struct{}),
	}
}

// ID returns the ticket's unique id, also carried by its Outcome.
func (t *Ticket) ID() string { return t.id }

// Command returns the submitted command.
func (t *Ticket) Command() command.Command { return t.cmd }

// Cancel withdraws the command if the worker has not started it.  It
// reports whether the withdrawal took effect.  A withdrawn command
// still produces a Cancelled outcome in its queue position.
func (t *Ticket) Cancel() bool {
	return t.state.CompareAndSwap(ticketQueued, ticketCancelled)
}

// Done is closed once the outcome is available.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the outcome is available or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (command.Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return command.Outcome{}, ctx.Err()
	}
}

// Outcome returns the outcome and whether it is available yet.
func (t *Ticket) Outcome() (command.Outcome, bool) {
	select {
	case <-t.done:
		return t.outcome, true
	default:
		return command.Outcome{}, false
	}
}

// start moves the ticket to running; false means it was cancelled.
func (t *Ticket) start() bool {
	return t.state.CompareAndSwap(ticketQueued, ticketRunning)
}

func (t *Ticket) resolve(o command.Outcome) {
	t.outcome = o
	close(t.done)
}
