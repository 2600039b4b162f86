// Package delivery hands command outcomes to caller handlers on a
// goroutine of its own, in the order they were produced.
package delivery

import (
	"sync"
	"sync/atomic"

	"pcremote/internal/command"
	"pcremote/util"
)

// Handler receives outcomes.  Deliver is called from the delivery
// goroutine, never from the I/O worker.
type Handler interface {
	Deliver(command.Outcome)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(command.Outcome)

// Deliver calls f(o).
func (f HandlerFunc) Deliver(o command.Outcome) { f(o) }

// Discard drops every outcome.
var Discard Handler = HandlerFunc(func(command.Outcome) {})

// Queue is a Handler that forwards outcomes to a buffered channel.
// When the buffer is full Deliver blocks, holding back later outcomes
// but never the I/O worker.
type Queue struct {
	ch chan command.Outcome
}

// NewQueue returns a Queue with the given buffer size.
func NewQueue(size int) *Queue {
	return &Queue{ch: make(chan command.Outcome, size)}
}

// Deliver sends o on the queue channel.
func (q *Queue) Deliver(o command.Outcome) { q.ch <- o }

// C returns the receive side of the queue.
func (q *Queue) C() <-chan command.Outcome { return q.ch }

// ── Deliverer ────────────────────────────────────────────────────────

type item struct {
	outcome  command.Outcome
	handlers []Handler
}

// Deliverer runs handlers on a dedicated goroutine.  Post never blocks:
// the backlog is an unbounded FIFO.
type Deliverer struct {
	logger *util.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []item
	closed  bool

	busy atomic.Bool
	done chan struct{}
}

// NewDeliverer starts the delivery goroutine.
func NewDeliverer(logger *util.Logger) *Deliverer {
	if logger == nil {
		logger = util.Nop()
	}
	d := &Deliverer{
		logger: logger,
		done:   make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// Post queues o for every non-nil handler in hs.  It reports false if
// the Deliverer has been closed.
func (d *Deliverer) Post(o command.Outcome, hs ...Handler) bool {
	live := make([]Handler, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			live = append(live, h)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.pending = append(d.pending, item{outcome: o, handlers: live})
	d.cond.Signal()
	return true
}

// Backlog returns the number of outcomes not yet delivered.
func (d *Deliverer) Backlog() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Delivering reports whether a handler is running right now.  A
// handler that blocks on the Deliverer's own shutdown would never
// return, so owners check this before waiting on Close.
func (d *Deliverer) Delivering() bool { return d.busy.Load() }

// Close stops accepting outcomes, waits for the backlog to drain and
// stops the goroutine.  Safe to call more than once.
func (d *Deliverer) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.cond.Signal()
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Deliverer) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.pending) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.pending) == 0 {
			d.mu.Unlock()
			return
		}
		it := d.pending[0]
		d.pending[0] = item{}
		d.pending = d.pending[1:]
		d.mu.Unlock()

		for _, h := range it.handlers {
			d.call(h, it.outcome)
		}
	}
}

// call runs one handler, isolating the loop from its panics.
func (d *Deliverer) call(h Handler, o command.Outcome) {
	d.busy.Store(true)
	defer d.busy.Store(false)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic on %s outcome %s: %v", o.Command, o.ID, r)
		}
	}()
	h.Deliver(o)
}
