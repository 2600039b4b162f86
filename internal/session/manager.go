package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pcremote/internal/command"
	"pcremote/internal/delivery"
	rcerr "pcremote/internal/errors"
	"pcremote/internal/metrics"
	"pcremote/internal/protocol"
	"pcremote/internal/transport"
	"pcremote/util"
)

// Default timeouts.
const (
	DefaultConnectTimeout     = 5 * time.Second
	DefaultCommunicateTimeout = 6 * time.Second
)

// Options configures a Manager.  Zero fields take defaults.
type Options struct {
	Dialer     transport.Dialer    // default: plain TCP
	Dispatcher *command.Dispatcher // default: command.NewDispatcher()

	// Handler receives every outcome, before any per-submission handler.
	Handler delivery.Handler

	ConnectTimeout     time.Duration
	CommunicateTimeout time.Duration

	Logger  *util.Logger
	Metrics *metrics.Collector

	// OnStateChange is called on the worker goroutine for every
	// transition.  It must not block.
	OnStateChange func(from, to State)
}

// Manager queues commands and runs them one at a time.
type Manager struct {
	dialer             transport.Dialer
	dispatcher         *command.Dispatcher
	handler            delivery.Handler
	connectTimeout     time.Duration
	communicateTimeout time.Duration
	logger             *util.Logger
	metrics            *metrics.Collector
	onStateChange      func(from, to State)
	deliverer          *delivery.Deliverer

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []*Ticket
	endpoint    command.Endpoint
	hasEndpoint bool
	closed      bool
	abandon     bool

	state   atomic.Int32
	drained chan struct{} // worker has posted its last outcome
	done    chan struct{}
}

// NewManager creates a Manager and starts its worker.
func NewManager(opts Options) *Manager {
	m := &Manager{
		dialer:             opts.Dialer,
		dispatcher:         opts.Dispatcher,
		handler:            opts.Handler,
		connectTimeout:     opts.ConnectTimeout,
		communicateTimeout: opts.CommunicateTimeout,
		logger:             opts.Logger,
		metrics:            opts.Metrics,
		onStateChange:      opts.OnStateChange,
		drained:            make(chan struct{}),
		done:               make(chan struct{}),
	}
	if m.dialer == nil {
		m.dialer = &transport.TCPDialer{}
	}
	if m.dispatcher == nil {
		m.dispatcher = command.NewDispatcher()
	}
	if m.connectTimeout <= 0 {
		m.connectTimeout = DefaultConnectTimeout
	}
	if m.communicateTimeout <= 0 {
		m.communicateTimeout = DefaultCommunicateTimeout
	}
	if m.logger == nil {
		m.logger = util.Nop()
	}
	m.cond = sync.NewCond(&m.mu)
	m.deliverer = delivery.NewDeliverer(m.logger)

	go m.run()
	return m
}

// ── Caller API ───────────────────────────────────────────────────────

// Configure sets the endpoint used by commands started from now on.
// A command already in flight keeps the endpoint it started with.
func (m *Manager) Configure(host string, port int) error {
	ep, err := command.NewEndpoint(host, port)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return rcerr.ErrShutdown
	}
	m.endpoint = ep
	m.hasEndpoint = true
	m.logger.Verbose("endpoint set to %s", ep)
	return nil
}

// Endpoint returns the configured endpoint, if any.
func (m *Manager) Endpoint() (command.Endpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint, m.hasEndpoint
}

// Submit queues cmd.  h, if non-nil, receives this command's outcome
// after the Manager's default handler.  Submit never blocks on I/O.
func (m *Manager) Submit(cmd command.Command, h delivery.Handler) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, rcerr.ErrShutdown
	}

	t := newTicket(cmd, h)
	m.queue = append(m.queue, t)
	m.metrics.CommandQueued()
	m.cond.Signal()
	return t, nil
}

// Pending returns the number of queued commands not yet started.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// State returns the current session state.
func (m *Manager) State() State { return State(m.state.Load()) }

// Done is closed after Shutdown once the worker and delivery have
// stopped.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Shutdown stops accepting commands and waits for the queue to drain
// and every outcome to be delivered.  If ctx ends first, commands that
// have not started resolve as Cancelled and ctx.Err() is returned; the
// command in flight still runs to completion or timeout.  Calling
// Shutdown again is safe.
//
// Called from a Handler, Shutdown returns once every outcome has been
// posted, without waiting for delivery: the remaining outcomes, this
// handler's included, are delivered after it returns and Done closes
// after that.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		m.logger.Verbose("session shutting down with %d queued", len(m.queue))
	}
	m.cond.Broadcast()
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-m.drained:
		if m.deliverer.Delivering() {
			return nil
		}
	case <-ctx.Done():
		return m.abandonQueued(ctx)
	}

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return m.abandonQueued(ctx)
	}
}

func (m *Manager) abandonQueued(ctx context.Context) error {
	m.mu.Lock()
	m.abandon = true
	m.mu.Unlock()
	return ctx.Err()
}

// ── Worker ───────────────────────────────────────────────────────────

func (m *Manager) run() {
	defer close(m.done)
	defer m.deliverer.Close()
	defer close(m.drained)

	for {
		t, ep, abandon, ok := m.next()
		if !ok {
			return
		}
		m.metrics.CommandStarted()

		var o command.Outcome
		switch {
		case abandon && t.Cancel():
			o = cancelled(t, "shutdown")
		case !t.start():
			o = cancelled(t, "cancel")
		default:
			o = m.execute(t, ep)
		}
		m.finish(t, o)
	}
}

// next blocks until a ticket is queued or the Manager is closed and
// empty.  The endpoint is snapshotted with the ticket.
func (m *Manager) next() (*Ticket, command.Endpoint, bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.queue) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.queue) == 0 {
		return nil, command.Endpoint{}, false, false
	}
	t := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return t, m.endpoint, m.abandon, true
}

// execute runs one command on a fresh connection.  The connection is
// closed on every path before execute returns.
func (m *Manager) execute(t *Ticket, ep command.Endpoint) (o command.Outcome) {
	start := time.Now()
	o = command.Outcome{ID: t.id, Command: t.cmd.Kind}
	defer func() { o.Elapsed = time.Since(start) }()

	req, err := m.dispatcher.Plan(t.cmd, ep)
	if err != nil {
		o.Err = classify(err, "plan", "")
		return o
	}
	o.Addr = req.Addr

	timeout := t.cmd.Timeout
	if timeout <= 0 {
		timeout = m.communicateTimeout
	}
	log := m.logger.With("cmd", t.cmd.Kind).With("addr", req.Addr)

	m.setState(Connecting)
	log.Debug("dialing")
	conn, err := transport.Open(context.Background(), m.dialer, req.Addr, m.connectTimeout, m.metrics)
	if err != nil {
		m.setState(Failed)
		o.Err = classify(err, "dial", req.Addr)
		return o
	}
	defer conn.Close()
	m.setState(Connected)

	p, err := protocol.Exchange(conn, req.Line, req.Shape, timeout)
	m.setState(Closing)
	conn.Close()
	if err != nil {
		m.setState(Failed)
		o.Err = classify(err, "exchange", req.Addr)
		return o
	}

	m.setState(Idle)
	o.Text, o.Data = p.Text, p.Data
	log.Verbose("completed (%d text bytes, %d data bytes)", len(o.Text), len(o.Data))
	return o
}

// finish resolves the ticket and hands the outcome to delivery at the
// same point, so Wait and handlers observe the same order.
func (m *Manager) finish(t *Ticket, o command.Outcome) {
	if o.Err == nil {
		m.metrics.CommandSucceeded()
	} else {
		m.metrics.CommandFailed(o.Err.Kind, o.Err.Error())
		m.logger.Verbose("%s %s failed: %v", t.cmd.Kind, t.id, o.Err)
	}

	t.resolve(o)
	m.deliverer.Post(o, m.handler, t.handler)

	if m.State() == Failed {
		m.setState(Idle)
	}
}

func (m *Manager) setState(s State) {
	old := State(m.state.Swap(int32(s)))
	if old != s && m.onStateChange != nil {
		m.onStateChange(old, s)
	}
}

func cancelled(t *Ticket, op string) command.Outcome {
	return command.Outcome{
		ID:      t.id,
		Command: t.cmd.Kind,
		Err:     rcerr.Wrap(rcerr.Cancelled, op, "", rcerr.ErrCancelled),
	}
}

// classify converts err into a CommandError carrying addr.
func classify(err error, op, addr string) *rcerr.CommandError {
	var ce *rcerr.CommandError
	if rcerr.As(err, &ce) {
		out := *ce
		if out.Addr == "" {
			out.Addr = addr
		}
		return &out
	}
	return rcerr.WrapIO(op, addr, err)
}
