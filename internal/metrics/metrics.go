// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a remote command session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	rcerr "pcremote/internal/errors"
)

// numKinds sizes the per-kind failure table; index 0 is KindUnknown.
const numKinds = int(rcerr.Cancelled) + 1

// Collector tracks runtime metrics for a session.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	commandsSubmitted atomic.Int64
	commandsSucceeded atomic.Int64
	failures          [numKinds]atomic.Int64
	queueDepth        atomic.Int64

	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Command metrics ──────────────────────────────────────────────────

// CommandQueued records a submission and grows the queue gauge.
func (c *Collector) CommandQueued() {
	if c == nil {
		return
	}
	c.commandsSubmitted.Add(1)
	c.queueDepth.Add(1)
}

// CommandStarted shrinks the queue gauge when the worker picks a command.
func (c *Collector) CommandStarted() {
	if c == nil {
		return
	}
	c.queueDepth.Add(-1)
}

// CommandSucceeded records a successful outcome.
func (c *Collector) CommandSucceeded() {
	if c == nil {
		return
	}
	c.commandsSucceeded.Add(1)
}

// CommandFailed records a failed outcome of the given kind and stores
// its message.
func (c *Collector) CommandFailed(kind rcerr.Kind, msg string) {
	if c == nil {
		return
	}
	if kind < 0 || int(kind) >= numKinds {
		kind = rcerr.KindUnknown
	}
	c.failures[kind].Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// Submitted returns the lifetime submission count.
func (c *Collector) Submitted() int64 {
	if c == nil {
		return 0
	}
	return c.commandsSubmitted.Load()
}

// Succeeded returns the lifetime success count.
func (c *Collector) Succeeded() int64 {
	if c == nil {
		return 0
	}
	return c.commandsSucceeded.Load()
}

// Failed returns the failure count for one kind.
func (c *Collector) Failed(kind rcerr.Kind) int64 {
	if c == nil || kind < 0 || int(kind) >= numKinds {
		return 0
	}
	return c.failures[kind].Load()
}

// FailedTotal returns the failure count across all kinds.
func (c *Collector) FailedTotal() int64 {
	if c == nil {
		return 0
	}
	var n int64
	for i := range c.failures {
		n += c.failures[i].Load()
	}
	return n
}

// QueueDepth returns the number of commands waiting for the worker.
func (c *Collector) QueueDepth() int64 {
	if c == nil {
		return 0
	}
	return c.queueDepth.Load()
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string           `json:"uptime"`
	CommandsSubmitted int64            `json:"commands_submitted"`
	CommandsSucceeded int64            `json:"commands_succeeded"`
	CommandsFailed    map[string]int64 `json:"commands_failed,omitempty"`
	QueueDepth        int64            `json:"queue_depth"`
	ConnectionsActive int64            `json:"connections_active"`
	ConnectionsTotal  int64            `json:"connections_total"`
	BytesIn           int64            `json:"bytes_in"`
	BytesOut          int64            `json:"bytes_out"`
	LastError         string           `json:"last_error,omitempty"`
	LastErrorMessage  string           `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		CommandsSubmitted: c.commandsSubmitted.Load(),
		CommandsSucceeded: c.commandsSucceeded.Load(),
		QueueDepth:        c.queueDepth.Load(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
	}
	for i := range c.failures {
		if n := c.failures[i].Load(); n > 0 {
			if s.CommandsFailed == nil {
				s.CommandsFailed = make(map[string]int64)
			}
			s.CommandsFailed[rcerr.Kind(i).String()] = n
		}
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
