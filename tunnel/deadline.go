package tunnel

import (
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// deadlineConn adds read and write deadlines to a forwarded SSH
// channel, whose own Set*Deadline methods always fail.  An expired
// deadline closes the channel, so the conn is not reusable after a
// timeout; callers open one connection per exchange.
type deadlineConn struct {
	net.Conn

	mu    sync.Mutex
	read  time.Time
	write time.Time

	expired   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func withDeadlines(c net.Conn) net.Conn { return &deadlineConn{Conn: c} }

func (c *deadlineConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	c.read, c.write = t, t
	c.mu.Unlock()
	return nil
}

func (c *deadlineConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.read = t
	c.mu.Unlock()
	return nil
}

func (c *deadlineConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.write = t
	c.mu.Unlock()
	return nil
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	d := c.read
	c.mu.Unlock()
	return c.guard(d, func() (int, error) { return c.Conn.Read(p) })
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	d := c.write
	c.mu.Unlock()
	return c.guard(d, func() (int, error) { return c.Conn.Write(p) })
}

func (c *deadlineConn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.Conn.Close() })
	return c.closeErr
}

// guard runs op, closing the channel if d passes first.  Errors caused
// by that close are reported as os.ErrDeadlineExceeded.
func (c *deadlineConn) guard(d time.Time, op func() (int, error)) (int, error) {
	if c.expired.Load() {
		return 0, os.ErrDeadlineExceeded
	}
	if !d.IsZero() {
		wait := time.Until(d)
		if wait <= 0 {
			c.expire()
			return 0, os.ErrDeadlineExceeded
		}
		timer := time.AfterFunc(wait, c.expire)
		defer timer.Stop()
	}

	n, err := op()
	if err != nil && c.expired.Load() {
		return n, os.ErrDeadlineExceeded
	}
	return n, err
}

func (c *deadlineConn) expire() {
	c.expired.Store(true)
	c.Close() //nolint:errcheck
}
