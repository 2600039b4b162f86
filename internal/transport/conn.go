package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	rcerr "pcremote/internal/errors"
	"pcremote/internal/metrics"
	"pcremote/util"
)

// Conn is one connection to the remote endpoint.  Every read takes its
// own timeout; failures come back already classified as
// CommunicateTimeout or CommunicateError.  End of stream is io.EOF.
//
// A Conn is used by one goroutine at a time, except Close which may be
// called concurrently to abort a blocked read.
type Conn struct {
	raw     net.Conn
	addr    string
	r       *bufio.Reader
	metrics *metrics.Collector

	closeOnce sync.Once
	closeErr  error
}

// Open dials addr with d, bounding establishment by connectTimeout
// (0 = only ctx bounds it).  Failures are ConnectTimeout or ConnectError.
func Open(ctx context.Context, d Dialer, addr string, connectTimeout time.Duration, m *metrics.Collector) (*Conn, error) {
	if connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	raw, err := d.Dial(ctx, "tcp", addr)
	if err != nil {
		return nil, rcerr.WrapDial(addr, err)
	}
	return Wrap(raw, addr, m), nil
}

// Wrap adopts an established net.Conn.
func Wrap(raw net.Conn, addr string, m *metrics.Collector) *Conn {
	m.ConnectionOpened()
	return &Conn{
		raw:     raw,
		addr:    addr,
		r:       bufio.NewReader(raw),
		metrics: m,
	}
}

// Addr returns the address this connection was opened to.
func (c *Conn) Addr() string { return c.addr }

// WriteLine sends text followed by a single "\n".  timeout bounds the
// write so a peer that never reads cannot stall it; 0 clears it.
func (c *Conn) WriteLine(text string, timeout time.Duration) error {
	var t time.Time
	if timeout > 0 {
		t = time.Now().Add(timeout)
	}
	if err := c.raw.SetWriteDeadline(t); err != nil {
		return rcerr.WrapIO("write", c.addr, err)
	}

	n, err := io.WriteString(c.raw, text+"\n")
	c.metrics.BytesSent(int64(n))
	if err != nil {
		return rcerr.WrapIO("write", c.addr, err)
	}
	return nil
}

// ReadLine returns the next line without its terminator ("\n" or
// "\r\n").  A final unterminated line is returned before io.EOF.
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	if err := c.deadline(timeout); err != nil {
		return "", err
	}

	line, err := c.r.ReadString('\n')
	c.metrics.BytesReceived(int64(len(line)))
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line != "" {
				return trimEOL(line), nil
			}
			return "", io.EOF
		}
		return "", rcerr.WrapIO("read", c.addr, err)
	}
	return trimEOL(line), nil
}

// Probe reads exactly one byte, or io.EOF if the stream is already over.
func (c *Conn) Probe(timeout time.Duration) (byte, error) {
	if err := c.deadline(timeout); err != nil {
		return 0, err
	}

	b, err := c.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, rcerr.WrapIO("read", c.addr, err)
	}
	c.metrics.BytesReceived(1)
	return b, nil
}

// ReadAll reads until end of stream.  timeout bounds the whole read,
// not each chunk.
func (c *Conn) ReadAll(timeout time.Duration) ([]byte, error) {
	if err := c.deadline(timeout); err != nil {
		return nil, err
	}

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	var acc util.Accumulator
	for {
		n, err := c.r.Read(*buf)
		if n > 0 {
			acc.Write((*buf)[:n]) //nolint:errcheck
			c.metrics.BytesReceived(int64(n))
		}
		if errors.Is(err, io.EOF) {
			return acc.Bytes(), nil
		}
		if err != nil {
			return nil, rcerr.WrapIO("read", c.addr, err)
		}
	}
}

// Close releases the socket.  Only the first call has an effect; later
// calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.raw.Close()
		c.metrics.ConnectionClosed()
	})
	return c.closeErr
}

// deadline arms the read deadline; timeout 0 clears it.
func (c *Conn) deadline(timeout time.Duration) error {
	var t time.Time
	if timeout > 0 {
		t = time.Now().Add(timeout)
	}
	if err := c.raw.SetReadDeadline(t); err != nil {
		return rcerr.WrapIO("read", c.addr, err)
	}
	return nil
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
