package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	rcerr "pcremote/internal/errors"
	"pcremote/internal/metrics"
	"pcremote/util"
)

// serveOnce accepts one connection and hands it to fn.
func serveOnce(t *testing.T, fn func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}()
	return ln.Addr().String()
}

// TestTCPDialer_Connect verifies that TCPDialer can reach a local
// TCP server and exchange data.
func TestTCPDialer_Connect(t *testing.T) {
	addr := serveOnce(t, func(c net.Conn) {
		c.Write([]byte("hello from pc\n")) //nolint:errcheck
	})

	d := &TCPDialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "hello from pc\n" {
		t.Errorf("got %q, want %q", got, "hello from pc\n")
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Dial(ctx, "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// TestTCPDialer_Close verifies Close is a no-op and returns nil.
func TestTCPDialer_Close(t *testing.T) {
	d := &TCPDialer{}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// blockingDialer never connects; it waits for the context to end.
type blockingDialer struct{}

func (blockingDialer) Dial(ctx context.Context, _, _ string) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingDialer) Close() error { return nil }

func TestOpen_ConnectTimeout(t *testing.T) {
	start := time.Now()
	_, err := Open(context.Background(), blockingDialer{}, "10.255.255.1:8000", 50*time.Millisecond, nil)
	if rcerr.KindOf(err) != rcerr.ConnectTimeout {
		t.Fatalf("kind = %v (%v), want connect-timeout", rcerr.KindOf(err), err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("connect timeout not honoured")
	}
}

func TestOpen_ConnectRefused(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	_, err = Open(context.Background(), &TCPDialer{}, util.FormatAddr("127.0.0.1", port), time.Second, nil)
	if rcerr.KindOf(err) != rcerr.ConnectError {
		t.Fatalf("kind = %v (%v), want connect-error", rcerr.KindOf(err), err)
	}
}

func TestConn_ReadLines(t *testing.T) {
	addr := serveOnce(t, func(c net.Conn) {
		c.Write([]byte("first\r\nsecond\nthird")) //nolint:errcheck
	})

	m := metrics.New()
	conn, err := Open(context.Background(), &TCPDialer{}, addr, time.Second, m)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	for _, want := range []string{"first", "second", "third"} {
		got, err := conn.ReadLine(time.Second)
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
	if _, err := conn.ReadLine(time.Second); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if m.TotalBytesIn() != int64(len("first\r\nsecond\nthird")) {
		t.Errorf("bytes in = %d", m.TotalBytesIn())
	}
}

func TestConn_ReadLineTimeout(t *testing.T) {
	hold := make(chan struct{})
	t.Cleanup(func() { close(hold) })
	addr := serveOnce(t, func(net.Conn) { <-hold })

	conn, err := Open(context.Background(), &TCPDialer{}, addr, time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	_, err = conn.ReadLine(50 * time.Millisecond)
	if rcerr.KindOf(err) != rcerr.CommunicateTimeout {
		t.Fatalf("kind = %v (%v), want communicate-timeout", rcerr.KindOf(err), err)
	}
}

func TestConn_WriteLine(t *testing.T) {
	got := make(chan string, 1)
	addr := serveOnce(t, func(c net.Conn) {
		data, _ := io.ReadAll(c)
		got <- string(data)
	})

	m := metrics.New()
	conn, err := Open(context.Background(), &TCPDialer{}, addr, time.Second, m)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteLine("CONNECT", time.Second); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	select {
	case s := <-got:
		if s != "CONNECT\n" {
			t.Errorf("server got %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for data")
	}
	if m.TotalBytesOut() != 8 {
		t.Errorf("bytes out = %d, want 8", m.TotalBytesOut())
	}
}

func TestConn_WriteLineTimeout(t *testing.T) {
	hold := make(chan struct{})
	addr := serveOnce(t, func(net.Conn) { <-hold })
	t.Cleanup(func() { close(hold) })

	conn, err := Open(context.Background(), &TCPDialer{}, addr, time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Far larger than the loopback socket buffers, so the write blocks
	// once the peer stops reading.
	big := strings.Repeat("x", 64<<20)
	start := time.Now()
	err = conn.WriteLine(big, 100*time.Millisecond)
	if rcerr.KindOf(err) != rcerr.CommunicateTimeout {
		t.Fatalf("kind = %v (%v), want communicate-timeout", rcerr.KindOf(err), err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("write took %v", time.Since(start))
	}
}

func TestConn_ProbeAndReadAll(t *testing.T) {
	payload := make([]byte, 3*util.DefaultBufSize+17)
	for i := range payload {
		payload[i] = byte(i)
	}
	addr := serveOnce(t, func(c net.Conn) {
		c.Write(payload) //nolint:errcheck
	})

	conn, err := Open(context.Background(), &TCPDialer{}, addr, time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	b, err := conn.Probe(time.Second)
	if err != nil || b != payload[0] {
		t.Fatalf("Probe = %d, %v", b, err)
	}
	rest, err := conn.ReadAll(2 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != len(payload)-1 || rest[0] != payload[1] || rest[len(rest)-1] != payload[len(payload)-1] {
		t.Errorf("ReadAll returned %d bytes", len(rest))
	}
}

func TestConn_ProbeEmpty(t *testing.T) {
	addr := serveOnce(t, func(net.Conn) {})

	conn, err := Open(context.Background(), &TCPDialer{}, addr, time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Probe(time.Second); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestConn_CloseIdempotent(t *testing.T) {
	addr := serveOnce(t, func(net.Conn) {})

	m := metrics.New()
	conn, err := Open(context.Background(), &TCPDialer{}, addr, time.Second, m)
	if err != nil {
		t.Fatal(err)
	}
	if m.ActiveConnections() != 1 {
		t.Errorf("active = %d, want 1", m.ActiveConnections())
	}

	first := conn.Close()
	for i := 0; i < 3; i++ {
		if err := conn.Close(); err != first {
			t.Errorf("Close #%d = %v, want %v", i+2, err, first)
		}
	}
	if m.ActiveConnections() != 0 {
		t.Errorf("active = %d after close, want 0", m.ActiveConnections())
	}
	if _, err := conn.ReadLine(time.Second); rcerr.KindOf(err) != rcerr.CommunicateError {
		t.Errorf("read after close: %v", err)
	}
}

// fakeTunnel records Connect calls and dials directly.
type fakeTunnel struct {
	alive    bool
	connects int
	failNext error
}

func (f *fakeTunnel) Connect(context.Context) error {
	f.connects++
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.alive = true
	return nil
}

func (f *fakeTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

func (f *fakeTunnel) Close() error { f.alive = false; return nil }
func (f *fakeTunnel) IsAlive() bool { return f.alive }

func TestSSHDialer_LazyConnect(t *testing.T) {
	ft := &fakeTunnel{}
	d := NewTunnelDialer(ft, util.Nop())
	if ft.connects != 0 {
		t.Fatal("tunnel must not connect before the first Dial")
	}

	for i := 0; i < 2; i++ {
		addr := serveOnce(t, func(net.Conn) {})
		conn, err := d.Dial(context.Background(), "tcp", addr)
		if err != nil {
			t.Fatal(err)
		}
		conn.Close()
	}
	if ft.connects != 1 {
		t.Errorf("connects = %d, want 1", ft.connects)
	}

	// A dropped gateway is re-established on the next Dial.
	ft.alive = false
	addr := serveOnce(t, func(net.Conn) {})
	conn, err := d.Dial(context.Background(), "tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
	if ft.connects != 2 {
		t.Errorf("connects = %d, want 2", ft.connects)
	}

	if err := d.Close(); err != nil || ft.alive {
		t.Errorf("Close: err=%v alive=%v", err, ft.alive)
	}
}

func TestSSHDialer_ConnectFailure(t *testing.T) {
	boom := errors.New("gateway refused")
	d := NewTunnelDialer(&fakeTunnel{failNext: boom}, util.Nop())

	_, err := Open(context.Background(), d, "127.0.0.1:1", time.Second, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped gateway error, got %v", err)
	}
	if rcerr.KindOf(err) != rcerr.ConnectError {
		t.Errorf("kind = %v, want connect-error", rcerr.KindOf(err))
	}
}
