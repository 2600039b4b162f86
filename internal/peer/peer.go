// Package peer is a stand-in for the PC companion.  It speaks the same
// line protocol as the real one: a text listener answering sentinels
// and actions, and an auxiliary listener serving the current image.
// It backs the CLI's serve mode and the end-to-end tests.
package peer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"pcremote/internal/command"
	"pcremote/util"
)

// ImageMarker is written before image bytes to signal their presence.
const ImageMarker byte = 0x01

// Responder returns the reply lines for one request line.
type Responder func(line string) []string

// ImageSource returns the image to serve, or nil when there is none.
type ImageSource func() ([]byte, error)

// NewResponder acknowledges the given sentinels and echoes actions.
func NewResponder(connectLine, disconnectLine string) Responder {
	return func(line string) []string {
		switch line {
		case connectLine:
			return []string{"connected"}
		case disconnectLine:
			return []string{"disconnected"}
		default:
			return []string{"ok", " " + line}
		}
	}
}

// DefaultResponder answers the default sentinels.
var DefaultResponder = NewResponder(command.DefaultConnectLine, command.DefaultDisconnectLine)

// ImageFile serves the contents of path, read on every request.  A
// missing file means no image.
func ImageFile(path string) ImageSource {
	return func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return data, err
	}
}

// Server listens on a main port and, optionally, an image port.
type Server struct {
	Addr      string // main listener, e.g. ":8000"
	ImageAddr string // image listener; empty disables it
	ImageLine string // request expected on the image port
	Respond   Responder
	Image     ImageSource
	Timeout   time.Duration // per-connection deadline (0 = none)
	Logger    *util.Logger

	mu      sync.Mutex
	main    net.Listener
	image   net.Listener
	history []string
}

// Listen binds the listeners without serving.
func (s *Server) Listen() error {
	if s.Logger == nil {
		s.Logger = util.Nop()
	}
	if s.Respond == nil {
		s.Respond = DefaultResponder
	}
	if s.ImageLine == "" {
		s.ImageLine = command.DefaultImageLine
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr, err)
	}
	s.main = ln
	s.Logger.Info("listening on %s", ln.Addr())

	if s.ImageAddr != "" {
		iln, err := net.Listen("tcp", s.ImageAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listen on %s: %w", s.ImageAddr, err)
		}
		s.image = iln
		s.Logger.Info("serving images on %s", iln.Addr())
	}
	return nil
}

// Serve accepts connections until ctx ends.  Listen must have been
// called.
func (s *Server) Serve(ctx context.Context) error {
	if s.main == nil {
		return errors.New("peer: Serve called before Listen")
	}

	// Shut the listeners down when the context expires.
	go func() {
		<-ctx.Done()
		s.main.Close()
		if s.image != nil {
			s.image.Close()
		}
	}()

	errc := make(chan error, 2)
	go func() { errc <- s.acceptLoop(ctx, s.main, s.serveText) }()
	n := 1
	if s.image != nil {
		n++
		go func() { errc <- s.acceptLoop(ctx, s.image, s.serveImage) }()
	}

	var first error
	for i := 0; i < n; i++ {
		if err := <-errc; err != nil && first == nil {
			first = err
			s.main.Close()
			if s.image != nil {
				s.image.Close()
			}
		}
	}
	return first
}

// Run is Listen followed by Serve.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Port returns the bound main port.
func (s *Server) Port() int { return util.ListenerPort(s.main) }

// ImagePort returns the bound image port, or 0.
func (s *Server) ImagePort() int {
	if s.image == nil {
		return 0
	}
	return util.ListenerPort(s.image)
}

// History returns every request line received, in arrival order.
func (s *Server) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

// ── Connection handling ──────────────────────────────────────────────

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, serve func(net.Conn, string) error) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		s.Logger.Verbose("connection from %s", conn.RemoteAddr())
		go func() {
			defer conn.Close()
			if s.Timeout > 0 {
				conn.SetDeadline(time.Now().Add(s.Timeout)) //nolint:errcheck
			}
			line, err := bufio.NewReader(conn).ReadString('\n')
			if err != nil {
				s.Logger.Debug("read request from %s: %v", conn.RemoteAddr(), err)
				return
			}
			line = strings.TrimRight(line, "\r\n")
			s.mu.Lock()
			s.history = append(s.history, line)
			s.mu.Unlock()

			if err := serve(conn, line); err != nil {
				s.Logger.Error("reply to %s: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

func (s *Server) serveText(conn net.Conn, line string) error {
	s.Logger.Verbose("request %q", line)
	w := bufio.NewWriter(conn)
	for _, l := range s.Respond(line) {
		if _, err := w.WriteString(l + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (s *Server) serveImage(conn net.Conn, line string) error {
	if line != s.ImageLine {
		s.Logger.Verbose("unexpected request %q on image port", line)
		return nil
	}
	if s.Image == nil {
		return nil
	}

	data, err := s.Image()
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	if len(data) == 0 {
		s.Logger.Verbose("no image to serve")
		return nil
	}

	w := bufio.NewWriterSize(conn, util.DefaultBufSize)
	w.WriteByte(ImageMarker) //nolint:errcheck
	if _, err := w.Write(data); err != nil {
		return err
	}
	s.Logger.Verbose("served %d image bytes", len(data))
	return w.Flush()
}
