package protocol

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rcerr "pcremote/internal/errors"
	"pcremote/internal/transport"
)

// scripted is an in-memory LineConn that replays canned reads.
type scripted struct {
	written []string
	lines   []string
	data    []byte
	delay   time.Duration
	readErr error

	writeTimeout time.Duration
}

func (s *scripted) WriteLine(text string, timeout time.Duration) error {
	s.written = append(s.written, text)
	s.writeTimeout = timeout
	return nil
}

func (s *scripted) ReadLine(time.Duration) (string, error) {
	time.Sleep(s.delay)
	if len(s.lines) == 0 {
		if s.readErr != nil {
			return "", s.readErr
		}
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scripted) Probe(time.Duration) (byte, error) {
	if len(s.data) == 0 {
		return 0, io.EOF
	}
	b := s.data[0]
	s.data = s.data[1:]
	return b, nil
}

func (s *scripted) ReadAll(time.Duration) ([]byte, error) {
	out := s.data
	s.data = nil
	return out, nil
}

func TestValidateLine(t *testing.T) {
	assert.NoError(t, ValidateLine("volume up"))
	assert.NoError(t, ValidateLine(""))

	for _, bad := range []string{"a\nb", "a\r", "\r\n"} {
		err := ValidateLine(bad)
		require.Error(t, err, bad)
		assert.Equal(t, rcerr.InvalidCommand, rcerr.KindOf(err))
	}
}

func TestReadText_Concatenates(t *testing.T) {
	c := &scripted{lines: []string{"ok", " ", "done"}}
	text, err := ReadText(c, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok done", text)
}

func TestReadText_EmptyStream(t *testing.T) {
	text, err := ReadText(&scripted{}, time.Second)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestReadText_DeadlineSpansLines(t *testing.T) {
	c := &scripted{lines: []string{"a", "b", "c", "d", "e"}, delay: 30 * time.Millisecond}
	text, err := ReadText(c, 70*time.Millisecond)
	assert.Equal(t, rcerr.CommunicateTimeout, rcerr.KindOf(err))
	assert.NotEmpty(t, text, "text read before the deadline is kept")
}

func TestReadText_PropagatesIOError(t *testing.T) {
	boom := rcerr.New(rcerr.CommunicateError, "read", "x", "reset")
	c := &scripted{lines: []string{"part"}, readErr: boom}
	text, err := ReadText(c, time.Second)
	assert.Equal(t, "part", text)
	assert.Equal(t, rcerr.CommunicateError, rcerr.KindOf(err))
}

func TestReadBinary(t *testing.T) {
	data, err := ReadBinary(&scripted{data: []byte{0x01, 0x89, 'P', 'N', 'G'}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}

func TestReadBinary_Empty(t *testing.T) {
	_, err := ReadBinary(&scripted{}, time.Second)
	require.Error(t, err)
	assert.Equal(t, rcerr.EmptyResult, rcerr.KindOf(err))
	assert.ErrorIs(t, err, rcerr.ErrEmptyResult)
	assert.Contains(t, err.Error(), "no image available")
}

func TestExchange_Shapes(t *testing.T) {
	c := &scripted{lines: []string{"connected"}}
	p, err := Exchange(c, "CONNECT", Text, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Text, p.Shape)
	assert.Equal(t, "connected", p.Text)
	assert.Equal(t, []string{"CONNECT"}, c.written)
	assert.Equal(t, time.Second, c.writeTimeout, "the write is bounded too")

	c = &scripted{data: []byte{1, 2, 3}}
	p, err = Exchange(c, "#readImage#", Binary, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Binary, p.Shape)
	assert.Equal(t, []byte{2, 3}, p.Data)
}

func TestExchange_RejectsMultiline(t *testing.T) {
	c := &scripted{}
	_, err := Exchange(c, "one\ntwo", Text, time.Second)
	assert.Equal(t, rcerr.InvalidCommand, rcerr.KindOf(err))
	assert.Empty(t, c.written, "nothing is sent for an invalid line")
}

func TestShape_String(t *testing.T) {
	assert.Equal(t, "text", Text.String())
	assert.Equal(t, "binary", Binary.String())
	assert.Equal(t, "unknown", Shape(7).String())
}

// TestExchange_OverTCP runs the codec against a real loopback peer.
func TestExchange_OverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 64)
		n, _ := c.Read(buf)
		got <- string(buf[:n])
		c.Write([]byte("line one\r\nline two\n")) //nolint:errcheck
	}()

	conn, err := transport.Open(context.Background(), &transport.TCPDialer{}, ln.Addr().String(), time.Second, nil)
	require.NoError(t, err)
	defer conn.Close()

	p, err := Exchange(conn, "status", Text, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "line oneline two", p.Text)
	assert.Equal(t, "status\n", <-got)
}
