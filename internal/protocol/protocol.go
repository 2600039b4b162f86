// Package protocol implements the line protocol spoken with the PC
// companion: one request line out, then either accumulated text lines
// or an opaque byte stream back.
package protocol

import (
	"errors"
	"io"
	"strings"
	"time"

	rcerr "pcremote/internal/errors"
)

// Shape selects how a response is decoded.
type Shape int

const (
	// Text responses are lines read until end of stream and joined with
	// no separator.
	Text Shape = iota
	// Binary responses are a one-byte presence marker followed by raw
	// bytes up to end of stream.
	Binary
)

func (s Shape) String() string {
	switch s {
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// LineConn is the subset of a transport connection the codec needs.
type LineConn interface {
	WriteLine(text string, timeout time.Duration) error
	ReadLine(timeout time.Duration) (string, error)
	Probe(timeout time.Duration) (byte, error)
	ReadAll(timeout time.Duration) ([]byte, error)
}

// Payload is a decoded response.  Exactly one of Text or Data is
// meaningful, according to Shape.
type Payload struct {
	Shape Shape
	Text  string
	Data  []byte
}

// ValidateLine reports an InvalidCommand error if text cannot be sent
// as a single line.
func ValidateLine(text string) error {
	if strings.ContainsAny(text, "\r\n") {
		return rcerr.New(rcerr.InvalidCommand, "encode", "", "line contains a newline")
	}
	return nil
}

// Exchange writes line and decodes the response according to shape.
// timeout bounds the write and then the whole read phase; 0 leaves
// them unbounded.
func Exchange(conn LineConn, line string, shape Shape, timeout time.Duration) (Payload, error) {
	if err := ValidateLine(line); err != nil {
		return Payload{}, err
	}
	if err := conn.WriteLine(line, timeout); err != nil {
		return Payload{}, err
	}

	switch shape {
	case Binary:
		data, err := ReadBinary(conn, timeout)
		return Payload{Shape: Binary, Data: data}, err
	default:
		text, err := ReadText(conn, timeout)
		return Payload{Shape: Text, Text: text}, err
	}
}

// ReadText reads lines until end of stream and concatenates them with
// no separator.  A stream that ends mid-response is a normal end.
func ReadText(conn LineConn, timeout time.Duration) (string, error) {
	dl := newDeadline(timeout)

	var sb strings.Builder
	for {
		remaining, err := dl.remaining()
		if err != nil {
			return sb.String(), err
		}
		line, err := conn.ReadLine(remaining)
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(line)
	}
}

// ReadBinary probes for a presence byte and then reads the rest of the
// stream.  An immediately closed stream is EmptyResult.  The probe byte
// is not part of the returned data.
func ReadBinary(conn LineConn, timeout time.Duration) ([]byte, error) {
	dl := newDeadline(timeout)

	if _, err := conn.Probe(timeout); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, rcerr.Wrap(rcerr.EmptyResult, "read", "", rcerr.ErrEmptyResult)
		}
		return nil, err
	}

	remaining, err := dl.remaining()
	if err != nil {
		return nil, err
	}
	return conn.ReadAll(remaining)
}

// deadline spreads one timeout over several reads.
type deadline struct {
	at time.Time // zero = unbounded
}

func newDeadline(timeout time.Duration) deadline {
	if timeout <= 0 {
		return deadline{}
	}
	return deadline{at: time.Now().Add(timeout)}
}

func (d deadline) remaining() (time.Duration, error) {
	if d.at.IsZero() {
		return 0, nil
	}
	left := time.Until(d.at)
	if left <= 0 {
		return 0, rcerr.New(rcerr.CommunicateTimeout, "read", "", "communicate timeout exceeded")
	}
	return left, nil
}
