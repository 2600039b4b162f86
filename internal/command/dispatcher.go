package command

import (
	"fmt"

	rcerr "pcremote/internal/errors"
	"pcremote/internal/protocol"
)

// Wire defaults understood by the PC companion.
const (
	DefaultConnectLine    = "CONNECT"
	DefaultDisconnectLine = "DISCONNECT"
	DefaultImageLine      = "#readImage#"
	DefaultImagePort      = 116
)

// Dispatcher maps commands to wire requests.  The zero value is not
// usable; start from NewDispatcher.
type Dispatcher struct {
	ConnectLine    string
	DisconnectLine string
	ImageLine      string
	ImagePort      int // auxiliary port for FetchImage
}

// NewDispatcher returns a Dispatcher with the wire defaults.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		ConnectLine:    DefaultConnectLine,
		DisconnectLine: DefaultDisconnectLine,
		ImageLine:      DefaultImageLine,
		ImagePort:      DefaultImagePort,
	}
}

// Request is a planned wire exchange.
type Request struct {
	Addr  string
	Line  string
	Shape protocol.Shape
}

// Plan resolves cmd against ep into a concrete request.  It performs no
// I/O.
func (d *Dispatcher) Plan(cmd Command, ep Endpoint) (Request, error) {
	if ep.Host == "" || ep.Port <= 0 {
		return Request{}, rcerr.New(rcerr.InvalidEndpoint, "plan", "", "no endpoint configured")
	}

	var req Request
	switch cmd.Kind {
	case Connect:
		req = Request{Addr: ep.Addr(), Line: d.ConnectLine, Shape: protocol.Text}
	case Disconnect:
		req = Request{Addr: ep.Addr(), Line: d.DisconnectLine, Shape: protocol.Text}
	case Action:
		addr := ep.Addr()
		if cmd.Port > 0 {
			if cmd.Port > 65535 {
				return Request{}, rcerr.New(rcerr.InvalidEndpoint, "plan", "", fmt.Sprintf("port %d out of range", cmd.Port))
			}
			addr = ep.AddrOn(cmd.Port)
		}
		req = Request{Addr: addr, Line: cmd.Payload, Shape: protocol.Text}
	case FetchImage:
		req = Request{Addr: ep.AddrOn(d.ImagePort), Line: d.ImageLine, Shape: protocol.Binary}
	default:
		return Request{}, rcerr.New(rcerr.InvalidCommand, "plan", "", fmt.Sprintf("unknown command kind %d", cmd.Kind))
	}

	if err := protocol.ValidateLine(req.Line); err != nil {
		return Request{}, err
	}
	return req, nil
}
