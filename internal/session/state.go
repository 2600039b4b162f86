// Package session serializes command execution against one PC endpoint.
//
// A [Manager] owns a FIFO queue and exactly one worker goroutine.  Each
// command opens a fresh connection, exchanges one request and response,
// and closes it before the next command starts, so the endpoint never
// sees two connections from the same Manager at once.  Outcomes are
// handed to a [delivery.Deliverer] and reach handlers in submission
// order.
package session

// State is the connection state of a Manager's session.
type State int32

const (
	Idle State = iota
	Connecting
	Connected
	Closing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
