// Package transport provides the byte-stream layer under the line
// protocol: dialers that establish connections (plain TCP or through
// an SSH tunnel) and [Conn], a time-bounded line/bulk reader over one
// socket with an idempotent Close.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.  Implementations include
// a plain TCP dialer and an SSH-tunnelled dialer that routes traffic
// through a jump host.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
