package core

import (
	"context"

	"pcremote/internal/peer"
)

// ServeMode runs the companion stub until ctx is cancelled.
type ServeMode struct {
	Server *peer.Server
}

// Run binds the listeners and serves.
func (m *ServeMode) Run(ctx context.Context) error {
	return m.Server.Run(ctx)
}
