// Package core is the orchestration layer.  It composes the session
// engine, dialers and the companion stub into complete operational
// modes and provides a builder that selects the right mode from a
// Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  protocol  →  session  →  engine  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of pcremote (run
// commands against a PC, or serve as a stand-in PC).  Each mode owns
// its full lifecycle from setup to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
