package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"pcremote/config"
	"pcremote/internal/command"
	"pcremote/internal/engine"
	"pcremote/internal/retry"
	"pcremote/internal/session"
	"pcremote/util"
)

// RunMode sends a sequence of commands to one PC through a single
// engine and prints each result.  It stops at the first command that
// still fails after its retries.
type RunMode struct {
	Options  session.Options
	Host     string
	Port     int
	Commands []command.Command

	// Retries is the number of extra attempts for retryable failures.
	Retries int
	Backoff *retry.Backoff

	// Output receives image data; "" or "-" means Stdout.
	Output string

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
	Logger *util.Logger
}

func (m *RunMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run executes the commands in order.  The engine is shut down and the
// dialer closed when Run returns.
func (m *RunMode) Run(ctx context.Context) error {
	if m.Logger == nil {
		m.Logger = util.Nop()
	}
	if m.Options.Dialer != nil {
		defer m.Options.Dialer.Close()
	}

	e := engine.New(m.Options)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownGrace)
		defer cancel()
		if err := e.Shutdown(sctx); err != nil {
			m.Logger.Warn("shutdown: %v", err)
		}
	}()

	if err := e.Configure(m.Host, m.Port); err != nil {
		return err
	}

	for _, cmd := range m.Commands {
		o, err := m.runOne(ctx, e, cmd)
		if err != nil {
			return err
		}
		if err := m.report(o); err != nil {
			return err
		}
	}
	return nil
}

// runOne submits cmd, retrying retryable failures.
func (m *RunMode) runOne(ctx context.Context, e *engine.Engine, cmd command.Command) (command.Outcome, error) {
	b := m.Backoff
	if b == nil {
		b = retry.DefaultBackoff()
	}
	b = b.WithAttempts(m.Retries + 1)
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		m.Logger.Info("%s attempt %d failed (%v), retrying in %v", cmd.Kind, attempt, err, wait.Round(time.Millisecond))
	}

	var last command.Outcome
	err := b.Do(ctx, func(attempt int) error {
		tk, err := e.Submit(cmd, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		m.Logger.Verbose("%s submitted (id %s, attempt %d)", cmd.Kind, tk.ID(), attempt)
		o, err := tk.Wait(ctx)
		if err != nil {
			return retry.Permanent(err)
		}
		last = o
		return retry.Classify(o.Error())
	})
	if ctx.Err() != nil {
		return last, ctx.Err()
	}
	if last.ID == "" && err != nil {
		return last, err
	}
	return last, nil
}

// report prints a successful outcome or turns a failed one into the
// run's error.
func (m *RunMode) report(o command.Outcome) error {
	if !o.Success() {
		m.Logger.Error("%s %s: %v", o.Command, o.Addr, o.Err)
		return fmt.Errorf("%s failed: %w", o.Command, o.Err)
	}

	m.Logger.Verbose("%s completed in %v", o.Command, o.Elapsed.Round(time.Millisecond))
	if o.Command != command.FetchImage {
		_, err := fmt.Fprintln(m.stdout(), o.Text)
		return err
	}

	if m.Output == "" || m.Output == "-" {
		_, err := m.stdout().Write(o.Data)
		return err
	}
	if err := os.WriteFile(m.Output, o.Data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	m.Logger.Info("wrote %d bytes to %s", len(o.Data), m.Output)
	return nil
}
