// pcremote - remote control client for a PC companion process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pcremote/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pcremote: %v\n", err)
		os.Exit(1)
	}
}
