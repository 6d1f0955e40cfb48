package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Build-time variables set via -ldflags.
var (
	Version = "v0.0.1-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
