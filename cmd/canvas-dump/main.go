/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	setupSignalHandlers(cancel)

	err := Execute(ctx)
	cancel()
	if err != nil {
		slog.Error("canvas-dump failed.", "err", err)
		os.Exit(1)
	}
}

// setupSignalHandlers cancels the root context on SIGINT or SIGTERM.  In-flight requests then fail
// and are reported like any other failure.
func setupSignalHandlers(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		cancel()
	}()
}
