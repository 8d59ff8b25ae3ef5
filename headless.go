//go:build headless

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Headless build: the backend runs without a webview window. Point a browser
// (or the packaged frontend served from /) at the server URL instead.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := BootApp(ctx)
	if err != nil {
		fmt.Println("Backend start failed", err)
		os.Exit(1)
	}
	defer backend.Shutdown()

	backend.Logger.Info("running headless", "url", backend.ServerURL())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	backend.Logger.Info("shutting down")
	cancel()
}
