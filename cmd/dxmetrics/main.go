// Package main provides the dxmetrics CLI for exercising the build metrics
// plugin outside a build tool: simulating builds, replaying recorded
// lifecycle traces and inspecting configuration.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
