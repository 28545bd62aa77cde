// Package main is the entry point for the mpc-consumer command-line
// application.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/exfinen/mpc-cluster/cmd/mpc-consumer/app"
	"github.com/exfinen/mpc-cluster/pkg/logger"
)

func main() {
	logger.Initialize()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Errorf("Error executing command: %v", err)
		os.Exit(1)
	}
}
