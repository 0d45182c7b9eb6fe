// Package main is the entrypoint for the notification dispatcher service.
// The dispatcher sends SMS and email through per-channel reliability
// pipelines, consumes OTP events from the queue, and records every attempt
// in the audit store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aelexs/notification-dispatch/internal/config"
	"github.com/aelexs/notification-dispatch/internal/server"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return server.Run(ctx, server.Params{
		Name:           "dispatcher",
		PortFromConfig: func(cfg *config.Config) int { return cfg.HTTP.Port },
		Setup:          setup,
	}, nil)
}
