// Package main is the entrypoint for the jwtguard service: stateless JWT
// authentication with blacklist-backed logout and refresh rotation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/a2workspace/jwtguard/internal/config"
	"github.com/a2workspace/jwtguard/internal/server"
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
		Name:           "jwtguard",
		PortFromConfig: func(cfg *config.Config) int { return cfg.Auth.HTTPPort },
		Setup:          setup,
	}, nil)
}
