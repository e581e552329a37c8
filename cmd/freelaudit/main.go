// Package main provides the entry point for the freelaudit CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Sumatoshi-tech/freelaudit/cmd/freelaudit/commands"
	"github.com/Sumatoshi-tech/freelaudit/pkg/version"
)

func main() {
	// Tokens usually live in a local .env; its absence is fine.
	_ = godotenv.Load()

	version.InitBinaryVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.NewRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
