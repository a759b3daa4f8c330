// Caddy is a hands-free voice golf assistant on Amazon Nova Sonic.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-caddy/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.Execute(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
