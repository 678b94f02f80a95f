package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joy095/hallbooking/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
