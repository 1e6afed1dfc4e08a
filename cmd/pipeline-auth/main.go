package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/florianilch/pipeline-auth/cmd/pipeline-auth/commands"
	"github.com/florianilch/pipeline-auth/internal/console"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.Execute(ctx, os.Args)
	stop()
	if err != nil {
		console.New(os.Stderr).Fail("%v", err)
		os.Exit(1)
	}
}
