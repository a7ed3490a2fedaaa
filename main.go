package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardnew/shgo/cli"
	"github.com/ardnew/shgo/cli/cmd"
	"github.com/ardnew/shgo/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.Run(ctx, os.Exit, os.Args[1:]...)

	stop()

	var status cmd.ExitStatus

	switch {
	case err == nil:
	case errors.As(err, &status):
		os.Exit(int(status))
	default:
		log.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}
