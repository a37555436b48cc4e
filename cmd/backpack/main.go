// Command backpack keeps agent context files on a branch and emits clean
// branches without them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NielsdaWheelz/backpack/internal/cli"
	"github.com/NielsdaWheelz/backpack/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}
}
