// Command formctl fills, validates and serves form specifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-formspec/pkg/prompt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdout, os.Stderr, prompt.NewSurveyDriver())
	if err := app.command().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "formctl: %v\n", err)
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		if errors.Is(err, prompt.ErrAborted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
