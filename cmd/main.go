// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package main provides the CLI entry point for devapps.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/janderssonse/devapps/internal/cli"
	"github.com/janderssonse/devapps/internal/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	// The first interrupt cancels the queue; a second one kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		stop()
	}()

	if err := cli.NewCLI().Run(ctx, os.Args); err != nil {
		exitErr := &domain.ExitError{}
		if errors.As(err, &exitErr) {
			// Error message to stderr only
			fmt.Fprintf(os.Stderr, "%s\n", exitErr.Message)

			return exitErr.Code
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return cli.ExitGeneralError
	}

	return cli.ExitSuccess
}
