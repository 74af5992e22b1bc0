// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package cli provides the devapps command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	cliAdapter "github.com/janderssonse/devapps/internal/adapters/cli"
	"github.com/janderssonse/devapps/internal/domain"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Exit codes follow standard Unix conventions for better scripting support.
// Range 0-125 are safe to use (126+ have special meaning in shells).
const (
	ExitSuccess       = 0 // Operation completed successfully
	ExitGeneralError  = 1 // Generic failure (catch-all)
	ExitUsageError    = 2 // Invalid command line usage
	ExitConfigError   = 3 // Configuration or catalog error
	ExitNotFoundError = 5 // Requested application not found

	ExitSystemError    = 12 // Device unavailable
	ExitTimeoutError   = 13 // Run exceeded --timeout
	ExitInterruptError = 14 // User interrupted (Ctrl+C)

	ExitAppError = 22 // Every device operation failed

	ExitWarnings = 64 // Completed, but some operations failed or were cancelled
)

// Version is set at build time.
var Version = "dev"

var (
	// ErrNoApplications is returned when a command needs application names.
	ErrNoApplications = errors.New("no applications specified")
	// ErrConfirmationRequired is returned when a prompt cannot be shown.
	ErrConfirmationRequired = errors.New("confirmation required")
)

// CLI is the devapps command tree.
type CLI struct {
	app        *cli.Command
	configPath string
	verbose    bool
	json       bool
	quiet      bool
	yes        bool
	timeout    time.Duration // bound for a whole queue run

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader

	interactive func() bool
}

// Option configures a CLI.
type Option func(*CLI)

// WithIO replaces the standard streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(app *CLI) {
		app.stdin = stdin
		app.stdout = stdout
		app.stderr = stderr
	}
}

// NewCLI creates the command tree.
func NewCLI(opts ...Option) *CLI {
	app := &CLI{
		stdout: os.Stdout,
		stderr: os.Stderr,
		stdin:  os.Stdin,
	}

	app.interactive = app.isTerminal

	for _, opt := range opts {
		opt(app)
	}

	app.app = &cli.Command{
		Name:    "devapps",
		Usage:   "Install and update applications on your hardware device",
		Version: Version,
		Suggest: true,
		Description: `Manages the applications resident on a hardware device. Operations are
queued and run one at a time over the exclusive device link.

QUICK START:
  devapps catalog              # What can be installed
  devapps install Bitcoin      # Install an app and its dependencies
  devapps update-all           # Bring every installed app up to date
  devapps tui                  # Interactive manager

HELP & DOCS:
  devapps guide                # Usage guide
  devapps guide queue          # How the operation queue behaves`,
		Writer:    app.stdout,
		ErrWriter: app.stderr,
		Reader:    app.stdin,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config.toml",
				Sources:     cli.EnvVars("DEVAPPS_CONFIG"),
				Destination: &app.configPath,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "show debug logs and detailed errors",
				Aliases:     []string{"v"},
				Destination: &app.verbose,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output structured JSON results",
				Aliases:     []string{"j"},
				Destination: &app.json,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Usage:       "suppress non-essential output",
				Aliases:     []string{"q"},
				Destination: &app.quiet,
			},
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "automatically answer yes to all prompts",
				Destination: &app.yes,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "cancel the queue when a run takes longer (0 = no timeout)",
				Destination: &app.timeout,
			},
		},
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			return app.validateFlags(ctx)
		},
		Action:   app.defaultAction,
		Commands: app.createCommands(),
	}

	return app
}

// App returns the root command.
func App() *cli.Command {
	return NewCLI().app
}

// Run executes the CLI application.
func (app *CLI) Run(ctx context.Context, args []string) error {
	return app.app.Run(ctx, args)
}

func (app *CLI) createCommands() []*cli.Command {
	return []*cli.Command{
		app.createCatalogCommand(),
		app.createStatusCommand(),
		app.createInstallCommand(),
		app.createUninstallCommand(),
		app.createUpdateAllCommand(),
		app.createTUICommand(),
		app.createGuideCommand(),
	}
}

func (app *CLI) validateFlags(ctx context.Context) (context.Context, error) {
	if app.json && app.quiet {
		return ctx, domain.NewExitError(ExitUsageError, "cannot use both --json and --quiet", nil)
	}

	if app.timeout < 0 {
		return ctx, domain.NewExitError(ExitUsageError, "--timeout must not be negative", nil)
	}

	return ctx, nil
}

// defaultAction opens the TUI on a terminal and prints help otherwise.
func (app *CLI) defaultAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 0 {
		return domain.NewExitError(ExitNotFoundError,
			fmt.Sprintf("'%s' is not a command.\n\nRun 'devapps --help' to see available commands.", cmd.Args().First()), nil)
	}

	if !app.json && app.interactive() {
		return app.runTUI(ctx)
	}

	return cli.ShowAppHelp(cmd)
}

func (app *CLI) output() domain.OutputPort {
	return cliAdapter.OutputFromFlags(app.stdout, app.stderr, app.json, app.quiet)
}

// isTerminal reports whether both stdin and stdout are terminals.
func (app *CLI) isTerminal() bool {
	in, inOK := app.stdin.(*os.File)
	out, outOK := app.stdout.(*os.File)

	// #nosec G115 - file descriptors fit in int
	return inOK && outOK && term.IsTerminal(int(in.Fd())) && term.IsTerminal(int(out.Fd()))
}
