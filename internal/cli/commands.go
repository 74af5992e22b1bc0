// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/janderssonse/devapps/internal/domain"
	"github.com/janderssonse/devapps/internal/manager"
	"github.com/janderssonse/devapps/internal/tui"
	"github.com/urfave/cli/v3"
)

func (app *CLI) createCatalogCommand() *cli.Command {
	return &cli.Command{
		Name:    "catalog",
		Aliases: []string{"list"},
		Usage:   "List available applications and their device status",
		Description: `Shows every application in the catalog next to the version on the device.

Examples:
  devapps catalog                  # Table of applications
  devapps catalog --json           # Catalog joined with the device ledger`,
		Action: app.runCatalog,
	}
}

func (app *CLI) runCatalog(ctx context.Context, _ *cli.Command) error {
	s, err := app.openSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.close()

	state := s.manager.State()
	output := app.output()

	listing := domain.CatalogListing{
		Apps:      make([]domain.AppStatus, 0, len(state.Apps)),
		Total:     len(state.Apps),
		Timestamp: time.Now(),
	}

	rows := make([][]string, 0, len(state.Apps))

	for _, entry := range state.Apps {
		status := domain.AppStatus{
			Name:           entry.Name,
			CatalogVersion: entry.Version,
			Blocks:         entry.Blocks,
			Description:    entry.Description,
		}

		if record, ok := state.Record(entry.Name); ok {
			status.Installed = true
			status.InstalledVersion = record.Version
			status.Updated = record.Updated
		}

		listing.Apps = append(listing.Apps, status)
		rows = append(rows, []string{
			entry.Name,
			entry.Version,
			orDash(status.InstalledVersion),
			describeStatus(state, status),
			strconv.Itoa(entry.Blocks),
		})
	}

	if app.json {
		return output.Success("", listing)
	}

	return output.Table([]string{"NAME", "VERSION", "INSTALLED", "STATUS", "BLOCKS"}, rows)
}

func describeStatus(state *manager.State, status domain.AppStatus) string {
	if op, ok := state.Pending(status.Name); ok {
		return "queued " + string(op.Kind)
	}

	switch {
	case !status.Installed:
		return "-"
	case status.Updated:
		return "up to date"
	default:
		return "update available"
	}
}

func (app *CLI) createStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show device storage and pending updates",
		Description: `Reports what is installed on the device, how much storage is free and
which applications have a newer catalog version.`,
		Action: app.runStatus,
	}
}

func (app *CLI) runStatus(ctx context.Context, _ *cli.Command) error {
	s, err := app.openSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.close()

	status := s.status()
	status.Timestamp = time.Now()

	output := app.output()

	if app.json {
		return output.Success("", status)
	}

	_ = output.Info(fmt.Sprintf("Storage:   %d/%d blocks used, %d free", status.UsedBlocks, status.CapacityBlocks, status.FreeBlocks))
	_ = output.Info(fmt.Sprintf("Installed: %d applications", status.Installed))

	if len(status.Outdated) == 0 {
		_ = output.Info("Updates:   none")
	} else {
		_ = output.Info("Updates:   " + strings.Join(status.Outdated, ", "))
		_ = output.Info("\nRun 'devapps update-all' to install them.")
	}

	state := s.manager.State()
	if len(state.Installed) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(state.Installed))
	for _, record := range state.Installed {
		rows = append(rows, []string{record.Name, record.Version, strconv.Itoa(record.Blocks)})
	}

	_ = output.Info("")

	return output.Table([]string{"NAME", "VERSION", "BLOCKS"}, rows)
}

func (app *CLI) createInstallCommand() *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "Install or update applications on the device",
		ArgsUsage: "<app>...",
		Description: `Queues an install for each application. Dependencies that are missing
are installed first; an installed application with a newer catalog version is updated.

Examples:
  devapps install Bitcoin             # Install one application
  devapps install Litecoin Dogecoin   # Queue several
  devapps install Bitcoin --json      # Output JSON results`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			intents, err := app.intentsFromArgs(cmd, func(name string) domain.Intent {
				return domain.Install{Name: name}
			})
			if err != nil {
				return err
			}

			return app.runIntents(ctx, intents)
		},
	}
}

func (app *CLI) createUninstallCommand() *cli.Command {
	return &cli.Command{
		Name:      "uninstall",
		Aliases:   []string{"remove"},
		Usage:     "Remove applications from the device",
		ArgsUsage: "<app>...",
		Description: `Queues an uninstall for each application. Installed applications that
depend on it are removed first. A pending install of the application is withdrawn.

Examples:
  devapps uninstall Dogecoin`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			intents, err := app.intentsFromArgs(cmd, func(name string) domain.Intent {
				return domain.Uninstall{Name: name}
			})
			if err != nil {
				return err
			}

			return app.runIntents(ctx, intents)
		},
	}
}

func (app *CLI) intentsFromArgs(cmd *cli.Command, intent func(string) domain.Intent) ([]domain.Intent, error) {
	if cmd.Args().Len() == 0 {
		return nil, domain.NewExitError(ExitUsageError,
			fmt.Sprintf("%v\n\nUsage: devapps %s <app>...", ErrNoApplications, cmd.Name), ErrNoApplications)
	}

	intents := make([]domain.Intent, 0, cmd.Args().Len())

	for _, name := range cmd.Args().Slice() {
		if name = strings.TrimSpace(name); name != "" {
			intents = append(intents, intent(name))
		}
	}

	return intents, nil
}

func (app *CLI) runIntents(ctx context.Context, intents []domain.Intent) error {
	s, err := app.openSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.close()

	return app.runQueue(ctx, s, intents)
}

func (app *CLI) createUpdateAllCommand() *cli.Command {
	return &cli.Command{
		Name:  "update-all",
		Usage: "Update every outdated application",
		Description: `Queues an update for each installed application whose catalog version is
newer, in catalog order, and reports progress across the batch.

Examples:
  devapps update-all          # Asks before starting
  devapps update-all --yes    # No prompt, for scripts`,
		Action: app.runUpdateAll,
	}
}

func (app *CLI) runUpdateAll(ctx context.Context, _ *cli.Command) error {
	s, err := app.openSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.close()

	outdated := s.manager.State().Outdated()
	output := app.output()

	if len(outdated) == 0 {
		if app.json {
			return output.Success("", domain.RunResult{Succeeded: []string{}, Timestamp: time.Now()})
		}

		return output.Success("✓ All applications are up to date", nil)
	}

	if !app.yes {
		confirmed, err := app.confirm(ctx, fmt.Sprintf("Update %d applications?", len(outdated)), strings.Join(outdated, ", "))
		if err != nil {
			return err
		}

		if !confirmed {
			return output.Info("Nothing was updated.")
		}
	}

	return app.runQueue(ctx, s, []domain.Intent{domain.UpdateAll{}})
}

// confirm asks a yes/no question. It fails when no prompt can be shown.
func (app *CLI) confirm(ctx context.Context, title, description string) (bool, error) {
	if app.json || !app.interactive() {
		return false, domain.NewExitError(ExitUsageError,
			"Confirmation required: rerun with --yes to proceed without a prompt", ErrConfirmationRequired)
	}

	confirmed := true

	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&confirmed),
	)).
		WithTheme(huh.ThemeCharm()).
		WithInput(app.stdin).
		WithOutput(app.stdout)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}

		return false, domain.NewExitError(ExitGeneralError, "Failed to show prompt", err)
	}

	return confirmed, nil
}

func (app *CLI) createTUICommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the interactive manager",
		Description: `Browse the catalog and manage the device interactively.

Keys:
  j/k, ↑/↓   move
  i          install or update the selected application
  x          uninstall the selected application
  u          update all outdated applications
  c          cancel everything queued
  r          reload the device state
  q          quit`,
		Action: func(ctx context.Context, _ *cli.Command) error {
			return app.runTUI(ctx)
		},
	}
}

func (app *CLI) runTUI(ctx context.Context) error {
	s, err := app.openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()

	err = tui.Run(ctx, s.manager, tui.Options{
		Input:          app.stdin,
		Output:         app.stdout,
		CapacityBlocks: s.device.CapacityBlocks(),
	})
	if err != nil {
		if app.verbose {
			return domain.NewExitError(ExitGeneralError, fmt.Sprintf("Failed to launch TUI: %v", err), nil)
		}

		return domain.NewExitError(ExitGeneralError, "Failed to launch interactive interface (terminal required)", nil)
	}

	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
