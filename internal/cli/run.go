// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/janderssonse/devapps/internal/domain"
	"github.com/janderssonse/devapps/internal/manager"
)

// runQueue dispatches intents and reports the queued operations until they
// have all finished. When ctx ends first, everything left is cancelled.
func (app *CLI) runQueue(ctx context.Context, s *session, intents []domain.Intent) error {
	startTime := time.Now()

	if app.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, app.timeout)
		defer cancel()
	}

	output := app.output()

	// Watch before dispatching so no notification is missed.
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()

	events := s.manager.Watch(watchCtx)

	result := &domain.RunResult{Succeeded: []string{}, Timestamp: startTime}

	var (
		accepted []domain.Operation
		notFound int
	)

	for _, intent := range intents {
		if ctx.Err() != nil {
			break
		}

		target := intentTarget(intent)

		ops, err := s.manager.Dispatch(ctx, intent)
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			_ = output.Error(domain.FormatErrorMessage(err, target, app.verbose))
			result.Failed = append(result.Failed, target.Name)

			if errors.Is(err, domain.ErrUnknownApplication) {
				notFound++
			}

			continue
		}

		if len(ops) == 0 && target.Name != "" {
			_ = output.Info(fmt.Sprintf("• %s: nothing to do", target.Name))
			result.Skipped = append(result.Skipped, target.Name)
		}

		accepted = append(accepted, ops...)
	}

	outcomes, cause := app.follow(ctx, s.manager, events, accepted, output)

	for _, op := range accepted {
		switch outcomes[op.ID] {
		case manager.StatusSucceeded:
			result.Succeeded = append(result.Succeeded, op.Name)
		case manager.StatusFailed:
			result.Failed = append(result.Failed, op.Name)
		default:
			result.Cancelled = append(result.Cancelled, op.Name)
		}
	}

	result.Duration = time.Since(startTime)

	if err := app.outputRunResult(result, output); err != nil {
		return domain.NewExitError(ExitGeneralError, "failed to output results", err)
	}

	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		return domain.NewExitError(ExitTimeoutError,
			fmt.Sprintf("Timed out after %s, remaining operations were cancelled", app.timeout), nil)
	case cause != nil:
		return domain.NewExitError(ExitInterruptError, "Interrupted, remaining operations were cancelled", nil)
	}

	return app.runExitCode(result, notFound)
}

// follow reports notifications until every operation in ops has finished.
// It returns each operation's outcome and, if ctx ended, why.
func (app *CLI) follow(ctx context.Context, m *manager.Manager, events <-chan manager.Event,
	ops []domain.Operation, output domain.OutputPort,
) (map[string]manager.OpStatus, error) {
	outcomes := make(map[string]manager.OpStatus, len(ops))

	pending := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		pending[op.ID] = struct{}{}
	}

	var cause error

	done := ctx.Done()

	for len(pending) > 0 {
		select {
		case <-done:
			done = nil
			cause = ctx.Err()

			_ = output.Info("Cancelling queued operations...")

			if _, err := m.Dispatch(context.Background(), domain.CancelAll{}); err != nil {
				return outcomes, cause
			}
		case ev, ok := <-events:
			if !ok {
				return outcomes, cause
			}

			app.report(ev, output)

			if status, terminal := terminalStatus(ev.Type); terminal {
				if _, ours := pending[ev.Op.ID]; ours {
					outcomes[ev.Op.ID] = status
					delete(pending, ev.Op.ID)
				}
			}
		}
	}

	return outcomes, cause
}

// report prints one notification.
func (app *CLI) report(ev manager.Event, output domain.OutputPort) {
	if app.json {
		return
	}

	switch ev.Type {
	case manager.EventStarted:
		_ = output.Info(batchPrefix(ev.State) + "→ " + verb(ev.Op.Kind, true) + " " + ev.Op.Name)
	case manager.EventProgress:
		_ = output.Progress(fmt.Sprintf("  %s %3.0f%%", ev.Op.Name, ev.Progress*100))
	case manager.EventSucceeded:
		_ = output.Success("✓ "+verb(ev.Op.Kind, false)+" "+ev.Op.Name, nil)
	case manager.EventFailed:
		_ = output.Error(domain.FormatErrorMessage(ev.Err, ev.Op, app.verbose))
	case manager.EventCancelled:
		_ = output.Info("⊘ Cancelled " + ev.Op.String())
	case manager.EventQueued:
		if app.verbose {
			_ = output.Info("  queued " + ev.Op.String())
		}
	}
}

func (app *CLI) outputRunResult(result *domain.RunResult, output domain.OutputPort) error {
	if app.json {
		return output.Success("", result)
	}

	if len(result.Succeeded)+len(result.Failed)+len(result.Cancelled) == 0 {
		return nil
	}

	return output.Success(buildResultSummary(result), nil)
}

// runExitCode maps the outcome of a completed run to an exit status.
func (app *CLI) runExitCode(result *domain.RunResult, notFound int) error {
	failed := len(result.Failed)

	switch {
	case failed > 0 && len(result.Succeeded) == 0 && len(result.Cancelled) == 0:
		if notFound == failed {
			return domain.NewExitError(ExitNotFoundError, "No such application in the catalog", nil)
		}

		msg := "All operations failed. Common causes:\n"
		msg += "  • Not enough free blocks on the device\n"
		msg += "  • Device locked or disconnected\n"

		if !app.verbose {
			msg += "Run with --verbose for detailed errors"
		}

		return domain.NewExitError(ExitAppError, msg, nil)
	case failed > 0 || len(result.Cancelled) > 0:
		return domain.NewExitError(ExitWarnings,
			fmt.Sprintf("%d operations failed, %d cancelled", failed, len(result.Cancelled)), nil)
	}

	return nil
}

// buildResultSummary creates a summary string for a run.
func buildResultSummary(result *domain.RunResult) string {
	total := len(result.Succeeded) + len(result.Failed) + len(result.Cancelled)

	var summary strings.Builder

	summary.WriteString(fmt.Sprintf("Completed %d/%d operations", len(result.Succeeded), total))

	if n := len(result.Failed); n > 0 {
		summary.WriteString(fmt.Sprintf(", %d failed", n))
	}

	if n := len(result.Cancelled); n > 0 {
		summary.WriteString(fmt.Sprintf(", %d cancelled", n))
	}

	if n := len(result.Skipped); n > 0 {
		summary.WriteString(fmt.Sprintf(", %d skipped", n))
	}

	summary.WriteString(fmt.Sprintf(" (%.2fs)", result.Duration.Seconds()))

	return summary.String()
}

func terminalStatus(t manager.EventType) (manager.OpStatus, bool) {
	switch t {
	case manager.EventSucceeded:
		return manager.StatusSucceeded, true
	case manager.EventFailed:
		return manager.StatusFailed, true
	case manager.EventCancelled:
		return manager.StatusCancelled, true
	default:
		return "", false
	}
}

// intentTarget describes what an intent acts on, for messages.
func intentTarget(intent domain.Intent) domain.Operation {
	switch in := intent.(type) {
	case domain.Install:
		return domain.Operation{Kind: domain.OpInstall, Name: in.Name}
	case domain.Uninstall:
		return domain.Operation{Kind: domain.OpUninstall, Name: in.Name}
	default:
		return domain.Operation{Kind: domain.OpUpdate}
	}
}

func batchPrefix(state *manager.State) string {
	if state == nil || state.Batch == nil {
		return ""
	}

	return fmt.Sprintf("[%d/%d] ", state.Batch.Completed+1, state.Batch.Total)
}

func verb(kind domain.OpKind, ongoing bool) string {
	switch kind {
	case domain.OpInstall:
		return pick(ongoing, "Installing", "Installed")
	case domain.OpUpdate:
		return pick(ongoing, "Updating", "Updated")
	case domain.OpUninstall:
		return pick(ongoing, "Uninstalling", "Uninstalled")
	default:
		return string(kind)
	}
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}

	return b
}
