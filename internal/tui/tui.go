// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package tui implements the interactive device manager screen.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// Options configures Run.
type Options struct {
	Input          io.Reader
	Output         io.Writer
	CapacityBlocks int // zero hides the storage readout
}

// Run shows the manager screen until the user quits or ctx is done.
func Run(ctx context.Context, ctrl Controller, opts Options) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	programOpts := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	}

	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}

	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}

	program := tea.NewProgram(NewModel(watchCtx, ctrl, opts.CapacityBlocks), programOpts...)

	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("TUI application failed: %w", err)
	}

	return nil
}
