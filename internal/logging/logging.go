// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package logging builds the zerolog loggers used by the commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options selects the logger level and encoding.
type Options struct {
	Level   string // zerolog level name, empty for warn
	Verbose bool   // forces debug
	JSON    bool   // never use the console writer
}

func (o Options) level() zerolog.Level {
	if o.Verbose {
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(o.Level)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.WarnLevel
	}

	return level
}

// New returns a logger writing to w. Terminals get the human readable
// console format, everything else gets JSON lines.
func New(w io.Writer, opts Options) zerolog.Logger {
	if !opts.JSON && isTerminal(w) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(w).Level(opts.level()).With().Timestamp().Logger()
}

// NewFile returns a JSON logger appending to path, for when the terminal is
// owned by the TUI. The returned function closes the file.
func NewFile(path string, opts Options) (zerolog.Logger, func() error, error) {
	// #nosec G301 - Standard directory permissions for application state
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// #nosec G304 - Log path comes from trusted application code
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}

	opts.JSON = true

	return New(file, opts), file.Close, nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd())) // #nosec G115 - file descriptors fit in int
}
