// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package cli provides output adapters for CLI operations.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/janderssonse/devapps/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned when an unsupported output format is requested.
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// OutputAdapter implements domain.OutputPort for CLI output.
// Progress lines are rewritten in place until the next message.
type OutputAdapter struct {
	mu        sync.Mutex
	writer    io.Writer
	errWriter io.Writer
	format    OutputFormat
	quiet     bool
	inline    bool // a progress line is open on writer
}

// OutputFormat represents the output format type.
type OutputFormat int

const (
	// TextFormat outputs human-readable text.
	TextFormat OutputFormat = iota
	// JSONFormat outputs machine-readable JSON.
	JSONFormat
)

// NewOutputAdapterWithWriters creates an adapter with custom writers.
// Errors go to errWriter in text mode; JSON documents always go to writer.
func NewOutputAdapterWithWriters(writer, errWriter io.Writer, format OutputFormat, quiet bool) *OutputAdapter {
	return &OutputAdapter{
		writer:    writer,
		errWriter: errWriter,
		format:    format,
		quiet:     quiet,
	}
}

// Success outputs a success message with optional structured data.
// Structured data is emitted in JSON mode even when quiet.
func (o *OutputAdapter) Success(message string, data any) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.format == JSONFormat {
		if data == nil {
			return nil
		}

		return o.outputJSON(data)
	}

	if message == "" || o.quiet {
		return nil
	}

	o.endLine()
	_, err := fmt.Fprintln(o.writer, message)

	return err
}

// Error outputs an error message.
func (o *OutputAdapter) Error(message string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.format == JSONFormat {
		return o.outputJSON(map[string]string{"error": message})
	}

	o.endLine()
	_, err := fmt.Fprintln(o.errWriter, message)

	return err
}

// Info outputs an informational message.
func (o *OutputAdapter) Info(message string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.quiet || o.format == JSONFormat {
		return nil
	}

	o.endLine()
	_, err := fmt.Fprintln(o.writer, message)

	return err
}

// Progress rewrites the current line with message.
func (o *OutputAdapter) Progress(message string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.quiet || o.format == JSONFormat {
		return nil
	}

	o.inline = true
	_, err := fmt.Fprintf(o.writer, "\r\033[K%s", message)

	return err
}

// Table outputs tabular data.
func (o *OutputAdapter) Table(headers []string, rows [][]string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.format == JSONFormat {
		records := make([]map[string]string, 0, len(rows))

		for _, row := range rows {
			record := make(map[string]string, len(headers))
			for i, header := range headers {
				if i < len(row) {
					record[strings.ToLower(header)] = row[i]
				}
			}

			records = append(records, record)
		}

		return o.outputJSON(records)
	}

	if o.quiet {
		return nil
	}

	o.endLine()

	w := tabwriter.NewWriter(o.writer, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))

	separators := make([]string, len(headers))
	for i := range headers {
		separators[i] = strings.Repeat("-", len(headers[i]))
	}

	_, _ = fmt.Fprintln(w, strings.Join(separators, "\t"))

	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	return w.Flush()
}

// IsQuiet returns true if output should be suppressed.
func (o *OutputAdapter) IsQuiet() bool {
	return o.quiet
}

// endLine terminates an open progress line.
func (o *OutputAdapter) endLine() {
	if o.inline {
		_, _ = fmt.Fprintln(o.writer)
		o.inline = false
	}
}

func (o *OutputAdapter) outputJSON(data any) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(data)
}

// ParseOutputFormat parses a string into an OutputFormat.
func ParseOutputFormat(format string) (OutputFormat, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return TextFormat, nil
	case "json":
		return JSONFormat, nil
	default:
		return TextFormat, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// OutputFromFlags creates an output port for the global --json and --quiet flags.
func OutputFromFlags(writer, errWriter io.Writer, jsonFlag, quietFlag bool) domain.OutputPort {
	format := TextFormat
	if jsonFlag {
		format = JSONFormat
	}

	return NewOutputAdapterWithWriters(writer, errWriter, format, quietFlag)
}
