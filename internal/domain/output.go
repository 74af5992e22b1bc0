// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import "time"

// OutputPort defines the interface for presenting command results.
// This is a domain port that adapters implement for different output formats.
type OutputPort interface {
	// Success outputs a success message with optional structured data
	Success(message string, data any) error

	// Error outputs an error message
	Error(message string) error

	// Info outputs an informational message
	Info(message string) error

	// Progress outputs progress information for long-running operations
	Progress(message string) error

	// Table outputs tabular data
	Table(headers []string, rows [][]string) error

	// IsQuiet returns true if output should be suppressed
	IsQuiet() bool
}

// RunResult is the outcome of a CLI run that drained the operation queue.
type RunResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []string      `json:"failed,omitempty"`
	Cancelled []string      `json:"cancelled,omitempty"`
	Skipped   []string      `json:"skipped,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// CatalogListing is the catalog joined with the device ledger.
type CatalogListing struct {
	Apps      []AppStatus `json:"apps"`
	Total     int         `json:"total"`
	Timestamp time.Time   `json:"timestamp"`
}

// AppStatus describes one catalog application from the device's point of view.
type AppStatus struct {
	Name             string `json:"name"`
	CatalogVersion   string `json:"catalog_version"`
	InstalledVersion string `json:"installed_version,omitempty"`
	Installed        bool   `json:"installed"`
	Updated          bool   `json:"updated"`
	Blocks           int    `json:"blocks"`
	Description      string `json:"description,omitempty"`
}

// DeviceStatus summarizes the device storage and queue.
type DeviceStatus struct {
	Installed      int         `json:"installed"`
	Outdated       []string    `json:"outdated"`
	UsedBlocks     int         `json:"used_blocks"`
	CapacityBlocks int         `json:"capacity_blocks"`
	FreeBlocks     int         `json:"free_blocks"`
	Queue          []Operation `json:"queue"`
	Current        *Operation  `json:"current,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}
