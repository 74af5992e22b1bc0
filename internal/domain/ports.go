// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"context"
)

// LinkEvent is a notification from the device about a started operation.
// Done marks the terminal event; Err is nil on success.
type LinkEvent struct {
	Progress float64
	Done     bool
	Err      error
}

// DeviceLink defines the exclusive channel to the hardware device.
// Implemented by the device simulator and by test doubles.
type DeviceLink interface {
	// ListInstalled returns the applications currently resident on the device.
	ListInstalled(ctx context.Context) ([]DeviceApp, error)

	// Start begins an operation. The returned channel carries progress events
	// followed by exactly one terminal event, after which it is closed.
	// Cancelling ctx requests a best-effort abort.
	Start(ctx context.Context, op Operation, app CatalogEntry) (<-chan LinkEvent, error)
}

// CatalogSource supplies the catalog at session start.
type CatalogSource interface {
	Load(ctx context.Context) ([]CatalogEntry, error)
}
