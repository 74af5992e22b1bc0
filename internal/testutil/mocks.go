// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package testutil provides test doubles for the device and catalog ports.
package testutil

import (
	"context"

	"github.com/janderssonse/devapps/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockDeviceLink mocks the DeviceLink port for testing.
type MockDeviceLink struct {
	mock.Mock
}

// ListInstalled mocks reading the device listing.
func (m *MockDeviceLink) ListInstalled(ctx context.Context) ([]domain.DeviceApp, error) {
	args := m.Called(ctx)
	if result := args.Get(0); result != nil {
		apps, ok := result.([]domain.DeviceApp)
		if !ok {
			return nil, args.Error(1)
		}

		return apps, args.Error(1)
	}

	return nil, args.Error(1)
}

// Start mocks starting a device operation.
func (m *MockDeviceLink) Start(ctx context.Context, op domain.Operation, app domain.CatalogEntry) (<-chan domain.LinkEvent, error) {
	args := m.Called(ctx, op, app)
	if result := args.Get(0); result != nil {
		events, ok := result.(<-chan domain.LinkEvent)
		if !ok {
			return nil, args.Error(1)
		}

		return events, args.Error(1)
	}

	return nil, args.Error(1)
}

// MockCatalogSource mocks the CatalogSource port for testing.
type MockCatalogSource struct {
	mock.Mock
}

// Load mocks loading catalog entries.
func (m *MockCatalogSource) Load(ctx context.Context) ([]domain.CatalogEntry, error) {
	args := m.Called(ctx)
	if result := args.Get(0); result != nil {
		entries, ok := result.([]domain.CatalogEntry)
		if !ok {
			return nil, args.Error(1)
		}

		return entries, args.Error(1)
	}

	return nil, args.Error(1)
}

// Finished returns a closed event channel holding a single terminal event.
func Finished(err error) <-chan domain.LinkEvent {
	events := make(chan domain.LinkEvent, 1)
	events <- domain.LinkEvent{Done: true, Err: err}
	close(events)

	return events
}
