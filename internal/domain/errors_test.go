// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/janderssonse/devapps/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk on fire")

	withCause := domain.NewExitError(3, "Failed to load configuration", cause)
	assert.Equal(t, "Failed to load configuration: disk on fire", withCause.Error())
	assert.ErrorIs(t, withCause, cause)

	bare := domain.NewExitError(2, "No applications given", nil)
	assert.Equal(t, "No applications given", bare.Error())
	assert.NoError(t, errors.Unwrap(bare))

	var exitErr *domain.ExitError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", withCause), &exitErr)
	assert.Equal(t, 3, exitErr.Code)
}

func TestDeviceLinkError(t *testing.T) {
	t.Parallel()

	op := domain.Operation{ID: "1", Kind: domain.OpInstall, Name: "Bitcoin"}

	err := domain.NewDeviceLinkError(op, domain.ErrInsufficientSpace)
	assert.ErrorIs(t, err, domain.ErrDeviceLink)
	assert.ErrorIs(t, err, domain.ErrInsufficientSpace)
	assert.NotErrorIs(t, err, domain.ErrOperationAborted)
	assert.Equal(t, "device link error: install(Bitcoin): insufficient device storage", err.Error())

	bare := domain.NewDeviceLinkError(op, nil)
	assert.ErrorIs(t, bare, domain.ErrDeviceLink)
	assert.Equal(t, "device link error: install(Bitcoin)", bare.Error())

	var linkErr *domain.DeviceLinkError
	require.ErrorAs(t, fmt.Errorf("driver: %w", err), &linkErr)
	assert.Equal(t, op, linkErr.Op)
}

func TestGetErrorInfo(t *testing.T) {
	t.Parallel()

	op := domain.Operation{Kind: domain.OpUpdate, Name: "Ethereum"}

	tests := []struct {
		name    string
		err     error
		app     string
		want    string
		suggest string
	}{
		{
			name: "nil",
		},
		{
			name:    "unknown application with name",
			err:     fmt.Errorf("%w: Foo", domain.ErrUnknownApplication),
			app:     "Foo",
			want:    "Application 'Foo' not found in catalog",
			suggest: "Check the application name spelling",
		},
		{
			name:    "unknown application without name",
			err:     domain.ErrUnknownApplication,
			want:    "Application not found in catalog",
			suggest: "Check the application name spelling",
		},
		{
			name:    "not installed",
			err:     domain.ErrNotInstalled,
			want:    "Not installed",
			suggest: "Application is not on the device",
		},
		{
			name:    "space wins over link",
			err:     domain.NewDeviceLinkError(op, domain.ErrInsufficientSpace),
			want:    "Not enough storage on the device",
			suggest: "Uninstall applications you no longer use",
		},
		{
			name:    "aborted wins over link",
			err:     domain.NewDeviceLinkError(op, domain.ErrOperationAborted),
			want:    "Operation cancelled",
			suggest: "Run 'devapps status' to check the device state",
		},
		{
			name:    "bare link failure",
			err:     domain.NewDeviceLinkError(op, errors.New("usb reset")),
			want:    "Device rejected the operation",
			suggest: "Check the device is unlocked and connected",
		},
		{
			name:    "busy",
			err:     domain.ErrDeviceBusy,
			want:    "Device is busy",
			suggest: "Close other programs using the device and try again",
		},
		{
			name:    "generic",
			err:     errors.New("boom"),
			want:    "Operation failed",
			suggest: "Run with --verbose for more details",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := domain.GetErrorInfo(tt.err, tt.app, false)
			assert.Equal(t, tt.want, info.Message)
			assert.False(t, info.ShowDetails)

			if tt.suggest == "" {
				assert.Empty(t, info.Suggestions)
				return
			}

			require.NotEmpty(t, info.Suggestions)
			assert.Equal(t, tt.suggest, info.Suggestions[0])
		})
	}
}

func TestFormatErrorMessage(t *testing.T) {
	t.Parallel()

	op := domain.Operation{Kind: domain.OpInstall, Name: "Bitcoin"}
	err := domain.NewDeviceLinkError(op, domain.ErrInsufficientSpace)

	t.Run("compact", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t,
			"✗ Failed to install Bitcoin: Not enough storage on the device (Uninstall applications you no longer use)",
			domain.FormatErrorMessage(err, op, false))
	})

	t.Run("verbose", func(t *testing.T) {
		t.Parallel()

		msg := domain.FormatErrorMessage(err, op, true)
		assert.Contains(t, msg, "✗ Failed to install Bitcoin: Not enough storage on the device\n")
		assert.Contains(t, msg, "Technical details: device link error: install(Bitcoin): insufficient device storage")
		assert.Contains(t, msg, "\n  Suggestions:\n    • Uninstall applications you no longer use\n    • Run 'devapps status' to see free blocks")
	})

	t.Run("no target", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t,
			"✗ Device is busy (Close other programs using the device and try again)",
			domain.FormatErrorMessage(domain.ErrDeviceBusy, domain.Operation{}, false))
	})
}
