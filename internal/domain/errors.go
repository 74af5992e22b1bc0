// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors.
var (
	ErrUnknownApplication = errors.New("unknown application")
	ErrNotInstalled       = errors.New("not installed")
	ErrDeviceLink         = errors.New("device link error")
	ErrInsufficientSpace  = errors.New("insufficient device storage")
	ErrOperationAborted   = errors.New("operation aborted")
	ErrDeviceBusy         = errors.New("device is in use by another process")
	ErrInvalidCatalog     = errors.New("invalid catalog")
	ErrCircularDependency = errors.New("circular dependency detected")
	ErrSessionClosed      = errors.New("session closed")
)

// DeviceLinkError reports that the device rejected or failed an operation.
type DeviceLinkError struct {
	Op  Operation
	Err error
}

// NewDeviceLinkError wraps err as a failure of op.
func NewDeviceLinkError(op Operation, err error) *DeviceLinkError {
	return &DeviceLinkError{Op: op, Err: err}
}

func (e *DeviceLinkError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrDeviceLink, e.Op)
	}

	return fmt.Sprintf("%s: %s: %v", ErrDeviceLink, e.Op, e.Err)
}

// Unwrap exposes both the link sentinel and the underlying cause.
func (e *DeviceLinkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDeviceLink}
	}

	return []error{ErrDeviceLink, e.Err}
}

// ExitError carries a process exit code alongside a message.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// NewExitError creates an ExitError with the specified code and message.
func NewExitError(code int, message string, err error) *ExitError {
	return &ExitError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ErrorInfo provides user-friendly error information.
type ErrorInfo struct {
	Message     string   // User-friendly message
	Suggestions []string // Actionable suggestions
	ShowDetails bool     // Whether to show technical details
}

type errorMatcher struct {
	target  error
	getInfo func(app string) ErrorInfo
}

// getErrorMatchers returns the sentinel errors and their corresponding info.
// Order matters: the first matching sentinel wins.
func getErrorMatchers() []errorMatcher {
	return []errorMatcher{
		{
			target: ErrUnknownApplication,
			getInfo: func(app string) ErrorInfo {
				msg := "Application not found in catalog"
				if app != "" {
					msg = "Application '" + app + "' not found in catalog"
				}

				return ErrorInfo{
					Message:     msg,
					Suggestions: []string{"Check the application name spelling", "Run 'devapps catalog' to list applications"},
				}
			},
		},
		{
			target: ErrNotInstalled,
			getInfo: func(_ string) ErrorInfo {
				return ErrorInfo{
					Message:     "Not installed",
					Suggestions: []string{"Application is not on the device", "Run 'devapps status' to see installed applications"},
				}
			},
		},
		{
			target: ErrInsufficientSpace,
			getInfo: func(_ string) ErrorInfo {
				return ErrorInfo{
					Message:     "Not enough storage on the device",
					Suggestions: []string{"Uninstall applications you no longer use", "Run 'devapps status' to see free blocks"},
				}
			},
		},
		{
			target: ErrDeviceBusy,
			getInfo: func(_ string) ErrorInfo {
				return ErrorInfo{
					Message:     "Device is busy",
					Suggestions: []string{"Close other programs using the device and try again"},
				}
			},
		},
		{
			target: ErrOperationAborted,
			getInfo: func(_ string) ErrorInfo {
				return ErrorInfo{
					Message:     "Operation cancelled",
					Suggestions: []string{"Run 'devapps status' to check the device state"},
				}
			},
		},
		{
			target: ErrDeviceLink,
			getInfo: func(_ string) ErrorInfo {
				return ErrorInfo{
					Message:     "Device rejected the operation",
					Suggestions: []string{"Check the device is unlocked and connected", "Try again in a few moments"},
				}
			},
		},
	}
}

// GetErrorInfo analyzes an error and returns user-friendly information.
func GetErrorInfo(err error, app string, verbose bool) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}

	for _, matcher := range getErrorMatchers() {
		if errors.Is(err, matcher.target) {
			info := matcher.getInfo(app)
			info.ShowDetails = verbose

			return info
		}
	}

	// Generic error - show details in verbose mode
	return ErrorInfo{
		Message:     "Operation failed",
		Suggestions: []string{"Run with --verbose for more details"},
		ShowDetails: verbose,
	}
}

// FormatErrorMessage formats a failed operation for display.
func FormatErrorMessage(err error, op Operation, verbose bool) string {
	info := GetErrorInfo(err, op.Name, verbose)

	var result strings.Builder

	if op.Name != "" {
		result.WriteString("✗ Failed to ")
		result.WriteString(string(op.Kind))
		result.WriteString(" ")
		result.WriteString(op.Name)

		if info.Message != "" {
			result.WriteString(": ")
			result.WriteString(info.Message)
		}
	} else {
		result.WriteString("✗ ")
		result.WriteString(info.Message)
	}

	if info.ShowDetails && err != nil {
		result.WriteString("\n  Technical details: ")
		result.WriteString(err.Error())
	}

	switch {
	case len(info.Suggestions) == 0:
	case !verbose:
		result.WriteString(" (")
		result.WriteString(info.Suggestions[0])
		result.WriteString(")")
	default:
		result.WriteString("\n  Suggestions:")

		for _, suggestion := range info.Suggestions {
			result.WriteString("\n    • ")
			result.WriteString(suggestion)
		}
	}

	return result.String()
}
