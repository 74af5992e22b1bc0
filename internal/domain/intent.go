// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

// Intent is a request from a UI layer to the queue driver.
// The set of intents is closed: only the types in this file implement it.
type Intent interface {
	intent()
}

// UpdateAll updates every installed application that is not up to date.
type UpdateAll struct{}

// Install installs one application and its missing dependencies.
type Install struct {
	Name string
}

// Uninstall removes one application and the installed apps depending on it.
type Uninstall struct {
	Name string
}

// CancelAll drops every pending operation and aborts the one in flight.
type CancelAll struct{}

// Resync reloads the installed applications from the device.
type Resync struct{}

func (UpdateAll) intent() {}
func (Install) intent()   {}
func (Uninstall) intent() {}
func (CancelAll) intent() {}
func (Resync) intent()    {}
