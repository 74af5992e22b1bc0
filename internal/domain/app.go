// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package domain holds the device application model, its ports and errors.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

// OpKind is the kind of a device operation.
type OpKind string

// Operation kinds understood by the device link.
const (
	OpInstall   OpKind = "install"
	OpUpdate    OpKind = "update"
	OpUninstall OpKind = "uninstall"
)

// Valid reports whether k is one of the known operation kinds.
func (k OpKind) Valid() bool {
	switch k {
	case OpInstall, OpUpdate, OpUninstall:
		return true
	}

	return false
}

// Writes reports whether the operation transfers an application image to the device.
func (k OpKind) Writes() bool {
	return k == OpInstall || k == OpUpdate
}

// CatalogEntry describes an application that can be installed on the device.
type CatalogEntry struct {
	Name         string   `json:"name"                   toml:"name"                   yaml:"name"`
	Version      string   `json:"version"                toml:"version"                yaml:"version"`
	Blocks       int      `json:"blocks"                 toml:"blocks"                 yaml:"blocks"`
	Description  string   `json:"description,omitempty"  toml:"description,omitempty"  yaml:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" toml:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// IsValid validates the entry has the fields the device needs.
func (e *CatalogEntry) IsValid() bool {
	return strings.TrimSpace(e.Name) != "" &&
		strings.TrimSpace(e.Version) != "" &&
		e.Blocks > 0
}

// DependsOn reports whether name is a direct dependency of the entry.
func (e *CatalogEntry) DependsOn(name string) bool {
	for _, dep := range e.Dependencies {
		if dep == name {
			return true
		}
	}

	return false
}

// DeviceApp is an application as reported by the device itself.
type DeviceApp struct {
	Name    string `json:"name"    toml:"name"`
	Version string `json:"version" toml:"version"`
	Blocks  int    `json:"blocks"  toml:"blocks"`
}

// InstalledRecord tracks one application resident on the device.
type InstalledRecord struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Updated bool   `json:"updated"`
	Blocks  int    `json:"blocks"`
}

// Operation is a single queued action targeting one application.
type Operation struct {
	ID   string `json:"id"`
	Kind OpKind `json:"kind"`
	Name string `json:"name"`
}

// NewOperation creates an operation with a fresh identifier.
func NewOperation(kind OpKind, name string) Operation {
	return Operation{
		ID:   uuid.NewString(),
		Kind: kind,
		Name: name,
	}
}

// Key identifies the operation for duplicate detection.
func (o Operation) Key() OpKey {
	return OpKey{Kind: o.Kind, Name: o.Name}
}

func (o Operation) String() string {
	return string(o.Kind) + "(" + o.Name + ")"
}

// OpKey is the (kind, name) pair that at most one pending operation may hold.
type OpKey struct {
	Kind OpKind
	Name string
}
