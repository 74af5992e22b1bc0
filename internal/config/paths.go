// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName is the directory name used under every XDG base directory.
const AppName = "devapps"

// XDGConfigHome returns the XDG config directory.
func XDGConfigHome() string {
	return xdgDir(os.Getenv("XDG_CONFIG_HOME"), ".config")
}

// XDGStateHome returns the XDG state directory.
func XDGStateHome() string {
	return xdgDir(os.Getenv("XDG_STATE_HOME"), ".local", "state")
}

func xdgDir(env string, fallback ...string) string {
	if env != "" {
		return env
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{home}, fallback...)...)
	}

	return ""
}

// DefaultPath returns the config file location.
func DefaultPath() string {
	return filepath.Join(XDGConfigHome(), AppName, "config.toml")
}

// DefaultStatePath returns where the simulated device keeps its state.
func DefaultStatePath() string {
	return filepath.Join(XDGStateHome(), AppName, "device.toml")
}

// DefaultLogPath returns the log file used while the TUI owns the terminal.
func DefaultLogPath() string {
	return filepath.Join(XDGStateHome(), AppName, "devapps.log")
}

// ExpandPath expands a leading ~ and the XDG variables in path.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}

	if after, found := strings.CutPrefix(path, "$XDG_CONFIG_HOME"); found {
		return XDGConfigHome() + after
	}

	if after, found := strings.CutPrefix(path, "$XDG_STATE_HOME"); found {
		return XDGStateHome() + after
	}

	return path
}
