// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package styles defines consistent visual styling for TUI components.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// AppState is the display state of one catalog application.
type AppState int

// Display states, in the order a row can move through them.
const (
	StateAbsent AppState = iota
	StateQueued
	StateActive
	StateOutdated
	StateCurrent
	StateFailed
)

// Styles contains all the styles used in the TUI.
type Styles struct {
	// Color palette
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color

	Header   lipgloss.Style
	Banner   lipgloss.Style
	Footer   lipgloss.Style
	Selected lipgloss.Style
	Row      lipgloss.Style
	Modal    lipgloss.Style

	// Text styles (cached for performance)
	MutedText   lipgloss.Style
	PrimaryText lipgloss.Style
	SuccessText lipgloss.Style
	ErrorText   lipgloss.Style
	WarningText lipgloss.Style
}

// New creates a new Styles instance with the Tokyo Night palette.
func New() *Styles {
	primary := lipgloss.Color("#7aa2f7")    // Blue
	secondary := lipgloss.Color("#bb9af7")  // Purple
	success := lipgloss.Color("#9ece6a")    // Green
	warning := lipgloss.Color("#e0af68")    // Yellow
	errorColor := lipgloss.Color("#f7768e") // Red
	muted := lipgloss.Color("#565f89")      // Gray

	background := lipgloss.Color("#1a1b26")
	foreground := lipgloss.Color("#c0caf5")

	return &Styles{
		Primary:   primary,
		Secondary: secondary,
		Success:   success,
		Warning:   warning,
		Error:     errorColor,
		Muted:     muted,

		Header: lipgloss.NewStyle().
			Background(primary).
			Foreground(background).
			Bold(true).
			Padding(0, 1),

		Banner: lipgloss.NewStyle().
			Foreground(secondary).
			Bold(true).
			MarginTop(1).
			MarginBottom(1),

		Footer: lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(muted),

		Selected: lipgloss.NewStyle().
			Foreground(primary).
			Bold(true),

		Row: lipgloss.NewStyle().
			Foreground(foreground),

		Modal: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(warning).
			Padding(1, 2),

		MutedText:   lipgloss.NewStyle().Foreground(muted),
		PrimaryText: lipgloss.NewStyle().Foreground(primary),
		SuccessText: lipgloss.NewStyle().Foreground(success),
		ErrorText:   lipgloss.NewStyle().Foreground(errorColor),
		WarningText: lipgloss.NewStyle().Foreground(warning),
	}
}

// StatusIcon returns the styled icon for an application state.
func (s *Styles) StatusIcon(state AppState) string {
	switch state {
	case StateCurrent:
		return s.SuccessText.Render("✓")
	case StateOutdated:
		return s.WarningText.Render("↑")
	case StateActive:
		return s.PrimaryText.Render("⚬")
	case StateQueued:
		return s.MutedText.Render("○")
	case StateFailed:
		return s.ErrorText.Render("✗")
	default:
		return s.MutedText.Render("·")
	}
}

// Keybinding returns styled keybinding text.
func (s *Styles) Keybinding(key, desc string) string {
	keyStyle := lipgloss.NewStyle().
		Foreground(s.Primary).
		Bold(true)

	return keyStyle.Render("["+key+"]") + " " + s.MutedText.Render(desc)
}
