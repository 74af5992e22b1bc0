// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/janderssonse/devapps/internal/domain"
	"github.com/janderssonse/devapps/internal/manager"
	"github.com/janderssonse/devapps/internal/tui/styles"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Layout constants for consistent spacing.
const (
	defaultWidth  = 80
	defaultHeight = 24
	appBarWidth   = 20
	batchBarWidth = 30
	nameWidth     = 18
	versionWidth  = 18
	chromeHeight  = 9 // header, banner, message and footer lines
	minRows       = 3
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.renderHeader(),
		m.styles.Banner.Render(m.renderBanner()),
	}

	if m.confirming {
		sections = append(sections, m.renderModal())
	} else {
		sections = append(sections, m.renderRows())
	}

	sections = append(sections, m.renderMessage(), m.styles.Footer.Width(m.width).Render(m.help.View(m.keys)))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	storage := fmt.Sprintf("%d apps installed", len(m.state.Installed))
	if m.capacity > 0 {
		storage += fmt.Sprintf(" · %d/%d blocks", m.state.UsedBlocks, m.capacity)
	}

	return m.styles.Header.Render("devapps") + "  " + m.styles.MutedText.Render(storage)
}

// renderBanner shows the batch countdown while an update batch runs and the
// number of outdated applications otherwise.
func (m *Model) renderBanner() string {
	state := m.state

	if state.Aborting {
		return m.spinner.View() + " Cancelling..."
	}

	if b := state.Batch; b != nil {
		current := min(b.Completed+1, b.Total)
		return fmt.Sprintf("Updating %d of %d  %s", current, b.Total, m.batch.ViewAs(b.Percent()/100))
	}

	switch n := len(state.Outdated()); n {
	case 0:
		return "All applications are up to date"
	case 1:
		return "1 app can be updated · press u"
	default:
		return fmt.Sprintf("%d apps can be updated · press u", n)
	}
}

func (m *Model) renderRows() string {
	apps := m.state.Apps
	if len(apps) == 0 {
		return m.styles.MutedText.Render("The catalog is empty")
	}

	end := min(m.offset+m.visibleRows(), len(apps))
	lines := make([]string, 0, end-m.offset)

	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderRow(apps[i], i == m.cursor))
	}

	return strings.Join(lines, "\n")
}

func (m *Model) renderRow(app domain.CatalogEntry, selected bool) string {
	state, detail := m.describe(app)

	cursor := "  "
	name := fit(app.Name, nameWidth)

	if selected {
		cursor = m.styles.Selected.Render("› ")
		name = m.styles.Selected.Render(name)
	}

	version := app.Version
	if record, ok := m.state.Record(app.Name); ok && !record.Updated {
		version = record.Version + " → " + app.Version
	}

	line := cursor + m.styles.StatusIcon(state) + " " + name + " " + fit(version, versionWidth) + " " + detail

	return lipgloss.NewStyle().MaxWidth(m.width).Render(line)
}

// describe derives a row's state and its status text.
func (m *Model) describe(app domain.CatalogEntry) (styles.AppState, string) {
	state := m.state

	if op := state.CurrentAppOp; op != nil && op.Name == app.Name {
		progress := state.AppProgress(app.Name)
		label := progressive(op.Kind)

		if progress.Indeterminate {
			return styles.StateActive, m.spinner.View() + " " + label
		}

		return styles.StateActive, fmt.Sprintf("%s %s %3.0f%%", label, m.appBar.ViewAs(progress.Value), progress.Value*100)
	}

	if op, ok := state.Pending(app.Name); ok {
		return styles.StateQueued, m.styles.MutedText.Render("queued: " + kindLabel(op.Kind))
	}

	if result, ok := state.LastResult(app.Name); ok && result.Status == manager.StatusFailed {
		return styles.StateFailed, m.styles.ErrorText.Render(kindLabel(result.Op.Kind) + " failed")
	}

	record, installed := state.Record(app.Name)

	switch {
	case !installed:
		return styles.StateAbsent, m.styles.MutedText.Render(fmt.Sprintf("%d blocks", app.Blocks))
	case record.Updated:
		return styles.StateCurrent, m.styles.SuccessText.Render("up to date")
	default:
		return styles.StateOutdated, m.styles.WarningText.Render("update available")
	}
}

func (m *Model) renderModal() string {
	outdated := m.state.Outdated()

	body := fmt.Sprintf("Update %d applications?\n\n%s\n\n%s   %s",
		len(outdated),
		strings.Join(outdated, ", "),
		m.styles.Keybinding("y", "yes"),
		m.styles.Keybinding("n", "no"),
	)

	return m.styles.Modal.Width(min(m.width-4, 60)).Render(body)
}

func (m *Model) renderMessage() string {
	if m.message == "" {
		return ""
	}

	msg := runewidth.Truncate(m.message, max(m.width-2, 10), "…")
	if m.messageErr {
		return m.styles.ErrorText.Render(msg)
	}

	return m.styles.MutedText.Render(msg)
}

func (m *Model) visibleRows() int {
	return max(m.height-chromeHeight, minRows)
}

// fit truncates or pads s to exactly width cells.
func fit(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

// kindLabel returns "Install", "Update" or "Uninstall".
func kindLabel(kind domain.OpKind) string {
	return cases.Title(language.Und).String(string(kind))
}

func progressive(kind domain.OpKind) string {
	switch kind {
	case domain.OpInstall:
		return "Installing"
	case domain.OpUpdate:
		return "Updating"
	default:
		return "Uninstalling"
	}
}

func pastTense(kind domain.OpKind) string {
	switch kind {
	case domain.OpInstall:
		return "Installed"
	case domain.OpUpdate:
		return "Updated"
	default:
		return "Uninstalled"
	}
}
