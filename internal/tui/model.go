// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/janderssonse/devapps/internal/domain"
	"github.com/janderssonse/devapps/internal/manager"
	"github.com/janderssonse/devapps/internal/tui/styles"
)

// Controller is the session the TUI drives.
type Controller interface {
	State() *manager.State
	Dispatch(ctx context.Context, intent domain.Intent) ([]domain.Operation, error)
	Watch(ctx context.Context) <-chan manager.Event
}

// eventMsg carries a manager notification into the update loop.
type eventMsg manager.Event

// sessionClosedMsg is sent when the manager stops delivering notifications.
type sessionClosedMsg struct{}

// dispatchedMsg is the reply to an intent.
type dispatchedMsg struct {
	intent domain.Intent
	ops    []domain.Operation
	err    error
}

// Model is the device manager screen.
//
//nolint:containedctx // TUI models require context for proper cancellation propagation
type Model struct {
	ctx      context.Context
	ctrl     Controller
	events   <-chan manager.Event
	capacity int

	styles  *styles.Styles
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	appBar  progress.Model
	batch   progress.Model

	state  *manager.State
	cursor int
	offset int
	width  int
	height int

	confirming bool // update-all modal is open
	quitArmed  bool
	quitting   bool
	closed     bool

	message    string
	messageErr bool
}

// NewModel creates the manager screen and starts watching ctrl.
func NewModel(ctx context.Context, ctrl Controller, capacity int) *Model {
	return &Model{
		ctx:      ctx,
		ctrl:     ctrl,
		events:   ctrl.Watch(ctx),
		capacity: capacity,
		styles:   styles.New(),
		keys:     defaultKeyMap(),
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		appBar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(appBarWidth), progress.WithoutPercentage()),
		batch:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(batchBarWidth)),
		state:    ctrl.State(),
		width:    defaultWidth,
		height:   defaultHeight,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clampCursor()

		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case eventMsg:
		m.handleEvent(manager.Event(msg))
		return m, m.listen()
	case dispatchedMsg:
		m.handleDispatched(msg)
		return m, nil
	case sessionClosedMsg:
		m.closed = true
		m.setError("Session closed")

		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd

		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m *Model) listen() tea.Cmd {
	events := m.events

	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return sessionClosedMsg{}
		}

		return eventMsg(ev)
	}
}

func (m *Model) dispatch(intent domain.Intent) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl

	return func() tea.Msg {
		ops, err := ctrl.Dispatch(ctx, intent)
		return dispatchedMsg{intent: intent, ops: ops, err: err}
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		m.quitting = true
		return m, tea.Quit
	}

	if m.confirming {
		return m.handleModalKey(msg)
	}

	armed := m.quitArmed
	m.quitArmed = false

	switch {
	case key.Matches(msg, m.keys.Quit):
		if !m.state.Idle() && !armed {
			m.quitArmed = true
			m.setInfo("Operations are running. Press q again to abort them and quit.")

			return m, nil
		}

		m.quitting = true

		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.cursor--
		m.clampCursor()
	case key.Matches(msg, m.keys.Down):
		m.cursor++
		m.clampCursor()
	case m.closed:
		m.setError("Session closed")
	case key.Matches(msg, m.keys.Install):
		if name, ok := m.selected(); ok {
			return m, m.dispatch(domain.Install{Name: name})
		}
	case key.Matches(msg, m.keys.Uninstall):
		if name, ok := m.selected(); ok {
			return m, m.dispatch(domain.Uninstall{Name: name})
		}
	case key.Matches(msg, m.keys.UpdateAll):
		if len(m.state.Outdated()) == 0 {
			m.setInfo("All applications are up to date")
			return m, nil
		}

		m.confirming = true
	case key.Matches(msg, m.keys.Cancel):
		return m, m.dispatch(domain.CancelAll{})
	case key.Matches(msg, m.keys.Resync):
		return m, m.dispatch(domain.Resync{})
	}

	return m, nil
}

func (m *Model) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.confirming = false
		return m, m.dispatch(domain.UpdateAll{})
	case key.Matches(msg, m.keys.Reject):
		m.confirming = false
		m.setInfo("Nothing was updated")
	}

	return m, nil
}

func (m *Model) handleEvent(ev manager.Event) {
	if ev.State != nil {
		m.state = ev.State
		m.clampCursor()
	}

	switch ev.Type {
	case manager.EventSucceeded:
		m.setInfo("✓ " + pastTense(ev.Op.Kind) + " " + ev.Op.Name)
	case manager.EventFailed:
		m.setError(domain.FormatErrorMessage(ev.Err, ev.Op, false))
	case manager.EventCancelled:
		m.setInfo("⊘ Cancelled " + ev.Op.String())
	case manager.EventResynced:
		m.setInfo("Device state reloaded")
	}
}

func (m *Model) handleDispatched(msg dispatchedMsg) {
	m.state = m.ctrl.State()
	m.clampCursor()

	if msg.err != nil {
		switch {
		case errors.Is(msg.err, manager.ErrNotIdle):
			m.setError("Reload is only possible when nothing is queued")
		case errors.Is(msg.err, context.Canceled), errors.Is(msg.err, domain.ErrSessionClosed):
			m.closed = true
			m.setError("Session closed")
		default:
			m.setError(domain.FormatErrorMessage(msg.err, intentTarget(msg.intent), false))
		}

		return
	}

	if len(msg.ops) > 0 {
		queued := make([]string, 0, len(msg.ops))
		for _, op := range msg.ops {
			queued = append(queued, op.String())
		}

		m.setInfo("Queued " + strings.Join(queued, ", "))

		return
	}

	switch in := msg.intent.(type) {
	case domain.Install:
		m.setInfo(in.Name + " is already up to date or queued")
	case domain.Uninstall:
		m.setInfo(fmt.Sprintf("Withdrew pending operations for %s", in.Name))
	case domain.UpdateAll:
		m.setInfo("All applications are up to date")
	case domain.CancelAll:
		m.setInfo("Cancelled queued operations")
	}
}

func (m *Model) selected() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Apps) {
		return "", false
	}

	return m.state.Apps[m.cursor].Name, true
}

// clampCursor keeps the cursor on an application and inside the visible window.
func (m *Model) clampCursor() {
	n := len(m.state.Apps)
	m.cursor = max(min(m.cursor, n-1), 0)

	rows := m.visibleRows()

	switch {
	case m.cursor < m.offset:
		m.offset = m.cursor
	case m.cursor >= m.offset+rows:
		m.offset = m.cursor - rows + 1
	}

	m.offset = max(min(m.offset, n-rows), 0)
}

func (m *Model) setInfo(msg string) {
	m.message = msg
	m.messageErr = false
}

func (m *Model) setError(msg string) {
	m.message = msg
	m.messageErr = true
}

// intentTarget describes what an intent acts on, for messages.
func intentTarget(intent domain.Intent) domain.Operation {
	switch in := intent.(type) {
	case domain.Install:
		return domain.Operation{Kind: domain.OpInstall, Name: in.Name}
	case domain.Uninstall:
		return domain.Operation{Kind: domain.OpUninstall, Name: in.Name}
	default:
		return domain.Operation{}
	}
}
