// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package tui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/janderssonse/devapps/internal/domain"
	"github.com/janderssonse/devapps/internal/manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu         sync.Mutex
	state      *manager.State
	events     chan manager.Event
	dispatched []domain.Intent
	err        error
	ops        []domain.Operation
}

func newFakeController(state *manager.State) *fakeController {
	return &fakeController{state: state, events: make(chan manager.Event, 8)}
}

func (f *fakeController) State() *manager.State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

func (f *fakeController) Dispatch(_ context.Context, intent domain.Intent) ([]domain.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dispatched = append(f.dispatched, intent)

	return f.ops, f.err
}

func (f *fakeController) Watch(context.Context) <-chan manager.Event {
	return f.events
}

func (f *fakeController) intents() []domain.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]domain.Intent(nil), f.dispatched...)
}

func catalogApps() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{Name: "Bitcoin", Version: "2.2.3", Blocks: 10},
		{Name: "Ethereum", Version: "1.11.0", Blocks: 20},
		{Name: "Litecoin", Version: "1.0.0", Blocks: 8},
	}
}

// deviceState has Bitcoin up to date, Ethereum outdated and Litecoin absent.
func deviceState() *manager.State {
	return &manager.State{
		Phase: manager.PhaseIdle,
		Apps:  catalogApps(),
		Installed: []domain.InstalledRecord{
			{Name: "Bitcoin", Version: "2.2.3", Updated: true, Blocks: 10},
			{Name: "Ethereum", Version: "1.10.0", Updated: false, Blocks: 18},
		},
		UsedBlocks: 28,
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m *Model, keys ...string) tea.Cmd {
	t.Helper()

	var cmd tea.Cmd

	for _, k := range keys {
		_, cmd = m.Update(runes(k))
	}

	return cmd
}

// execute runs a dispatch command and feeds its reply back to the model.
func execute(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()

	require.NotNil(t, cmd)

	msg := cmd()
	reply, ok := msg.(dispatchedMsg)
	require.True(t, ok, "expected a dispatch reply, got %T", msg)

	m.Update(reply)
}

func TestModel_Banner(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state func(*manager.State)
		want  string
	}{
		{
			name:  "outdated apps",
			state: func(*manager.State) {},
			want:  "1 app can be updated",
		},
		{
			name: "nothing outdated",
			state: func(s *manager.State) {
				s.Installed = s.Installed[:1]
			},
			want: "All applications are up to date",
		},
		{
			name: "batch countdown",
			state: func(s *manager.State) {
				s.Batch = &manager.BatchProgress{ID: "b", Total: 5, Completed: 2}
			},
			want: "Updating 3 of 5",
		},
		{
			name: "aborting",
			state: func(s *manager.State) {
				s.Aborting = true
			},
			want: "Cancelling...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			state := deviceState()
			tt.state(state)

			m := NewModel(context.Background(), newFakeController(state), 512)
			assert.Contains(t, m.View(), tt.want)
		})
	}
}

func TestModel_Rows(t *testing.T) {
	t.Parallel()

	m := NewModel(context.Background(), newFakeController(deviceState()), 512)
	view := m.View()

	assert.Contains(t, view, "up to date")
	assert.Contains(t, view, "1.10.0 → 1.11.0")
	assert.Contains(t, view, "update available")
	assert.Contains(t, view, "8 blocks")
	assert.Contains(t, view, "28/512 blocks")
}

func TestModel_CurrentOperationProgress(t *testing.T) {
	t.Parallel()

	op := domain.NewOperation(domain.OpInstall, "Litecoin")

	state := deviceState()
	state.Phase = manager.PhaseExecuting
	state.CurrentAppOp = &op

	m := NewModel(context.Background(), newFakeController(state), 0)

	view := m.View()
	assert.Contains(t, view, "Installing")
	assert.NotContains(t, view, "%", "no fraction before the device reports one")

	progressing := *state
	progressing.HasProgress = true
	progressing.CurrentProgress = 0.4

	m.Update(eventMsg{Type: manager.EventProgress, Op: op, Progress: 0.4, State: &progressing})
	assert.Contains(t, m.View(), " 40%")
}

func TestModel_QueuedRow(t *testing.T) {
	t.Parallel()

	state := deviceState()
	state.InstallQueue = []domain.Operation{domain.NewOperation(domain.OpUpdate, "Ethereum")}

	m := NewModel(context.Background(), newFakeController(state), 0)
	assert.Contains(t, m.View(), "queued: Update")
}

func TestModel_InstallSelected(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController(deviceState())
	ctrl.ops = []domain.Operation{domain.NewOperation(domain.OpInstall, "Litecoin")}

	m := NewModel(context.Background(), ctrl, 0)

	cmd := press(t, m, "j", "j", "j", "i")
	assert.Equal(t, 2, m.cursor, "cursor stops at the last app")

	execute(t, m, cmd)

	assert.Equal(t, []domain.Intent{domain.Install{Name: "Litecoin"}}, ctrl.intents())
	assert.Equal(t, "Queued install(Litecoin)", m.message)
	assert.False(t, m.messageErr)

	press(t, m, "k", "k", "k")
	assert.Equal(t, 0, m.cursor)
}

func TestModel_Uninstall(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController(deviceState())
	ctrl.err = domain.ErrNotInstalled

	m := NewModel(context.Background(), ctrl, 0)

	execute(t, m, press(t, m, "j", "j", "x"))

	assert.Equal(t, []domain.Intent{domain.Uninstall{Name: "Litecoin"}}, ctrl.intents())
	assert.True(t, m.messageErr)
	assert.Contains(t, m.message, "Failed to uninstall Litecoin")
}

func TestModel_UpdateAllModal(t *testing.T) {
	t.Parallel()

	t.Run("confirm", func(t *testing.T) {
		t.Parallel()

		ctrl := newFakeController(deviceState())
		m := NewModel(context.Background(), ctrl, 0)

		assert.Nil(t, press(t, m, "u"))
		require.True(t, m.confirming)
		assert.Contains(t, m.View(), "Update 1 applications?")

		execute(t, m, press(t, m, "y"))
		assert.False(t, m.confirming)
		assert.Equal(t, []domain.Intent{domain.UpdateAll{}}, ctrl.intents())
	})

	t.Run("reject", func(t *testing.T) {
		t.Parallel()

		ctrl := newFakeController(deviceState())
		m := NewModel(context.Background(), ctrl, 0)

		press(t, m, "u")
		assert.Nil(t, press(t, m, "n"))
		assert.False(t, m.confirming)
		assert.Empty(t, ctrl.intents())
	})

	t.Run("nothing outdated", func(t *testing.T) {
		t.Parallel()

		state := deviceState()
		state.Installed = state.Installed[:1]

		m := NewModel(context.Background(), newFakeController(state), 0)

		press(t, m, "u")
		assert.False(t, m.confirming)
		assert.Equal(t, "All applications are up to date", m.message)
	})
}

func TestModel_CancelAndResync(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController(deviceState())
	m := NewModel(context.Background(), ctrl, 0)

	execute(t, m, press(t, m, "c"))
	assert.Equal(t, "Cancelled queued operations", m.message)

	ctrl.mu.Lock()
	ctrl.err = manager.ErrNotIdle
	ctrl.mu.Unlock()

	execute(t, m, press(t, m, "r"))
	assert.True(t, m.messageErr)
	assert.Contains(t, m.message, "only possible when nothing is queued")

	assert.Equal(t, []domain.Intent{domain.CancelAll{}, domain.Resync{}}, ctrl.intents())
}

func TestModel_Quit(t *testing.T) {
	t.Parallel()

	t.Run("idle quits at once", func(t *testing.T) {
		t.Parallel()

		m := NewModel(context.Background(), newFakeController(deviceState()), 0)

		cmd := press(t, m, "q")
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
		assert.Empty(t, m.View())
	})

	t.Run("busy asks again", func(t *testing.T) {
		t.Parallel()

		state := deviceState()
		state.InstallQueue = []domain.Operation{domain.NewOperation(domain.OpUpdate, "Ethereum")}

		m := NewModel(context.Background(), newFakeController(state), 0)

		assert.Nil(t, press(t, m, "q"))
		assert.Contains(t, m.message, "Press q again")

		cmd := press(t, m, "q")
		require.NotNil(t, cmd)
		assert.True(t, m.quitting)
	})

	t.Run("other key disarms", func(t *testing.T) {
		t.Parallel()

		state := deviceState()
		state.InstallQueue = []domain.Operation{domain.NewOperation(domain.OpUpdate, "Ethereum")}

		m := NewModel(context.Background(), newFakeController(state), 0)

		press(t, m, "q", "j")
		assert.Nil(t, press(t, m, "q"))
		assert.False(t, m.quitting)
	})
}

func TestModel_Events(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController(deviceState())
	m := NewModel(context.Background(), ctrl, 0)

	op := domain.NewOperation(domain.OpUpdate, "Ethereum")
	failed := deviceState()
	failed.Results = []manager.OpResult{{Op: op, Status: manager.StatusFailed, Err: domain.ErrInsufficientSpace}}

	ctrl.events <- manager.Event{Type: manager.EventFailed, Op: op, Err: domain.ErrInsufficientSpace, State: failed}

	msg := m.listen()()
	_, cmd := m.Update(msg)
	assert.NotNil(t, cmd, "keeps listening")

	assert.True(t, m.messageErr)
	assert.Contains(t, m.message, "Failed to update Ethereum")
	assert.Contains(t, m.View(), "Update failed")

	close(ctrl.events)
	m.Update(m.listen()())
	assert.True(t, m.closed)

	assert.Nil(t, press(t, m, "i"), "no dispatch after the session closed")
	assert.Empty(t, ctrl.intents())
}

func TestKindLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Install", kindLabel(domain.OpInstall))
	assert.Equal(t, "Uninstall", kindLabel(domain.OpUninstall))
	assert.Equal(t, "Update", kindLabel(domain.OpUpdate))
}
