// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package manager

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/janderssonse/devapps/internal/catalog"
	"github.com/janderssonse/devapps/internal/domain"
	"github.com/janderssonse/devapps/internal/testutil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

var propertyApps = []string{"A", "B", "C", "D", "E", "F"}

// Per-app device state drawn by the generators.
const (
	absent = iota
	outdated
	current
)

func propertyCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	entries := make([]domain.CatalogEntry, len(propertyApps))
	for i, name := range propertyApps {
		entries[i] = entry(name, "2.0.0")
	}

	return newCatalog(t, entries...)
}

func deviceFor(states []int) []domain.DeviceApp {
	var apps []domain.DeviceApp

	// Listed in reverse so catalog order has to come from the driver.
	for i := len(states) - 1; i >= 0; i-- {
		switch states[i] {
		case outdated:
			apps = append(apps, app(propertyApps[i], "1.0.0"))
		case current:
			apps = append(apps, app(propertyApps[i], "2.0.0"))
		}
	}

	return apps
}

// session runs a manager until the returned stop function is called.
func session(cat *catalog.Catalog, link domain.DeviceLink) (*Manager, func(), error) {
	m, err := Open(context.Background(), cat, link)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() { _ = m.Run(ctx) }()

	return m, func() {
		cancel()
		<-m.Done()
	}, nil
}

func deviceStates() gopter.Gen {
	return gen.SliceOfN(len(propertyApps), gen.IntRange(absent, current))
}

func TestProperty_UpdateAllTargetsOutdatedInCatalogOrder(t *testing.T) {
	t.Parallel()

	cat := propertyCatalog(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("update all yields one update per outdated app", prop.ForAll(
		func(states []int) bool {
			m, stop, err := session(cat, testutil.NewFakeLink(deviceFor(states)...))
			if err != nil {
				return false
			}
			defer stop()

			ops, err := m.Dispatch(context.Background(), domain.UpdateAll{})
			if err != nil {
				return false
			}

			var want []string
			for i, state := range states {
				if state == outdated {
					want = append(want, "update("+propertyApps[i]+")")
				}
			}

			got := keys(ops)
			if len(want) == 0 {
				return len(got) == 0 && m.State().Batch == nil
			}

			batch := m.State().Batch

			return slices.Equal(want, got) && batch != nil && batch.Total == len(want)
		},
		deviceStates(),
	))

	properties.TestingRun(t)
}

func TestProperty_DuplicateIntentsAreNoOps(t *testing.T) {
	t.Parallel()

	cat := propertyCatalog(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("repeating intents never grows the queue", prop.ForAll(
		func(states []int, picks []int) bool {
			m, stop, err := session(cat, testutil.NewFakeLink(deviceFor(states)...))
			if err != nil {
				return false
			}
			defer stop()

			intents := make([]domain.Intent, 0, len(picks)+1)
			intents = append(intents, domain.UpdateAll{})

			for _, pick := range picks {
				intents = append(intents, domain.Install{Name: propertyApps[pick]})
			}

			for _, intent := range intents {
				_, _ = m.Dispatch(context.Background(), intent)
			}

			before := len(m.State().InstallQueue)

			for _, intent := range intents {
				ops, _ := m.Dispatch(context.Background(), intent)
				if len(ops) != 0 {
					return false
				}
			}

			return len(m.State().InstallQueue) == before
		},
		deviceStates(),
		gen.SliceOf(gen.IntRange(0, len(propertyApps)-1)),
	))

	properties.TestingRun(t)
}

func TestProperty_BatchReadout(t *testing.T) {
	t.Parallel()

	cat := propertyCatalog(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("batch completed is total minus pending", prop.ForAll(
		func(states []int, failures []bool) bool {
			link := testutil.NewFakeLink(deviceFor(states)...)

			m, stop, err := session(cat, link)
			if err != nil {
				return false
			}
			defer stop()

			ops, err := m.Dispatch(context.Background(), domain.UpdateAll{})
			if err != nil || len(ops) == 0 {
				return err == nil
			}

			total := len(ops)

			for done := range total {
				batch := m.State().Batch
				if batch == nil || batch.Total != total || batch.Completed != done {
					return false
				}

				run := link.Next(t)
				if failures[done] {
					run.Fail(domain.ErrInsufficientSpace)
				} else {
					run.Succeed()
				}

				if done+1 < total && !settled(m, done+1) {
					return false
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), eventually)
			defer cancel()

			return m.WaitIdle(ctx) == nil && m.State().Batch == nil
		},
		deviceStates(),
		gen.SliceOfN(len(propertyApps), gen.Bool()),
	))

	properties.TestingRun(t)
}

// settled waits until the batch readout reports completed operations.
func settled(m *Manager, completed int) bool {
	deadline := time.Now().Add(eventually)

	for time.Now().Before(deadline) {
		if batch := m.State().Batch; batch != nil && batch.Completed == completed {
			return true
		}

		time.Sleep(time.Millisecond)
	}

	return false
}

func TestProperty_CancelAllProtectsLedger(t *testing.T) {
	t.Parallel()

	cat := propertyCatalog(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("late results of cancelled ops leave the ledger alone", prop.ForAll(
		func(states []int, lateSuccess bool) bool {
			link := testutil.NewFakeLink(deviceFor(states)...)

			m, stop, err := session(cat, link)
			if err != nil {
				return false
			}
			defer stop()

			_, _ = m.Dispatch(context.Background(), domain.UpdateAll{})
			for _, name := range propertyApps {
				_, _ = m.Dispatch(context.Background(), domain.Install{Name: name})
			}

			before := m.State()
			if before.CurrentAppOp == nil {
				return before.Idle()
			}

			run := link.Next(t)
			if _, err := m.Dispatch(context.Background(), domain.CancelAll{}); err != nil {
				return false
			}

			if len(m.State().InstallQueue) != 0 {
				return false
			}

			if lateSuccess {
				run.Succeed()
			} else {
				run.Fail(context.Canceled)
			}

			ctx, cancel := context.WithTimeout(context.Background(), eventually)
			defer cancel()

			if m.WaitIdle(ctx) != nil {
				return false
			}

			return slices.Equal(before.Installed, m.State().Installed) && link.MaxConcurrent() == 1
		},
		deviceStates(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestProperty_OneOperationAtATime(t *testing.T) {
	t.Parallel()

	cat := propertyCatalog(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("the device never runs two operations", prop.ForAll(
		func(states []int, picks []int) bool {
			link := testutil.NewAutoLink(deviceFor(states)...)

			m, stop, err := session(cat, link)
			if err != nil {
				return false
			}
			defer stop()

			unsubscribe := m.Subscribe(func(ev Event) {
				if ev.State.CurrentAppOp != nil && slices.ContainsFunc(ev.State.InstallQueue, func(op domain.Operation) bool {
					return op.ID == ev.State.CurrentAppOp.ID
				}) {
					t.Errorf("executing %s is still queued", ev.State.CurrentAppOp)
				}
			})
			defer unsubscribe()

			_, _ = m.Dispatch(context.Background(), domain.UpdateAll{})

			for i, pick := range picks {
				var intent domain.Intent = domain.Install{Name: propertyApps[pick]}
				if i%3 == 2 {
					intent = domain.Uninstall{Name: propertyApps[pick]}
				}

				_, _ = m.Dispatch(context.Background(), intent)
			}

			ctx, cancel := context.WithTimeout(context.Background(), eventually)
			defer cancel()

			return m.WaitIdle(ctx) == nil && link.MaxConcurrent() <= 1
		},
		deviceStates(),
		gen.SliceOf(gen.IntRange(0, len(propertyApps)-1)),
	))

	properties.TestingRun(t)
}

func TestPropertyHelpers(t *testing.T) {
	t.Parallel()

	apps := deviceFor([]int{outdated, absent, current, absent, absent, absent})
	require.Equal(t, []domain.DeviceApp{app("C", "2.0.0"), app("A", "1.0.0")}, apps)
}
