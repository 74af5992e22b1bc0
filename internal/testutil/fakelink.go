// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package testutil

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/janderssonse/devapps/internal/domain"
)

const runWait = 2 * time.Second

// FakeLink is a scripted DeviceLink. In manual mode every started operation
// is handed to the test through Next and completes only when the test says
// so. In auto mode operations report one progress step and then finish,
// failing for apps listed in Fail.
type FakeLink struct {
	Auto bool
	Fail map[string]error

	mu        sync.Mutex
	installed []domain.DeviceApp
	listErr   error
	startErr  map[string]error
	started   []domain.Operation
	active    int
	maxActive int

	runs chan *Run
}

// NewFakeLink creates a manual link reporting installed as the device listing.
func NewFakeLink(installed ...domain.DeviceApp) *FakeLink {
	return &FakeLink{
		installed: slices.Clone(installed),
		startErr:  make(map[string]error),
		runs:      make(chan *Run, 256),
	}
}

// NewAutoLink creates a link that completes every operation on its own.
func NewAutoLink(installed ...domain.DeviceApp) *FakeLink {
	link := NewFakeLink(installed...)
	link.Auto = true

	return link
}

// SetInstalled replaces the device listing.
func (f *FakeLink) SetInstalled(apps ...domain.DeviceApp) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.installed = slices.Clone(apps)
}

// SetListError makes ListInstalled fail.
func (f *FakeLink) SetListError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listErr = err
}

// RejectStart makes Start fail synchronously for name.
func (f *FakeLink) RejectStart(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.startErr[name] = err
}

// ListInstalled implements domain.DeviceLink.
func (f *FakeLink) ListInstalled(ctx context.Context) ([]domain.DeviceApp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}

	return slices.Clone(f.installed), nil
}

// Start implements domain.DeviceLink.
func (f *FakeLink) Start(ctx context.Context, op domain.Operation, _ domain.CatalogEntry) (<-chan domain.LinkEvent, error) {
	f.mu.Lock()

	if err := f.startErr[op.Name]; err != nil {
		f.mu.Unlock()
		return nil, err
	}

	f.started = append(f.started, op)
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	f.mu.Unlock()

	run := &Run{
		Op:     op,
		Ctx:    ctx,
		link:   f,
		events: make(chan domain.LinkEvent, 16),
	}

	if f.Auto {
		go run.auto(f.Fail[op.Name])
		return run.events, nil
	}

	f.runs <- run

	return run.events, nil
}

// Next returns the next started operation, failing the test if none starts in time.
func (f *FakeLink) Next(t *testing.T) *Run {
	t.Helper()

	select {
	case run := <-f.runs:
		return run
	case <-time.After(runWait):
		t.Fatal("no operation started on the device")
		return nil
	}
}

// Started returns every operation the device was asked to run, in order.
func (f *FakeLink) Started() []domain.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.started)
}

// MaxConcurrent returns the highest number of operations that ran at once.
func (f *FakeLink) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.maxActive
}

func (f *FakeLink) release() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.active--
}

// Run is one operation started on a FakeLink.
type Run struct {
	Op  domain.Operation
	Ctx context.Context

	link   *FakeLink
	events chan domain.LinkEvent
	once   sync.Once
}

// Progress reports a fraction of the transfer.
func (r *Run) Progress(fraction float64) {
	r.events <- domain.LinkEvent{Progress: fraction}
}

// Succeed sends the terminal success event.
func (r *Run) Succeed() {
	r.finish(nil)
}

// Fail sends the terminal error event.
func (r *Run) Fail(err error) {
	r.finish(err)
}

// Drop closes the event stream without a terminal event.
func (r *Run) Drop() {
	r.once.Do(func() {
		r.link.release()
		close(r.events)
	})
}

// WaitAbort blocks until the operation context is cancelled.
func (r *Run) WaitAbort(t *testing.T) {
	t.Helper()

	select {
	case <-r.Ctx.Done():
	case <-time.After(runWait):
		t.Fatalf("operation %s was not aborted", r.Op)
	}
}

func (r *Run) finish(err error) {
	r.once.Do(func() {
		// The device is free before the driver hears about it.
		r.link.release()
		r.events <- domain.LinkEvent{Done: true, Err: err}
		close(r.events)
	})
}

func (r *Run) auto(fail error) {
	r.Progress(0.5)

	select {
	case <-r.Ctx.Done():
		r.Fail(r.Ctx.Err())
	default:
		r.finish(fail)
	}
}
