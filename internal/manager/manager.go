// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package manager drives install, update and uninstall operations against a
// device, one at a time.
//
// A Manager is a single-writer event loop. Intents from UI layers and
// notifications from the device link are queued as events and processed in
// order by Run; every transition publishes an immutable State snapshot and
// notifies subscribers.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/janderssonse/devapps/internal/catalog"
	"github.com/janderssonse/devapps/internal/domain"
	"github.com/rs/zerolog"
)

const (
	eventBuffer        = 64
	defaultResultLimit = 256
)

var (
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("manager is already running")
	// ErrNotIdle is returned by intents that need an empty queue.
	ErrNotIdle = errors.New("operations are pending")
	// ErrUnsupportedIntent is returned for intent values outside the closed set.
	ErrUnsupportedIntent = errors.New("unsupported intent")
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = logger.With().Str("component", "manager").Logger()
	}
}

// WithOperationTimeout bounds every device operation; zero disables the bound.
func WithOperationTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		m.opTimeout = timeout
	}
}

// WithResultLimit sets how many finished operation results the state keeps.
func WithResultLimit(limit int) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.resultLimit = limit
		}
	}
}

type intentEvent struct {
	intent domain.Intent
	reply  chan dispatchReply
}

type dispatchReply struct {
	ops []domain.Operation
	err error
}

type linkEvent struct {
	seq   uint64
	event domain.LinkEvent
}

// inflight is the operation currently executing on the device.
type inflight struct {
	op              domain.Operation
	seq             uint64
	cancel          context.CancelFunc
	progress        float64
	hasProgress     bool
	cancelRequested bool
}

// Manager owns the queue state of one device session.
type Manager struct {
	catalog     *catalog.Catalog
	link        domain.DeviceLink
	log         zerolog.Logger
	opTimeout   time.Duration
	resultLimit int

	events  chan any
	done    chan struct{}
	running atomic.Bool

	// Owned by the Run goroutine.
	ledger  *Ledger
	queue   *Queue
	batch   *batch
	current *inflight
	seq     uint64
	results []OpResult
	notes   []Event

	mu       sync.RWMutex
	snapshot *State
	idle     chan struct{}

	obsMu     sync.Mutex
	observers map[int]func(Event)
	nextObs   int
}

// Open reads the installed applications from the device and creates a
// manager for them. Call Run to start processing.
func Open(ctx context.Context, cat *catalog.Catalog, link domain.DeviceLink, opts ...Option) (*Manager, error) {
	apps, err := link.ListInstalled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed applications: %w", err)
	}

	m := &Manager{
		catalog:     cat,
		link:        link,
		log:         zerolog.Nop(),
		resultLimit: defaultResultLimit,
		events:      make(chan any, eventBuffer),
		done:        make(chan struct{}),
		ledger:      newLedger(cat, apps),
		queue:       NewQueue(),
		observers:   make(map[int]func(Event)),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.idle = make(chan struct{})
	close(m.idle)
	m.publish()

	return m, nil
}

// Catalog returns the session catalog.
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// State returns the latest snapshot.
func (m *Manager) State() *State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshot
}

// Subscribe registers fn for every driver notification and returns a function
// that removes it. fn runs on the manager loop: it must not block and must
// not call Dispatch synchronously.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn

	return func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()

		delete(m.observers, id)
	}
}

// Watch delivers notifications on a channel until ctx is done or the manager
// stops. Events queue up while the reader is slow instead of stalling the loop.
func (m *Manager) Watch(ctx context.Context) <-chan Event {
	var (
		mu      sync.Mutex
		pending []Event
	)

	wake := make(chan struct{}, 1)
	out := make(chan Event)

	unsubscribe := m.Subscribe(func(ev Event) {
		mu.Lock()
		pending = append(pending, ev)
		mu.Unlock()

		select {
		case wake <- struct{}{}:
		default:
		}
	})

	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			mu.Lock()
			batch := pending
			pending = nil
			mu.Unlock()

			for _, ev := range batch {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-wake:
			case <-ctx.Done():
				return
			case <-m.done:
				return
			}
		}
	}()

	return out
}

// Dispatch hands an intent to the loop and returns the operations it queued.
// Rejected intents leave the queue unchanged.
func (m *Manager) Dispatch(ctx context.Context, intent domain.Intent) ([]domain.Operation, error) {
	reply := make(chan dispatchReply, 1)

	select {
	case m.events <- intentEvent{intent: intent, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, domain.ErrSessionClosed
	}

	select {
	case r := <-reply:
		return r.ops, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, domain.ErrSessionClosed
	}
}

// WaitIdle blocks until no operation is pending or executing.
func (m *Manager) WaitIdle(ctx context.Context) error {
	m.mu.RLock()
	idle := m.idle
	m.mu.RUnlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return domain.ErrSessionClosed
	}
}

// Done is closed when Run has returned.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Run processes events until ctx is cancelled. It must be called exactly once.
// On return the operation in flight, if any, is aborted.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	defer close(m.done)

	m.log.Info().Int("apps", m.catalog.Len()).Int("installed", m.ledger.Len()).Msg("session started")

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			m.log.Info().Msg("session ended")

			return ctx.Err()
		case ev := <-m.events:
			m.handle(ctx, ev)
		}
	}
}

func (m *Manager) handle(ctx context.Context, ev any) {
	var reply func()

	switch ev := ev.(type) {
	case intentEvent:
		ops, err := m.handleIntent(ctx, ev.intent)
		reply = func() { ev.reply <- dispatchReply{ops: ops, err: err} }
	case linkEvent:
		m.handleLink(ev)
	}

	m.drain(ctx)
	m.publish()

	if reply != nil {
		reply()
	}

	m.notify()
}

func (m *Manager) handleIntent(ctx context.Context, intent domain.Intent) ([]domain.Operation, error) {
	switch in := intent.(type) {
	case domain.UpdateAll:
		return m.acceptUpdateAll(), nil
	case domain.Install:
		return m.acceptInstall(in.Name)
	case domain.Uninstall:
		return m.acceptUninstall(in.Name)
	case domain.CancelAll:
		m.cancelAll()
		return nil, nil
	case domain.Resync:
		return nil, m.resync(ctx)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedIntent, intent)
	}
}

func (m *Manager) acceptUpdateAll() []domain.Operation {
	var ops []domain.Operation

	for _, name := range m.catalog.Names() {
		record, ok := m.ledger.Record(name)
		if !ok || record.Updated || !m.resident(name) ||
			m.queue.IsPending(domain.OpKey{Kind: domain.OpUninstall, Name: name}) {
			continue
		}

		ops = append(ops, domain.NewOperation(domain.OpUpdate, name))
	}

	accepted := m.enqueue(ops)
	if len(accepted) == 0 {
		return accepted
	}

	if m.batch == nil {
		m.batch = &batch{id: uuid.NewString(), members: make(map[string]struct{})}
		m.log.Info().Str("batch", m.batch.id).Int("ops", len(accepted)).Msg("update batch started")
	}

	m.batch.add(accepted)

	return accepted
}

func (m *Manager) acceptInstall(name string) ([]domain.Operation, error) {
	if _, ok := m.catalog.Lookup(name); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownApplication, name)
	}

	order, err := m.catalog.InstallOrder(name)
	if err != nil {
		return nil, err
	}

	var ops []domain.Operation

	for _, app := range order {
		// A pending uninstall of the app or one of its dependencies is withdrawn.
		m.withdraw(domain.OpKey{Kind: domain.OpUninstall, Name: app})

		record, installed := m.ledger.Record(app)
		if m.executing(domain.OpUninstall, app) {
			installed = false
		}

		switch {
		case !installed:
			ops = append(ops, domain.NewOperation(domain.OpInstall, app))
		case app == name && !record.Updated:
			ops = append(ops, domain.NewOperation(domain.OpUpdate, app))
		}
	}

	return m.enqueue(ops), nil
}

func (m *Manager) acceptUninstall(name string) ([]domain.Operation, error) {
	if _, ok := m.catalog.Lookup(name); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownApplication, name)
	}

	withdrawn := m.withdraw(domain.OpKey{Kind: domain.OpInstall, Name: name})
	withdrawn = m.withdraw(domain.OpKey{Kind: domain.OpUpdate, Name: name}) || withdrawn

	if m.executing(domain.OpUninstall, name) {
		return nil, nil
	}

	if !m.resident(name) {
		if withdrawn {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: %s", domain.ErrNotInstalled, name)
	}

	var ops []domain.Operation

	for _, dependent := range m.catalog.Dependents(name) {
		m.withdraw(domain.OpKey{Kind: domain.OpInstall, Name: dependent})
		m.withdraw(domain.OpKey{Kind: domain.OpUpdate, Name: dependent})

		if m.resident(dependent) {
			ops = append(ops, domain.NewOperation(domain.OpUninstall, dependent))
		}
	}

	ops = append(ops, domain.NewOperation(domain.OpUninstall, name))

	return m.enqueue(ops), nil
}

// resident reports whether name is, or is about to be, on the device.
func (m *Manager) resident(name string) bool {
	if m.executing(domain.OpInstall, name) || m.executing(domain.OpUpdate, name) {
		return true
	}

	return m.ledger.IsInstalled(name) && !m.executing(domain.OpUninstall, name)
}

func (m *Manager) executing(kind domain.OpKind, name string) bool {
	op, ok := m.queue.PeekCurrent()
	return ok && op.Kind == kind && op.Name == name
}

// withdraw removes a pending operation without running it.
func (m *Manager) withdraw(key domain.OpKey) bool {
	op, ok := m.queue.Remove(key)
	if !ok {
		return false
	}

	if m.batch != nil {
		m.batch.drop(op.ID)
		m.settleBatch()
	}

	m.log.Debug().Str("op", op.ID).Str("kind", string(op.Kind)).Str("app", op.Name).Msg("operation withdrawn")
	m.finish(op, StatusCancelled, domain.ErrOperationAborted)

	return true
}

func (m *Manager) enqueue(ops []domain.Operation) []domain.Operation {
	accepted := m.queue.Enqueue(ops...)

	for _, op := range accepted {
		m.log.Debug().Str("op", op.ID).Str("kind", string(op.Kind)).Str("app", op.Name).Msg("operation queued")
		m.emit(Event{Type: EventQueued, Op: op})
	}

	return accepted
}

func (m *Manager) cancelAll() {
	removed := m.queue.Clear()
	for _, op := range removed {
		m.finish(op, StatusCancelled, domain.ErrOperationAborted)
	}

	m.batch = nil

	if m.current != nil && m.current.op.Kind.Writes() && !m.current.cancelRequested {
		m.current.cancelRequested = true
		m.current.cancel()
		m.log.Info().Str("op", m.current.op.ID).Str("app", m.current.op.Name).Uint64("seq", m.current.seq).
			Msg("abort requested")
	}

	m.log.Info().Int("dropped", len(removed)).Msg("queue cancelled")
}

func (m *Manager) resync(ctx context.Context) error {
	if m.current != nil || !m.queue.IsEmpty() {
		return ErrNotIdle
	}

	apps, err := m.link.ListInstalled(ctx)
	if err != nil {
		return fmt.Errorf("failed to list installed applications: %w", err)
	}

	m.ledger.reset(apps)
	m.log.Info().Int("installed", m.ledger.Len()).Msg("ledger resynced")
	m.emit(Event{Type: EventResynced})

	return nil
}

func (m *Manager) handleLink(ev linkEvent) {
	current := m.current
	if current == nil || ev.seq != current.seq {
		m.log.Debug().Uint64("seq", ev.seq).Msg("ignoring notification for untracked operation")
		return
	}

	if !ev.event.Done {
		current.progress = clamp(ev.event.Progress)
		current.hasProgress = true
		m.emit(Event{Type: EventProgress, Op: current.op, Progress: current.progress})

		return
	}

	current.cancel()
	m.current = nil
	m.queue.Finish()

	op := current.op

	switch {
	case current.cancelRequested:
		if ev.event.Err == nil {
			m.log.Warn().Str("op", op.ID).Str("app", op.Name).
				Msg("cancelled operation completed on the device; resync to refresh the ledger")
		}

		m.finish(op, StatusCancelled, domain.ErrOperationAborted)
	case ev.event.Err != nil:
		m.finish(op, StatusFailed, linkError(op, ev.event.Err))
	default:
		m.apply(op)
		m.finish(op, StatusSucceeded, nil)
	}

	if m.batch != nil {
		m.batch.finish(op.ID)
		m.settleBatch()
	}
}

func (m *Manager) apply(op domain.Operation) {
	switch op.Kind {
	case domain.OpInstall, domain.OpUpdate:
		if entry, ok := m.catalog.Lookup(op.Name); ok {
			m.ledger.markUpdated(entry)
		}
	case domain.OpUninstall:
		m.ledger.remove(op.Name)
	}
}

func (m *Manager) settleBatch() {
	if m.batch.done() {
		m.log.Info().Str("batch", m.batch.id).Int("ops", m.batch.total).Msg("update batch finished")
		m.batch = nil
	}
}

// drain starts the head of the queue while the device link is free.
func (m *Manager) drain(ctx context.Context) {
	for m.current == nil {
		if ctx.Err() != nil {
			return
		}

		op, ok := m.queue.DequeueNext()
		if !ok {
			return
		}

		entry, _ := m.catalog.Lookup(op.Name)
		m.seq++

		var (
			opCtx  context.Context
			cancel context.CancelFunc
		)

		if m.opTimeout > 0 {
			opCtx, cancel = context.WithTimeout(ctx, m.opTimeout)
		} else {
			opCtx, cancel = context.WithCancel(ctx)
		}

		events, err := m.link.Start(opCtx, op, entry)
		if err != nil {
			cancel()
			m.queue.Finish()
			m.finish(op, StatusFailed, linkError(op, err))

			if m.batch != nil {
				m.batch.finish(op.ID)
				m.settleBatch()
			}

			continue
		}

		m.current = &inflight{op: op, seq: m.seq, cancel: cancel}
		m.log.Info().Str("op", op.ID).Str("kind", string(op.Kind)).Str("app", op.Name).Uint64("seq", m.seq).
			Msg("operation started")
		m.emit(Event{Type: EventStarted, Op: op})

		go m.pump(m.seq, events)
	}
}

// pump forwards device notifications into the loop. A channel closed
// without a terminal event is reported as a failure.
func (m *Manager) pump(seq uint64, events <-chan domain.LinkEvent) {
	terminal := false

	for ev := range events {
		if terminal {
			continue
		}

		terminal = ev.Done
		if !m.post(linkEvent{seq: seq, event: ev}) {
			// Keep the link unblocked until it closes the stream.
			for range events {
			}

			return
		}
	}

	if !terminal {
		m.post(linkEvent{seq: seq, event: domain.LinkEvent{
			Done: true,
			Err:  errors.New("device link closed without a result"),
		}})
	}
}

func (m *Manager) post(ev linkEvent) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) finish(op domain.Operation, status OpStatus, err error) {
	result := OpResult{Op: op, Status: status, Err: err}

	m.results = append(m.results, result)
	if len(m.results) > m.resultLimit {
		m.results = append(m.results[:0:0], m.results[len(m.results)-m.resultLimit:]...)
	}

	logEvent := m.log.Info()
	if status == StatusFailed {
		logEvent = m.log.Warn().Err(err)
	}

	logEvent.Str("op", op.ID).Str("kind", string(op.Kind)).Str("app", op.Name).Str("status", string(status)).
		Msg("operation finished")

	switch status {
	case StatusSucceeded:
		m.emit(Event{Type: EventSucceeded, Op: op})
	case StatusFailed:
		m.emit(Event{Type: EventFailed, Op: op, Err: err})
	case StatusCancelled:
		m.emit(Event{Type: EventCancelled, Op: op, Err: err})
	}
}

func (m *Manager) shutdown() {
	if m.current != nil {
		m.current.cancel()
		m.log.Info().Str("op", m.current.op.ID).Str("app", m.current.op.Name).Msg("session closing with operation in flight")
	}
}

func (m *Manager) emit(ev Event) {
	m.notes = append(m.notes, ev)
}

// publish stores a fresh snapshot and updates the idle signal.
func (m *Manager) publish() {
	state := &State{
		Apps:         m.catalog.Entries(),
		Installed:    m.ledger.Records(),
		UsedBlocks:   m.ledger.UsedBlocks(),
		InstallQueue: m.queue.Pending(),
		Results:      append([]OpResult(nil), m.results...),
	}

	switch {
	case m.current != nil:
		op := m.current.op
		state.Phase = PhaseExecuting
		state.CurrentAppOp = &op
		state.CurrentProgress = m.current.progress
		state.HasProgress = m.current.hasProgress
		state.Aborting = m.current.cancelRequested
	case !m.queue.IsEmpty():
		state.Phase = PhaseDraining
	default:
		state.Phase = PhaseIdle
	}

	if m.batch != nil {
		state.Batch = m.batch.progress()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot = state

	idle := state.Idle()

	select {
	case <-m.idle:
		if !idle {
			m.idle = make(chan struct{})
		}
	default:
		if idle {
			close(m.idle)
		}
	}
}

func (m *Manager) notify() {
	if len(m.notes) == 0 {
		return
	}

	notes := m.notes
	m.notes = nil
	state := m.State()

	m.obsMu.Lock()
	observers := make([]func(Event), 0, len(m.observers))

	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.obsMu.Unlock()

	for _, note := range notes {
		note.State = state
		for _, fn := range observers {
			fn(note)
		}
	}
}

func linkError(op domain.Operation, err error) error {
	var linkErr *domain.DeviceLinkError
	if errors.As(err, &linkErr) {
		return err
	}

	return domain.NewDeviceLinkError(op, err)
}

func clamp(fraction float64) float64 {
	switch {
	case fraction < 0:
		return 0
	case fraction > 1:
		return 1
	default:
		return fraction
	}
}
