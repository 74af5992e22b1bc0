// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package device implements the DeviceLink port with a simulated device that
// keeps its installed applications in a TOML state file.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/gofrs/flock"
	"github.com/janderssonse/devapps/internal/domain"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrRejected is reported for apps the simulator is configured to fail.
var ErrRejected = errors.New("device rejected the operation")

// Defaults for a simulated device.
const (
	DefaultCapacityBlocks  = 512
	DefaultBlocksPerSecond = 32
	DefaultChunkBlocks     = 4
)

// Options configures a Simulator.
type Options struct {
	StatePath       string
	CapacityBlocks  int
	BlocksPerSecond float64 // zero transfers instantly
	ChunkBlocks     int
	Fail            []string // apps whose operations are rejected
	Logger          zerolog.Logger
}

type stateFile struct {
	Apps []domain.DeviceApp `toml:"apps"`
}

// Simulator is a device with bounded storage reached over a paced link.
// The state file is locked for as long as the simulator is open.
type Simulator struct {
	opts Options
	fail map[string]bool
	lock *flock.Flock
	log  zerolog.Logger

	mu   sync.Mutex
	apps []domain.DeviceApp
	busy bool
}

// Open locks the device state at opts.StatePath and loads it.
// It fails with domain.ErrDeviceBusy when another process holds the device.
func Open(opts Options) (*Simulator, error) {
	if opts.StatePath == "" {
		return nil, errors.New("device state path is required")
	}

	if opts.CapacityBlocks <= 0 {
		opts.CapacityBlocks = DefaultCapacityBlocks
	}

	if opts.ChunkBlocks <= 0 {
		opts.ChunkBlocks = DefaultChunkBlocks
	}

	// #nosec G301 - Standard directory permissions for application state
	if err := os.MkdirAll(filepath.Dir(opts.StatePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create device directory: %w", err)
	}

	lock := flock.New(opts.StatePath + ".lock")

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock device: %w", err)
	}

	if !locked {
		return nil, fmt.Errorf("%w: %s", domain.ErrDeviceBusy, opts.StatePath)
	}

	sim := &Simulator{
		opts: opts,
		fail: make(map[string]bool, len(opts.Fail)),
		lock: lock,
		log:  opts.Logger.With().Str("component", "device").Logger(),
	}

	for _, name := range opts.Fail {
		sim.fail[name] = true
	}

	if err := sim.load(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return sim, nil
}

// Close releases the device lock.
func (s *Simulator) Close() error {
	return s.lock.Unlock()
}

// CapacityBlocks returns the device storage size.
func (s *Simulator) CapacityBlocks() int {
	return s.opts.CapacityBlocks
}

// ListInstalled implements domain.DeviceLink.
func (s *Simulator) ListInstalled(ctx context.Context) ([]domain.DeviceApp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.apps), nil
}

// Start implements domain.DeviceLink. Installs and updates stream the image
// in chunks and can be aborted through ctx; an aborted image is discarded.
// Uninstalls always run to completion.
func (s *Simulator) Start(ctx context.Context, op domain.Operation, app domain.CatalogEntry) (<-chan domain.LinkEvent, error) {
	if !op.Kind.Valid() {
		return nil, fmt.Errorf("unsupported operation kind %q", op.Kind)
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, domain.ErrDeviceBusy
	}

	s.busy = true
	s.mu.Unlock()

	events := make(chan domain.LinkEvent, 1)

	go func() {
		defer close(events)

		err := s.run(ctx, op, app, events)

		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()

		events <- domain.LinkEvent{Done: true, Err: err}
	}()

	return events, nil
}

func (s *Simulator) run(ctx context.Context, op domain.Operation, app domain.CatalogEntry, events chan<- domain.LinkEvent) error {
	log := s.log.With().Str("op", op.ID).Str("kind", string(op.Kind)).Str("app", op.Name).Logger()

	if op.Kind == domain.OpUninstall {
		return s.uninstall(op, events, log)
	}

	if err := s.checkSpace(app); err != nil {
		return err
	}

	limit := rate.Inf
	if s.opts.BlocksPerSecond > 0 {
		limit = rate.Limit(s.opts.BlocksPerSecond)
	}

	limiter := rate.NewLimiter(limit, s.opts.ChunkBlocks)

	for written := 0; written < app.Blocks; {
		chunk := min(s.opts.ChunkBlocks, app.Blocks-written)

		if err := limiter.WaitN(ctx, chunk); err != nil {
			// WaitN gives up early when the deadline cannot be met.
			<-ctx.Done()
			log.Debug().Int("written", written).Msg("transfer aborted, partial image discarded")

			return fmt.Errorf("%w: %w", domain.ErrOperationAborted, ctx.Err())
		}

		written += chunk

		if s.fail[app.Name] {
			return fmt.Errorf("%w: %s", ErrRejected, app.Name)
		}

		events <- domain.LinkEvent{Progress: float64(written) / float64(app.Blocks)}
	}

	if err := s.commit(func(apps []domain.DeviceApp) []domain.DeviceApp {
		resident := domain.DeviceApp{Name: app.Name, Version: app.Version, Blocks: app.Blocks}
		if i := indexOf(apps, app.Name); i >= 0 {
			apps[i] = resident
			return apps
		}

		return append(apps, resident)
	}); err != nil {
		return err
	}

	log.Debug().Str("version", app.Version).Msg("image written")

	return nil
}

func (s *Simulator) uninstall(op domain.Operation, events chan<- domain.LinkEvent, log zerolog.Logger) error {
	s.mu.Lock()
	installed := indexOf(s.apps, op.Name) >= 0
	s.mu.Unlock()

	if !installed {
		return fmt.Errorf("%w: %s", domain.ErrNotInstalled, op.Name)
	}

	if s.fail[op.Name] {
		return fmt.Errorf("%w: %s", ErrRejected, op.Name)
	}

	events <- domain.LinkEvent{Progress: 1}

	if err := s.commit(func(apps []domain.DeviceApp) []domain.DeviceApp {
		return slices.DeleteFunc(apps, func(a domain.DeviceApp) bool { return a.Name == op.Name })
	}); err != nil {
		return err
	}

	log.Debug().Msg("application removed")

	return nil
}

func (s *Simulator) checkSpace(app domain.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.usedLocked(app.Name)
	if used+app.Blocks > s.opts.CapacityBlocks {
		return fmt.Errorf("%w: %s needs %d blocks, %d free",
			domain.ErrInsufficientSpace, app.Name, app.Blocks, s.opts.CapacityBlocks-used)
	}

	return nil
}

// usedLocked sums resident blocks, leaving out the app being replaced.
func (s *Simulator) usedLocked(except string) int {
	used := 0

	for _, app := range s.apps {
		if app.Name != except {
			used += app.Blocks
		}
	}

	return used
}

// commit applies change to the resident apps and persists the result.
func (s *Simulator) commit(change func([]domain.DeviceApp) []domain.DeviceApp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := change(slices.Clone(s.apps))
	if err := s.save(next); err != nil {
		return err
	}

	s.apps = next

	return nil
}

func (s *Simulator) load() error {
	// #nosec G304 - State path comes from configuration
	data, err := os.ReadFile(s.opts.StatePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to read device state: %w", err)
	}

	var state stateFile
	if err := toml.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse device state %s: %w", s.opts.StatePath, err)
	}

	s.apps = state.Apps

	return nil
}

func (s *Simulator) save(apps []domain.DeviceApp) error {
	data, err := toml.Marshal(stateFile{Apps: apps})
	if err != nil {
		return fmt.Errorf("failed to encode device state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.opts.StatePath), ".device-*.toml")
	if err != nil {
		return fmt.Errorf("failed to write device state: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write device state: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write device state: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.opts.StatePath); err != nil {
		return fmt.Errorf("failed to write device state: %w", err)
	}

	return nil
}

func indexOf(apps []domain.DeviceApp, name string) int {
	return slices.IndexFunc(apps, func(a domain.DeviceApp) bool { return a.Name == name })
}
