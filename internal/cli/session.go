// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/janderssonse/devapps/internal/adapters/device"
	"github.com/janderssonse/devapps/internal/catalog"
	"github.com/janderssonse/devapps/internal/config"
	"github.com/janderssonse/devapps/internal/domain"
	"github.com/janderssonse/devapps/internal/logging"
	"github.com/janderssonse/devapps/internal/manager"
	"github.com/rs/zerolog"
)

// session is one connection to the device with a running queue manager.
type session struct {
	cfg      *config.Config
	log      zerolog.Logger
	catalog  *catalog.Catalog
	device   *device.Simulator
	manager  *manager.Manager
	stop     context.CancelFunc
	closeLog func() error
}

// openSession loads the configuration and catalog, takes the device and
// starts the manager loop. logToFile keeps the terminal free for the TUI.
func (app *CLI) openSession(ctx context.Context, logToFile bool) (*session, error) {
	cfg, err := config.Load(app.configPath)
	if err != nil {
		return nil, domain.NewExitError(ExitConfigError, "Failed to load configuration", err)
	}

	logOpts := logging.Options{Level: cfg.Log.Level, Verbose: app.verbose, JSON: app.json}

	s := &session{cfg: cfg, closeLog: func() error { return nil }}

	if logToFile {
		s.log, s.closeLog, err = logging.NewFile(config.DefaultLogPath(), logOpts)
		if err != nil {
			return nil, domain.NewExitError(ExitGeneralError, "Failed to open log file", err)
		}
	} else {
		s.log = logging.New(app.stderr, logOpts)
	}

	s.catalog, err = catalog.Load(ctx, catalog.SourceFor(cfg.Catalog))
	if err != nil {
		s.close()
		return nil, domain.NewExitError(ExitConfigError, "Failed to load catalog", err)
	}

	s.device, err = device.Open(cfg.DeviceOptions(s.log))
	if err != nil {
		s.close()

		if errors.Is(err, domain.ErrDeviceBusy) {
			return nil, domain.NewExitError(ExitSystemError, "Device is in use by another devapps process", err)
		}

		return nil, domain.NewExitError(ExitSystemError, "Failed to open device", err)
	}

	s.manager, err = manager.Open(ctx, s.catalog, s.device,
		manager.WithLogger(s.log),
		manager.WithOperationTimeout(cfg.OperationTimeout()),
	)
	if err != nil {
		s.close()
		return nil, domain.NewExitError(ExitSystemError, "Failed to read the device", err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	s.stop = stop

	go func() {
		if err := s.manager.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Msg("manager stopped")
		}
	}()

	s.log.Debug().Str("catalog", catalogName(cfg.Catalog)).Str("device", cfg.Device.State).
		Int("apps", s.catalog.Len()).Msg("session opened")

	return s, nil
}

// close stops the manager and releases the device.
func (s *session) close() {
	if s.stop != nil {
		s.stop()
		<-s.manager.Done()
	}

	if s.device != nil {
		if err := s.device.Close(); err != nil {
			s.log.Warn().Err(err).Msg("failed to release device lock")
		}
	}

	if err := s.closeLog(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
}

// status summarizes the device from the latest snapshot.
func (s *session) status() domain.DeviceStatus {
	state := s.manager.State()
	used := state.UsedBlocks
	capacity := s.device.CapacityBlocks()

	return domain.DeviceStatus{
		Installed:      len(state.Installed),
		Outdated:       nonNil(state.Outdated()),
		UsedBlocks:     used,
		CapacityBlocks: capacity,
		FreeBlocks:     max(capacity-used, 0),
		Queue:          state.InstallQueue,
		Current:        state.CurrentAppOp,
	}
}

func catalogName(path string) string {
	if path == "" {
		return "builtin"
	}

	return path
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}

	return names
}
