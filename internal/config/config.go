// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package config loads the devapps configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/janderssonse/devapps/internal/adapters/device"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

// ErrInvalidConfig is returned when the configuration cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the contents of config.toml.
type Config struct {
	Catalog string       `toml:"catalog"`
	Device  DeviceConfig `toml:"device"`
	Queue   QueueConfig  `toml:"queue"`
	Log     LogConfig    `toml:"log"`
}

// DeviceConfig configures the simulated device.
type DeviceConfig struct {
	State           string   `toml:"state"`
	CapacityBlocks  int      `toml:"capacity_blocks"`
	BlocksPerSecond float64  `toml:"blocks_per_second"`
	ChunkBlocks     int      `toml:"chunk_blocks"`
	Fail            []string `toml:"fail"`
}

// QueueConfig configures the operation queue.
type QueueConfig struct {
	OperationTimeout Duration `toml:"operation_timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

// UnmarshalText parses strings such as "90s" or "2m".
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = 0
		return nil
	}

	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(parsed)

	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			State:           DefaultStatePath(),
			CapacityBlocks:  device.DefaultCapacityBlocks,
			BlocksPerSecond: device.DefaultBlocksPerSecond,
			ChunkBlocks:     device.DefaultChunkBlocks,
		},
		Log: LogConfig{Level: zerolog.WarnLevel.String()},
	}
}

// Load reads the config file at path over the defaults. An empty path
// selects DefaultPath, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	// #nosec G304 - Config path comes from the user
	data, err := os.ReadFile(ExpandPath(path))

	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges and expands paths.
func (c *Config) Validate() error {
	c.Catalog = ExpandPath(c.Catalog)
	c.Device.State = ExpandPath(c.Device.State)

	switch {
	case c.Device.State == "":
		return fmt.Errorf("%w: device.state must be set", ErrInvalidConfig)
	case c.Device.CapacityBlocks <= 0:
		return fmt.Errorf("%w: device.capacity_blocks must be positive", ErrInvalidConfig)
	case c.Device.ChunkBlocks <= 0:
		return fmt.Errorf("%w: device.chunk_blocks must be positive", ErrInvalidConfig)
	case c.Device.BlocksPerSecond < 0:
		return fmt.Errorf("%w: device.blocks_per_second must not be negative", ErrInvalidConfig)
	case c.Queue.OperationTimeout < 0:
		return fmt.Errorf("%w: queue.operation_timeout must not be negative", ErrInvalidConfig)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}

	return nil
}

// DeviceOptions returns the simulator settings.
func (c *Config) DeviceOptions(logger zerolog.Logger) device.Options {
	return device.Options{
		StatePath:       c.Device.State,
		CapacityBlocks:  c.Device.CapacityBlocks,
		BlocksPerSecond: c.Device.BlocksPerSecond,
		ChunkBlocks:     c.Device.ChunkBlocks,
		Fail:            c.Device.Fail,
		Logger:          logger,
	}
}

// OperationTimeout returns the per-operation bound, zero for none.
func (c *Config) OperationTimeout() time.Duration {
	return time.Duration(c.Queue.OperationTimeout)
}
