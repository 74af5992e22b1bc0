// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Level(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want zerolog.Level
	}{
		{name: "default", opts: Options{}, want: zerolog.WarnLevel},
		{name: "configured", opts: Options{Level: "info"}, want: zerolog.InfoLevel},
		{name: "verbose wins", opts: Options{Level: "error", Verbose: true}, want: zerolog.DebugLevel},
		{name: "unknown falls back", opts: Options{Level: "chatty"}, want: zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.opts.level())
		})
	}
}

func TestNew_WritesJSONToPipes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := New(&buf, Options{Level: "info"})
	logger.Debug().Msg("hidden")
	logger.Info().Str("app", "Bitcoin").Msg("operation started")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "operation started", line["message"])
	assert.Equal(t, "Bitcoin", line["app"])
	assert.Equal(t, "info", line["level"])
}

func TestNewFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "devapps.log")

	logger, closeLog, err := NewFile(path, Options{Level: "debug"})
	require.NoError(t, err)

	logger.Debug().Msg("queued")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"queued"`)
}
