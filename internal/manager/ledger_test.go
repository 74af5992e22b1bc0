// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package manager

import (
	"testing"

	"github.com/janderssonse/devapps/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpToDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		installed string
		available string
		want      bool
	}{
		{"1.0.0", "1.0.0", true},
		{"1.0.0", "1.0.1", false},
		{"2.2.3", "2.10.0", false},
		{"2.10.0", "2.2.3", true},
		{"v1.2.0", "1.2.0", true},
		{"1.2.0-rc.1", "1.2.0", false},
		{"nightly", "nightly", true},
		{"nightly", "1.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.installed+"_vs_"+tt.available, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, upToDate(tt.installed, tt.available))
		})
	}
}

func TestLedger(t *testing.T) {
	t.Parallel()

	cat := newCatalog(t, entry("A", "1.1.0"), entry("B", "1.1.0"), entry("C", "1.1.0"))
	ledger := newLedger(cat, []domain.DeviceApp{
		app("Legacy", "0.1.0"),
		app("C", "1.1.0"),
		app("A", "1.0.0"),
		app("A", "1.1.0"),
	})

	assert.Equal(t, 3, ledger.Len(), "duplicate listing entries are ignored")
	assert.Equal(t, 30, ledger.UsedBlocks())
	assert.True(t, ledger.IsInstalled("A"))
	assert.False(t, ledger.IsUpToDate("A"))
	assert.True(t, ledger.IsUpToDate("C"))
	assert.True(t, ledger.IsUpToDate("Legacy"), "apps outside the catalog cannot be updated")
	assert.False(t, ledger.IsInstalled("B"))

	names := func() []string {
		var out []string
		for _, record := range ledger.Records() {
			out = append(out, record.Name)
		}

		return out
	}

	assert.Equal(t, []string{"A", "C", "Legacy"}, names())

	entryB, ok := cat.Lookup("B")
	require.True(t, ok)
	ledger.markUpdated(entryB)

	entryA, ok := cat.Lookup("A")
	require.True(t, ok)
	ledger.markUpdated(entryA)

	record, ok := ledger.Record("A")
	require.True(t, ok)
	assert.Equal(t, domain.InstalledRecord{Name: "A", Version: "1.1.0", Updated: true, Blocks: 10}, record)
	assert.Equal(t, []string{"A", "B", "C", "Legacy"}, names())

	ledger.remove("C")
	ledger.remove("missing")
	assert.Equal(t, []string{"A", "B", "Legacy"}, names())
	assert.False(t, ledger.IsInstalled("C"))
}
