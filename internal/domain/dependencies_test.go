// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package domain_test

import (
	"testing"

	"github.com/janderssonse/devapps/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graph(entries ...domain.CatalogEntry) *domain.DependencyGraph {
	g := domain.NewDependencyGraph()
	for _, e := range entries {
		g.AddEntry(e)
	}

	return g
}

func entry(name string, deps ...string) domain.CatalogEntry {
	return domain.CatalogEntry{Name: name, Version: "1.0.0", Blocks: 1, Dependencies: deps}
}

func TestDependencyGraph_ResolveDependencies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		graph   *domain.DependencyGraph
		target  string
		want    []string
		wantErr error
	}{
		{
			name:   "no dependencies",
			graph:  graph(entry("Bitcoin")),
			target: "Bitcoin",
			want:   []string{"Bitcoin"},
		},
		{
			name:   "dependency first",
			graph:  graph(entry("Bitcoin"), entry("Litecoin", "Bitcoin")),
			target: "Litecoin",
			want:   []string{"Bitcoin", "Litecoin"},
		},
		{
			name:   "transitive chain",
			graph:  graph(entry("C", "B"), entry("B", "A"), entry("A")),
			target: "C",
			want:   []string{"A", "B", "C"},
		},
		{
			name:   "diamond visits shared dependency once",
			graph:  graph(entry("A"), entry("B", "A"), entry("C", "A"), entry("D", "B", "C")),
			target: "D",
			want:   []string{"A", "B", "C", "D"},
		},
		{
			name:   "unknown dependency skipped",
			graph:  graph(entry("B", "ghost")),
			target: "B",
			want:   []string{"B"},
		},
		{
			name:    "cycle",
			graph:   graph(entry("A", "B"), entry("B", "A")),
			target:  "A",
			wantErr: domain.ErrCircularDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.graph.ResolveDependencies(tt.target)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDependencyGraph_HasCircularDependency(t *testing.T) {
	t.Parallel()

	t.Run("acyclic", func(t *testing.T) {
		t.Parallel()

		cycle, path := graph(entry("A"), entry("B", "A")).HasCircularDependency()
		assert.False(t, cycle)
		assert.Nil(t, path)
	})

	t.Run("self reference", func(t *testing.T) {
		t.Parallel()

		cycle, path := graph(entry("A", "A")).HasCircularDependency()
		assert.True(t, cycle)
		assert.Equal(t, []string{"A", "A"}, path)
	})

	t.Run("three node cycle", func(t *testing.T) {
		t.Parallel()

		cycle, path := graph(entry("A", "B"), entry("B", "C"), entry("C", "A")).HasCircularDependency()
		assert.True(t, cycle)
		assert.Equal(t, []string{"A", "B", "C", "A"}, path)
	})
}

func TestDependencyGraph_Dependents(t *testing.T) {
	t.Parallel()

	g := graph(
		entry("Bitcoin"),
		entry("Litecoin", "Bitcoin"),
		entry("Dogecoin", "Bitcoin"),
		entry("Wallet", "Litecoin"),
		entry("Ethereum"),
	)

	assert.Equal(t, []string{"Wallet", "Litecoin", "Dogecoin"}, g.Dependents("Bitcoin"))
	assert.Equal(t, []string{"Wallet"}, g.Dependents("Litecoin"))
	assert.Empty(t, g.Dependents("Ethereum"))
	assert.Empty(t, g.Dependents("unknown"))
}

func TestDependencyGraph_MissingDependencies(t *testing.T) {
	t.Parallel()

	g := graph(entry("Bitcoin"), entry("Litecoin", "Bitcoin", "ghost"), entry("Other", "phantom"))

	assert.Equal(t, [][2]string{{"Litecoin", "ghost"}, {"Other", "phantom"}}, g.MissingDependencies())
	assert.True(t, g.Has("Litecoin"))
	assert.False(t, g.Has("ghost"))
}

func TestDependencyGraph_AddEntryReplaces(t *testing.T) {
	t.Parallel()

	g := graph(entry("A"), entry("B", "A"))
	g.AddEntry(entry("B"))

	assert.Empty(t, g.Dependents("A"))
}
