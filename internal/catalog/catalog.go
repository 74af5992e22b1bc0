// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

// Package catalog provides the immutable list of installable device applications.
package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/janderssonse/devapps/internal/domain"
)

// Catalog is the ordered, validated set of installable applications.
// It is read-only once built.
type Catalog struct {
	entries []domain.CatalogEntry
	index   map[string]int
	graph   *domain.DependencyGraph
}

// New validates entries and builds a catalog preserving their order.
func New(entries []domain.CatalogEntry) (*Catalog, error) {
	cat := &Catalog{
		entries: make([]domain.CatalogEntry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
		graph:   domain.NewDependencyGraph(),
	}

	for _, entry := range entries {
		entry.Name = strings.TrimSpace(entry.Name)
		if !entry.IsValid() {
			return nil, fmt.Errorf("%w: entry %q needs a name, a version and a positive block count",
				domain.ErrInvalidCatalog, entry.Name)
		}

		if _, exists := cat.index[entry.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate application %q", domain.ErrInvalidCatalog, entry.Name)
		}

		entry.Dependencies = slices.Clone(entry.Dependencies)
		cat.index[entry.Name] = len(cat.entries)
		cat.entries = append(cat.entries, entry)
		cat.graph.AddEntry(entry)
	}

	if missing := cat.graph.MissingDependencies(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %q depends on unknown application %q",
			domain.ErrInvalidCatalog, missing[0][0], missing[0][1])
	}

	if hasCycle, path := cat.graph.HasCircularDependency(); hasCycle {
		return nil, fmt.Errorf("%w: %w: %s", domain.ErrInvalidCatalog, domain.ErrCircularDependency,
			strings.Join(path, " -> "))
	}

	return cat, nil
}

// Entries returns a copy of the catalog in catalog order.
func (c *Catalog) Entries() []domain.CatalogEntry {
	out := make([]domain.CatalogEntry, len(c.entries))
	for i, entry := range c.entries {
		entry.Dependencies = slices.Clone(entry.Dependencies)
		out[i] = entry
	}

	return out
}

// Names returns application names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, entry := range c.entries {
		names[i] = entry.Name
	}

	return names
}

// Len returns the number of applications.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Lookup returns the entry for name.
func (c *Catalog) Lookup(name string) (domain.CatalogEntry, bool) {
	i, ok := c.index[name]
	if !ok {
		return domain.CatalogEntry{}, false
	}

	return c.entries[i], true
}

// Position returns the catalog index of name, or -1.
func (c *Catalog) Position(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}

	return -1
}

// InstallOrder returns name preceded by its dependencies, dependencies first.
func (c *Catalog) InstallOrder(name string) ([]string, error) {
	if _, ok := c.index[name]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownApplication, name)
	}

	return c.graph.ResolveDependencies(name)
}

// Dependents returns the applications depending on name, in removal order.
func (c *Catalog) Dependents(name string) []string {
	return c.graph.Dependents(name)
}
