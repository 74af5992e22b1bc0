// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"fmt"
	"slices"
)

// DependencyGraph represents application dependencies across a catalog.
type DependencyGraph struct {
	order   []string            // insertion order, used for deterministic walks
	entries map[string]bool     // known applications
	edges   map[string][]string // app -> dependencies
}

// NewDependencyGraph creates a new dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		entries: make(map[string]bool),
		edges:   make(map[string][]string),
	}
}

// AddEntry adds a catalog entry to the dependency graph.
func (g *DependencyGraph) AddEntry(entry CatalogEntry) {
	if !g.entries[entry.Name] {
		g.order = append(g.order, entry.Name)
	}

	g.entries[entry.Name] = true
	g.edges[entry.Name] = slices.Clone(entry.Dependencies)
}

// Has reports whether name is part of the graph.
func (g *DependencyGraph) Has(name string) bool {
	return g.entries[name]
}

// MissingDependencies returns every (app, dependency) pair whose dependency is unknown.
func (g *DependencyGraph) MissingDependencies() [][2]string {
	var missing [][2]string

	for _, name := range g.order {
		for _, dep := range g.edges[name] {
			if !g.entries[dep] {
				missing = append(missing, [2]string{name, dep})
			}
		}
	}

	return missing
}

// HasCircularDependency checks if the graph has circular dependencies.
func (g *DependencyGraph) HasCircularDependency() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, name := range g.order {
		if !visited[name] {
			if hasCycle, path := g.dfsDetectCycle(name, visited, recStack, nil); hasCycle {
				return true, path
			}
		}
	}

	return false, nil
}

// ResolveDependencies returns name and its dependencies in installation order:
// dependencies first, name last.
func (g *DependencyGraph) ResolveDependencies(name string) ([]string, error) {
	if hasCycle, cyclePath := g.HasCircularDependency(); hasCycle {
		return nil, fmt.Errorf("%w: %v", ErrCircularDependency, cyclePath)
	}

	visited := make(map[string]bool)
	result := make([]string, 0)
	g.topologicalSort(name, visited, &result)

	return result, nil
}

// Dependents returns every application that depends on name, directly or
// transitively, in removal order: an app always precedes the apps it depends on.
func (g *DependencyGraph) Dependents(name string) []string {
	reverse := make(map[string][]string)

	for _, app := range g.order {
		for _, dep := range g.edges[app] {
			reverse[dep] = append(reverse[dep], app)
		}
	}

	visited := map[string]bool{name: true}
	postorder := make([]string, 0)

	var walk func(string)

	walk = func(current string) {
		for _, dependent := range reverse[current] {
			if visited[dependent] {
				continue
			}

			visited[dependent] = true
			walk(dependent)
			postorder = append(postorder, dependent)
		}
	}

	walk(name)

	return postorder
}

// dfsDetectCycle performs depth-first search to detect cycles.
func (g *DependencyGraph) dfsDetectCycle(name string, visited, recStack map[string]bool, path []string) (bool, []string) {
	visited[name] = true
	recStack[name] = true
	path = append(path, name)

	for _, dep := range g.edges[name] {
		if !visited[dep] {
			if cycle, cyclePath := g.dfsDetectCycle(dep, visited, recStack, path); cycle {
				return true, cyclePath
			}
		} else if recStack[dep] {
			start := slices.Index(path, dep)
			if start < 0 {
				return true, append(path, dep)
			}

			cyclePath := make([]string, 0, len(path)-start+1)
			cyclePath = append(cyclePath, path[start:]...)
			cyclePath = append(cyclePath, dep)

			return true, cyclePath
		}
	}

	recStack[name] = false

	return false, nil
}

// topologicalSort performs topological sorting using DFS.
func (g *DependencyGraph) topologicalSort(name string, visited map[string]bool, result *[]string) {
	if visited[name] {
		return
	}

	visited[name] = true

	for _, dep := range g.edges[name] {
		if !g.entries[dep] {
			continue
		}

		g.topologicalSort(dep, visited, result)
	}

	*result = append(*result, name)
}
