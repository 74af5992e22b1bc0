// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package manager

import (
	"cmp"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/janderssonse/devapps/internal/catalog"
	"github.com/janderssonse/devapps/internal/domain"
)

// Ledger tracks the applications resident on the device.
// Only the manager loop mutates it; it is not safe for concurrent use.
type Ledger struct {
	catalog *catalog.Catalog
	records map[string]domain.InstalledRecord
	order   []string // device listing order
}

func newLedger(cat *catalog.Catalog, apps []domain.DeviceApp) *Ledger {
	ledger := &Ledger{catalog: cat}
	ledger.reset(apps)

	return ledger
}

// IsInstalled reports whether name is resident on the device.
func (l *Ledger) IsInstalled(name string) bool {
	_, ok := l.records[name]
	return ok
}

// IsUpToDate reports whether name is installed at the catalog version.
func (l *Ledger) IsUpToDate(name string) bool {
	record, ok := l.records[name]
	return ok && record.Updated
}

// Record returns the record for name.
func (l *Ledger) Record(name string) (domain.InstalledRecord, bool) {
	record, ok := l.records[name]
	return record, ok
}

// Len returns the number of installed applications.
func (l *Ledger) Len() int {
	return len(l.records)
}

// UsedBlocks returns the storage taken by installed applications.
func (l *Ledger) UsedBlocks() int {
	used := 0
	for _, record := range l.records {
		used += record.Blocks
	}

	return used
}

// Records returns installed applications in catalog order; apps the catalog
// does not know follow in device order.
func (l *Ledger) Records() []domain.InstalledRecord {
	names := make([]string, len(l.order))
	copy(names, l.order)

	slices.SortStableFunc(names, func(a, b string) int {
		pa, pb := l.catalog.Position(a), l.catalog.Position(b)
		switch {
		case pa < 0 && pb < 0:
			return 0
		case pa < 0:
			return 1
		case pb < 0:
			return -1
		}

		return cmp.Compare(pa, pb)
	})

	out := make([]domain.InstalledRecord, 0, len(names))
	for _, name := range names {
		out = append(out, l.records[name])
	}

	return out
}

func (l *Ledger) reset(apps []domain.DeviceApp) {
	l.records = make(map[string]domain.InstalledRecord, len(apps))
	l.order = l.order[:0]

	for _, app := range apps {
		if _, dup := l.records[app.Name]; dup {
			continue
		}

		record := domain.InstalledRecord{
			Name:    app.Name,
			Version: app.Version,
			Blocks:  app.Blocks,
			Updated: true,
		}

		if entry, ok := l.catalog.Lookup(app.Name); ok {
			record.Updated = upToDate(app.Version, entry.Version)
		}

		l.records[app.Name] = record
		l.order = append(l.order, app.Name)
	}
}

// markUpdated records entry as installed at its catalog version.
func (l *Ledger) markUpdated(entry domain.CatalogEntry) {
	if _, ok := l.records[entry.Name]; !ok {
		l.order = append(l.order, entry.Name)
	}

	l.records[entry.Name] = domain.InstalledRecord{
		Name:    entry.Name,
		Version: entry.Version,
		Updated: true,
		Blocks:  entry.Blocks,
	}
}

func (l *Ledger) remove(name string) {
	if _, ok := l.records[name]; !ok {
		return
	}

	delete(l.records, name)

	for i, n := range l.order {
		if n == name {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// upToDate compares versions semantically, falling back to equality when
// either side is not a semantic version.
func upToDate(installed, available string) bool {
	have, errHave := semver.NewVersion(installed)
	want, errWant := semver.NewVersion(available)

	if errHave != nil || errWant != nil {
		return installed == available
	}

	return !have.LessThan(want)
}
