// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package manager

import (
	"github.com/janderssonse/devapps/internal/domain"
)

// Phase is the driver state.
type Phase string

// Driver phases.
const (
	PhaseIdle      Phase = "idle"
	PhaseDraining  Phase = "draining"
	PhaseExecuting Phase = "executing"
)

// OpStatus is the outcome of a finished operation.
type OpStatus string

// Operation outcomes.
const (
	StatusSucceeded OpStatus = "succeeded"
	StatusFailed    OpStatus = "failed"
	StatusCancelled OpStatus = "cancelled"
)

// OpResult records how an operation ended.
type OpResult struct {
	Op     domain.Operation `json:"op"`
	Status OpStatus         `json:"status"`
	Err    error            `json:"-"`
}

// BatchProgress is the aggregate readout of an "update all" batch.
type BatchProgress struct {
	ID        string `json:"id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// Percent returns 100 * Completed / Total.
func (b BatchProgress) Percent() float64 {
	if b.Total == 0 {
		return 0
	}

	return 100 * float64(b.Completed) / float64(b.Total)
}

// AppProgress is the progress readout for one application.
type AppProgress struct {
	Active        bool    // the app is the current operation's target
	Indeterminate bool    // active but the device has not reported a fraction yet
	Value         float64 // fraction in [0,1], meaningful when active and determinate
}

// State is an immutable snapshot of the session. Callers must not modify it.
type State struct {
	Phase           Phase                    `json:"phase"`
	Apps            []domain.CatalogEntry    `json:"apps"`
	Installed       []domain.InstalledRecord `json:"installed"`
	UsedBlocks      int                      `json:"used_blocks"`
	InstallQueue    []domain.Operation       `json:"install_queue"`
	CurrentAppOp    *domain.Operation        `json:"current_app_op,omitempty"`
	CurrentProgress float64                  `json:"current_progress"`
	HasProgress     bool                     `json:"has_progress"`
	Aborting        bool                     `json:"aborting"`
	Batch           *BatchProgress           `json:"batch,omitempty"`
	Results         []OpResult               `json:"results,omitempty"`
}

// Idle reports whether nothing is pending or executing.
func (s *State) Idle() bool {
	return s.CurrentAppOp == nil && len(s.InstallQueue) == 0
}

// AppProgress returns the progress readout for name.
func (s *State) AppProgress(name string) AppProgress {
	if s.CurrentAppOp == nil || s.CurrentAppOp.Name != name {
		return AppProgress{}
	}

	if !s.HasProgress {
		return AppProgress{Active: true, Indeterminate: true}
	}

	return AppProgress{Active: true, Value: s.CurrentProgress}
}

// Record returns the installed record for name.
func (s *State) Record(name string) (domain.InstalledRecord, bool) {
	for _, record := range s.Installed {
		if record.Name == name {
			return record, true
		}
	}

	return domain.InstalledRecord{}, false
}

// IsInstalled reports whether name is resident on the device.
func (s *State) IsInstalled(name string) bool {
	_, ok := s.Record(name)
	return ok
}

// IsUpToDate reports whether name is installed at the catalog version.
func (s *State) IsUpToDate(name string) bool {
	record, ok := s.Record(name)
	return ok && record.Updated
}

// Outdated returns installed applications that can be updated, in catalog order.
func (s *State) Outdated() []string {
	var names []string

	for _, app := range s.Apps {
		if record, ok := s.Record(app.Name); ok && !record.Updated {
			names = append(names, app.Name)
		}
	}

	return names
}

// Pending returns the queued or executing operation targeting name.
func (s *State) Pending(name string) (domain.Operation, bool) {
	if s.CurrentAppOp != nil && s.CurrentAppOp.Name == name {
		return *s.CurrentAppOp, true
	}

	for _, op := range s.InstallQueue {
		if op.Name == name {
			return op, true
		}
	}

	return domain.Operation{}, false
}

// LastResult returns the most recent result for name.
func (s *State) LastResult(name string) (OpResult, bool) {
	for i := len(s.Results) - 1; i >= 0; i-- {
		if s.Results[i].Op.Name == name {
			return s.Results[i], true
		}
	}

	return OpResult{}, false
}

// ResultFor returns the result of the operation with id.
func (s *State) ResultFor(id string) (OpResult, bool) {
	for i := len(s.Results) - 1; i >= 0; i-- {
		if s.Results[i].Op.ID == id {
			return s.Results[i], true
		}
	}

	return OpResult{}, false
}

// EventType identifies a driver notification.
type EventType int

// Driver notifications.
const (
	EventQueued EventType = iota + 1
	EventStarted
	EventProgress
	EventSucceeded
	EventFailed
	EventCancelled
	EventResynced
)

func (t EventType) String() string {
	switch t {
	case EventQueued:
		return "queued"
	case EventStarted:
		return "started"
	case EventProgress:
		return "progress"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventCancelled:
		return "cancelled"
	case EventResynced:
		return "resynced"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after every driver transition.
type Event struct {
	Type     EventType
	Op       domain.Operation
	Progress float64
	Err      error
	State    *State
}

// batch tracks the operations of one "update all" request.
type batch struct {
	id      string
	total   int
	members map[string]struct{} // unfinished op IDs, queued or executing
}

func (b *batch) add(ops []domain.Operation) {
	for _, op := range ops {
		b.members[op.ID] = struct{}{}
		b.total++
	}
}

// finish marks a member as completed.
func (b *batch) finish(id string) {
	delete(b.members, id)
}

// drop removes a member that will never run.
func (b *batch) drop(id string) {
	if _, ok := b.members[id]; ok {
		delete(b.members, id)
		b.total--
	}
}

func (b *batch) done() bool {
	return len(b.members) == 0
}

func (b *batch) progress() *BatchProgress {
	return &BatchProgress{
		ID:        b.id,
		Total:     b.total,
		Completed: b.total - len(b.members),
	}
}
