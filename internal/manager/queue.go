// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package manager

import (
	"slices"

	"github.com/janderssonse/devapps/internal/domain"
)

// Queue is the FIFO of pending operations plus the one executing.
// The executing operation is never part of the pending list.
// Only the manager loop mutates it; it is not safe for concurrent use.
type Queue struct {
	pending []domain.Operation
	current *domain.Operation
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{pending: make([]domain.Operation, 0, 16)}
}

// Enqueue appends ops in order and returns the ones accepted.
// An op whose (kind, name) is already pending or executing is dropped.
func (q *Queue) Enqueue(ops ...domain.Operation) []domain.Operation {
	accepted := make([]domain.Operation, 0, len(ops))

	for _, op := range ops {
		if q.Contains(op.Key()) {
			continue
		}

		q.pending = append(q.pending, op)
		accepted = append(accepted, op)
	}

	return accepted
}

// DequeueNext pops the head and makes it the current operation.
// It refuses while another operation is executing.
func (q *Queue) DequeueNext() (domain.Operation, bool) {
	if q.current != nil || len(q.pending) == 0 {
		return domain.Operation{}, false
	}

	op := q.pending[0]
	q.pending[0] = domain.Operation{}
	q.pending = q.pending[1:]

	if len(q.pending) == 0 {
		q.pending = q.pending[:0:0]
	}

	q.current = &op

	return op, true
}

// PeekCurrent returns the executing operation.
func (q *Queue) PeekCurrent() (domain.Operation, bool) {
	if q.current == nil {
		return domain.Operation{}, false
	}

	return *q.current, true
}

// Finish clears the executing operation and returns it.
func (q *Queue) Finish() (domain.Operation, bool) {
	if q.current == nil {
		return domain.Operation{}, false
	}

	op := *q.current
	q.current = nil

	return op, true
}

// IsEmpty reports whether no operation is pending.
func (q *Queue) IsEmpty() bool {
	return len(q.pending) == 0
}

// Len returns the number of pending operations.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Pending returns a copy of the pending operations in order.
func (q *Queue) Pending() []domain.Operation {
	return slices.Clone(q.pending)
}

// Contains reports whether key is pending or executing.
func (q *Queue) Contains(key domain.OpKey) bool {
	if q.current != nil && q.current.Key() == key {
		return true
	}

	return q.indexOf(key) >= 0
}

// IsPending reports whether key waits in the queue, ignoring the executing op.
func (q *Queue) IsPending(key domain.OpKey) bool {
	return q.indexOf(key) >= 0
}

// Remove drops the pending operation matching key, keeping the order of the rest.
func (q *Queue) Remove(key domain.OpKey) (domain.Operation, bool) {
	i := q.indexOf(key)
	if i < 0 {
		return domain.Operation{}, false
	}

	op := q.pending[i]
	q.pending = slices.Delete(q.pending, i, i+1)

	return op, true
}

// Clear drops every pending operation and returns them in order.
func (q *Queue) Clear() []domain.Operation {
	removed := q.pending
	q.pending = make([]domain.Operation, 0, 16)

	return removed
}

func (q *Queue) indexOf(key domain.OpKey) int {
	return slices.IndexFunc(q.pending, func(op domain.Operation) bool {
		return op.Key() == key
	})
}
