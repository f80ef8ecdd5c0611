// Package task defines the store-agnostic task model shared by both sides
// of the sync. A Task is the canonical representation a logical item is
// reconciled in; both store adapters convert into and out of it.
package task

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusDeleted   Status = "deleted"
	// StatusUnknown marks a record whose origin cannot distinguish pending
	// from any other open state (the reminder side only stores a completed
	// flag, so everything not completed reads back as unknown).
	StatusUnknown Status = "unknown"
)

// Priority is an ordinal task priority.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "none"
	}
}

// Annotation is a single free-text note attached to a task.
// Ordering of annotations is preserved across round-trips.
type Annotation struct {
	Text string
}

// Task is one side's view of a logical item.
//
// UUID is the task-store key; ExternalID is the identifier of the paired
// reminder-side record. ExternalID is empty until the first sync pass
// creates the counterpart, and unique across all tasks once assigned.
type Task struct {
	UUID         string
	Title        string
	Status       Status
	Priority     Priority
	Project      string
	ExternalID   string
	LastModified time.Time
	Due          *time.Time
	Notes        []Annotation
}

// Validate checks that the task has usable field values.
func (t *Task) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	switch t.Status {
	case StatusPending, StatusCompleted, StatusDeleted, StatusUnknown:
	default:
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Priority < PriorityNone || t.Priority > PriorityHigh {
		return fmt.Errorf("invalid priority %d", t.Priority)
	}
	return nil
}

// Deleted reports whether the task is marked for removal. A deleted task
// has no further field-level meaning beyond retiring its counterpart.
func (t *Task) Deleted() bool {
	return t.Status == StatusDeleted
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	if t.Due != nil {
		due := *t.Due
		out.Due = &due
	}
	if t.Notes != nil {
		out.Notes = make([]Annotation, len(t.Notes))
		copy(out.Notes, t.Notes)
	}
	return out
}

// Equal reports whether two tasks carry the same content fields.
// Identity and bookkeeping fields (UUID, ExternalID, LastModified) are
// excluded: two field-equal records need no write-back even when their
// timestamps differ. Pending and unknown compare equal here — the
// reminder vocabulary cannot tell them apart, and treating them as
// different would make every pass rewrite an otherwise settled pair.
func (t Task) Equal(o Task) bool {
	if t.Title != o.Title || !statusEquiv(t.Status, o.Status) || t.Priority != o.Priority || t.Project != o.Project {
		return false
	}
	if (t.Due == nil) != (o.Due == nil) {
		return false
	}
	if t.Due != nil && !t.Due.Equal(*o.Due) {
		return false
	}
	if len(t.Notes) != len(o.Notes) {
		return false
	}
	for i := range t.Notes {
		if t.Notes[i] != o.Notes[i] {
			return false
		}
	}
	return true
}

func statusEquiv(a, b Status) bool {
	open := func(s Status) bool { return s == StatusPending || s == StatusUnknown }
	return a == b || (open(a) && open(b))
}
