// Package store defines the collaborator interfaces the sync engine
// depends on, and the error taxonomy shared by their implementations.
//
// Store calls block until a result or error is available; adapters over
// asynchronous backends bridge that internally rather than leaking
// callbacks into the engine.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/danielgray/remsync/internal/reminder"
	"github.com/danielgray/remsync/internal/task"
)

var (
	// ErrPermissionDenied means a store cannot be used at all. It is a
	// fatal startup condition, never a per-item error.
	ErrPermissionDenied = errors.New("store permission denied")

	// ErrNotFound means a requested record does not exist. During a sync
	// pass this triggers counterpart creation, not failure.
	ErrNotFound = errors.New("record not found")

	// ErrWriteConflict means a save lost a race: the underlying record
	// changed since it was loaded. The caller should reload and
	// re-resolve once before giving up on the item.
	ErrWriteConflict = errors.New("record changed since load")
)

// LossWarning reports information discarded by transcoding. Losses are
// informational only and never block a write.
type LossWarning struct {
	Field  string
	Detail string
}

func (w LossWarning) String() string {
	return w.Field + ": " + w.Detail
}

// TaskStore is the task-side backend.
type TaskStore interface {
	// List returns all tasks modified at or after since.
	List(ctx context.Context, since time.Time) ([]task.Task, error)

	// Load fetches a task by its store key.
	// Returns ErrNotFound if no such task exists.
	Load(ctx context.Context, uuid string) (task.Task, error)

	// LoadByExternalID fetches the task paired with a reminder-side
	// record. Returns ErrNotFound if the identifier is unpaired.
	LoadByExternalID(ctx context.Context, externalID string) (task.Task, error)

	// Save writes the task back, creating it if it has no UUID yet.
	Save(ctx context.Context, t task.Task) error

	// Delete removes the task. Removing an absent task is not an error.
	Delete(ctx context.Context, t task.Task) error
}

// List is one reminder-side list (category) a reminder can belong to.
type List struct {
	Name   string
	Handle string
}

// ReminderStore is the reminder-side backend.
type ReminderStore interface {
	// List returns the external IDs of all reminders modified at or
	// after since, including tombstoned (externally deleted) records.
	List(ctx context.Context, since time.Time) ([]string, error)

	// Fetch loads the reminder with the given external ID.
	// Returns ErrNotFound if no such record exists.
	Fetch(ctx context.Context, externalID string) (reminder.Reminder, error)

	// FetchOrCreate loads the reminder with the given external ID. When
	// the ID is empty or unknown it creates a new blank record in the
	// default list instead, and reports created=true.
	FetchOrCreate(ctx context.Context, externalID string) (rem reminder.Reminder, created bool, err error)

	// Save writes the reminder back. Returns ErrWriteConflict when the
	// record changed since it was loaded.
	Save(ctx context.Context, rem reminder.Reminder) error

	// Remove retires the reminder. Removing an already-removed record
	// is a no-op.
	Remove(ctx context.Context, rem reminder.Reminder) error

	// Lists enumerates the known reminder lists.
	Lists(ctx context.Context) ([]List, error)

	// EnsureList returns the handle of the list with the given name,
	// creating it if absent. Names match case-sensitively.
	EnsureList(ctx context.Context, name string) (string, error)
}
