// Package engine drives full reconciliation passes across the two
// stores: diffing the sets of changed items against the watermark,
// creating missing counterparts, resolving matched pairs, and persisting
// results to whichever store is stale.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/danielgray/remsync/internal/reminder"
	"github.com/danielgray/remsync/internal/store"
	"github.com/danielgray/remsync/internal/syncer"
	"github.com/danielgray/remsync/internal/task"
	"github.com/danielgray/remsync/internal/transcode"
)

// Stats are per-pass counters. Matched counts steady-state items that
// needed no write; Failed counts items whose resolution was aborted
// without aborting the pass.
type Stats struct {
	Matched int
	Created int
	Updated int
	Deleted int
	Skipped int
	Failed  int

	Started  time.Time
	Duration time.Duration
}

// EventType tags a pass event for observers.
type EventType string

const (
	EventPassStarted  EventType = "pass_started"
	EventItemSynced   EventType = "item_synced"
	EventItemDeleted  EventType = "item_deleted"
	EventPassComplete EventType = "pass_complete"
)

// Event is one observable step of a pass.
type Event struct {
	Type       EventType `json:"type"`
	Source     string    `json:"source"` // "tasks" or "reminders"
	TaskUUID   string    `json:"task_uuid,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Stats      *Stats    `json:"stats,omitempty"`
}

// EventFunc observes pass events. It must not block.
type EventFunc func(Event)

// Config holds engine configuration.
type Config struct {
	// Watermark is the timestamp below which changes are ignored. It is
	// fixed for the process lifetime; passes always re-diff from it.
	Watermark time.Time

	// DefaultList receives reminders whose task has no project.
	DefaultList string

	// RecreateMissing controls what happens when a previously paired
	// reminder turns out to have been deleted externally: true recreates
	// it from the task, false converts the absence into a task-side
	// deletion.
	RecreateMissing bool

	// Logger for pass activity. Defaults to a stderr logger.
	Logger *log.Logger

	// Notify, if set, observes pass events.
	Notify EventFunc
}

// Engine reconciles one task store with one reminder store. Stores are
// injected so sync targets and test doubles can be substituted.
type Engine struct {
	tasks     store.TaskStore
	reminders store.ReminderStore
	cfg       *Config
	logger    *log.Logger
}

// New creates an engine over the two stores.
func New(tasks store.TaskStore, reminders store.ReminderStore, cfg *Config) *Engine {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	if cfg.DefaultList == "" {
		cfg.DefaultList = "Reminders"
	}
	return &Engine{
		tasks:     tasks,
		reminders: reminders,
		cfg:       cfg,
		logger:    logger,
	}
}

// PassFromTasks runs one full reconciliation pass over task-side records
// modified since the watermark. A store-level listing failure aborts the
// pass; individual item failures are logged and counted, never fatal.
func (e *Engine) PassFromTasks(ctx context.Context) (Stats, error) {
	stats := Stats{Started: time.Now()}
	e.emit(Event{Type: EventPassStarted, Source: "tasks"})

	tasks, err := e.tasks.List(ctx, e.cfg.Watermark)
	if err != nil {
		return stats, fmt.Errorf("failed to list changed tasks: %w", err)
	}

	for _, t := range tasks {
		if err := e.reconcileTask(ctx, t, &stats); err != nil {
			e.logger.Printf("Warning: failed to reconcile task %s: %v", t.UUID, err)
			stats.Failed++
		}
	}

	stats.Duration = time.Since(stats.Started)
	e.emit(Event{Type: EventPassComplete, Source: "tasks", Stats: &stats})
	e.logger.Printf("Task pass complete: matched=%d created=%d updated=%d deleted=%d skipped=%d failed=%d in %v",
		stats.Matched, stats.Created, stats.Updated, stats.Deleted, stats.Skipped, stats.Failed,
		stats.Duration.Round(time.Millisecond))
	return stats, nil
}

// PassFromReminders is the symmetric pass triggered by the reminder-side
// watcher: the same algorithm with the roles of the stores swapped.
func (e *Engine) PassFromReminders(ctx context.Context) (Stats, error) {
	stats := Stats{Started: time.Now()}
	e.emit(Event{Type: EventPassStarted, Source: "reminders"})

	ids, err := e.reminders.List(ctx, e.cfg.Watermark)
	if err != nil {
		return stats, fmt.Errorf("failed to list changed reminders: %w", err)
	}

	for _, id := range ids {
		if err := e.reconcileReminder(ctx, id, &stats); err != nil {
			e.logger.Printf("Warning: failed to reconcile reminder %s: %v", id, err)
			stats.Failed++
		}
	}

	stats.Duration = time.Since(stats.Started)
	e.emit(Event{Type: EventPassComplete, Source: "reminders", Stats: &stats})
	e.logger.Printf("Reminder pass complete: matched=%d created=%d updated=%d deleted=%d skipped=%d failed=%d in %v",
		stats.Matched, stats.Created, stats.Updated, stats.Deleted, stats.Skipped, stats.Failed,
		stats.Duration.Round(time.Millisecond))
	return stats, nil
}

// toTask transcodes a reminder and folds the default list back into an
// empty project, the inverse of the default applied on write.
func (e *Engine) toTask(rem reminder.Reminder) task.Task {
	t := transcode.ToTask(rem)
	if t.Project == e.cfg.DefaultList {
		t.Project = ""
	}
	return t
}

// reconcileTask resolves one task-side record against its counterpart.
func (e *Engine) reconcileTask(ctx context.Context, t task.Task, stats *Stats) error {
	// A deleted task that was never paired has nothing to retire.
	if t.Deleted() && t.ExternalID == "" {
		stats.Matched++
		return nil
	}

	hadExternalID := t.ExternalID != ""

	rem, created, err := e.reminders.FetchOrCreate(ctx, t.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to fetch counterpart: %w", err)
	}

	if created {
		// A fresh record under a previously assigned ID means the
		// reminder was deleted externally before this pass ever loaded
		// it.
		if hadExternalID && !e.cfg.RecreateMissing {
			if err := e.reminders.Remove(ctx, rem); err != nil {
				return fmt.Errorf("failed to discard placeholder reminder: %w", err)
			}
			t.Status = task.StatusDeleted
			if err := e.tasks.Delete(ctx, t); err != nil {
				return fmt.Errorf("failed to propagate reminder deletion: %w", err)
			}
			stats.Deleted++
			e.emit(Event{Type: EventItemDeleted, Source: "tasks", TaskUUID: t.UUID, ExternalID: t.ExternalID, Title: t.Title})
			return nil
		}

		// First pairing, or re-pairing after an external deletion we
		// are configured to recreate from: persist the fresh identifier
		// back to the task store so the identity link survives.
		t.ExternalID = rem.ExternalID
		if err := e.tasks.Save(ctx, t); err != nil {
			return fmt.Errorf("failed to persist pairing: %w", err)
		}
		stats.Created++
	}

	remTask := e.toTask(rem)
	remTask.UUID = t.UUID
	if created {
		// A blank placeholder must never outvote real content.
		remTask.LastModified = time.Time{}
	}

	res := syncer.Synchronize(t, remTask)

	if res.Task.Deleted() {
		if !res.MadeChanges {
			stats.Matched++
			return nil
		}
		return e.retire(ctx, res.Task, rem, "tasks", stats)
	}
	if !res.MadeChanges {
		stats.Matched++
		return nil
	}
	if err := e.writeReminder(ctx, t, res.Task, rem); err != nil {
		if errors.Is(err, store.ErrWriteConflict) {
			stats.Skipped++
			e.logger.Printf("Warning: skipping %s after repeated write conflict", t.UUID)
			return nil
		}
		return err
	}
	for _, w := range transcode.Losses(res.Task) {
		e.logger.Printf("Note: lossy transcode for %s (%s)", t.UUID, w)
	}
	stats.Updated++
	e.emit(Event{Type: EventItemSynced, Source: "tasks", TaskUUID: t.UUID, ExternalID: res.Task.ExternalID, Title: res.Task.Title})
	return nil
}

// reconcileReminder resolves one reminder-side record against its
// counterpart task, creating the task when the item has never been seen.
func (e *Engine) reconcileReminder(ctx context.Context, externalID string, stats *Stats) error {
	rem, err := e.reminders.Fetch(ctx, externalID)
	if errors.Is(err, store.ErrNotFound) {
		// The record vanished between List and fetch; nothing to
		// reconcile and nothing worth leaving behind.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch reminder: %w", err)
	}

	remTask := e.toTask(rem)

	t, err := e.tasks.LoadByExternalID(ctx, externalID)
	if errors.Is(err, store.ErrNotFound) {
		if remTask.Deleted() {
			stats.Matched++
			return nil
		}
		if err := e.tasks.Save(ctx, remTask); err != nil {
			return fmt.Errorf("failed to create paired task: %w", err)
		}
		stats.Created++
		e.emit(Event{Type: EventItemSynced, Source: "reminders", ExternalID: externalID, Title: remTask.Title})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load paired task: %w", err)
	}

	remTask.UUID = t.UUID
	res := syncer.Synchronize(remTask, t)

	if res.Task.Deleted() {
		if !res.MadeChanges {
			stats.Matched++
			return nil
		}
		return e.retire(ctx, res.Task, rem, "reminders", stats)
	}
	if !res.MadeChanges {
		stats.Matched++
		return nil
	}
	if err := e.writeTask(ctx, rem, res.Task); err != nil {
		if errors.Is(err, store.ErrWriteConflict) {
			stats.Skipped++
			e.logger.Printf("Warning: skipping %s after repeated write conflict", externalID)
			return nil
		}
		return err
	}
	stats.Updated++
	e.emit(Event{Type: EventItemSynced, Source: "reminders", TaskUUID: res.Task.UUID, ExternalID: externalID, Title: res.Task.Title})
	return nil
}

// retire removes both sides of a deleted logical item.
func (e *Engine) retire(ctx context.Context, resolved task.Task, rem reminder.Reminder, source string, stats *Stats) error {
	if err := e.reminders.Remove(ctx, rem); err != nil {
		return fmt.Errorf("failed to remove reminder: %w", err)
	}
	if resolved.UUID != "" {
		if err := e.tasks.Delete(ctx, resolved); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
	}
	stats.Deleted++
	e.emit(Event{Type: EventItemDeleted, Source: source, TaskUUID: resolved.UUID, ExternalID: rem.ExternalID, Title: resolved.Title})
	return nil
}

// writeReminder transcodes the resolved task back into reminder form and
// persists it, retrying exactly once on a write conflict by reloading
// and re-resolving.
func (e *Engine) writeReminder(ctx context.Context, from task.Task, resolved task.Task, base reminder.Reminder) error {
	out := transcode.FromTask(resolved, base)
	if out.List == "" {
		out.List = e.cfg.DefaultList
	}
	if _, err := e.reminders.EnsureList(ctx, out.List); err != nil {
		return fmt.Errorf("failed to ensure list %q: %w", out.List, err)
	}

	err := e.reminders.Save(ctx, out)
	if !errors.Is(err, store.ErrWriteConflict) {
		return err
	}

	// Reload, re-resolve, retry once.
	fresh, ferr := e.reminders.Fetch(ctx, base.ExternalID)
	if errors.Is(ferr, store.ErrNotFound) {
		// Vanished during the conflict; the reminder pass owns whatever
		// happened to it.
		return nil
	}
	if ferr != nil {
		return fmt.Errorf("failed to reload after conflict: %w", ferr)
	}
	freshTask := e.toTask(fresh)
	freshTask.UUID = from.UUID
	res := syncer.Synchronize(from, freshTask)
	if !res.MadeChanges {
		return nil
	}
	out = transcode.FromTask(res.Task, fresh)
	if out.List == "" {
		out.List = e.cfg.DefaultList
	}
	return e.reminders.Save(ctx, out)
}

// writeTask persists the resolved state to the task store, retrying once
// on a write conflict.
func (e *Engine) writeTask(ctx context.Context, rem reminder.Reminder, resolved task.Task) error {
	err := e.tasks.Save(ctx, resolved)
	if !errors.Is(err, store.ErrWriteConflict) {
		return err
	}

	fresh, ferr := e.tasks.LoadByExternalID(ctx, rem.ExternalID)
	if ferr != nil {
		return fmt.Errorf("failed to reload after conflict: %w", ferr)
	}
	remTask := e.toTask(rem)
	remTask.UUID = fresh.UUID
	res := syncer.Synchronize(remTask, fresh)
	if !res.MadeChanges {
		return nil
	}
	return e.tasks.Save(ctx, res.Task)
}

func (e *Engine) emit(ev Event) {
	if e.cfg.Notify != nil {
		e.cfg.Notify(ev)
	}
}
