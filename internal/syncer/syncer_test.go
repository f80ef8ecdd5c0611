package syncer

import (
	"testing"
	"time"

	"github.com/danielgray/remsync/internal/task"
)

func makeTask(t *testing.T, title string, status task.Status, modified time.Time) task.Task {
	t.Helper()
	return task.Task{
		UUID:         "uuid-" + title,
		Title:        title,
		Status:       status,
		Priority:     task.PriorityNone,
		LastModified: modified,
	}
}

func TestNewerWins(t *testing.T) {
	now := time.Now()
	a := makeTask(t, "Write report", task.StatusPending, now)
	b := makeTask(t, "Write report draft", task.StatusPending, now.Add(-time.Hour))
	b.ExternalID = "rem-1"

	res := Synchronize(a, b)
	if res.Task.Title != "Write report" {
		t.Errorf("expected newer side to win, got title %q", res.Task.Title)
	}
	if !res.MadeChanges {
		t.Error("expected MadeChanges=true for divergent records")
	}
}

func TestNewerWinsCarriesExternalID(t *testing.T) {
	now := time.Now()
	a := makeTask(t, "Buy milk", task.StatusPending, now)
	b := makeTask(t, "Buy milk", task.StatusPending, now.Add(-time.Minute))
	b.ExternalID = "rem-42"

	res := Synchronize(a, b)
	if res.Task.ExternalID != "rem-42" {
		t.Errorf("expected externalID carried forward, got %q", res.Task.ExternalID)
	}
}

func TestNoChangesWhenFieldEqual(t *testing.T) {
	now := time.Now()
	a := makeTask(t, "Buy milk", task.StatusPending, now)
	b := makeTask(t, "Buy milk", task.StatusPending, now.Add(-time.Minute))

	res := Synchronize(a, b)
	if res.MadeChanges {
		t.Error("expected MadeChanges=false for field-equal records")
	}
}

func TestTieBreakFavorsCounterpart(t *testing.T) {
	now := time.Now()
	a := makeTask(t, "Task side title", task.StatusPending, now)
	b := makeTask(t, "Reminder side title", task.StatusPending, now)

	res := Synchronize(a, b)
	if res.Task.Title != "Reminder side title" {
		t.Errorf("expected equal timestamps to favor toOlder, got %q", res.Task.Title)
	}
	if res.MadeChanges {
		t.Error("expected no write-back when the counterpart wins")
	}
}

func TestOlderLoses(t *testing.T) {
	now := time.Now()
	a := makeTask(t, "Stale", task.StatusPending, now.Add(-time.Hour))
	b := makeTask(t, "Fresh", task.StatusPending, now)

	res := Synchronize(a, b)
	if res.Task.Title != "Fresh" {
		t.Errorf("expected counterpart to win, got %q", res.Task.Title)
	}
	if res.MadeChanges {
		t.Error("expected MadeChanges=false when counterpart wins")
	}
}

func TestDeletionDominates(t *testing.T) {
	now := time.Now()

	// Deleted side is older: deletion must still win.
	a := makeTask(t, "Old deleted", task.StatusDeleted, now.Add(-time.Hour))
	b := makeTask(t, "Fresh edit", task.StatusPending, now)

	res := Synchronize(a, b)
	if res.Task.Status != task.StatusDeleted {
		t.Errorf("expected deletion to dominate, got status %q", res.Task.Status)
	}
	if !res.MadeChanges {
		t.Error("expected MadeChanges=true when one side must still be retired")
	}

	// And in the other position.
	res = Synchronize(b, a)
	if res.Task.Status != task.StatusDeleted {
		t.Errorf("expected deletion to dominate from toOlder, got status %q", res.Task.Status)
	}
}

func TestBothDeletedIsSettled(t *testing.T) {
	now := time.Now()
	a := makeTask(t, "Gone", task.StatusDeleted, now)
	b := makeTask(t, "Gone", task.StatusDeleted, now.Add(-time.Minute))

	res := Synchronize(a, b)
	if res.Task.Status != task.StatusDeleted {
		t.Errorf("expected deleted result, got %q", res.Task.Status)
	}
	if res.MadeChanges {
		t.Error("expected MadeChanges=false when both sides already agree on deletion")
	}
}

func TestResultIsACopy(t *testing.T) {
	now := time.Now()
	due := now.Add(24 * time.Hour)
	a := makeTask(t, "Mutate me", task.StatusPending, now)
	a.Due = &due
	a.Notes = []task.Annotation{{Text: "original"}}
	b := makeTask(t, "Counterpart", task.StatusPending, now.Add(-time.Minute))

	res := Synchronize(a, b)
	res.Task.Notes[0].Text = "mutated"
	*res.Task.Due = now

	if a.Notes[0].Text != "original" {
		t.Error("result shares note storage with input")
	}
	if !a.Due.Equal(due) {
		t.Error("result shares due storage with input")
	}
}
