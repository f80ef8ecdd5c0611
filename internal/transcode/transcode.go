// Package transcode maps fields between the task vocabulary and the
// reminder vocabulary. Every function here is stateless and total, and
// each pair of functions is inverse on the value subset it can produce,
// with two documented exceptions: the status mapping collapses pending
// and unknown, and the note join cannot survive an annotation that
// itself contains a blank line.
package transcode

import (
	"strings"
	"time"

	"github.com/danielgray/remsync/internal/reminder"
	"github.com/danielgray/remsync/internal/store"
	"github.com/danielgray/remsync/internal/task"
)

// noteSeparator joins annotations into the reminder's single notes blob.
const noteSeparator = "\n\n"

// CompletedFlag converts a task status into the reminder completed flag.
// Only completed survives; every other status reads as not completed.
func CompletedFlag(s task.Status) bool {
	return s == task.StatusCompleted
}

// StatusFromCompleted converts the completed flag back into a status.
// This is NOT the inverse of CompletedFlag: the flag cannot distinguish
// pending from unknown, so false always yields unknown.
func StatusFromCompleted(completed bool) task.Status {
	if completed {
		return task.StatusCompleted
	}
	return task.StatusUnknown
}

// ReminderPriority converts a task priority into a reminder bucket.
func ReminderPriority(p task.Priority) int {
	switch p {
	case task.PriorityHigh:
		return reminder.PriorityHigh
	case task.PriorityMedium:
		return reminder.PriorityMedium
	case task.PriorityLow:
		return reminder.PriorityLow
	default:
		return reminder.PriorityNone
	}
}

// PriorityFromReminder converts a reminder bucket back into a task
// priority. Unrecognized values fall back to none.
func PriorityFromReminder(p int) task.Priority {
	switch {
	case p >= 1 && p <= 4:
		return task.PriorityHigh
	case p == 5:
		return task.PriorityMedium
	case p >= 6 && p <= 9:
		return task.PriorityLow
	default:
		return task.PriorityNone
	}
}

// JoinNotes flattens annotations into one blob, blank-line separated.
// An empty sequence yields an empty string.
func JoinNotes(notes []task.Annotation) string {
	if len(notes) == 0 {
		return ""
	}
	parts := make([]string, len(notes))
	for i, n := range notes {
		parts[i] = n.Text
	}
	return strings.Join(parts, noteSeparator)
}

// SplitNotes reverses JoinNotes. An annotation whose own text contains a
// blank line will split incorrectly here; see Losses.
func SplitNotes(blob string) []task.Annotation {
	if blob == "" {
		return nil
	}
	parts := strings.Split(blob, noteSeparator)
	notes := make([]task.Annotation, len(parts))
	for i, p := range parts {
		notes[i] = task.Annotation{Text: p}
	}
	return notes
}

// EncodeDue decomposes a due timestamp into local calendar components and
// the alarm to attach. A due of exactly local midnight is shifted to
// 06:00: the consuming store treats pure midnight as "no time specified"
// and would fire the notification at an undesirable hour. Every present
// due gets a zero-offset display alarm. An absent due writes nothing.
func EncodeDue(due *time.Time) (c *reminder.DateComponents, hasAlarm bool, offset time.Duration) {
	if due == nil {
		return nil, false, 0
	}
	local := due.In(time.Local)
	if local.Hour() == 0 && local.Minute() == 0 && local.Second() == 0 {
		// Rebuilt from components rather than added: six hours across a
		// DST transition would land at 05:00 or 07:00 wall clock.
		local = time.Date(local.Year(), local.Month(), local.Day(), 6, 0, 0, 0, local.Location())
	}
	return &reminder.DateComponents{
		Year:   local.Year(),
		Month:  int(local.Month()),
		Day:    local.Day(),
		Hour:   local.Hour(),
		Minute: local.Minute(),
		Second: local.Second(),
	}, true, 0
}

// DecodeDue recomposes a due timestamp from stored components, adding the
// display alarm's offset to the base date when one exists.
func DecodeDue(c *reminder.DateComponents, hasAlarm bool, offset time.Duration) *time.Time {
	if c == nil {
		return nil
	}
	t := c.Time(time.Local)
	if hasAlarm {
		t = t.Add(offset)
	}
	return &t
}

// ToTask converts a raw reminder into task form for the synchronizer.
// The task-store key is left empty; pairing is the orchestrator's job.
func ToTask(r reminder.Reminder) task.Task {
	status := StatusFromCompleted(r.Completed)
	if r.Deleted {
		status = task.StatusDeleted
	}
	return task.Task{
		Title:        r.Title,
		Status:       status,
		Priority:     PriorityFromReminder(r.Priority),
		Project:      r.List,
		ExternalID:   r.ExternalID,
		LastModified: r.LastModified,
		Due:          DecodeDue(r.Due, r.HasAlarm, r.AlarmOffset),
		Notes:        SplitNotes(r.Notes),
	}
}

// FromTask writes a resolved task's fields onto an existing reminder
// record, preserving the record's identity and version so the store can
// detect conflicting writes.
func FromTask(t task.Task, base reminder.Reminder) reminder.Reminder {
	out := base
	out.Title = t.Title
	out.Completed = CompletedFlag(t.Status)
	out.Priority = ReminderPriority(t.Priority)
	out.Notes = JoinNotes(t.Notes)
	out.Due, out.HasAlarm, out.AlarmOffset = EncodeDue(t.Due)
	// An empty project clears the list too; the caller substitutes its
	// default list, so a stale list never survives a project change.
	out.List = t.Project
	return out
}

// Losses reports the information a round-trip through the reminder side
// will discard for this task. Informational only; never blocks a write.
func Losses(t task.Task) []store.LossWarning {
	var warns []store.LossWarning
	if t.Status == task.StatusPending {
		warns = append(warns, store.LossWarning{
			Field:  "status",
			Detail: "pending is not distinguishable from unknown after transcoding",
		})
	}
	for _, n := range t.Notes {
		if strings.Contains(n.Text, noteSeparator) {
			warns = append(warns, store.LossWarning{
				Field:  "notes",
				Detail: "annotation contains a blank line and will split on reload",
			})
			break
		}
	}
	return warns
}
