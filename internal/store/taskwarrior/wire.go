package taskwarrior

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danielgray/remsync/internal/task"
)

// wireTimeLayout is Taskwarrior's export time format (UTC, no separators).
const wireTimeLayout = "20060102T150405Z"

// WireTime marshals time.Time in Taskwarrior's wire format.
type WireTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (wt *WireTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "0" {
		wt.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(wireTimeLayout, s)
	if err != nil {
		return fmt.Errorf("failed to parse taskwarrior time %q: %w", s, err)
	}
	wt.Time = t
	return nil
}

// MarshalJSON implements json.Marshaler.
func (wt WireTime) MarshalJSON() ([]byte, error) {
	if wt.Time.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + wt.Time.UTC().Format(wireTimeLayout) + `"`), nil
}

// wireAnnotation is one annotation as Taskwarrior exports it.
type wireAnnotation struct {
	Entry       *WireTime `json:"entry,omitempty"`
	Description string    `json:"description"`
}

// wireTask mirrors the JSON shape of task export / task import.
type wireTask struct {
	UUID        string           `json:"uuid,omitempty"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	Priority    string           `json:"priority,omitempty"`
	Project     string           `json:"project,omitempty"`
	Due         *WireTime        `json:"due,omitempty"`
	Modified    *WireTime        `json:"modified,omitempty"`
	Annotations []wireAnnotation `json:"annotations,omitempty"`
	ExternalID  string           `json:"remexternalid,omitempty"`
}

// ParseExport decodes a task export JSON array into task form.
func ParseExport(r io.Reader) ([]task.Task, error) {
	var wires []wireTask
	if err := json.NewDecoder(r).Decode(&wires); err != nil {
		return nil, fmt.Errorf("failed to decode task export: %w", err)
	}
	tasks := make([]task.Task, 0, len(wires))
	for _, w := range wires {
		tasks = append(tasks, fromWire(w))
	}
	return tasks, nil
}

func fromWire(w wireTask) task.Task {
	t := task.Task{
		UUID:       w.UUID,
		Title:      w.Description,
		Status:     parseStatus(w.Status),
		Priority:   parsePriority(w.Priority),
		Project:    w.Project,
		ExternalID: w.ExternalID,
	}
	if w.Modified != nil {
		t.LastModified = w.Modified.Time
	}
	if w.Due != nil && !w.Due.IsZero() {
		due := w.Due.Time
		t.Due = &due
	}
	for _, a := range w.Annotations {
		t.Notes = append(t.Notes, task.Annotation{Text: a.Description})
	}
	return t
}

func toWire(t task.Task) wireTask {
	w := wireTask{
		UUID:        t.UUID,
		Description: t.Title,
		Status:      formatStatus(t.Status),
		Priority:    formatPriority(t.Priority),
		Project:     t.Project,
		ExternalID:  t.ExternalID,
	}
	if t.Due != nil {
		w.Due = &WireTime{*t.Due}
	}
	if !t.LastModified.IsZero() {
		w.Modified = &WireTime{t.LastModified}
	}
	now := WireTime{time.Now()}
	for _, n := range t.Notes {
		w.Annotations = append(w.Annotations, wireAnnotation{Entry: &now, Description: n.Text})
	}
	return w
}

// parseStatus maps Taskwarrior statuses onto the task model. Waiting
// collapses into pending; anything unrecognized reads as unknown.
func parseStatus(s string) task.Status {
	switch s {
	case "pending", "waiting":
		return task.StatusPending
	case "completed":
		return task.StatusCompleted
	case "deleted":
		return task.StatusDeleted
	default:
		return task.StatusUnknown
	}
}

func formatStatus(s task.Status) string {
	switch s {
	case task.StatusCompleted:
		return "completed"
	case task.StatusDeleted:
		return "deleted"
	default:
		// Unknown round-trips as pending on the task side; Taskwarrior
		// has no notion of an indeterminate status.
		return "pending"
	}
}

func parsePriority(p string) task.Priority {
	switch p {
	case "H":
		return task.PriorityHigh
	case "M":
		return task.PriorityMedium
	case "L":
		return task.PriorityLow
	default:
		return task.PriorityNone
	}
}

func formatPriority(p task.Priority) string {
	switch p {
	case task.PriorityHigh:
		return "H"
	case task.PriorityMedium:
		return "M"
	case task.PriorityLow:
		return "L"
	default:
		return ""
	}
}
