// Package reminder defines the raw reminder-side record as the reminder
// store exposes it: a completed flag instead of a status enum, numeric
// priority buckets, one free-text notes blob, and a due date stored as
// local calendar components plus an optional relative alarm.
package reminder

import "time"

// Priority buckets follow the reminder store's numbering: 0 is none,
// 1-4 map to high, 5 to medium, and 6-9 to low.
const (
	PriorityNone   = 0
	PriorityHigh   = 1
	PriorityMedium = 5
	PriorityLow    = 9
)

// DateComponents is a due date decomposed into local calendar fields.
// The reminder store has no timezone-qualified timestamp type for due
// dates; it stores wall-clock components and resolves them locally.
type DateComponents struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// Time composes the components into a timestamp in the given location.
func (c DateComponents) Time(loc *time.Location) time.Time {
	return time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, c.Minute, c.Second, 0, loc)
}

// Reminder is one raw reminder-side record.
//
// Version is the store's rowversion at load time; a save whose version no
// longer matches the stored row fails with a write conflict. Zero means
// the record has never been persisted.
type Reminder struct {
	ExternalID string
	List       string
	Title      string
	Completed  bool
	Deleted    bool
	Priority   int
	Notes      string
	Due        *DateComponents
	HasAlarm   bool
	// AlarmOffset is the display alarm's offset relative to the due date.
	AlarmOffset  time.Duration
	LastModified time.Time
	Version      int64
}
