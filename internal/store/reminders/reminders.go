// Package reminders implements the reminder store over an embedded
// SQLite database.
//
// The database runs in embedded mode with WAL so the daemon's two passes
// can read concurrently with writes. Every reminder row carries a
// rowversion; saves are conditional on the version observed at load time
// and fail with a write conflict when the row moved underneath them.
// Removal tombstones the row instead of deleting it, so externally
// deleted reminders still show up in watermark diffs and can propagate
// to the task side.
package reminders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"

	"github.com/danielgray/remsync/internal/reminder"
	"github.com/danielgray/remsync/internal/store"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store is the SQLite-backed reminder store.
type Store struct {
	conn        *sql.DB
	path        string
	defaultList string
}

// Open creates a reminder store at the given database path.
//
// The database is created along with its schema if it doesn't exist.
// defaultList is the list newly created reminders are assigned to.
// The caller must Close() the store when done.
func Open(path, defaultList string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %v", store.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		if os.IsPermission(errors.Unwrap(err)) {
			return nil, fmt.Errorf("%w: %v", store.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path, defaultList: defaultList}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS lists (
		handle TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS reminders (
		external_id TEXT PRIMARY KEY,
		list_handle TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		completed INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		priority INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		has_due INTEGER NOT NULL DEFAULT 0,
		due_year INTEGER NOT NULL DEFAULT 0,
		due_month INTEGER NOT NULL DEFAULT 0,
		due_day INTEGER NOT NULL DEFAULT 0,
		due_hour INTEGER NOT NULL DEFAULT 0,
		due_minute INTEGER NOT NULL DEFAULT 0,
		due_second INTEGER NOT NULL DEFAULT 0,
		has_alarm INTEGER NOT NULL DEFAULT 0,
		alarm_offset_seconds INTEGER NOT NULL DEFAULT 0,
		modified_at TEXT NOT NULL,
		rowversion INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (list_handle) REFERENCES lists(handle)
	);

	CREATE INDEX IF NOT EXISTS idx_reminders_modified ON reminders(modified_at);
	CREATE INDEX IF NOT EXISTS idx_reminders_list ON reminders(list_handle);
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// List implements store.ReminderStore. Tombstoned records are included
// so deletions propagate.
func (s *Store) List(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT external_id FROM reminders WHERE modified_at >= ? ORDER BY modified_at",
		since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to list changed reminders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan reminder id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FetchOrCreate implements store.ReminderStore.
func (s *Store) FetchOrCreate(ctx context.Context, externalID string) (reminder.Reminder, bool, error) {
	if externalID != "" {
		rem, err := s.Fetch(ctx, externalID)
		if err == nil {
			return rem, false, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return reminder.Reminder{}, false, err
		}
	}

	handle, err := s.EnsureList(ctx, s.defaultList)
	if err != nil {
		return reminder.Reminder{}, false, err
	}

	rem := reminder.Reminder{
		ExternalID:   xid.New().String(),
		List:         s.defaultList,
		LastModified: time.Now(),
		Version:      1,
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO reminders (external_id, list_handle, modified_at, rowversion) VALUES (?, ?, ?, 1)`,
		rem.ExternalID, handle, rem.LastModified.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return reminder.Reminder{}, false, fmt.Errorf("failed to create reminder: %w", err)
	}
	return rem, true, nil
}

// Fetch implements store.ReminderStore. Tombstoned records are returned
// like any other row.
func (s *Store) Fetch(ctx context.Context, externalID string) (reminder.Reminder, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT r.external_id, l.name, r.title, r.completed, r.deleted, r.priority, r.notes,
		       r.has_due, r.due_year, r.due_month, r.due_day, r.due_hour, r.due_minute, r.due_second,
		       r.has_alarm, r.alarm_offset_seconds, r.modified_at, r.rowversion
		FROM reminders r JOIN lists l ON l.handle = r.list_handle
		WHERE r.external_id = ?`, externalID)

	var rem reminder.Reminder
	var completed, deleted, hasDue, hasAlarm int
	var due reminder.DateComponents
	var offsetSeconds int64
	var modifiedAt string

	err := row.Scan(&rem.ExternalID, &rem.List, &rem.Title, &completed, &deleted, &rem.Priority, &rem.Notes,
		&hasDue, &due.Year, &due.Month, &due.Day, &due.Hour, &due.Minute, &due.Second,
		&hasAlarm, &offsetSeconds, &modifiedAt, &rem.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return reminder.Reminder{}, fmt.Errorf("reminder %s: %w", externalID, store.ErrNotFound)
	}
	if err != nil {
		return reminder.Reminder{}, fmt.Errorf("failed to fetch reminder %s: %w", externalID, err)
	}

	rem.Completed = completed != 0
	rem.Deleted = deleted != 0
	rem.HasAlarm = hasAlarm != 0
	rem.AlarmOffset = time.Duration(offsetSeconds) * time.Second
	if hasDue != 0 {
		rem.Due = &due
	}
	if t, err := time.Parse(time.RFC3339Nano, modifiedAt); err == nil {
		rem.LastModified = t
	}
	return rem, nil
}

// Save implements store.ReminderStore. The update is conditional on the
// rowversion observed at load time.
func (s *Store) Save(ctx context.Context, rem reminder.Reminder) error {
	handle, err := s.EnsureList(ctx, rem.List)
	if err != nil {
		return err
	}

	var due reminder.DateComponents
	hasDue := 0
	if rem.Due != nil {
		due = *rem.Due
		hasDue = 1
	}

	res, err := s.conn.ExecContext(ctx, `
		UPDATE reminders SET
			list_handle = ?, title = ?, completed = ?, deleted = ?, priority = ?, notes = ?,
			has_due = ?, due_year = ?, due_month = ?, due_day = ?, due_hour = ?, due_minute = ?, due_second = ?,
			has_alarm = ?, alarm_offset_seconds = ?,
			modified_at = ?, rowversion = rowversion + 1
		WHERE external_id = ? AND rowversion = ?`,
		handle, rem.Title, boolInt(rem.Completed), boolInt(rem.Deleted), rem.Priority, rem.Notes,
		hasDue, due.Year, due.Month, due.Day, due.Hour, due.Minute, due.Second,
		boolInt(rem.HasAlarm), int64(rem.AlarmOffset/time.Second),
		time.Now().UTC().Format(time.RFC3339Nano),
		rem.ExternalID, rem.Version)
	if err != nil {
		return fmt.Errorf("failed to save reminder %s: %w", rem.ExternalID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result: %w", err)
	}
	if affected == 0 {
		if _, err := s.Fetch(ctx, rem.ExternalID); errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("reminder %s: %w", rem.ExternalID, store.ErrNotFound)
		}
		return fmt.Errorf("reminder %s: %w", rem.ExternalID, store.ErrWriteConflict)
	}
	return nil
}

// Remove implements store.ReminderStore: the record is tombstoned, not
// dropped, so the opposite pass can observe the deletion. Removing an
// already tombstoned record is a no-op (no modified_at bump, no pass
// re-trigger).
func (s *Store) Remove(ctx context.Context, rem reminder.Reminder) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE reminders SET deleted = 1, modified_at = ?, rowversion = rowversion + 1
		WHERE external_id = ? AND deleted = 0`,
		time.Now().UTC().Format(time.RFC3339Nano), rem.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to remove reminder %s: %w", rem.ExternalID, err)
	}
	return nil
}

// Lists implements store.ReminderStore.
func (s *Store) Lists(ctx context.Context) ([]store.List, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT name, handle FROM lists ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer rows.Close()

	var lists []store.List
	for rows.Next() {
		var l store.List
		if err := rows.Scan(&l.Name, &l.Handle); err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

// EnsureList implements store.ReminderStore. Names match case-sensitively.
func (s *Store) EnsureList(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = s.defaultList
	}
	var handle string
	err := s.conn.QueryRowContext(ctx, "SELECT handle FROM lists WHERE name = ?", name).Scan(&handle)
	if err == nil {
		return handle, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up list %q: %w", name, err)
	}

	handle = xid.New().String()
	if _, err := s.conn.ExecContext(ctx, "INSERT INTO lists (handle, name) VALUES (?, ?)", handle, name); err != nil {
		return "", fmt.Errorf("failed to create list %q: %w", name, err)
	}
	return handle, nil
}

// Count returns the number of live (non-tombstoned) reminders.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM reminders WHERE deleted = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reminders: %w", err)
	}
	return count, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
