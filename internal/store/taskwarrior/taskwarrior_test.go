package taskwarrior

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgray/remsync/internal/store"
	"github.com/danielgray/remsync/internal/task"
)

// stubTask writes a shell script standing in for the task binary. The
// script appends its arguments to args.txt, copies stdin to stdin.txt,
// and prints the canned output.
func stubTask(t *testing.T, script string) (bin, dir string) {
	t.Helper()
	dir = t.TempDir()
	bin = filepath.Join(dir, "task")
	full := "#!/bin/sh\n" +
		`echo "$@" >> "` + dir + `/args.txt"` + "\n" +
		`cat >> "` + dir + `/stdin.txt"` + "\n" +
		script + "\n"
	if err := os.WriteFile(bin, []byte(full), 0755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return bin, dir
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestCheckMissingBinary(t *testing.T) {
	s := New("no-such-task-binary", "", discardLogger())
	if err := s.Check(); !errors.Is(err, store.ErrPermissionDenied) {
		t.Errorf("error = %v, want ErrPermissionDenied", err)
	}
}

func TestCheckUnreadableDataDir(t *testing.T) {
	bin, _ := stubTask(t, "exit 0")
	s := New(bin, filepath.Join(t.TempDir(), "missing"), discardLogger())
	if err := s.Check(); !errors.Is(err, store.ErrPermissionDenied) {
		t.Errorf("error = %v, want ErrPermissionDenied", err)
	}
}

func TestCheckOK(t *testing.T) {
	bin, dir := stubTask(t, "exit 0")
	s := New(bin, dir, discardLogger())
	if err := s.Check(); err != nil {
		t.Errorf("check: %v", err)
	}
}

func TestListParsesExportAndFilters(t *testing.T) {
	bin, dir := stubTask(t, `echo '[{"uuid":"u1","description":"Buy milk","status":"pending","modified":"20260826T101530Z"}]'`)
	s := New(bin, dir, discardLogger())

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tasks, err := s.List(context.Background(), since)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Buy milk" {
		t.Errorf("tasks = %+v", tasks)
	}

	args := readFile(t, filepath.Join(dir, "args.txt"))
	if !strings.Contains(args, "modified.after:20260801T000000Z") {
		t.Errorf("watermark filter missing from args: %s", args)
	}
	if !strings.Contains(args, "status:deleted") {
		t.Errorf("deleted tasks must be included in the filter: %s", args)
	}
}

func TestListEpochWatermarkSkipsFilter(t *testing.T) {
	bin, dir := stubTask(t, `echo '[]'`)
	s := New(bin, dir, discardLogger())

	if _, err := s.List(context.Background(), time.Unix(0, 0)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if args := readFile(t, filepath.Join(dir, "args.txt")); strings.Contains(args, "modified.after") {
		t.Errorf("epoch watermark should export everything: %s", args)
	}
}

func TestLoadNotFound(t *testing.T) {
	bin, _ := stubTask(t, `echo '[]'`)
	s := New(bin, "", discardLogger())

	_, err := s.Load(context.Background(), "no-such-uuid")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	_, err = s.LoadByExternalID(context.Background(), "no-such-id")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSaveImportsWireJSON(t *testing.T) {
	bin, dir := stubTask(t, "exit 0")
	s := New(bin, "", discardLogger())

	in := task.Task{
		UUID:       "u1",
		Title:      "Buy milk",
		Status:     task.StatusPending,
		ExternalID: "rem-42",
	}
	if err := s.Save(context.Background(), in); err != nil {
		t.Fatalf("save: %v", err)
	}

	stdin := readFile(t, filepath.Join(dir, "stdin.txt"))
	for _, want := range []string{`"description":"Buy milk"`, `"status":"pending"`, `"remexternalid":"rem-42"`} {
		if !strings.Contains(stdin, want) {
			t.Errorf("import payload missing %s: %s", want, stdin)
		}
	}
	if args := readFile(t, filepath.Join(dir, "args.txt")); !strings.Contains(args, "import") {
		t.Errorf("expected an import invocation: %s", args)
	}
}

func TestSaveRejectsInvalidTask(t *testing.T) {
	bin, _ := stubTask(t, "exit 0")
	s := New(bin, "", discardLogger())

	if err := s.Save(context.Background(), task.Task{Status: task.StatusPending}); err == nil {
		t.Error("expected validation error for untitled task")
	}
}

func TestDeleteMissingTaskIsNotAnError(t *testing.T) {
	bin, _ := stubTask(t, `echo "No tasks."; exit 1`)
	s := New(bin, "", discardLogger())

	if err := s.Delete(context.Background(), task.Task{UUID: "gone"}); err != nil {
		t.Errorf("delete: %v", err)
	}
}

func TestDeleteFailurePropagates(t *testing.T) {
	bin, _ := stubTask(t, `echo "database locked"; exit 3`)
	s := New(bin, "", discardLogger())

	if err := s.Delete(context.Background(), task.Task{UUID: "u1"}); err == nil {
		t.Error("expected delete failure")
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}
