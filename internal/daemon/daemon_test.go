package daemon

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielgray/remsync/internal/engine"
)

func testConfig() *Config {
	return &Config{
		DebounceInterval: 20 * time.Millisecond,
		Logger:           log.New(io.Discard, "", 0),
	}
}

func noopPass(_ context.Context) (engine.Stats, error) {
	return engine.Stats{}, nil
}

func countingPass(n *atomic.Int32) PassFunc {
	return func(_ context.Context) (engine.Stats, error) {
		n.Add(1)
		return engine.Stats{}, nil
	}
}

func TestNewRejectsEmptyPaths(t *testing.T) {
	if _, err := New("", "/tmp/r.db", noopPass, noopPass, testConfig()); err == nil {
		t.Error("expected error for empty task data dir")
	}
	if _, err := New("/tmp/task", "", noopPass, noopPass, testConfig()); err == nil {
		t.Error("expected error for empty reminders db path")
	}
}

func TestClassify(t *testing.T) {
	taskDir := filepath.Join(t.TempDir(), "task")
	dbPath := filepath.Join(t.TempDir(), "reminders.db")

	d, err := New(taskDir, dbPath, noopPass, noopPass, testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer d.watcher.Close()

	cases := []struct {
		path   string
		source string
		ok     bool
	}{
		{filepath.Join(taskDir, "pending.data"), sourceTasks, true},
		{filepath.Join(taskDir, "completed.data"), sourceTasks, true},
		{filepath.Join(taskDir, "taskrc"), "", false},
		{dbPath, sourceReminders, true},
		{dbPath + "-wal", sourceReminders, true},
		{dbPath + "-journal", "", false},
		{filepath.Join(t.TempDir(), "unrelated.data"), "", false},
	}
	for _, c := range cases {
		source, ok := d.classify(c.path)
		if source != c.source || ok != c.ok {
			t.Errorf("classify(%q) = %q,%v, want %q,%v", c.path, source, ok, c.source, c.ok)
		}
	}
}

func TestStartRunsInitialPasses(t *testing.T) {
	taskDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "reminders.db")

	var taskPasses, remPasses atomic.Int32
	d, err := New(taskDir, dbPath, countingPass(&taskPasses), countingPass(&remPasses), testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitFor(t, func() bool { return taskPasses.Load() >= 1 && remPasses.Load() >= 1 })

	cancel()
	if err := <-done; err != nil {
		t.Errorf("start returned: %v", err)
	}
}

func TestChangeTriggersDebouncedPass(t *testing.T) {
	taskDir := t.TempDir()
	remDir := t.TempDir()
	dbPath := filepath.Join(remDir, "reminders.db")

	var taskPasses, remPasses atomic.Int32
	d, err := New(taskDir, dbPath, countingPass(&taskPasses), countingPass(&remPasses), testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// Let the initial passes finish before counting triggered ones.
	waitFor(t, func() bool { return taskPasses.Load() == 1 && remPasses.Load() == 1 })

	// A burst of writes to the task store should coalesce.
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(taskDir, "pending.data"), "change")
		time.Sleep(2 * time.Millisecond)
	}
	waitFor(t, func() bool { return taskPasses.Load() >= 2 })
	if got := remPasses.Load(); got != 1 {
		t.Errorf("reminder passes = %d, want 1 (untouched store)", got)
	}

	writeFile(t, dbPath, "sqlite bytes")
	waitFor(t, func() bool { return remPasses.Load() >= 2 })

	cancel()
	if err := <-done; err != nil {
		t.Errorf("start returned: %v", err)
	}
}

func TestIgnoredFilesDoNotTrigger(t *testing.T) {
	taskDir := t.TempDir()
	remDir := t.TempDir()
	dbPath := filepath.Join(remDir, "reminders.db")

	var taskPasses atomic.Int32
	d, err := New(taskDir, dbPath, countingPass(&taskPasses), noopPass, testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitFor(t, func() bool { return taskPasses.Load() == 1 })

	writeFile(t, filepath.Join(taskDir, "taskrc"), "rc change")
	time.Sleep(5 * testConfig().DebounceInterval)
	if got := taskPasses.Load(); got != 1 {
		t.Errorf("task passes = %d, want 1 (non-data file)", got)
	}

	cancel()
	<-done
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
