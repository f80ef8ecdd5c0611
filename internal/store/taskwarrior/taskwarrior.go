// Package taskwarrior adapts the Taskwarrior command-line database to the
// TaskStore interface by shelling out to the task binary: export for
// reads, import for writes. The adapter blocks on each invocation; the
// engine never sees the process boundary.
package taskwarrior

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/danielgray/remsync/internal/store"
	"github.com/danielgray/remsync/internal/task"
)

// externalIDAttr is the user-defined attribute that carries the paired
// reminder's identifier in the Taskwarrior database.
const externalIDAttr = "remexternalid"

// Store shells out to the task binary for every operation.
type Store struct {
	bin     string
	dataDir string
	logger  *log.Logger
}

// New creates a Taskwarrior store adapter.
//
// bin is the task executable (defaults to "task" when empty); dataDir is
// the Taskwarrior data directory, used only for the startup permission
// probe and by the change watcher.
func New(bin, dataDir string, logger *log.Logger) *Store {
	if bin == "" {
		bin = "task"
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[taskwarrior] ", log.LstdFlags)
	}
	return &Store{bin: bin, dataDir: dataDir, logger: logger}
}

// DataDir returns the configured Taskwarrior data directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// Check verifies the adapter can reach the Taskwarrior database at all.
// Failures wrap ErrPermissionDenied: they are fatal startup conditions,
// not runtime errors.
func (s *Store) Check() error {
	if _, err := exec.LookPath(s.bin); err != nil {
		return fmt.Errorf("%w: task binary %q not found: %v", store.ErrPermissionDenied, s.bin, err)
	}
	if s.dataDir != "" {
		if _, err := os.ReadDir(s.dataDir); err != nil {
			return fmt.Errorf("%w: cannot read data directory %s: %v", store.ErrPermissionDenied, s.dataDir, err)
		}
	}
	return nil
}

// List implements store.TaskStore. Deleted tasks are included so their
// removal propagates to the reminder side.
func (s *Store) List(ctx context.Context, since time.Time) ([]task.Task, error) {
	filter := []string{"(status:pending or status:completed or status:deleted)"}
	if !since.IsZero() && since.Unix() > 0 {
		filter = append(filter, "modified.after:"+since.UTC().Format(wireTimeLayout))
	}
	return s.export(ctx, filter)
}

// Load implements store.TaskStore.
func (s *Store) Load(ctx context.Context, uuid string) (task.Task, error) {
	tasks, err := s.export(ctx, []string{"uuid:" + uuid})
	if err != nil {
		return task.Task{}, err
	}
	if len(tasks) == 0 {
		return task.Task{}, fmt.Errorf("task %s: %w", uuid, store.ErrNotFound)
	}
	return tasks[0], nil
}

// LoadByExternalID implements store.TaskStore.
func (s *Store) LoadByExternalID(ctx context.Context, externalID string) (task.Task, error) {
	tasks, err := s.export(ctx, []string{externalIDAttr + ":" + externalID})
	if err != nil {
		return task.Task{}, err
	}
	if len(tasks) == 0 {
		return task.Task{}, fmt.Errorf("no task paired with %s: %w", externalID, store.ErrNotFound)
	}
	return tasks[0], nil
}

// Save implements store.TaskStore. Tasks are written through task import,
// which upserts by UUID and assigns one to new tasks.
func (s *Store) Save(ctx context.Context, t task.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid task: %w", err)
	}
	wire := toWire(t)
	data, err := json.Marshal([]wireTask{wire})
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.bin, "rc.hooks=0", "rc.verbose=nothing", "import", "-")
	cmd.Stdin = bytes.NewReader(data)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("task import failed: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}

// Delete implements store.TaskStore. Deleting an absent or already
// deleted task is not an error.
func (s *Store) Delete(ctx context.Context, t task.Task) error {
	if t.UUID == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, s.bin, "rc.hooks=0", "rc.confirmation=0", "rc.verbose=nothing", "uuid:"+t.UUID, "delete")
	if out, err := cmd.CombinedOutput(); err != nil {
		// Taskwarrior exits non-zero when the filter matches nothing.
		if bytes.Contains(out, []byte("No tasks")) {
			return nil
		}
		return fmt.Errorf("task delete failed: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}

// export runs task <filter> export and parses the resulting JSON array.
func (s *Store) export(ctx context.Context, filter []string) ([]task.Task, error) {
	args := append(filter, "export", "rc.hooks=0", "rc.json.array=1")
	cmd := exec.CommandContext(ctx, s.bin, args...)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("task export failed: exit code %d, stderr: %s",
				exitErr.ExitCode(), bytes.TrimSpace(exitErr.Stderr))
		}
		return nil, fmt.Errorf("task export failed: %w", err)
	}

	return ParseExport(bytes.NewReader(output))
}
