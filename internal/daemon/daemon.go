// Package daemon watches both stores for external changes and triggers
// reconciliation passes.
//
// Each store gets an independent watcher. Watcher callbacks carry no
// payload beyond "something changed": they only enqueue a pass request,
// and a per-store runner executes requests to completion one at a time.
// At most one pass runs per store; passes for different stores may run
// concurrently. A failed pass is logged and the watcher keeps listening.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/danielgray/remsync/internal/engine"
)

// PassFunc runs one full reconciliation pass for a store.
type PassFunc func(ctx context.Context) (engine.Stats, error)

// Config holds daemon configuration.
type Config struct {
	// DebounceInterval is how long a change must sit quiet before a pass
	// is requested. Batches rapid successive edits together.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 250 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon owns the two store watchers and their pass runners.
type Daemon struct {
	taskDataDir string
	remDBPath   string

	taskPass     PassFunc
	reminderPass PassFunc
	config       *Config

	watcher *fsnotify.Watcher

	// pending tracks the last event time per store for debouncing.
	pending   map[string]time.Time
	pendingMu sync.Mutex

	// requests carries at most one outstanding pass request per store.
	requests map[string]chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const (
	sourceTasks     = "tasks"
	sourceReminders = "reminders"
)

// New creates a daemon watching the Taskwarrior data directory and the
// reminders database file set.
func New(taskDataDir, remDBPath string, taskPass, reminderPass PassFunc, config *Config) (*Daemon, error) {
	if taskDataDir == "" {
		return nil, fmt.Errorf("taskDataDir cannot be empty")
	}
	if remDBPath == "" {
		return nil, fmt.Errorf("remDBPath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		taskDataDir:  taskDataDir,
		remDBPath:    remDBPath,
		taskPass:     taskPass,
		reminderPass: reminderPass,
		config:       config,
		watcher:      watcher,
		pending:      make(map[string]time.Time),
		requests: map[string]chan struct{}{
			sourceTasks:     make(chan struct{}, 1),
			sourceReminders: make(chan struct{}, 1),
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start runs the daemon until ctx is cancelled.
//
// One initial pass is run in each direction, then both watch directories
// are registered and passes are triggered by change notifications.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if _, err := d.taskPass(ctx); err != nil {
		return fmt.Errorf("initial task pass failed: %w", err)
	}
	if _, err := d.reminderPass(ctx); err != nil {
		return fmt.Errorf("initial reminder pass failed: %w", err)
	}

	if err := d.watcher.Add(d.taskDataDir); err != nil {
		return fmt.Errorf("failed to watch task data directory: %w", err)
	}
	if err := d.watcher.Add(filepath.Dir(d.remDBPath)); err != nil {
		return fmt.Errorf("failed to watch reminders database directory: %w", err)
	}

	d.config.Logger.Printf("Watching: %s, %s", d.taskDataDir, d.remDBPath)

	d.wg.Add(4)
	go d.watchEvents()
	go d.flushPending()
	go d.runPasses(sourceTasks, d.taskPass)
	go d.runPasses(sourceReminders, d.reminderPass)

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts the daemon down.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")
	d.cancel()
	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}
	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchEvents classifies filesystem events by store and marks the store
// dirty. The notification handler never blocks on store I/O.
func (d *Daemon) watchEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			source, ok := d.classify(event.Name)
			if !ok {
				continue
			}
			d.markDirty(source)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// classify attributes a changed path to one of the two stores.
func (d *Daemon) classify(path string) (string, bool) {
	dir := filepath.Dir(path)
	if dir == d.taskDataDir && strings.HasSuffix(path, ".data") {
		return sourceTasks, true
	}
	// The reminders database writes through the main file and its WAL.
	base := filepath.Base(d.remDBPath)
	if filepath.Base(path) == base || filepath.Base(path) == base+"-wal" {
		return sourceReminders, true
	}
	return "", false
}

func (d *Daemon) markDirty(source string) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	d.pending[source] = time.Now()
}

// flushPending promotes quiet dirty stores into pass requests.
func (d *Daemon) flushPending() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.pendingMu.Lock()
			now := time.Now()
			for source, dirtyAt := range d.pending {
				if now.Sub(dirtyAt) < d.config.DebounceInterval {
					continue
				}
				delete(d.pending, source)
				// Non-blocking: a request already queued coalesces.
				select {
				case d.requests[source] <- struct{}{}:
				default:
				}
			}
			d.pendingMu.Unlock()
		}
	}
}

// runPasses executes pass requests for one store, serially.
func (d *Daemon) runPasses(source string, pass PassFunc) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.requests[source]:
			d.config.Logger.Printf("Change detected in %s, starting pass", source)
			if _, err := pass(d.ctx); err != nil {
				// Store-level failure aborts the pass but not the watcher.
				d.config.Logger.Printf("Error: %s pass failed: %v", source, err)
			}
		}
	}
}
