package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielgray/remsync/internal/config"
	"github.com/danielgray/remsync/internal/engine"
	"github.com/danielgray/remsync/internal/store"
	"github.com/danielgray/remsync/internal/store/reminders"
	"github.com/danielgray/remsync/internal/store/taskwarrior"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "remsync",
	Short: "Two-way sync between Taskwarrior and a reminders store",
	Long: `remsync keeps a Taskwarrior task list and a reminders store in
agreement, in both directions, without duplicating or losing edits made
on either side.

Edits are reconciled per logical item: the newer side wins, deletions
always propagate, and equal timestamps favor the reminder side.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fail(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/remsync/config.yaml)")
}

// fail prints an actionable message and exits. Permission failures are a
// distinct exit status so wrappers can tell "not authorized" from
// everything else.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, store.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "remsync needs access to both stores before it can run; check the task binary and data paths in your config")
		os.Exit(2)
	}
	os.Exit(1)
}

// openStores builds both store adapters from configuration and verifies
// access up front. No core operation proceeds without both authorized.
func openStores(cfg *config.Config, logger *log.Logger) (*taskwarrior.Store, *reminders.Store, error) {
	tasks := taskwarrior.New(cfg.TaskBin, cfg.TaskDataDir, logger)
	if err := tasks.Check(); err != nil {
		return nil, nil, err
	}

	rems, err := reminders.Open(cfg.RemindersDB, cfg.DefaultList)
	if err != nil {
		return nil, nil, err
	}
	return tasks, rems, nil
}

// buildEngine wires an engine over the two stores.
func buildEngine(cfg *config.Config, tasks *taskwarrior.Store, rems *reminders.Store, ecfg *engine.Config) *engine.Engine {
	if ecfg == nil {
		ecfg = &engine.Config{}
	}
	ecfg.DefaultList = cfg.DefaultList
	ecfg.RecreateMissing = cfg.OnMissingReminder != config.MissingDelete
	return engine.New(tasks, rems, ecfg)
}
