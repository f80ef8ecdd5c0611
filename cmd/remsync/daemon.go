package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/danielgray/remsync/internal/config"
	"github.com/danielgray/remsync/internal/daemon"
	"github.com/danielgray/remsync/internal/dashboard"
	"github.com/danielgray/remsync/internal/engine"
)

var (
	daemonAll       bool
	daemonDashboard bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Watch both stores and sync continuously (foreground)",
	Long: `Run remsync as a foreground daemon.

The daemon watches the Taskwarrior data directory and the reminders
database for external changes. Each change triggers a reconciliation
pass scoped to items modified since the watermark; passes are serialized
per store, and a failed pass never stops the watcher.

With --dashboard, pass events are also broadcast over WebSocket:

  remsync daemon --dashboard`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fail(err)
		}

		var logOut io.Writer = os.Stderr
		if cfg.LogFile != "" {
			logOut = &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			}
		}
		logger := log.New(logOut, "[remsync] ", log.LstdFlags)

		watermark := defaultWatermark()
		if daemonAll {
			watermark = time.Unix(0, 0)
		}

		tasks, rems, err := openStores(cfg, logger)
		if err != nil {
			fail(err)
		}
		defer rems.Close()

		ecfg := &engine.Config{Watermark: watermark, Logger: logger}

		var dash *dashboard.Server
		if daemonDashboard || cfg.DashboardPort != 0 {
			port := cfg.DashboardPort
			if port == 0 {
				port = dashboard.DefaultConfig().Port
			}
			dash = dashboard.NewServer(&dashboard.Config{
				Port:   port,
				Logger: logger,
			})
			if err := dash.Start(); err != nil {
				fail(err)
			}
			defer dash.Stop()
			ecfg.Notify = dash.Notify
			fmt.Printf("Dashboard: ws://localhost%s/ws\n", dash.Addr())
		}

		eng := buildEngine(cfg, tasks, rems, ecfg)

		d, err := daemon.New(cfg.TaskDataDir, rems.Path(),
			eng.PassFromTasks, eng.PassFromReminders,
			&daemon.Config{
				DebounceInterval: 250 * time.Millisecond,
				Logger:           logger,
			})
		if err != nil {
			fail(err)
		}

		fmt.Printf("Watching %s and %s\n", cfg.TaskDataDir, rems.Path())
		fmt.Println("Press Ctrl+C to stop")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := d.Start(ctx); err != nil {
			fail(err)
		}
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonAll, "all", false, "sync everything, ignoring the watermark")
	daemonCmd.Flags().BoolVar(&daemonDashboard, "dashboard", false, "serve pass events over WebSocket")
	rootCmd.AddCommand(daemonCmd)
}
