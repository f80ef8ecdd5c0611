package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielgray/remsync/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store reachability and sync state",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fail(err)
		}

		logger := log.New(os.Stderr, "[status] ", 0)
		tasks, rems, err := openStores(cfg, logger)
		if err != nil {
			fail(err)
		}
		defer rems.Close()

		ctx := context.Background()
		count, err := rems.Count(ctx)
		if err != nil {
			fail(err)
		}
		lists, err := rems.Lists(ctx)
		if err != nil {
			fail(err)
		}

		fmt.Println("remsync status")
		fmt.Printf("   Taskwarrior:  %s (data: %s)\n", cfg.TaskBin, tasks.DataDir())
		fmt.Printf("   Reminders db: %s\n", rems.Path())
		fmt.Printf("   Reminders:    %d in %d list(s)\n", count, len(lists))
		fmt.Printf("   Default list: %s\n", cfg.DefaultList)
		fmt.Printf("   Watermark:    %s (install time)\n", defaultWatermark().Format("2006-01-02 15:04:05"))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
