// Package config loads remsync configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Missing-counterpart policies for reminders deleted externally before
// the paired task was ever loaded.
const (
	MissingRecreate = "recreate"
	MissingDelete   = "delete"
)

// Config is the resolved remsync configuration.
type Config struct {
	// TaskBin is the Taskwarrior executable.
	TaskBin string `mapstructure:"task_bin"`

	// TaskDataDir is the Taskwarrior data directory the watcher observes.
	TaskDataDir string `mapstructure:"task_data_dir"`

	// RemindersDB is the path of the reminders database.
	RemindersDB string `mapstructure:"reminders_db"`

	// DefaultList receives reminders for tasks without a project.
	DefaultList string `mapstructure:"default_list"`

	// OnMissingReminder is MissingRecreate or MissingDelete.
	OnMissingReminder string `mapstructure:"on_missing_reminder"`

	// DashboardPort enables the dashboard server when non-zero.
	DashboardPort int `mapstructure:"dashboard_port"`

	// LogFile routes daemon logs to a rotating file when set.
	LogFile string `mapstructure:"log_file"`
}

// Load reads the configuration. path overrides the default location
// ($XDG_CONFIG_HOME/remsync/config.yaml); environment variables with the
// REMSYNC_ prefix override the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "remsync"))
		}
	}

	v.SetEnvPrefix("REMSYNC")
	v.AutomaticEnv()

	home, _ := os.UserHomeDir()
	v.SetDefault("task_bin", "task")
	v.SetDefault("task_data_dir", filepath.Join(home, ".task"))
	v.SetDefault("reminders_db", filepath.Join(home, ".local", "share", "remsync", "reminders.db"))
	v.SetDefault("default_list", "Reminders")
	v.SetDefault("on_missing_reminder", MissingRecreate)
	v.SetDefault("dashboard_port", 0)
	v.SetDefault("log_file", "")

	if err := v.ReadInConfig(); err != nil {
		// Running without a config file is fine; defaults apply. An
		// explicitly requested file must be readable.
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if path != "" || (!notFound && !os.IsNotExist(err)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	switch cfg.OnMissingReminder {
	case MissingRecreate, MissingDelete:
	default:
		return nil, fmt.Errorf("invalid on_missing_reminder %q (want %q or %q)",
			cfg.OnMissingReminder, MissingRecreate, MissingDelete)
	}

	return &cfg, nil
}
