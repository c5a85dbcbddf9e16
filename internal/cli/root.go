// Package cli implements the taskflow command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"taskflow/internal/config"
	"taskflow/internal/storage/sqlite"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

var configPath string

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "taskflow",
	Short: "Task workflow backend with role-based authorization",
	Long: `taskflow tracks EPIC, STORY, TASK, SUBTASK and SPIKE work items through a
fixed status lifecycle (DRAFT to DONE) and decides who may create, edit,
transition, assign and delete them.

Settings come from an optional config file (--config or TASKFLOW_CONFIG)
and TASKFLOW_-prefixed environment variables.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "taskflow %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", envOrDefault("TASKFLOW_CONFIG", ""), "Path to a YAML, TOML or JSON config file")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// envOrDefault returns the environment variable value or fallback when it is empty.
func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore loads configuration and opens the database it names.
func openStore(cmd *cobra.Command) (*config.Config, *sqlite.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Lookup("db") != nil && cmd.Flags().Changed("db") {
		cfg.DBPath, _ = cmd.Flags().GetString("db")
	}
	store, err := sqlite.Open(cfg.DBPath, newLogger(cmd.ErrOrStderr(), cfg.LogLevel))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, store, nil
}
