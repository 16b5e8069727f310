// Package commands wires the CLI surface of trellosync.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "trellosync",
	Short: "Keep Trello cards in sync with GitHub pull requests",
	Long: `trellosync reconciles a Trello board against the lifecycle of GitHub
pull requests: it resolves the cards a PR refers to, moves them between
lists as the PR progresses, and mirrors labels and members both ways.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: auto-discover .github/trellosync.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// setupLogging attaches a per-invocation run id to every log line so
// concurrent workflow runs against the same board stay distinguishable.
func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With("run_id", uuid.NewString())
	slog.SetDefault(logger)
}
