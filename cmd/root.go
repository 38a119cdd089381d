// Package cmd defines the quill command-line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Quill - retrieval-grounded answering over your documents",
	Long: `Quill answers questions over a curated set of source documents.
Every claim in an answer cites a verbatim passage from the sources,
so readers can verify instead of trusting.

Run "quill serve" to start the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRepairCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initLogger builds the process logger. DEBUG in the environment lowers
// the level; logs always go to stderr.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, log.Config{Level: level})
}
