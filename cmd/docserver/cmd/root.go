// Package cmd provides the CLI commands for docserver.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/docserver/docserver/internal/logging"
	"github.com/docserver/docserver/pkg/version"
)

var (
	configDir string
	debugMode bool
)

// NewRootCmd creates the root command for the docserver CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docserver",
		Short:   "Local-first documentation store and retrieval server",
		Version: version.Version,
		Long: `docserver ingests library documentation from URLs or direct uploads,
chunks and embeds it, and serves it back over a REST API and an MCP
Streamable HTTP endpoint so AI coding assistants can resolve a library
name and pull relevant documentation chunks for a question.`,
	}
	cmd.SetVersionTemplate("docserver version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory to load .docserver.yaml and .env from")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	cmd.PersistentPreRunE = setupLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCreateLibraryCmd())
	cmd.AddCommand(newUploadDocCmd())
	cmd.AddCommand(newFetchDocCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs a structured slog logger before any subcommand
// runs, debug-to-file when --debug is set, otherwise a plain stderr
// handler at info level.
func setupLogging(cmd *cobra.Command, _ []string) error {
	if !debugMode {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
		slog.SetDefault(slog.New(handler))
		return nil
	}

	logger, _, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to set up debug logging: %w", err)
	}
	slog.SetDefault(logger)
	slog.Debug("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
