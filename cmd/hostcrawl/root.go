package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	hclog "github.com/nao1215/hostcrawl/internal/log"
)

// NewRootCmd creates the root command for hostcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hostcrawl",
		Short: "Polite bounded-depth web crawler",
		Long: `hostcrawl crawls websites breadth-first, one layer of links at a time,
up to a fixed depth. Downloads run concurrently but never more than a fixed
number at once against any single host.

Results can be printed as text, JSON or Markdown, archived in a local SQLite
database, and forwarded to Kafka, Redis and Neo4j.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getBoolFlag reads a flag from the command, falling back to the root's
// persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// setupLogger creates the redacting logger. Warn is the default level;
// verbose lowers it to Debug.
func setupLogger(w io.Writer, verbose, jsonLogs bool) *slog.Logger {
	if jsonLogs {
		return hclog.NewSecureJSONLogger(w, verbose)
	}
	return hclog.NewSecureLogger(w, verbose)
}
