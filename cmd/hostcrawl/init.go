package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/hostcrawl/internal/config"
)

//go:embed templates/hostcrawl.yaml
var configTemplate embed.FS

const templatePath = "templates/hostcrawl.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter hostcrawl configuration file",
		Long: `Init writes a commented .hostcrawl configuration file.

The file holds per-site settings: cookies, headers, crawl depth, allowed
hosts and URL patterns. Global behaviour such as worker counts is set with
crawl flags.

Examples:
  # Create .hostcrawl in the current directory
  hostcrawl init

  # Write to a specific path
  hostcrawl init -o sites.yaml

  # Overwrite an existing file
  hostcrawl init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		_, statErr := os.Stat(outputPath)
		if statErr == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
		if !errors.Is(statErr, fs.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", outputPath, statErr)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "Add per-site cookies, headers, depth and URL patterns under 'sites'.")
	return nil
}
