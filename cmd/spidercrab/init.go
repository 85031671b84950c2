package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/spidercrab/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/spidercrab.yaml templates/spidercrab-ignore
var templates embed.FS

// Template paths inside the embedded filesystem.
const (
	configTemplatePath = "templates/spidercrab.yaml"
	ignoreTemplatePath = "templates/spidercrab-ignore"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a spidercrab configuration file",
		Long: `Init creates a .spidercrab.yaml configuration file in the current directory.

The generated file documents every option with its default value.
With --ignore, a commented .spidercrab-ignore template is written as well.

Examples:
  # Create .spidercrab.yaml in current directory
  spidercrab init

  # Also create .spidercrab-ignore
  spidercrab init --ignore

  # Create config file at a specific path
  spidercrab init -o ci/spidercrab.yaml

  # Force overwrite existing files
  spidercrab init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing files")
	cmd.Flags().Bool("ignore", false,
		"Also write an ignore file template next to the configuration")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	withIgnore, err := cmd.Flags().GetBool("ignore")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if err := writeTemplate(configTemplatePath, outputPath, force); err != nil {
		return err
	}
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)

	if withIgnore {
		ignorePath := filepath.Join(filepath.Dir(outputPath), config.DefaultIgnoreFile)
		if err := writeTemplate(ignoreTemplatePath, ignorePath, force); err != nil {
			return err
		}
		fmt.Fprintf(out, "Created ignore file: %s\n", ignorePath)
	}

	fmt.Fprintln(out, "\nEdit the configuration to set:")
	fmt.Fprintln(out, "  - Crawl depth, workers and request rate")
	fmt.Fprintln(out, "  - Headers for protected staging sites")
	fmt.Fprintln(out, "  - Additional hosts to parse and paths to exclude")

	return nil
}

// writeTemplate copies an embedded template to path.
func writeTemplate(name, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s (use -f to overwrite)", path)
		}
	}

	content, err := templates.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
