package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/walletimport/internal/config"
	"github.com/cleared-dev/walletimport/internal/importer"
)

// ConfigFile is the name init writes the configuration under.
const ConfigFile = "walletimport.yaml"

func newInitCommand() *cobra.Command {
	var importEmail string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a wallet import workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir, importEmail); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized wallet import workspace at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&importEmail, "import-email", "", "import address assigned by the service (required)")
	_ = cmd.MarkFlagRequired("import-email")

	return cmd
}

func runInit(dir, importEmail string) error {
	cfg := config.Default(importEmail)

	dirs := []string{
		cfg.Import.Dir,
		filepath.Join(cfg.Import.Dir, importer.ProcessedDir),
		filepath.Dir(cfg.History.Path),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	path := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Credentials live in env files, never in the workspace history.
	gitignore := ".env\n.env.local\nlogs/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, cfg.Import.Dir, ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	return nil
}
