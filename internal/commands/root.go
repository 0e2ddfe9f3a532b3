package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/walletimport/internal/buildinfo"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	envFiles   []string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var g globalFlags

	rootCmd := &cobra.Command{
		Use:     "walletimport",
		Short:   "Import wallet CSV exports into the budgeting service",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "walletimport.yaml", "path to the configuration file")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (overrides log.level)")
	pf.StringSliceVar(&g.envFiles, "env-file", nil, "env files holding WALLET_USERNAME and WALLET_PASSWORD (default .env,.env.local)")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newImportCommand(&g))
	rootCmd.AddCommand(newImportsCommand(&g))
	rootCmd.AddCommand(newSyncCommand(&g))
	rootCmd.AddCommand(newHistoryCommand(&g))

	return rootCmd
}
