package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/walletimport/internal/importer"
	"github.com/cleared-dev/walletimport/internal/model"
)

func newSyncCommand(g *globalFlags) *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import every CSV waiting in the import directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts := flags.resolve(cmd, rt)

			dir := rt.path(rt.cfg.Import.Dir)
			files, err := importer.Scan(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No files in %s.\n", dir)
				return nil
			}

			for _, f := range files {
				res, err := importFile(cmd, rt, opts, f.Path)
				if err != nil {
					return fmt.Errorf("%s: %w", f.Name, err)
				}
				printResult(cmd.OutOrStdout(), f.Name, res)

				if res.Outcome == model.OutcomeCommitted || res.Outcome == model.OutcomeUpToDate {
					if err := importer.MarkProcessed(dir, f.Name); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}
