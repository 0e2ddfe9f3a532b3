package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/walletimport/internal/stamp"
)

func newImportsCommand(g *globalFlags) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "imports",
		Short: "List the imports the service already holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("account") {
				account = rt.cfg.Import.AccountID
			}

			client := rt.client()
			session, err := client.Authenticate(cmd.Context(), rt.creds.Username, rt.creds.Password)
			if err != nil {
				return err
			}
			files, err := client.ListImports(cmd.Context(), session, account)
			if err != nil {
				return err
			}

			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No imports.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILE\tACCOUNT\tCUTOFF")
			for _, f := range files {
				cutoff := "-"
				if t, err := stamp.Cutoff(f.FileName); err == nil {
					cutoff = t.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.ID, f.FileName, f.AccountID, cutoff)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "only list imports of this account")

	return cmd
}
