package commands

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/walletimport/internal/config"
	"github.com/cleared-dev/walletimport/internal/history"
)

func newHistoryCommand(g *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past import runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// History needs no credentials, only the log location.
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			rt := &runtime{cfg: cfg, dir: filepath.Dir(g.configPath)}

			entries, err := history.Read(rt.path(cfg.History.Path))
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No import runs recorded.")
				return nil
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tFILE\tOUTCOME\tIMPORT\tROWS\tNET\tERROR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					e.Timestamp.Local().Format(time.DateTime), e.File, e.Outcome,
					e.ImportID, e.Rows, e.Net.StringFixed(2), e.Error)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "show only the most recent runs (0 for all)")

	return cmd
}
