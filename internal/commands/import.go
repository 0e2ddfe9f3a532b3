package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/walletimport/internal/csvfile"
	"github.com/cleared-dev/walletimport/internal/importer"
	"github.com/cleared-dev/walletimport/internal/model"
	"github.com/cleared-dev/walletimport/internal/stamp"
)

var nowFunc = time.Now

// importFlags tune a run beyond what the config file says.
type importFlags struct {
	account     string
	incremental bool
	rewrite     bool
	dryRun      bool
	stamp       bool
}

func (f *importFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.account, "account", "", "only consider prior imports of this account (overrides import.account_id)")
	cmd.Flags().BoolVar(&f.incremental, "incremental", true, "skip rows already imported (overrides import.incremental)")
	cmd.Flags().BoolVar(&f.rewrite, "rewrite", true, "overwrite the source file with the filtered rows (overrides import.rewrite_source)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "stop before uploading")
	cmd.Flags().BoolVar(&f.stamp, "stamp", false, "upload under a timestamped name so later runs can find the cutoff")
}

// resolve merges the flags that were set with the config defaults.
func (f *importFlags) resolve(cmd *cobra.Command, rt *runtime) importFlags {
	out := *f
	if !cmd.Flags().Changed("account") {
		out.account = rt.cfg.Import.AccountID
	}
	if !cmd.Flags().Changed("incremental") {
		out.incremental = rt.cfg.Import.Incremental
	}
	if !cmd.Flags().Changed("rewrite") {
		out.rewrite = rt.cfg.Import.RewriteSource
	}
	return out
}

func newImportCommand(g *globalFlags) *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Upload and commit a wallet CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts := flags.resolve(cmd, rt)
			res, err := importFile(cmd, rt, opts, args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), args[0], res)
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

// importFile runs one import of path and records it in the history log.
func importFile(cmd *cobra.Command, rt *runtime, opts importFlags, path string) (importer.Result, error) {
	name := filepath.Base(path)
	if opts.stamp {
		name = stamp.FileName(path, nowFunc())
	}

	file, err := csvfile.Load(path)
	if err != nil {
		res := importer.Result{Outcome: model.OutcomeFailed}
		rt.record(name, res, err)
		return res, err
	}

	req := importer.Request{
		Username: rt.creds.Username,
		Password: rt.creds.Password,
		FileName: name,
		File:     file,
		DryRun:   opts.dryRun,
	}
	if opts.rewrite {
		req.Rewrite = func(f *csvfile.File) error { return f.Save(path) }
	}

	res, err := rt.importer(opts.incremental, opts.account).Run(cmd.Context(), req)
	if !opts.dryRun {
		rt.record(name, res, err)
	}
	return res, err
}

func printResult(w io.Writer, path string, res importer.Result) {
	switch res.Outcome {
	case model.OutcomeUpToDate:
		fmt.Fprintf(w, "%s: transactions up to date, nothing imported\n", path)
	case model.OutcomeDryRun:
		fmt.Fprintf(w, "%s: would upload %d rows (income %s, expense %s)\n",
			path, res.Totals.Rows, res.Totals.Income.StringFixed(2), res.Totals.Expense.StringFixed(2))
	case model.OutcomeCommitted:
		fmt.Fprintf(w, "%s: imported %d rows as %s (net %s)\n",
			path, res.Totals.Rows, res.ImportID, res.Totals.Net().StringFixed(2))
	}
}
