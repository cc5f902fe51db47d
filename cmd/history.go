package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [url]",
	Short: "List recorded reconciliations, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		url := ""
		if len(args) == 1 {
			url = args[0]
		}
		entries, err := st.ListReconciliations(ctx, url, historyLimit)
		if err != nil {
			return eris.Wrap(err, "list history")
		}
		return printJSON(cmd.OutOrStdout(), entries)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to list")
	rootCmd.AddCommand(historyCmd)
}
