package main

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved resolutions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return errors.New("caching is disabled, no history available")
		}
		defer st.Close()

		rows, err := st.ListResolutions(ctx, historyLimit)
		if err != nil {
			return eris.Wrap(err, "list resolutions")
		}

		for _, row := range rows {
			cmd.Printf("%s  %s  %s\n", row.CreatedAt.Format("2006-01-02 15:04:05"), row.ID, row.Address)
		}
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return errors.New("caching is disabled, nothing to prune")
		}
		defer st.Close()

		n, err := st.PruneExpired(ctx)
		if err != nil {
			return eris.Wrap(err, "prune cache")
		}
		cmd.Printf("pruned %d entries\n", n)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum rows to list")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(pruneCmd)
}
