package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transcoderctl/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List jobs and playlists submitted from this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ledgerStore()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("ledger is disabled; enable [ledger] to record history")
			}
			subs, err := store.Submissions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				if subs == nil {
					subs = []ledger.Submission{}
				}
				return writeJSON(cmd, subs)
			}
			out := cmd.OutOrStdout()
			if len(subs) == 0 {
				fmt.Fprintln(out, "No submissions recorded")
				return nil
			}
			rows := make([][]string, 0, len(subs))
			for _, sub := range subs {
				rows = append(rows, []string{
					sub.SubmittedAt.Local().Format(timeLayout),
					sub.Kind,
					sub.Name,
					historyRecipe(sub),
					historyTarget(sub),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Submitted", "Kind", "Name", "Recipe", "Output"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func historyRecipe(sub ledger.Submission) string {
	switch {
	case sub.PresetID != "":
		return sub.PresetID
	case sub.Pipeline != "":
		return "custom pipeline"
	}
	return "-"
}

func historyTarget(sub ledger.Submission) string {
	if sub.Kind == ledger.KindPlaylist {
		return fmt.Sprintf("%d jobs: %s", len(sub.JobIDs), strings.Join(sub.JobIDs, ", "))
	}
	return valueOrDash(sub.OutputS3Path)
}
