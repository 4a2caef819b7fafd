package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
	"github.com/fyrsmithlabs/ruleminer/internal/pipeline"
)

// stateOrder is the display order of candidate states.
var stateOrder = []candidate.State{
	candidate.StateOpen,
	candidate.StatePendingReview,
	candidate.StateNeedsEvidence,
	candidate.StateApproved,
	candidate.StateRejected,
}

func newStatsCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show candidate counts and the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := openApp(ctx, root)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(ctx); cerr != nil && err == nil {
					err = cerr
				}
			}()

			stats, err := a.pipeline.Stats(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			return printStats(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")
	return cmd
}

func printStats(w io.Writer, stats pipeline.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "evidence\t%d\n", stats.Evidence)
	for _, s := range stateOrder {
		fmt.Fprintf(tw, "%s\t%d\n", s, stats.ByState[s])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if stats.LastRun == nil {
		fmt.Fprintln(w, "\nNo runs recorded.")
		return nil
	}
	run := stats.LastRun
	fmt.Fprintf(w, "\nLast run %s: %s, finished %s (%s)\n",
		run.ID, run.Status,
		run.FinishedAt.Local().Format(time.DateTime),
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
	)
	sum, err := stats.LastSummary()
	if err != nil {
		return err
	}
	if sum != nil {
		fmt.Fprintf(w, "  new evidence %d, created %d, approved %d, documents written %d, errors %d\n",
			sum.NewEvidence, sum.CandidatesCreated, sum.AutoApproved+sum.ApprovedByReview,
			sum.DocumentsWritten, len(sum.Errors))
	}
	return nil
}
