package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
)

const maxListText = 60

func newCandidatesCmd(root *rootOptions) *cobra.Command {
	var (
		states     []string
		scope      string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List rule candidates",
		Long: `List rule candidates, highest confidence first.

Examples:
  # Everything waiting for review
  ruleminer candidates --state pending_review

  # Global rules only, as JSON
  ruleminer candidates --scope global --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			filter, err := candidateFilter(states, scope)
			if err != nil {
				return err
			}

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

			cands, err := a.pipeline.Candidates(ctx, filter)
			if err != nil {
				return err
			}
			sort.SliceStable(cands, func(i, j int) bool {
				if cands[i].Confidence != cands[j].Confidence {
					return cands[i].Confidence > cands[j].Confidence
				}
				return cands[i].ID < cands[j].ID
			})

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cands)
			}
			return printCandidates(cmd.OutOrStdout(), cands)
		},
	}
	cmd.Flags().StringSliceVar(&states, "state", nil, "filter by state (repeatable): open, pending_review, needs_evidence, approved, rejected")
	cmd.Flags().StringVar(&scope, "scope", "", "filter by scope, e.g. global or project:/path")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")
	return cmd
}

func candidateFilter(states []string, scope string) (candidate.Filter, error) {
	var f candidate.Filter
	for _, s := range states {
		st := candidate.State(s)
		if !st.Valid() {
			return f, fmt.Errorf("unknown state %q", s)
		}
		f.States = append(f.States, st)
	}
	if scope != "" {
		sc, err := candidate.ParseScope(scope)
		if err != nil {
			return f, err
		}
		f.Scope = &sc
	}
	return f, nil
}

func printCandidates(w io.Writer, cands []candidate.Candidate) error {
	if len(cands) == 0 {
		fmt.Fprintln(w, "No candidates.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tCONF\tN\tSCOPE\tRULE")
	for _, c := range cands {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%s\t%s\n",
			c.ID, c.State, c.Confidence, c.Occurrences(), c.Scope, shorten(c.RuleText(), maxListText))
	}
	return tw.Flush()
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
