package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ruleminer/internal/conversation"
	"github.com/fyrsmithlabs/ruleminer/internal/pipeline"
)

type runOptions struct {
	transcripts string
	jsonOutput  bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mine transcripts and update candidates",
		Long: `Run one full pass: parse transcripts, collect correction evidence,
aggregate and score candidates, apply any review decisions found in the
review directory, and write approved rules.

Runs are idempotent. Re-reading the same transcripts adds no evidence and
re-applying the same checklist changes nothing.

Examples:
  # Mine the configured transcript directory
  ruleminer run

  # Mine a specific directory and print the summary as JSON
  ruleminer run --transcripts ./sessions --json`,
		Args: cobra.NoArgs,
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

			dir := opts.transcripts
			if dir == "" {
				dir = a.cfg.Transcripts.Dir
			}
			parser := conversation.NewParser()
			parser.Workers = a.cfg.Transcripts.Workers

			convs, parseErrs, err := parser.ParseDir(ctx, dir)
			if err != nil {
				return fmt.Errorf("failed to read transcripts: %w", err)
			}
			for _, pe := range parseErrs {
				a.logger.Warn(ctx, "transcript line skipped",
					zap.String("file", pe.File),
					zap.Int("line", pe.Line),
					zap.String("error", pe.Error),
				)
			}
			a.logger.Info(ctx, "transcripts parsed",
				zap.String("dir", dir),
				zap.Int("conversations", len(convs)),
				zap.Int("parse_errors", len(parseErrs)),
			)

			sum, runErr := a.pipeline.Run(ctx, convs)
			if perr := printSummary(cmd.OutOrStdout(), sum, opts.jsonOutput); perr != nil && runErr == nil {
				runErr = perr
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&opts.transcripts, "transcripts", "", "transcript directory (default transcripts.dir)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the run summary as JSON")
	return cmd
}

func printSummary(w io.Writer, s *pipeline.Summary, asJSON bool) error {
	if s == nil {
		return nil
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "Run %s: %s\n", s.RunID, s.Status)
	fmt.Fprintf(w, "  conversations:       %d\n", s.Conversations)
	fmt.Fprintf(w, "  new evidence:        %d\n", s.NewEvidence)
	fmt.Fprintf(w, "  candidates created:  %d\n", s.CandidatesCreated)
	fmt.Fprintf(w, "  candidates updated:  %d\n", s.CandidatesUpdated)
	fmt.Fprintf(w, "  auto-approved:       %d\n", s.AutoApproved)
	fmt.Fprintf(w, "  approved by review:  %d\n", s.ApprovedByReview)
	fmt.Fprintf(w, "  pending review:      %d\n", s.Pending)
	fmt.Fprintf(w, "  needs evidence:      %d\n", s.NeedsEvidence)
	fmt.Fprintf(w, "  rejected:            %d\n", s.Rejected)
	fmt.Fprintf(w, "  documents written:   %d\n", s.DocumentsWritten)
	fmt.Fprintf(w, "  documents unchanged: %d\n", s.DocumentsUnchanged)

	if len(s.Skipped) > 0 {
		reasons := make([]string, 0, len(s.Skipped))
		for r := range s.Skipped {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		fmt.Fprintf(w, "  skipped:\n")
		for _, r := range reasons {
			fmt.Fprintf(w, "    %-20s %d\n", r+":", s.Skipped[r])
		}
	}
	if len(s.Errors) > 0 {
		fmt.Fprintf(w, "  errors:\n")
		for _, e := range s.Errors {
			fmt.Fprintf(w, "    [%s] %s: %s\n", e.Stage, e.Unit, e.Err)
		}
	}
	return nil
}
