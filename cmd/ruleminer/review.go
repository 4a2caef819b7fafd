package main

import (
	"github.com/spf13/cobra"
)

func newReviewCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Export and apply review checklists",
		Long: `Review pending candidates through a markdown checklist.

"review export" writes one section per pending candidate into the review
directory. Tick exactly one box per section, then run "review apply".
Sections left unticked stay pending; fully decided checklists are moved to
<review.dir>/processed when review.archive is set.`,
	}
	cmd.AddCommand(newReviewExportCmd(root), newReviewApplyCmd(root))
	return cmd
}

func newReviewExportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write a review checklist for pending candidates",
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

			path, err := a.pipeline.ExportReview(ctx)
			if err != nil {
				return err
			}
			if path == "" {
				cmd.Println("No candidates pending review.")
				return nil
			}
			cmd.Printf("Review checklist written to %s\n", path)
			return nil
		},
	}
}

func newReviewApplyCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply review decisions and write approved rules",
		Long: `Apply every decision in the review directory without reading transcripts,
then write approved rules. Decisions already applied are skipped.`,
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

			sum, runErr := a.pipeline.Run(ctx, nil)
			if perr := printSummary(cmd.OutOrStdout(), sum, jsonOutput); perr != nil && runErr == nil {
				runErr = perr
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run summary as JSON")
	return cmd
}
