// Package main implements the ruleminer CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ruleminer",
		Short: "Mine assistant transcripts for standing-instruction rules",
		Long: `ruleminer reads assistant conversation transcripts, finds the places where
a human corrected the assistant, and turns repeated corrections into candidate
rules. Candidates are scored, reviewed through a markdown checklist, and
approved rules are merged into managed regions of your CLAUDE.md files.

Typical workflow:
  ruleminer init                 # write ~/.config/ruleminer/config.yaml
  ruleminer run                  # mine transcripts, score candidates
  ruleminer review export        # write a review checklist
  # tick one box per rule in the checklist
  ruleminer review apply         # apply decisions, write approved rules`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("ruleminer %s (commit %s, built %s)\n", version, gitCommit, buildDate))

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/ruleminer/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(opts),
		newReviewCmd(opts),
		newStatsCmd(opts),
		newCandidatesCmd(opts),
		newInitCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("ruleminer by Fyrsmith Labs\n")
			cmd.Printf("Version:    %s\n", version)
			cmd.Printf("Commit:     %s\n", gitCommit)
			cmd.Printf("Build Date: %s\n", buildDate)
		},
	}
}
