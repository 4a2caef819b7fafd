package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
	"github.com/fyrsmithlabs/ruleminer/internal/evidence"
	"github.com/fyrsmithlabs/ruleminer/internal/store"
)

// Stats is a snapshot of the store.
type Stats struct {
	Evidence int                     `json:"evidence"`
	ByState  map[candidate.State]int `json:"by_state"`
	LastRun  *store.Run              `json:"last_run,omitempty"`
}

// LastSummary decodes the summary of the last run, or nil.
func (s Stats) LastSummary() (*Summary, error) {
	if s.LastRun == nil || len(s.LastRun.Summary) == 0 {
		return nil, nil
	}
	var sum Summary
	if err := json.Unmarshal(s.LastRun.Summary, &sum); err != nil {
		return nil, fmt.Errorf("failed to decode run summary: %w", err)
	}
	return &sum, nil
}

// Stats counts evidence and candidates by state and loads the last run.
func (p *Pipeline) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByState: make(map[candidate.State]int)}
	err := p.store.View(ctx, func(tx store.Tx) error {
		n, err := tx.CountEvidence(ctx)
		if err != nil {
			return fmt.Errorf("failed to count evidence: %w", err)
		}
		stats.Evidence = n

		all, err := tx.Candidates(ctx, candidate.Filter{})
		if err != nil {
			return fmt.Errorf("failed to load candidates: %w", err)
		}
		for _, c := range all {
			stats.ByState[c.State]++
		}

		run, err := tx.LastRun(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return fmt.Errorf("failed to load last run: %w", err)
		default:
			stats.LastRun = &run
		}
		return nil
	})
	return stats, err
}

// Candidates lists candidates matching f.
func (p *Pipeline) Candidates(ctx context.Context, f candidate.Filter) ([]candidate.Candidate, error) {
	var out []candidate.Candidate
	err := p.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.Candidates(ctx, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	return out, nil
}

// ExportReview writes a review artifact for every pending candidate into the
// review directory and returns its path, or "" when nothing is pending.
func (p *Pipeline) ExportReview(ctx context.Context) (string, error) {
	var (
		pending []candidate.Candidate
		evs     []evidence.Evidence
	)
	err := p.store.View(ctx, func(tx store.Tx) error {
		var err error
		pending, err = tx.Candidates(ctx, candidate.Filter{States: []candidate.State{candidate.StatePendingReview}})
		if err != nil {
			return fmt.Errorf("failed to load pending candidates: %w", err)
		}
		var ids []string
		for _, c := range pending {
			ids = append(ids, c.EvidenceIDs...)
		}
		if len(ids) == 0 {
			return nil
		}
		evs, err = tx.Evidence(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to load evidence: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	path, err := p.ingestor.Export(pending, evs, p.now())
	if err != nil {
		return "", fmt.Errorf("failed to export review artifact: %w", err)
	}
	if path != "" {
		p.logger.Info(ctx, "review artifact exported", zap.String("path", path), zap.Int("candidates", len(pending)))
	}
	return path, nil
}
