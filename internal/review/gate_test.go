package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func pending(id string) *candidate.Candidate {
	return &candidate.Candidate{
		ID:           id,
		ProposedText: "never use git add .",
		EvidenceIDs:  []string{"e1", "e2"},
		State:        candidate.StatePendingReview,
		Confidence:   0.7,
		PendingSince: now.Add(-time.Hour),
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		confidence float64
		conflicts  []string
		want       candidate.State
		auto       bool
	}{
		{"auto approve enabled", Config{0.85, 0.5, true}, 0.9, nil, candidate.StateApproved, true},
		{"auto approve disabled", Config{0.85, 0.5, false}, 0.9, nil, candidate.StatePendingReview, false},
		{"conflict blocks auto", Config{0.85, 0.5, true}, 0.9, []string{"x"}, candidate.StatePendingReview, false},
		{"review band", Config{0.85, 0.5, true}, 0.5, nil, candidate.StatePendingReview, false},
		{"below review", Config{0.85, 0.5, true}, 0.49, nil, candidate.StateNeedsEvidence, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &candidate.Candidate{ID: "c1", State: candidate.StateOpen, Confidence: tt.confidence, Conflicts: tt.conflicts}
			tr := NewGate(tt.cfg).Evaluate(c, now)
			assert.Equal(t, candidate.StateOpen, tr.From)
			assert.Equal(t, tt.want, tr.To)
			assert.Equal(t, tt.auto, tr.Auto)
			assert.Equal(t, tt.want, c.State)
			require.Len(t, c.History, 1)
			if tt.auto {
				assert.Equal(t, EventAutoApproved, c.History[0].Event)
			}
			if tt.want == candidate.StatePendingReview {
				assert.Equal(t, now, c.PendingSince)
			}
		})
	}
}

func TestEvaluate_NoChangeRecordsNothing(t *testing.T) {
	c := pending("c1")
	tr := NewGate(DefaultConfig()).Evaluate(c, now)
	assert.False(t, tr.Changed())
	assert.Empty(t, c.History)
	assert.Equal(t, now.Add(-time.Hour), c.PendingSince)
}

func TestEvaluate_TerminalIsSticky(t *testing.T) {
	g := NewGate(Config{0.85, 0.5, true})
	for _, st := range []candidate.State{candidate.StateApproved, candidate.StateRejected} {
		for _, conf := range []float64{0, 0.6, 1} {
			c := &candidate.Candidate{State: st, Confidence: conf}
			assert.False(t, g.Evaluate(c, now).Changed())
			assert.Equal(t, st, c.State)
		}
	}
}

func TestEvaluate_HeldUntilNewEvidence(t *testing.T) {
	g := NewGate(DefaultConfig())
	c := pending("c1")
	require.NoError(t, g.Apply(c, Decision{CandidateID: "c1", Kind: KindNeedEvidence, DecidedAt: now}, now))
	assert.Equal(t, candidate.StateNeedsEvidence, c.State)
	assert.Equal(t, 2, c.HeldAtEvidence)

	assert.False(t, g.Evaluate(c, now).Changed())

	c.EvidenceIDs = append(c.EvidenceIDs, "e3")
	tr := g.Evaluate(c, now.Add(time.Hour))
	assert.Equal(t, candidate.StatePendingReview, tr.To)
	assert.Equal(t, now.Add(time.Hour), c.PendingSince)
	assert.Zero(t, c.HeldAtEvidence)
}

func TestApply(t *testing.T) {
	g := NewGate(DefaultConfig())

	t.Run("approve", func(t *testing.T) {
		c := pending("c1")
		d := Decision{CandidateID: "c1", Kind: KindApprove, DecidedAt: now, Source: "review.md"}
		require.NoError(t, g.Apply(c, d, now))
		assert.Equal(t, candidate.StateApproved, c.State)
		assert.Equal(t, "never use git add .", c.RuleText())
		assert.True(t, c.HasDecision(d.Key()))
	})

	t.Run("approve with edit", func(t *testing.T) {
		c := pending("c1")
		d := Decision{CandidateID: "c1", Kind: KindApproveEdit, Text: " Stage files explicitly, never `git add .` ", DecidedAt: now}
		require.NoError(t, g.Apply(c, d, now))
		assert.Equal(t, "Stage files explicitly, never `git add .`", c.RuleText())
		assert.Equal(t, candidate.CategoryWorkflow, c.Category)
	})

	t.Run("reject from open", func(t *testing.T) {
		c := &candidate.Candidate{ID: "c1", State: candidate.StateOpen}
		require.NoError(t, g.Apply(c, Decision{CandidateID: "c1", Kind: KindReject, Reason: "wrong", DecidedAt: now}, now))
		assert.Equal(t, candidate.StateRejected, c.State)
		assert.Equal(t, "wrong", c.History[0].Detail)
	})
}

func TestApply_Errors(t *testing.T) {
	g := NewGate(DefaultConfig())

	tests := []struct {
		name    string
		setup   func(c *candidate.Candidate)
		d       Decision
		wantErr error
	}{
		{
			name:    "terminal",
			setup:   func(c *candidate.Candidate) { c.State = candidate.StateRejected },
			d:       Decision{Kind: KindApprove, DecidedAt: now},
			wantErr: ErrTerminal,
		},
		{
			name:    "not reviewable",
			setup:   func(c *candidate.Candidate) { c.State = candidate.StateOpen },
			d:       Decision{Kind: KindApprove, DecidedAt: now},
			wantErr: ErrNotReviewable,
		},
		{
			name:    "need evidence requires pending",
			setup:   func(c *candidate.Candidate) { c.State = candidate.StateNeedsEvidence },
			d:       Decision{Kind: KindNeedEvidence, DecidedAt: now},
			wantErr: ErrNotReviewable,
		},
		{
			name:    "stale",
			setup:   func(*candidate.Candidate) {},
			d:       Decision{Kind: KindApprove, DecidedAt: now.Add(-2 * time.Hour)},
			wantErr: ErrStaleDecision,
		},
		{
			name:    "empty edit",
			setup:   func(*candidate.Candidate) {},
			d:       Decision{Kind: KindApproveEdit, Text: "  ", DecidedAt: now},
			wantErr: ErrInvalidDecision,
		},
		{
			name:    "unknown kind",
			setup:   func(*candidate.Candidate) {},
			d:       Decision{Kind: "maybe", DecidedAt: now},
			wantErr: ErrInvalidDecision,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := pending("c1")
			tt.setup(c)
			before := c.Clone()
			tt.d.CandidateID = c.ID
			err := g.Apply(c, tt.d, now)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, *c)
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	g := NewGate(DefaultConfig())
	c := pending("c1")
	d := Decision{CandidateID: "c1", Kind: KindApprove, DecidedAt: now}

	require.NoError(t, g.Apply(c, d, now))
	require.ErrorIs(t, g.Apply(c, d, now), ErrAlreadyApplied)
	assert.Len(t, c.History, 1)
}

func TestDecision_Key(t *testing.T) {
	a := Decision{CandidateID: "c1", Kind: KindReject, Reason: "no", DecidedAt: now}
	b := a
	b.Source = "elsewhere.md"
	assert.Equal(t, a.Key(), b.Key())

	b.Reason = "nope"
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Len(t, a.Key(), 16)
}
