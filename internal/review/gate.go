// Package review implements the candidate lifecycle: automatic transitions
// driven by confidence and the application of reviewer decisions.
package review

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
)

var (
	// ErrTerminal is returned for decisions on approved or rejected candidates.
	ErrTerminal = errors.New("candidate is in a terminal state")

	// ErrNotReviewable is returned when a decision needs a pending candidate.
	ErrNotReviewable = errors.New("candidate is not pending review")

	// ErrStaleDecision is returned for decisions made before the candidate
	// last entered review.
	ErrStaleDecision = errors.New("decision predates the current review")

	// ErrAlreadyApplied is returned when the decision key is in the history.
	ErrAlreadyApplied = errors.New("decision already applied")

	// ErrInvalidDecision is returned for decisions with an unknown kind or a
	// missing edit text.
	ErrInvalidDecision = errors.New("invalid decision")
)

// History event names.
const (
	EventAutoApproved = "auto_approved"
	EventPending      = "pending_review"
	EventNeedEvidence = "needs_evidence"
	EventApproved     = "approved"
	EventRejected     = "rejected"
	EventHeld         = "held_for_evidence"
)

// Config holds the thresholds driving automatic transitions.
type Config struct {
	AutoApproveThreshold float64
	ReviewThreshold      float64
	AutoApproveEnabled   bool
}

// DefaultConfig returns the default thresholds with auto approval disabled.
func DefaultConfig() Config {
	return Config{AutoApproveThreshold: 0.85, ReviewThreshold: 0.5}
}

// Transition describes the result of Evaluate.
type Transition struct {
	From candidate.State
	To   candidate.State
	Auto bool
}

// Changed reports whether the state moved.
func (t Transition) Changed() bool { return t.From != t.To }

// Gate applies lifecycle rules to candidates.
type Gate struct {
	cfg Config
}

// NewGate creates a Gate.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate moves a non-terminal candidate according to its current
// confidence and conflict status. Terminal candidates never move.
func (g *Gate) Evaluate(c *candidate.Candidate, now time.Time) Transition {
	t := Transition{From: c.State, To: c.State}
	if c.State.Terminal() {
		return t
	}

	var next candidate.State
	switch {
	case c.State == candidate.StateNeedsEvidence && c.HeldAtEvidence > 0 && c.Occurrences() <= c.HeldAtEvidence:
		next = candidate.StateNeedsEvidence
	case c.Confidence >= g.cfg.AutoApproveThreshold && !c.HasConflict():
		if g.cfg.AutoApproveEnabled {
			next = candidate.StateApproved
			t.Auto = true
		} else {
			next = candidate.StatePendingReview
		}
	case c.Confidence >= g.cfg.ReviewThreshold:
		next = candidate.StatePendingReview
	default:
		next = candidate.StateNeedsEvidence
	}

	if next == c.State {
		return t
	}
	t.To = next

	event := EventNeedEvidence
	switch {
	case t.Auto:
		event = EventAutoApproved
	case next == candidate.StatePendingReview:
		event = EventPending
		c.PendingSince = now
	}
	if next != candidate.StateNeedsEvidence {
		c.HeldAtEvidence = 0
	}
	c.Record(candidate.HistoryEntry{
		At:     now,
		Event:  event,
		From:   c.State,
		To:     next,
		Detail: fmt.Sprintf("confidence=%.2f", c.Confidence),
	})
	c.State = next
	return t
}

// Apply applies a reviewer decision. On error c is unchanged.
func (g *Gate) Apply(c *candidate.Candidate, d Decision, now time.Time) error {
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: kind %q", ErrInvalidDecision, d.Kind)
	}
	key := d.Key()
	if c.HasDecision(key) {
		return ErrAlreadyApplied
	}
	if c.State.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, c.State)
	}
	if !c.PendingSince.IsZero() && d.DecidedAt.Before(c.PendingSince) {
		return fmt.Errorf("%w: decided %s, pending since %s",
			ErrStaleDecision, d.DecidedAt.Format(time.RFC3339), c.PendingSince.Format(time.RFC3339))
	}
	if d.Kind != KindReject && c.State != candidate.StatePendingReview {
		return fmt.Errorf("%w: state %s", ErrNotReviewable, c.State)
	}

	entry := candidate.HistoryEntry{At: now, From: c.State, DecisionKey: key, Detail: d.Source}
	switch d.Kind {
	case KindApprove:
		entry.Event, entry.To = EventApproved, candidate.StateApproved
	case KindApproveEdit:
		text := strings.TrimSpace(d.Text)
		if text == "" {
			return fmt.Errorf("%w: empty edit text", ErrInvalidDecision)
		}
		c.ApprovedText = text
		c.Category = candidate.Categorize(text)
		entry.Event, entry.To = EventApproved, candidate.StateApproved
		entry.Detail = joinDetail(d.Source, "edited")
	case KindReject:
		entry.Event, entry.To = EventRejected, candidate.StateRejected
		entry.Detail = joinDetail(d.Source, d.Reason)
	case KindNeedEvidence:
		entry.Event, entry.To = EventHeld, candidate.StateNeedsEvidence
		c.HeldAtEvidence = c.Occurrences()
	}
	c.Record(entry)
	c.State = entry.To
	return nil
}

func joinDetail(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ": ")
}
