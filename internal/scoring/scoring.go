// Package scoring computes bounded confidence values for rule candidates.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
	"github.com/fyrsmithlabs/ruleminer/internal/evidence"
)

// ErrMissingEvidence is returned by InputFor when a candidate references
// evidence that was not supplied.
var ErrMissingEvidence = errors.New("candidate references missing evidence")

// DefaultRecencyWindow is how recent the latest evidence must be to earn the
// recency bonus.
const DefaultRecencyWindow = 7 * 24 * time.Hour

// Weights are the components of the confidence formula.
type Weights struct {
	Base            float64
	PerOccurrence   float64
	OccurrenceCap   float64
	Strongest       float64
	Recency         float64
	ConflictPenalty float64
}

// DefaultWeights returns the standard weights.
func DefaultWeights() Weights {
	return Weights{
		Base:            0.3,
		PerOccurrence:   0.1,
		OccurrenceCap:   0.4,
		Strongest:       0.2,
		Recency:         0.1,
		ConflictPenalty: 0.3,
	}
}

// Input is everything a score depends on.
type Input struct {
	Occurrences    int
	Strongest      bool
	LatestEvidence time.Time
	Conflicted     bool
	Now            time.Time
}

// Scorer computes confidence. It is pure and safe for concurrent use.
type Scorer struct {
	weights       Weights
	recencyWindow time.Duration
}

// New creates a Scorer with default weights. A non-positive window uses
// DefaultRecencyWindow.
func New(recencyWindow time.Duration) *Scorer {
	return NewWithWeights(DefaultWeights(), recencyWindow)
}

// NewWithWeights creates a Scorer with custom weights.
func NewWithWeights(w Weights, recencyWindow time.Duration) *Scorer {
	if recencyWindow <= 0 {
		recencyWindow = DefaultRecencyWindow
	}
	return &Scorer{weights: w, recencyWindow: recencyWindow}
}

// Score returns a confidence in [0, 1], rounded to four decimals so that
// threshold comparisons are stable.
func (s *Scorer) Score(in Input) float64 {
	w := s.weights
	score := w.Base + math.Min(float64(max(in.Occurrences, 0))*w.PerOccurrence, w.OccurrenceCap)
	if in.Strongest {
		score += w.Strongest
	}
	if !in.LatestEvidence.IsZero() && in.Now.Sub(in.LatestEvidence) <= s.recencyWindow {
		score += w.Recency
	}
	if in.Conflicted {
		score -= w.ConflictPenalty
	}
	score = math.Max(0, math.Min(1, score))
	return math.Round(score*1e4) / 1e4
}

// InputFor derives the score input for c from its scored evidence only.
// Late evidence never contributes.
func InputFor(c candidate.Candidate, evs []evidence.Evidence, now time.Time) (Input, error) {
	byID := make(map[string]evidence.Evidence, len(evs))
	for _, ev := range evs {
		byID[ev.ID] = ev
	}

	in := Input{Occurrences: c.Occurrences(), Conflicted: c.HasConflict(), Now: now}
	for _, id := range c.EvidenceIDs {
		ev, ok := byID[id]
		if !ok {
			return Input{}, fmt.Errorf("candidate %s: evidence %s: %w", c.ID, id, ErrMissingEvidence)
		}
		in.Strongest = in.Strongest || ev.Explicit()
		if ev.Timestamp.After(in.LatestEvidence) {
			in.LatestEvidence = ev.Timestamp
		}
	}
	return in, nil
}
