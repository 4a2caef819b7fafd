package candidate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/ruleminer/internal/evidence"
)

// ErrEmptySignature is returned when rule text normalizes to nothing.
var ErrEmptySignature = errors.New("rule text has an empty signature")

// DefaultGeneralizationThreshold is the number of distinct projects after
// which a correction is promoted to a broader scope.
const DefaultGeneralizationThreshold = 3

// Repository is the slice of the store the aggregator needs. All calls are
// made inside one stage transaction.
type Repository interface {
	Candidates(ctx context.Context, f Filter) ([]Candidate, error)
	PutCandidate(ctx context.Context, c Candidate) error
	Evidence(ctx context.Context, ids []string) ([]evidence.Evidence, error)
}

// Outcome lists the candidates an Add touched.
type Outcome struct {
	Created []string
	Updated []string
	// Late lists terminal candidates that recorded the evidence for audit.
	Late []string
}

func (o *Outcome) merge(other Outcome) {
	o.Created = append(o.Created, other.Created...)
	o.Updated = append(o.Updated, other.Updated...)
	o.Late = append(o.Late, other.Late...)
}

// Aggregator groups evidence into candidates.
type Aggregator struct {
	normalizer   Normalizer
	generalizeAt int
	now          func() time.Time
	newID        func() string
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithNormalizer replaces the default signature normalizer.
func WithNormalizer(n Normalizer) AggregatorOption {
	return func(a *Aggregator) { a.normalizer = n }
}

// WithClock sets the clock used for creation timestamps.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

// WithIDFunc overrides candidate ID generation.
func WithIDFunc(f func() string) AggregatorOption {
	return func(a *Aggregator) { a.newID = f }
}

// NewAggregator creates an Aggregator promoting corrections seen in at least
// generalizeAt distinct projects.
func NewAggregator(generalizeAt int, opts ...AggregatorOption) *Aggregator {
	if generalizeAt <= 0 {
		generalizeAt = DefaultGeneralizationThreshold
	}
	a := &Aggregator{
		normalizer:   DefaultNormalizer,
		generalizeAt: generalizeAt,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Signature normalizes rule text with the configured normalizer.
func (a *Aggregator) Signature(text string) string {
	return a.normalizer.Normalize(text)
}

// Add attaches ev to the candidate for its signature and most specific scope,
// creating one when no live candidate exists, then applies the
// generalization rule.
func (a *Aggregator) Add(ctx context.Context, repo Repository, ev evidence.Evidence) (Outcome, error) {
	sig := a.Signature(ev.RuleText)
	if sig == "" {
		return Outcome{}, ErrEmptySignature
	}

	narrow := Scope{Project: ev.Project, FileType: ev.FileExt}
	out, err := a.attach(ctx, repo, sig, narrow, ev, nil)
	if err != nil {
		return Outcome{}, err
	}

	if narrow.Project != "" {
		gen, err := a.generalize(ctx, repo, sig, narrow.FileType, ev)
		if err != nil {
			return Outcome{}, err
		}
		out.merge(gen)
	}
	return out, nil
}

// attach adds ev to the live candidate for (sig, scope). When none exists a
// candidate is created from seed, which marks it generalized, or from ev
// alone.
func (a *Aggregator) attach(ctx context.Context, repo Repository, sig string, scope Scope, ev evidence.Evidence, seed []evidence.Evidence) (Outcome, error) {
	var out Outcome

	existing, err := repo.Candidates(ctx, Filter{Signature: sig, Scope: &scope})
	if err != nil {
		return out, fmt.Errorf("loading candidates for %q: %w", sig, err)
	}

	var live *Candidate
	var rejected []Candidate
	for i := range existing {
		if existing[i].State == StateRejected {
			rejected = append(rejected, existing[i])
			continue
		}
		live = &existing[i]
	}

	if live != nil {
		if live.HasEvidence(ev.ID) {
			return out, nil
		}
		if live.State.Terminal() {
			live.LateEvidenceIDs = append(live.LateEvidenceIDs, ev.ID)
			out.Late = append(out.Late, live.ID)
		} else {
			live.EvidenceIDs = append(live.EvidenceIDs, ev.ID)
			live.StrongestSignal = live.StrongestSignal || ev.Explicit()
			if ev.Timestamp.After(live.LastEvidenceAt) {
				live.LastEvidenceAt = ev.Timestamp
			}
			out.Updated = append(out.Updated, live.ID)
		}
		if err := repo.PutCandidate(ctx, *live); err != nil {
			return out, fmt.Errorf("saving candidate %s: %w", live.ID, err)
		}
		return out, nil
	}

	// Rejections are sticky: record the evidence on them and start over.
	for _, r := range rejected {
		if r.HasEvidence(ev.ID) {
			continue
		}
		r.LateEvidenceIDs = append(r.LateEvidenceIDs, ev.ID)
		if err := repo.PutCandidate(ctx, r); err != nil {
			return out, fmt.Errorf("saving candidate %s: %w", r.ID, err)
		}
		out.Late = append(out.Late, r.ID)
	}

	generalized := len(seed) > 0
	if !generalized {
		seed = []evidence.Evidence{ev}
	}
	c := a.newCandidate(sig, scope, seed)
	c.Generalized = generalized
	if err := repo.PutCandidate(ctx, c); err != nil {
		return out, fmt.Errorf("saving candidate %s: %w", c.ID, err)
	}
	out.Created = append(out.Created, c.ID)
	return out, nil
}

func (a *Aggregator) newCandidate(sig string, scope Scope, seed []evidence.Evidence) Candidate {
	now := a.now()
	c := Candidate{
		ID:           a.newID(),
		Signature:    sig,
		ProposedText: seed[0].RuleText,
		Category:     Categorize(seed[0].RuleText),
		Scope:        scope,
		State:        StateOpen,
		CreatedAt:    now,
	}
	for _, ev := range seed {
		c.EvidenceIDs = append(c.EvidenceIDs, ev.ID)
		c.StrongestSignal = c.StrongestSignal || ev.Explicit()
		if ev.Timestamp.After(c.LastEvidenceAt) {
			c.LastEvidenceAt = ev.Timestamp
		}
	}
	c.Record(HistoryEntry{At: now, Event: "created", To: StateOpen, Detail: scope.String()})
	return c
}

// generalize promotes sig to the scope without a project once enough
// distinct projects have a live candidate for it with the same file type.
// The broader candidate coexists with the project ones and is reviewed on
// its own. A replacement for a rejected broad candidate is seeded only with
// evidence the rejected ones never saw.
func (a *Aggregator) generalize(ctx context.Context, repo Repository, sig, fileType string, ev evidence.Evidence) (Outcome, error) {
	all, err := repo.Candidates(ctx, Filter{Signature: sig})
	if err != nil {
		return Outcome{}, fmt.Errorf("loading candidates for %q: %w", sig, err)
	}

	broad := Scope{FileType: fileType}
	projects := make(map[string]bool)
	rejectedOwn := make(map[string]bool)
	for _, c := range all {
		if c.Scope == broad {
			if c.State != StateRejected {
				return a.attach(ctx, repo, sig, broad, ev, nil)
			}
			for _, id := range c.allEvidenceIDs() {
				rejectedOwn[id] = true
			}
			continue
		}
		if c.Scope.Project == "" || c.Scope.FileType != fileType || c.State == StateRejected {
			continue
		}
		projects[c.Scope.Project] = true
	}
	if len(projects) < a.generalizeAt {
		return Outcome{}, nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, c := range all {
		if c.Scope.Project == "" || c.Scope.FileType != fileType || c.State == StateRejected {
			continue
		}
		for _, id := range c.allEvidenceIDs() {
			if !seen[id] && !rejectedOwn[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return Outcome{}, nil
	}

	seed, err := repo.Evidence(ctx, ids)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading evidence for generalized %q: %w", sig, err)
	}
	sort.SliceStable(seed, func(i, j int) bool { return seed[i].Timestamp.Before(seed[j].Timestamp) })
	return a.attach(ctx, repo, sig, broad, ev, seed)
}
