package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
	"github.com/fyrsmithlabs/ruleminer/internal/evidence"
)

type memState struct {
	evidence     map[string]evidence.Evidence
	evidenceKeys map[string]string
	evidenceSeq  []string
	candidates   map[string]candidate.Candidate
	candidateSeq []string
	runs         []Run
}

func (s *memState) clone() *memState {
	return &memState{
		evidence:     maps.Clone(s.evidence),
		evidenceKeys: maps.Clone(s.evidenceKeys),
		evidenceSeq:  slices.Clone(s.evidenceSeq),
		candidates:   maps.Clone(s.candidates),
		candidateSeq: slices.Clone(s.candidateSeq),
		runs:         slices.Clone(s.runs),
	}
}

// Memory is an in-process Store. Transactions work on a copy of the state
// that replaces the current one on commit.
type Memory struct {
	mu    sync.RWMutex
	state *memState
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: &memState{
		evidence:     map[string]evidence.Evidence{},
		evidenceKeys: map[string]string{},
		candidates:   map[string]candidate.Candidate{},
	}}
}

func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	next := m.state.clone()
	if err := fn(&memTx{s: next}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = next
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	m.mu.RLock()
	snapshot := m.state.clone()
	m.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&memTx{s: snapshot})
}

func (m *Memory) Close() error { return nil }

type memTx struct {
	s *memState
}

func (t *memTx) PutEvidence(_ context.Context, ev evidence.Evidence) (bool, error) {
	if _, dup := t.s.evidenceKeys[ev.Key()]; dup {
		return false, nil
	}
	if _, dup := t.s.evidence[ev.ID]; dup {
		return false, nil
	}
	t.s.evidence[ev.ID] = ev
	t.s.evidenceKeys[ev.Key()] = ev.ID
	t.s.evidenceSeq = append(t.s.evidenceSeq, ev.ID)
	return true, nil
}

func (t *memTx) Evidence(_ context.Context, ids []string) ([]evidence.Evidence, error) {
	out := make([]evidence.Evidence, 0, len(ids))
	for _, id := range ids {
		ev, ok := t.s.evidence[id]
		if !ok {
			return nil, fmt.Errorf("evidence %s: %w", id, ErrNotFound)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (t *memTx) CountEvidence(context.Context) (int, error) {
	return len(t.s.evidence), nil
}

func (t *memTx) Candidates(_ context.Context, f candidate.Filter) ([]candidate.Candidate, error) {
	var out []candidate.Candidate
	for _, id := range t.s.candidateSeq {
		if c := t.s.candidates[id]; f.Match(c) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (t *memTx) Candidate(_ context.Context, id string) (candidate.Candidate, error) {
	c, ok := t.s.candidates[id]
	if !ok {
		return candidate.Candidate{}, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	return c.Clone(), nil
}

func (t *memTx) PutCandidate(_ context.Context, c candidate.Candidate) error {
	if _, ok := t.s.candidates[c.ID]; !ok {
		t.s.candidateSeq = append(t.s.candidateSeq, c.ID)
	}
	t.s.candidates[c.ID] = c.Clone()
	return nil
}

func (t *memTx) PutRun(_ context.Context, r Run) error {
	t.s.runs = append(t.s.runs, r)
	return nil
}

func (t *memTx) LastRun(context.Context) (Run, error) {
	if len(t.s.runs) == 0 {
		return Run{}, fmt.Errorf("run: %w", ErrNotFound)
	}
	return t.s.runs[len(t.s.runs)-1], nil
}
