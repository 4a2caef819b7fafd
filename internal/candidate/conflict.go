package candidate

import "slices"

// ConflictPredicate decides whether two candidates contradict each other.
type ConflictPredicate interface {
	Conflicts(a, b Candidate) bool
}

// ConflictFunc adapts a function to ConflictPredicate.
type ConflictFunc func(a, b Candidate) bool

func (f ConflictFunc) Conflicts(a, b Candidate) bool { return f(a, b) }

// PolarityConflict flags candidates in the same scope whose signatures differ
// only in polarity, e.g. "always use pnpm" and "never use pnpm".
type PolarityConflict struct{}

func (PolarityConflict) Conflicts(a, b Candidate) bool {
	if a.ID == b.ID || a.Scope != b.Scope {
		return false
	}
	negA, subjA := Polarity(a.Signature)
	negB, subjB := Polarity(b.Signature)
	return negA != negB && subjA != "" && subjA == subjB
}

// DetectConflicts recomputes Conflicts for every non-terminal candidate in
// cands against all non-rejected ones, and returns the indexes whose
// conflict set changed.
func DetectConflicts(cands []Candidate, pred ConflictPredicate) []int {
	var changed []int
	for i := range cands {
		c := &cands[i]
		if c.State.Terminal() {
			continue
		}
		var found []string
		for j := range cands {
			other := cands[j]
			if i == j || other.State == StateRejected {
				continue
			}
			if pred.Conflicts(*c, other) {
				found = append(found, other.ID)
			}
		}
		slices.Sort(found)
		if !slices.Equal(found, c.Conflicts) {
			c.Conflicts = found
			changed = append(changed, i)
		}
	}
	return changed
}
