package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Don't use git add . — specify files explicitly",
		"Please make sure to run the tests before committing!",
		"I’d prefer “tabs” over spaces",
		"stop adding comments",
		"",
		"...",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			once := Normalize(in)
			assert.Equal(t, once, Normalize(once))
		})
	}
}

func TestNormalize_Paraphrases(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"negation forms", "Please don't use git add .", "Do not use `git add .`!"},
		{"stop and never", "Stop adding comments", "never add comments"},
		{"make sure", "Make sure to run tests", "always run the tests"},
		{"case and quotes", "Use ‘pnpm’ Instead Of npm", "use 'pnpm' instead of npm"},
		{"fillers", "just really avoid globals", "never globals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Normalize(tt.a), Normalize(tt.b))
		})
	}
}

func TestNormalize_KeepsLoneDot(t *testing.T) {
	assert.Equal(t, "never use git add .", Normalize("Don't use git add ."))
	assert.Equal(t, "", Normalize("please."))
}

func TestPolarity(t *testing.T) {
	neg, subj := Polarity("never use pnpm")
	assert.True(t, neg)
	assert.Equal(t, "use pnpm", subj)

	neg, subj = Polarity("always use pnpm")
	assert.False(t, neg)
	assert.Equal(t, "use pnpm", subj)
}

func TestScope_RoundTrip(t *testing.T) {
	tests := []struct {
		scope Scope
		str   string
	}{
		{Scope{}, "global"},
		{Scope{Project: "/src/app"}, "project:/src/app"},
		{Scope{FileType: ".py"}, "file-type:.py"},
		{Scope{Project: "/src/app", FileType: ".py"}, "project:/src/app+file-type:.py"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.str, tt.scope.String())
			got, err := ParseScope(tt.str)
			require.NoError(t, err)
			assert.Equal(t, tt.scope, got)
		})
	}
}

func TestParseScope_Invalid(t *testing.T) {
	for _, in := range []string{"project:", "file-type:", "project:/a+file-type:", "repo:/a"} {
		_, err := ParseScope(in)
		assert.ErrorIs(t, err, ErrInvalidScope, in)
	}
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateApproved.Terminal())
	assert.True(t, StateRejected.Terminal())
	assert.False(t, StatePendingReview.Terminal())
	assert.False(t, State("bogus").Valid())
}

func TestCandidate_RuleTextAndDecisions(t *testing.T) {
	c := Candidate{ProposedText: "use pnpm"}
	assert.Equal(t, "use pnpm", c.RuleText())
	c.ApprovedText = "always use pnpm"
	assert.Equal(t, "always use pnpm", c.RuleText())

	c.Record(HistoryEntry{Event: "approved", DecisionKey: "k1"})
	assert.True(t, c.HasDecision("k1"))
	assert.False(t, c.HasDecision("k2"))
}

func TestCandidate_CloneIsDeep(t *testing.T) {
	c := Candidate{EvidenceIDs: []string{"e1"}}
	cp := c.Clone()
	cp.EvidenceIDs[0] = "changed"
	assert.Equal(t, "e1", c.EvidenceIDs[0])
}

func TestFilter_Match(t *testing.T) {
	c := Candidate{ID: "c1", Signature: "never use pnpm", Scope: Scope{FileType: ".js"}, State: StateOpen}

	assert.True(t, Filter{}.Match(c))
	assert.True(t, Filter{States: []State{StateOpen, StatePendingReview}}.Match(c))
	assert.False(t, Filter{States: []State{StateApproved}}.Match(c))
	assert.False(t, Filter{Scope: &Scope{}}.Match(c))
	assert.True(t, Filter{Scope: &Scope{FileType: ".js"}, Signature: "never use pnpm"}.Match(c))
	assert.False(t, Filter{IDs: []string{"c2"}}.Match(c))
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		text string
		want Category
	}{
		{"Don't use git add .", CategoryWorkflow},
		{"always run tests first", CategoryWorkflow},
		{"be more concise", CategoryCommunication},
		{"use snake_case naming", CategoryCodeStyle},
		{"prefer pnpm", CategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.text))
		})
	}
	assert.Equal(t, "Code Style", CategoryCodeStyle.Title())
}

func TestDetectConflicts(t *testing.T) {
	cands := []Candidate{
		{ID: "a", Signature: "always use pnpm", State: StatePendingReview},
		{ID: "b", Signature: "never use pnpm", State: StateOpen},
		{ID: "c", Signature: "never use pnpm", Scope: Scope{FileType: ".js"}, State: StateOpen},
		{ID: "d", Signature: "always use pnpm", Scope: Scope{FileType: ".js"}, State: StateRejected},
	}
	changed := DetectConflicts(cands, PolarityConflict{})

	assert.Equal(t, []int{0, 1}, changed)
	assert.Equal(t, []string{"b"}, cands[0].Conflicts)
	assert.Equal(t, []string{"a"}, cands[1].Conflicts)
	assert.Empty(t, cands[2].Conflicts)

	assert.Empty(t, DetectConflicts(cands, PolarityConflict{}))
}

func TestPolarityConflict_SamePolarity(t *testing.T) {
	a := Candidate{ID: "a", Signature: "never use pnpm"}
	b := Candidate{ID: "b", Signature: "never use pnpm"}
	assert.False(t, PolarityConflict{}.Conflicts(a, b))
	assert.True(t, ConflictFunc(func(Candidate, Candidate) bool { return true }).Conflicts(a, b))
}
