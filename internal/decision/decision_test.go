package decision

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
	"github.com/fyrsmithlabs/ruleminer/internal/evidence"
	"github.com/fyrsmithlabs/ruleminer/internal/review"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const artifact = "---\ngenerated: 2026-03-11T08:30:00Z\n---\n" + `
# Rule review

## Rule 1: never use git add .

**Candidate:** ` + "`c-1`" + `

### Decision

- [x] Approve as written
- [ ] Approve with edits: ` + "`___`" + `
- [ ] Reject (reason: ___)
- [ ] Need more evidence

## Rule 2: edited

**Candidate:** ` + "`c-2`" + `

### Decision

- [ ] Approve as written
- [X] Approve with edits: ` + "`Stage files explicitly`" + `

## Rule 3: rejected

**Candidate:** ` + "`c-3`" + `

### Decision

- [x] Reject (reason: only applies to one repo)

## Rule 4: more

**Candidate:** ` + "`c-4`" + `

### Decision

- [x] Need more evidence

## Rule 5: nothing checked

**Candidate:** ` + "`c-5`" + `

### Decision

- [ ] Approve as written

## Rule 6: two boxes

**Candidate:** ` + "`c-6`" + `

### Decision

- [x] Approve as written
- [x] Need more evidence

## Rule 7: placeholder edit

**Candidate:** ` + "`c-7`" + `

### Decision

- [x] Approve with edits: ` + "`___`" + `

## Rule 8: no id

### Decision

- [x] Approve as written
`

func TestParse(t *testing.T) {
	res, err := Parse(strings.NewReader(artifact), "review.md", now)
	require.NoError(t, err)

	decided := time.Date(2026, 3, 11, 8, 30, 0, 0, time.UTC)
	assert.True(t, res.Generated.Equal(decided))

	require.Len(t, res.Decisions, 4)
	want := []review.Decision{
		{CandidateID: "c-1", Kind: review.KindApprove},
		{CandidateID: "c-2", Kind: review.KindApproveEdit, Text: "Stage files explicitly"},
		{CandidateID: "c-3", Kind: review.KindReject, Reason: "only applies to one repo"},
		{CandidateID: "c-4", Kind: review.KindNeedEvidence},
	}
	for i, d := range res.Decisions {
		assert.Equal(t, want[i].CandidateID, d.CandidateID)
		assert.Equal(t, want[i].Kind, d.Kind)
		assert.Equal(t, want[i].Text, d.Text)
		assert.Equal(t, want[i].Reason, d.Reason)
		assert.True(t, d.DecidedAt.Equal(decided))
		assert.Equal(t, "review.md", d.Source)
	}

	got := make(map[string]SkipReason)
	for _, s := range res.Skips {
		got[s.Section] = s.Reason
	}
	assert.Equal(t, map[string]SkipReason{
		"Rule 5: nothing checked":  SkipUndecided,
		"Rule 6: two boxes":        SkipAmbiguous,
		"Rule 7: placeholder edit": SkipAmbiguous,
		"Rule 8: no id":            SkipMalformed,
	}, got)
	assert.False(t, res.Settled())
}

func TestParse_FallbackTimestamp(t *testing.T) {
	doc := "## Rule 1\n\n**Candidate:** `c-1`\n\n### Decision\n\n- [x] Reject\n"
	res, err := Parse(strings.NewReader(doc), "r.md", now)
	require.NoError(t, err)
	require.Len(t, res.Decisions, 1)
	assert.Equal(t, now, res.Decisions[0].DecidedAt)
	assert.Empty(t, res.Decisions[0].Reason)
	assert.True(t, res.Settled())
}

func TestParse_SameInputSameKeys(t *testing.T) {
	a, err := Parse(strings.NewReader(artifact), "review.md", now)
	require.NoError(t, err)
	b, err := Parse(strings.NewReader(artifact), "review.md", now.Add(time.Hour))
	require.NoError(t, err)
	for i := range a.Decisions {
		assert.Equal(t, a.Decisions[i].Key(), b.Decisions[i].Key())
	}
}

func TestParse_BadFrontMatter(t *testing.T) {
	_, err := Parse(strings.NewReader("---\ngenerated: [\n---\n"), "bad.md", now)
	require.Error(t, err)
}

func testCandidates() ([]candidate.Candidate, []evidence.Evidence) {
	evs := []evidence.Evidence{
		{ID: "e1", Project: "/p1", TriggerText: "Don't use git add .", Timestamp: now.Add(-48 * time.Hour)},
		{ID: "e2", Project: "/p2", TriggerText: "don't use git add . please", Timestamp: now.Add(-24 * time.Hour)},
	}
	cands := []candidate.Candidate{
		{ID: "low", ProposedText: "prefer tabs", State: candidate.StatePendingReview, Confidence: 0.5, EvidenceIDs: []string{"e1"}},
		{ID: "high", ProposedText: "Don't use git add .", State: candidate.StatePendingReview, Confidence: 0.8, EvidenceIDs: []string{"e1", "e2"}},
		{ID: "open", ProposedText: "ignored", State: candidate.StateOpen, Confidence: 0.9},
	}
	return cands, evs
}

func TestRender_RoundTrip(t *testing.T) {
	cands, evs := testCandidates()

	var buf bytes.Buffer
	n, err := Render(&buf, cands, evs, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out := buf.String()
	assert.Less(t, strings.Index(out, "`high`"), strings.Index(out, "`low`"))
	assert.NotContains(t, out, "`open`")
	assert.Contains(t, out, "**Scope:** global")
	assert.Contains(t, out, "don't use git add . please")

	// Untouched artifact: everything undecided.
	res, err := Parse(strings.NewReader(out), "r.md", time.Time{})
	require.NoError(t, err)
	assert.True(t, res.Generated.Equal(now))
	assert.Empty(t, res.Decisions)
	require.Len(t, res.Skips, 2)
	assert.Equal(t, SkipUndecided, res.Skips[0].Reason)
	assert.Equal(t, "high", res.Skips[0].CandidateID)

	// Reviewer checks the first box of the first rule.
	edited := strings.Replace(out, "- [ ] Approve as written", "- [x] Approve as written", 1)
	res, err = Parse(strings.NewReader(edited), "r.md", time.Time{})
	require.NoError(t, err)
	require.Len(t, res.Decisions, 1)
	assert.Equal(t, "high", res.Decisions[0].CandidateID)
	assert.Equal(t, review.KindApprove, res.Decisions[0].Kind)
}

func TestIngestor_ExportIngestArchive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reviews")
	in := NewIngestor(dir, true)

	results, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)

	cands, evs := testCandidates()
	path, err := in.Export(cands, evs, now)
	require.NoError(t, err)
	require.FileExists(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	edited := strings.ReplaceAll(string(data), "- [ ] Need more evidence", "- [x] Need more evidence")
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	results, err = in.Ingest(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Decisions, 2)
	assert.True(t, results[0].Settled())

	moved, err := in.Archive(results)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, filepath.Base(path)))

	results, err = in.Ingest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIngestor_ExportNothingPending(t *testing.T) {
	in := NewIngestor(t.TempDir(), false)
	path, err := in.Export(nil, nil, now)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestIngestor_ArchiveDisabled(t *testing.T) {
	in := NewIngestor(t.TempDir(), false)
	moved, err := in.Archive([]ParseResult{{Source: "x.md", Decisions: []review.Decision{{}}}})
	require.NoError(t, err)
	assert.Nil(t, moved)
}
