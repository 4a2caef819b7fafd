package decision

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
	"github.com/fyrsmithlabs/ruleminer/internal/evidence"
)

const (
	maxExcerpts     = 3
	maxExcerptRunes = 160
	maxTitleRunes   = 60
)

type renderHeader struct {
	Generated  time.Time `yaml:"generated"`
	Candidates int       `yaml:"candidates"`
}

// Render writes a review artifact for the pending candidates in cands,
// highest confidence first. evs supplies the excerpts shown per candidate.
// It returns the number of candidates written.
func Render(w io.Writer, cands []candidate.Candidate, evs []evidence.Evidence, now time.Time) (int, error) {
	var pending []candidate.Candidate
	for _, c := range cands {
		if c.State == candidate.StatePendingReview {
			pending = append(pending, c)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Confidence != pending[j].Confidence {
			return pending[i].Confidence > pending[j].Confidence
		}
		return pending[i].ID < pending[j].ID
	})

	byID := make(map[string]evidence.Evidence, len(evs))
	for _, ev := range evs {
		byID[ev.ID] = ev
	}

	head, err := yaml.Marshal(renderHeader{Generated: now.UTC(), Candidates: len(pending)})
	if err != nil {
		return 0, fmt.Errorf("encoding front matter: %w", err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "---\n%s---\n\n", head)
	fmt.Fprintf(bw, "# Rule review %s\n\n", now.UTC().Format("2006-01-02"))
	fmt.Fprintf(bw, "Check exactly one box per rule, then run `ruleminer review apply`.\n")

	for i, c := range pending {
		fmt.Fprintf(bw, "\n## Rule %d: %s\n\n", i+1, truncate(c.ProposedText, maxTitleRunes))
		fmt.Fprintf(bw, "**Candidate:** `%s`\n", c.ID)
		fmt.Fprintf(bw, "**Scope:** %s\n", c.Scope)
		fmt.Fprintf(bw, "**Confidence:** %.2f\n", c.Confidence)
		fmt.Fprintf(bw, "**Occurrences:** %d\n", c.Occurrences())
		if c.HasConflict() {
			fmt.Fprintf(bw, "**Conflicts with:** %s\n", strings.Join(c.Conflicts, ", "))
		}
		fmt.Fprintf(bw, "\n> %s\n", c.ProposedText)

		fmt.Fprintf(bw, "\n### Evidence\n\n")
		shown := 0
		for j := len(c.EvidenceIDs) - 1; j >= 0 && shown < maxExcerpts; j-- {
			ev, ok := byID[c.EvidenceIDs[j]]
			if !ok {
				continue
			}
			fmt.Fprintf(bw, "- %s `%s`: %q\n", ev.Timestamp.UTC().Format("2006-01-02"), ev.Project, truncate(ev.TriggerText, maxExcerptRunes))
			shown++
		}

		fmt.Fprintf(bw, "\n### Decision\n\n")
		fmt.Fprintf(bw, "- [ ] Approve as written\n")
		fmt.Fprintf(bw, "- [ ] Approve with edits: `___`\n")
		fmt.Fprintf(bw, "- [ ] Reject (reason: ___)\n")
		fmt.Fprintf(bw, "- [ ] Need more evidence\n")
	}
	return len(pending), bw.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
