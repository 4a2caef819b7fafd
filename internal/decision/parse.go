// Package decision reads reviewer decisions from markdown review artifacts
// and generates those artifacts for pending candidates.
package decision

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/ruleminer/internal/review"
)

// SkipReason explains why a section produced no decision.
type SkipReason string

const (
	SkipUndecided SkipReason = "undecided"
	SkipAmbiguous SkipReason = "ambiguous"
	SkipMalformed SkipReason = "malformed"
)

// Skip is a section that produced no decision.
type Skip struct {
	Source      string
	Section     string
	CandidateID string
	Reason      SkipReason
}

// ParseResult holds what one artifact yielded.
type ParseResult struct {
	Source    string
	Generated time.Time
	Decisions []review.Decision
	Skips     []Skip
}

// Settled reports whether every section in the artifact was decided.
func (r ParseResult) Settled() bool {
	return len(r.Skips) == 0
}

type frontMatter struct {
	Generated time.Time `yaml:"generated"`
}

var (
	candidateLine = regexp.MustCompile("^\\*\\*Candidate:\\*\\*\\s*`([^`]+)`")
	checkboxLine  = regexp.MustCompile(`^[-*]\s+\[([ xX])\]\s*(.*)$`)
	approveAsIs   = regexp.MustCompile(`(?i)^approve\s+as\s+written\b`)
	approveEdit   = regexp.MustCompile("(?i)^approve\\s+with\\s+edits?:?\\s*(?:`([^`]*)`)?")
	rejectLine    = regexp.MustCompile(`(?i)^reject\b(?:\s*\(reason:\s*([^)]*)\))?`)
	needEvidence  = regexp.MustCompile(`(?i)^need\s+more\s+evidence\b`)
)

// Parse reads one review artifact. fallback is the decision timestamp used
// when the artifact has no generated front matter, typically the file mtime.
func Parse(r io.Reader, source string, fallback time.Time) (ParseResult, error) {
	res := ParseResult{Source: source, Generated: fallback}

	data, err := io.ReadAll(r)
	if err != nil {
		return res, fmt.Errorf("reading %s: %w", source, err)
	}
	body, fm, err := splitFrontMatter(data)
	if err != nil {
		return res, fmt.Errorf("parsing front matter of %s: %w", source, err)
	}
	if !fm.Generated.IsZero() {
		res.Generated = fm.Generated
	}

	for _, sec := range splitSections(body) {
		d, skip := parseSection(sec)
		if skip != nil {
			skip.Source = source
			res.Skips = append(res.Skips, *skip)
			continue
		}
		d.DecidedAt = res.Generated
		d.Source = source
		res.Decisions = append(res.Decisions, d)
	}
	return res, nil
}

func splitFrontMatter(data []byte) ([]byte, frontMatter, error) {
	var fm frontMatter
	rest, ok := bytes.CutPrefix(data, []byte("---\n"))
	if !ok {
		return data, fm, nil
	}
	head, body, ok := bytes.Cut(rest, []byte("\n---\n"))
	if !ok {
		return data, fm, nil
	}
	if err := yaml.Unmarshal(head, &fm); err != nil {
		return nil, fm, err
	}
	return body, fm, nil
}

type section struct {
	title string
	lines []string
}

func splitSections(body []byte) []section {
	var out []section
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if title, ok := strings.CutPrefix(line, "## "); ok {
			out = append(out, section{title: strings.TrimSpace(title)})
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].lines = append(out[len(out)-1].lines, line)
		}
	}
	return out
}

func parseSection(sec section) (review.Decision, *Skip) {
	var d review.Decision
	inDecision := false
	var checked []string

	for _, line := range sec.lines {
		trimmed := strings.TrimSpace(line)
		if m := candidateLine.FindStringSubmatch(trimmed); m != nil && d.CandidateID == "" {
			d.CandidateID = strings.TrimSpace(m[1])
			continue
		}
		if strings.HasPrefix(trimmed, "### ") {
			inDecision = strings.EqualFold(strings.TrimSpace(trimmed[4:]), "decision")
			continue
		}
		if !inDecision {
			continue
		}
		if m := checkboxLine.FindStringSubmatch(trimmed); m != nil && m[1] != " " {
			checked = append(checked, strings.TrimSpace(m[2]))
		}
	}

	skip := &Skip{Section: sec.title, CandidateID: d.CandidateID}
	switch {
	case d.CandidateID == "":
		skip.Reason = SkipMalformed
		return d, skip
	case len(checked) == 0:
		skip.Reason = SkipUndecided
		return d, skip
	case len(checked) > 1:
		skip.Reason = SkipAmbiguous
		return d, skip
	}

	label := checked[0]
	switch {
	case approveAsIs.MatchString(label):
		d.Kind = review.KindApprove
	case approveEdit.MatchString(label):
		text := strings.TrimSpace(approveEdit.FindStringSubmatch(label)[1])
		if isPlaceholder(text) {
			skip.Reason = SkipAmbiguous
			return d, skip
		}
		d.Kind, d.Text = review.KindApproveEdit, text
	case rejectLine.MatchString(label):
		d.Kind = review.KindReject
		if reason := strings.TrimSpace(rejectLine.FindStringSubmatch(label)[1]); !isPlaceholder(reason) {
			d.Reason = reason
		}
	case needEvidence.MatchString(label):
		d.Kind = review.KindNeedEvidence
	default:
		skip.Reason = SkipMalformed
		return d, skip
	}
	return d, nil
}

func isPlaceholder(s string) bool {
	return strings.Trim(s, "_ .") == ""
}
