package rulewriter

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
)

// ErrMalformedRegion is returned for documents whose managed markers are
// unbalanced, nested or duplicated.
var ErrMalformedRegion = errors.New("malformed managed region")

const markerTag = "RULEMINER"

var markerLine = regexp.MustCompile(`^<!--\s*(BEGIN|END)\s+` + markerTag + `\s+(\S+)\s*-->$`)

// BeginMarker returns the opening marker line for key.
func BeginMarker(key string) string {
	return "<!-- BEGIN " + markerTag + " " + key + " -->"
}

// EndMarker returns the closing marker line for key.
func EndMarker(key string) string {
	return "<!-- END " + markerTag + " " + key + " -->"
}

// keyEscaper keeps region keys a single marker token. Project paths may
// contain whitespace or '>'.
var keyEscaper = strings.NewReplacer(
	"%", "%25",
	" ", "%20",
	"\t", "%09",
	"\n", "%0A",
	"\r", "%0D",
	">", "%3E",
)

// RegionKey identifies a region by scope and category. The key never
// contains whitespace.
func RegionKey(scope candidate.Scope, cat candidate.Category) string {
	return keyEscaper.Replace(scope.String() + "/" + string(cat))
}

// Region is one managed block of rules.
type Region struct {
	Key      string
	Heading  string
	FileType string
	Rules    []candidate.Candidate
}

// Render returns the region including its markers, newline terminated.
func (r Region) Render() string {
	var b strings.Builder
	b.WriteString(BeginMarker(r.Key))
	b.WriteString("\n### ")
	b.WriteString(r.Heading)
	b.WriteString("\n\n")
	for _, c := range r.Rules {
		b.WriteString("- ")
		b.WriteString(strings.Join(strings.Fields(c.RuleText()), " "))
		b.WriteString("\n")
	}
	b.WriteString(EndMarker(r.Key))
	b.WriteString("\n")
	return b.String()
}

// sortRules orders by confidence desc, then creation time, then ID.
func sortRules(cs []candidate.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// span is the inclusive line range of a region in a document.
type span struct {
	start, end int
}

// findRegions locates managed regions in lines and validates their markers.
func findRegions(lines []string) (map[string]span, error) {
	spans := make(map[string]span)
	openKey, openAt := "", -1

	for i, line := range lines {
		m := markerLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		kind, key := m[1], m[2]
		switch kind {
		case "BEGIN":
			if openAt >= 0 {
				return nil, fmt.Errorf("%w: %s opened inside %s at line %d", ErrMalformedRegion, key, openKey, i+1)
			}
			if _, dup := spans[key]; dup {
				return nil, fmt.Errorf("%w: duplicate region %s at line %d", ErrMalformedRegion, key, i+1)
			}
			openKey, openAt = key, i
		case "END":
			if openAt < 0 || key != openKey {
				return nil, fmt.Errorf("%w: unexpected end of %s at line %d", ErrMalformedRegion, key, i+1)
			}
			spans[key] = span{start: openAt, end: i}
			openKey, openAt = "", -1
		}
	}
	if openAt >= 0 {
		return nil, fmt.Errorf("%w: region %s is never closed", ErrMalformedRegion, openKey)
	}
	return spans, nil
}

// Merge replaces each region in doc, or appends it when absent. Bytes
// outside managed regions are preserved.
func Merge(doc []byte, regions []Region) ([]byte, error) {
	lines := strings.SplitAfter(string(doc), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if _, err := findRegions(lines); err != nil {
		return nil, err
	}

	for _, r := range regions {
		spans, err := findRegions(lines)
		if err != nil {
			return nil, err
		}
		rendered := strings.SplitAfter(r.Render(), "\n")
		rendered = rendered[:len(rendered)-1]

		if sp, ok := spans[r.Key]; ok {
			next := make([]string, 0, len(lines)-(sp.end-sp.start+1)+len(rendered))
			next = append(next, lines[:sp.start]...)
			next = append(next, rendered...)
			next = append(next, lines[sp.end+1:]...)
			lines = next
			continue
		}

		if n := len(lines); n > 0 {
			if !strings.HasSuffix(lines[n-1], "\n") {
				lines[n-1] += "\n"
			}
			if strings.TrimSpace(lines[n-1]) != "" {
				lines = append(lines, "\n")
			}
		}
		lines = append(lines, rendered...)
	}
	return []byte(strings.Join(lines, "")), nil
}
