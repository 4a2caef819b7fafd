package secrets

import (
	"regexp"
	"sort"
	"strings"
)

// Scrubber redacts secrets from text.
type Scrubber interface {
	Scrub(content string) *Result
	IsEnabled() bool
}

type span struct{ start, end int }

type scrubber struct {
	config *Config
}

// New validates cfg and returns a scrubber. A nil cfg uses DefaultConfig.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return NoopScrubber{}, nil
	}
	return &scrubber{config: cfg}, nil
}

func (s *scrubber) IsEnabled() bool { return true }

// Scrub replaces every non-allowlisted match with the redaction string.
// Overlapping matches are merged first so offsets stay valid.
func (s *scrubber) Scrub(content string) *Result {
	result := &Result{Scrubbed: content, ByRule: map[string]int{}}
	if content == "" {
		return result
	}

	var spans []span
	for _, rule := range s.config.compiledRules {
		if len(rule.keywords) > 0 && !anyMatch(rule.keywords, content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[m[0]:m[1]]) {
				continue
			}
			spans = append(spans, span{m[0], m[1]})
			result.ByRule[rule.ID]++
			result.TotalFindings++
		}
	}
	if len(spans) == 0 {
		return result
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var b strings.Builder
	prev := 0
	for _, sp := range merged {
		b.WriteString(content[prev:sp.start])
		b.WriteString(s.config.RedactionString)
		prev = sp.end
	}
	b.WriteString(content[prev:])
	result.Scrubbed = b.String()
	return result
}

func (s *scrubber) allowed(match string) bool {
	for _, re := range s.config.compiledAllowList {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

func anyMatch(res []*regexp.Regexp, content string) bool {
	for _, re := range res {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

func (NoopScrubber) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

func (NoopScrubber) IsEnabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
