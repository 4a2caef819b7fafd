// Package signal classifies human utterances as correction signals, positive
// acknowledgments, or neither.
//
// Classification walks an ordered list of tagged rules and stops at the first
// rule that matches. Anchored rules only match at the start of the utterance.
package signal

import (
	"regexp"
	"strings"
	"unicode"
)

// Kind is the outcome of classifying an utterance.
type Kind string

const (
	KindNone       Kind = "none"
	KindCorrection Kind = "correction"
	KindPositive   Kind = "positive"
)

// Category identifies which family of correction pattern matched.
type Category string

const (
	CategoryNegation     Category = "negation"
	CategoryPreference   Category = "preference"
	CategoryImperative   Category = "imperative"
	CategorySubstitution Category = "substitution"
	CategoryTone         Category = "tone"
)

// Explicit reports whether the category is a direct instruction rather than
// a stated preference or a complaint about style.
func (c Category) Explicit() bool {
	switch c {
	case CategoryNegation, CategoryImperative, CategorySubstitution:
		return true
	}
	return false
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryNegation, CategoryPreference, CategoryImperative, CategorySubstitution, CategoryTone:
		return true
	}
	return false
}

// maxRuleRunes caps the proposed rule text taken from one utterance.
const maxRuleRunes = 280

// Result describes a classification.
type Result struct {
	Kind     Kind
	Category Category // set only for KindCorrection
	Pattern  string   // name of the matching rule
	Rule     string   // actionable clause proposed as rule text
}

// Extractor derives the proposed rule text from a matched utterance.
// text is the normalized utterance, loc the submatch index slice of the match.
type Extractor func(text string, loc []int) string

// Rule is a single tagged predicate in the matcher list.
type Rule struct {
	Name     string
	Kind     Kind
	Category Category
	Anchored bool
	Pattern  *regexp.Regexp
	Extract  Extractor
}

// Matcher evaluates rules in order, first match wins.
type Matcher struct {
	rules []Rule
}

// NewMatcher creates a matcher over rules. With no rules, DefaultRules is used.
func NewMatcher(rules ...Rule) *Matcher {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Matcher{rules: rules}
}

// Rules returns a copy of the ordered rule list.
func (m *Matcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Classify returns the first matching rule's verdict for text.
func (m *Matcher) Classify(text string) Result {
	clean := prepare(text)
	if clean == "" {
		return Result{Kind: KindNone}
	}

	lead := leadingFiller(clean)
	for _, r := range m.rules {
		loc := r.Pattern.FindStringSubmatchIndex(clean)
		if r.Anchored && loc != nil && loc[0] != 0 {
			loc = nil
		}
		if r.Anchored && loc == nil {
			loc = matchAt(r.Pattern, clean, lead)
		}
		if loc == nil {
			continue
		}
		res := Result{Kind: r.Kind, Pattern: r.Name}
		if r.Kind == KindCorrection {
			res.Category = r.Category
			extract := r.Extract
			if extract == nil {
				extract = Whole
			}
			res.Rule = truncate(strings.TrimSpace(extract(clean, loc)))
		}
		return res
	}
	return Result{Kind: KindNone}
}

// prepare collapses whitespace and drops leading quote or blockquote marks so
// anchored rules see the first real word.
func prepare(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = strings.TrimLeftFunc(text, func(r rune) bool {
		return r == '>' || r == '"' || r == '\'' || r == '`' || r == '*' || unicode.IsSpace(r)
	})
	text = strings.NewReplacer("’", "'", "‘", "'", "“", `"`, "”", `"`).Replace(text)
	return text
}

// fillerPrefix matches politeness and hesitation words that may precede an
// anchored phrase, as in "Please don't ..." or "Hmm, stop ...".
var fillerPrefix = regexp.MustCompile(`(?i)^(?:(?:please|actually|hmm+|um+|okay|ok)\b[\s,.!:;-]*)+`)

func leadingFiller(text string) int {
	if loc := fillerPrefix.FindStringIndex(text); loc != nil {
		return loc[1]
	}
	return 0
}

// matchAt reports a match of re starting exactly at offset, with indexes
// relative to text.
func matchAt(re *regexp.Regexp, text string, offset int) []int {
	if offset <= 0 || offset >= len(text) {
		return nil
	}
	loc := re.FindStringSubmatchIndex(text[offset:])
	if loc == nil || loc[0] != 0 {
		return nil
	}
	for i := range loc {
		if loc[i] >= 0 {
			loc[i] += offset
		}
	}
	return loc
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxRuleRunes {
		return s
	}
	cut := string(r[:maxRuleRunes])
	if i := strings.LastIndexByte(cut, ' '); i > maxRuleRunes/2 {
		cut = cut[:i]
	}
	return cut
}

// Whole proposes the full utterance.
func Whole(text string, _ []int) string {
	return text
}

// FromMatch proposes the utterance from the start of the match onward.
func FromMatch(text string, loc []int) string {
	return text[loc[0]:]
}

// Remainder proposes the first capture group, falling back to nothing. It
// suits interjections like "No, use tabs" where the interjection itself
// carries no instruction.
func Remainder(text string, loc []int) string {
	if len(loc) < 4 || loc[2] < 0 {
		return ""
	}
	return text[loc[2]:loc[3]]
}
