package candidate

import (
	"strings"
	"unicode"
)

// Normalizer maps proposed rule text to a signature. Implementations must be
// deterministic and idempotent.
type Normalizer interface {
	Normalize(text string) string
}

// NormalizerFunc adapts a function to Normalizer.
type NormalizerFunc func(string) string

func (f NormalizerFunc) Normalize(text string) string { return f(text) }

// DefaultNormalizer wraps Normalize.
var DefaultNormalizer Normalizer = NormalizerFunc(Normalize)

const (
	polarityNever  = "never"
	polarityAlways = "always"
)

var fillers = map[string]bool{
	"please": true, "just": true, "actually": true, "really": true,
	"the": true, "a": true, "an": true, "also": true, "hey": true,
	"hmm": true, "ok": true, "okay": true, "so": true,
	"you": true, "should": true, "must": true, "need": true, "to": true,
}

var negations = map[string]bool{
	"don't": true, "dont": true, "stop": true, "avoid": true, "never": true,
}

const edgePunct = ".,;:!?()[]{}<>'\"`—–-…"

// Normalize case-folds text, maps negations to "never" and "make sure" to
// "always", drops filler words and edge punctuation, and stems tokens.
// Repeating it is a no-op.
func Normalize(text string) string {
	out := normalizePass(text)
	for range 8 {
		next := normalizePass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func normalizePass(text string) string {
	text = strings.ToLower(text)
	text = strings.NewReplacer("’", "'", "‘", "'", "“", " ", "”", " ", "`", " ", `"`, " ").Replace(text)

	var tokens []string
	for _, raw := range strings.Fields(text) {
		tok := raw
		if tok != "." {
			tok = strings.Trim(tok, edgePunct)
		}
		if tok == "" || fillers[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}

	mapped := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok == "do" && i+1 < len(tokens) && tokens[i+1] == "not":
			mapped = append(mapped, polarityNever)
			i++
		case tok == "make" && i+1 < len(tokens) && tokens[i+1] == "sure":
			mapped = append(mapped, polarityAlways)
			i++
		case negations[tok]:
			mapped = append(mapped, polarityNever)
		default:
			mapped = append(mapped, stem(tok))
		}
	}
	return strings.Join(mapped, " ")
}

// stem strips common English suffixes until the token stops changing.
// Every rule shortens the token, so the loop terminates.
func stem(w string) string {
	if w == polarityAlways || w == polarityNever {
		return w
	}
	for {
		next := stemOnce(w)
		if next == w {
			return w
		}
		w = next
	}
}

func stemOnce(w string) string {
	if len(w) <= 3 || !isLetters(w) {
		return w
	}
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "ing"):
		return trimVerbSuffix(w, 3)
	case strings.HasSuffix(w, "ed"):
		return trimVerbSuffix(w, 2)
	case strings.HasSuffix(w, "ss"):
		return w
	case strings.HasSuffix(w, "s"), strings.HasSuffix(w, "e"):
		return w[:len(w)-1]
	}
	return w
}

func trimVerbSuffix(w string, n int) string {
	base := w[:len(w)-n]
	switch {
	case len(base) < 2:
		return w
	case len(base) == 2:
		return base + "e"
	}
	if l := len(base); l > 3 && base[l-1] == base[l-2] && !strings.ContainsRune("lsz", rune(base[l-1])) {
		return base[:l-1]
	}
	return base
}

func isLetters(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Polarity splits a signature into its polarity and the remaining subject.
// Signatures without "never" count as positive.
func Polarity(signature string) (negative bool, subject string) {
	var rest []string
	for _, tok := range strings.Fields(signature) {
		switch tok {
		case polarityNever:
			negative = true
		case polarityAlways:
		default:
			rest = append(rest, tok)
		}
	}
	return negative, strings.Join(rest, " ")
}
