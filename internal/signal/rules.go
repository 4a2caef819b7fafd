package signal

import "regexp"

func rx(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + pattern)
}

// DefaultRules returns the built-in ordered rule list.
//
// Positive acknowledgments come first so that "Great, but ..." is not
// mistaken for a correction of the turn it praises.
func DefaultRules() []Rule {
	return []Rule{
		// Positive acknowledgments.
		{Name: "praise", Kind: KindPositive, Anchored: true,
			Pattern: rx(`(?:perfect|great|excellent|awesome|nice|thanks|thank you|lgtm|looks good)\b`)},
		{Name: "affirm", Kind: KindPositive, Anchored: true,
			Pattern: rx(`(?:yes|yep|yeah|yup|exactly)\b`)},
		{Name: "thats-right", Kind: KindPositive, Anchored: true,
			Pattern: rx(`(?:that's|thats|that is) (?:right|correct|perfect|great|good|it)\b`)},

		// Negation.
		{Name: "interjection", Kind: KindCorrection, Category: CategoryNegation, Anchored: true,
			Pattern: rx(`(?:no|nope|nah|wrong|incorrect)\b[\s,.!:;-]*(.*)$`), Extract: Remainder},
		{Name: "not-that", Kind: KindCorrection, Category: CategoryNegation, Anchored: true,
			Pattern: rx(`(?:that's|thats|that is|this is) (?:not right|not correct|not what i|wrong|incorrect)\b[^,.!:;]*[\s,.!:;-]*(.*)$`), Extract: Remainder},
		{Name: "dont", Kind: KindCorrection, Category: CategoryNegation, Anchored: true,
			Pattern: rx(`(?:don't|dont|do not|stop)\s+\S`), Extract: FromMatch},

		// Instead-of substitution.
		{Name: "use-instead", Kind: KindCorrection, Category: CategorySubstitution,
			Pattern: rx(`\buse\s+\S.*?\s+instead\b`), Extract: Whole},
		{Name: "instead-of", Kind: KindCorrection, Category: CategorySubstitution,
			Pattern: rx(`\binstead of\b`), Extract: Whole},
		{Name: "rather-than", Kind: KindCorrection, Category: CategorySubstitution,
			Pattern: rx(`\brather than\b`), Extract: Whole},

		// Instructional imperative.
		{Name: "always-never", Kind: KindCorrection, Category: CategoryImperative,
			Pattern: rx(`\b(?:always|never)\s+\S`), Extract: FromMatch},
		{Name: "make-sure", Kind: KindCorrection, Category: CategoryImperative,
			Pattern: rx(`\b(?:make sure|remember) (?:to|you)\b`), Extract: FromMatch},
		{Name: "you-should", Kind: KindCorrection, Category: CategoryImperative,
			Pattern: rx(`\byou (?:should|must|need to|have to)\b`), Extract: FromMatch},

		// Preference statement.
		{Name: "i-prefer", Kind: KindCorrection, Category: CategoryPreference,
			Pattern: rx(`\bi(?: (?:prefer|like|want|would prefer|would rather)|'d (?:prefer|rather|like))\b`), Extract: FromMatch},
		{Name: "my-preference", Kind: KindCorrection, Category: CategoryPreference,
			Pattern: rx(`\bmy preference is\b`), Extract: FromMatch},

		// Tone and style complaints.
		{Name: "too-much", Kind: KindCorrection, Category: CategoryTone,
			Pattern: rx(`\btoo (?:verbose|long|wordy|complex|complicated|formal|casual|much detail)\b`), Extract: Whole},
		{Name: "be-concise", Kind: KindCorrection, Category: CategoryTone,
			Pattern: rx(`\b(?:more|be) (?:concise|brief|direct|succinct)\b`), Extract: Whole},
		{Name: "less-verbose", Kind: KindCorrection, Category: CategoryTone,
			Pattern: rx(`\bless (?:verbose|wordy|formal)\b`), Extract: Whole},
		{Name: "no-fluff", Kind: KindCorrection, Category: CategoryTone,
			Pattern: rx(`\bno (?:emojis?|fluff|preamble)\b`), Extract: Whole},
	}
}
