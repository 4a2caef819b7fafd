package secrets

// DefaultRules returns the built-in detection rules. Provider prefixes are
// self-identifying; generic assignments need a keyword nearby.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "aws-access-key-id", Pattern: `\b(?:A3T[A-Z0-9]|AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}\b`},
		{ID: "github-token", Pattern: `\bgh[pousr]_[A-Za-z0-9]{36,}\b`},
		{ID: "github-fine-grained", Pattern: `\bgithub_pat_[A-Za-z0-9_]{60,}\b`},
		{ID: "gitlab-token", Pattern: `\bglpat-[A-Za-z0-9_\-]{20}\b`},
		{ID: "anthropic-key", Pattern: `\bsk-ant-[A-Za-z0-9_\-]{20,}`},
		{ID: "openai-key", Pattern: `\bsk-(?:proj-)?[A-Za-z0-9]{32,}\b`},
		{ID: "slack-token", Pattern: `\bxox[baprs]-[A-Za-z0-9-]{10,}`},
		{ID: "private-key", Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`},
		{ID: "bearer-token", Pattern: `(?i)\bbearer\s+[A-Za-z0-9_\-.=]{20,}`, Keywords: []string{"bearer"}},
		{
			ID:       "generic-api-key",
			Pattern:  `(?i)(?:api[_-]?key|apikey|access[_-]?token)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
			Keywords: []string{"key", "token"},
		},
		{
			ID:       "generic-secret",
			Pattern:  `(?i)(?:secret|password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords: []string{"secret", "password", "passwd", "pwd"},
		},
	}
}
