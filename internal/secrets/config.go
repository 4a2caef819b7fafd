package secrets

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// ErrInvalidAllowList is returned when an allowlist file cannot be decoded.
var ErrInvalidAllowList = errors.New("invalid allowlist file")

// Config configures the scrubber.
type Config struct {
	Enabled         bool     `koanf:"enabled"`
	RedactionString string   `koanf:"redaction_string"`
	Rules           []Rule   `koanf:"rules"`
	AllowList       []string `koanf:"allow_list"`

	compiledRules     []*compiledRule
	compiledAllowList []*regexp.Regexp
}

// Rule defines one detection pattern. When Keywords is set, the pattern is
// only tried on content containing at least one keyword.
type Rule struct {
	ID       string   `koanf:"id"`
	Pattern  string   `koanf:"pattern"`
	Keywords []string `koanf:"keywords"`
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// DefaultConfig returns an enabled config with the built-in rules.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		RedactionString: "[REDACTED]",
		Rules:           DefaultRules(),
	}
}

// Validate compiles rules and allowlist patterns.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RedactionString == "" {
		c.RedactionString = "[REDACTED]"
	}

	c.compiledRules = make([]*compiledRule, 0, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule %d: id is required", i)
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}
		cr := &compiledRule{Rule: rule, pattern: pattern}
		for _, kw := range rule.Keywords {
			cr.keywords = append(cr.keywords, regexp.MustCompile("(?i)"+regexp.QuoteMeta(kw)))
		}
		c.compiledRules = append(c.compiledRules, cr)
	}

	c.compiledAllowList = make([]*regexp.Regexp, 0, len(c.AllowList))
	for i, pattern := range c.AllowList {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("allow_list %d: invalid pattern: %w", i, err)
		}
		c.compiledAllowList = append(c.compiledAllowList, re)
	}
	return nil
}

// LoadAllowList appends the regexes from a gitleaks-style TOML file:
//
//	[allowlist]
//	regexes = ['''EXAMPLE_KEY''']
//
// A missing file is not an error.
func (c *Config) LoadAllowList(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	var file struct {
		Allowlist struct {
			Regexes []string `toml:"regexes"`
		} `toml:"allowlist"`
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidAllowList, path, err)
	}
	for _, re := range file.Allowlist.Regexes {
		if _, err := regexp.Compile(re); err != nil {
			return fmt.Errorf("%w: %s: regex %q: %v", ErrInvalidAllowList, path, re, err)
		}
	}
	c.AllowList = append(c.AllowList, file.Allowlist.Regexes...)
	return nil
}
