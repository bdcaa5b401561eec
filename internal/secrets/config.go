package secrets

import (
	"fmt"
	"regexp"
)

// DefaultRedaction replaces every detected secret.
const DefaultRedaction = "[REDACTED]"

// Config configures a Scrubber.
type Config struct {
	// Enabled turns scrubbing on. A disabled scrubber returns input unchanged.
	Enabled bool

	// Gitleaks adds the gitleaks default rule set as a second pass.
	Gitleaks bool

	// Redaction replaces each secret. Defaults to DefaultRedaction.
	Redaction string

	// Rules are the regular expression rules. Nil means DefaultRules.
	Rules []Rule

	// AllowList holds patterns for matches that must be left alone.
	AllowList []string
}

// Rule is one regular expression detector.
type Rule struct {
	ID      string
	Pattern string
	// Keywords gate the rule: when set, at least one must appear
	// (case-insensitively) in the input before the pattern is tried.
	Keywords []string
}

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// DefaultConfig enables the regex pass with the default rules.
func DefaultConfig() Config {
	return Config{Enabled: true, Redaction: DefaultRedaction}
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: %w: id is required", i, ErrInvalidRule)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil || r.Pattern == "" {
			return nil, fmt.Errorf("rule %s: %w: bad pattern %q", r.ID, ErrInvalidRule, r.Pattern)
		}
		cr := compiledRule{id: r.ID, pattern: re}
		for _, kw := range r.Keywords {
			cr.keywords = append(cr.keywords, regexp.MustCompile("(?i)"+regexp.QuoteMeta(kw)))
		}
		out = append(out, cr)
	}
	return out, nil
}

func compileAllowList(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: allow list entry %q: %v", ErrInvalidRule, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// gated reports whether the rule's keywords permit it to run on content.
func (r compiledRule) gated(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}
