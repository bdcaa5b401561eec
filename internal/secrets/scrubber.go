package secrets

import (
	"regexp"
	"sort"
	"strings"
)

// Scrubber redacts secrets from text. Implementations are safe for
// concurrent use.
type Scrubber interface {
	Scrub(content string) Result
	Enabled() bool
}

// Result is scrubbed text plus what was found. Finding values never carry
// the secret itself.
type Result struct {
	Text     string
	Findings []Finding
}

// Finding locates one redacted secret.
type Finding struct {
	RuleID string
	Line   int
	Source string // "regex" or "gitleaks"
}

// Redacted reports whether anything was replaced.
func (r Result) Redacted() bool { return len(r.Findings) > 0 }

// RuleIDs returns the distinct rule ids that matched, sorted.
func (r Result) RuleIDs() []string {
	seen := make(map[string]struct{}, len(r.Findings))
	ids := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		if _, ok := seen[f.RuleID]; !ok {
			seen[f.RuleID] = struct{}{}
			ids = append(ids, f.RuleID)
		}
	}
	sort.Strings(ids)
	return ids
}

type span struct {
	start, end int
}

type scrubber struct {
	redaction string
	rules     []compiledRule
	allow     []*regexp.Regexp
	deep      *gitleaksDetector
}

// New builds a Scrubber from cfg. A disabled config yields a Noop scrubber.
func New(cfg Config) (Scrubber, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	if cfg.Redaction == "" {
		cfg.Redaction = DefaultRedaction
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	rules, err := compileRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	allow, err := compileAllowList(cfg.AllowList)
	if err != nil {
		return nil, err
	}
	s := &scrubber{redaction: cfg.Redaction, rules: rules, allow: allow}
	if cfg.Gitleaks {
		if s.deep, err = newGitleaksDetector(allow); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *scrubber) Enabled() bool { return true }

func (s *scrubber) Scrub(content string) Result {
	if content == "" {
		return Result{}
	}
	var (
		spans    []span
		findings []Finding
	)
	add := func(start, end int, ruleID, source string) {
		if start >= end || s.allowed(content[start:end]) {
			return
		}
		spans = append(spans, span{start, end})
		findings = append(findings, Finding{
			RuleID: ruleID,
			Line:   strings.Count(content[:start], "\n") + 1,
			Source: source,
		})
	}

	for _, r := range s.rules {
		if !r.gated(content) {
			continue
		}
		for _, m := range r.pattern.FindAllStringIndex(content, -1) {
			add(m[0], m[1], r.id, "regex")
		}
	}
	if s.deep != nil {
		for _, hit := range s.deep.find(content) {
			add(hit.start, hit.end, hit.ruleID, "gitleaks")
		}
	}

	if len(spans) == 0 {
		return Result{Text: content}
	}
	return Result{Text: redact(content, spans, s.redaction), Findings: findings}
}

func (s *scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// redact replaces the union of spans, merging overlapping or touching ones.
func redact(content string, spans []span, marker string) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for i := 0; i < len(spans); {
		start, end := spans[i].start, spans[i].end
		for i++; i < len(spans) && spans[i].start <= end; i++ {
			end = max(end, spans[i].end)
		}
		b.WriteString(content[pos:start])
		b.WriteString(marker)
		pos = end
	}
	b.WriteString(content[pos:])
	return b.String()
}

// Noop returns content unchanged.
type Noop struct{}

// Scrub implements Scrubber.
func (Noop) Scrub(content string) Result { return Result{Text: content} }

// Enabled implements Scrubber.
func (Noop) Enabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = Noop{}
)
