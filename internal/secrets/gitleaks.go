package secrets

import (
	"fmt"
	"regexp"
	"strings"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksregexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// gitleaksDetector runs the gitleaks default rule set. The parsed config is
// shared; each scan gets a fresh Detector because Detector accumulates state.
type gitleaksDetector struct {
	cfg gitleaksconfig.Config
}

type gitleaksHit struct {
	start, end int
	ruleID     string
}

func newGitleaksDetector(allow []*regexp.Regexp) (*gitleaksDetector, error) {
	base, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("load gitleaks rules: %w", err)
	}
	cfg := base.Config
	if len(allow) > 0 {
		al := &gitleaksconfig.Allowlist{Description: "shelld allow list"}
		for _, re := range allow {
			al.Regexes = append(al.Regexes, (*gitleaksregexp.Regexp)(re))
		}
		cfg.Allowlists = append(cfg.Allowlists, al)
	}
	return &gitleaksDetector{cfg: cfg}, nil
}

// find returns the byte ranges of every occurrence of each reported secret.
func (g *gitleaksDetector) find(content string) []gitleaksHit {
	d := detect.NewDetector(g.cfg)
	var hits []gitleaksHit
	for _, f := range d.DetectString(content) {
		if f.Secret == "" {
			continue
		}
		for off := 0; ; {
			i := strings.Index(content[off:], f.Secret)
			if i < 0 {
				break
			}
			start := off + i
			hits = append(hits, gitleaksHit{start: start, end: start + len(f.Secret), ruleID: f.RuleID})
			off = start + len(f.Secret)
		}
	}
	return hits
}
