package shell

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/shlex"
)

// PolicyError explains why a command was rejected.
type PolicyError struct {
	Err    error // ErrCommandNotAllowed or ErrMalformedCommand
	Reason string
}

func (e *PolicyError) Error() string { return e.Err.Error() + ": " + e.Reason }
func (e *PolicyError) Unwrap() error { return e.Err }

func reject(err error, format string, args ...any) *PolicyError {
	return &PolicyError{Err: err, Reason: fmt.Sprintf(format, args...)}
}

// Command is a parsed command line.
type Command struct {
	Raw   string
	Words []string
	// Operators lists shell control operators found outside single quotes,
	// in order of appearance.
	Operators []string
}

// HasOperators reports whether running the command needs a shell.
func (c Command) HasOperators() bool {
	return len(c.Operators) > 0
}

// IsChangeDir reports whether the command is a bare "cd" or "cd <dir>".
func (c Command) IsChangeDir() bool {
	return !c.HasOperators() && len(c.Words) <= 2 && c.Words[0] == "cd"
}

// Parse splits command into words with POSIX quoting rules and records the
// shell operators it contains.
func Parse(command string) (Command, error) {
	if strings.TrimSpace(command) == "" {
		return Command{}, reject(ErrMalformedCommand, "empty command")
	}
	words, err := shlex.Split(command)
	if err != nil {
		return Command{}, reject(ErrMalformedCommand, "%v", err)
	}
	if len(words) == 0 {
		return Command{}, reject(ErrMalformedCommand, "no words")
	}
	ops := scanOperators(command)
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.text
	}
	return Command{Raw: command, Words: words, Operators: names}, nil
}

// Policy decides which commands may run.
type Policy struct {
	mu             sync.RWMutex
	excluded       map[string]struct{}
	allowOperators bool
}

// NewPolicy creates a policy with the given denylist.
func NewPolicy(excluded []string, allowOperators bool) *Policy {
	p := &Policy{
		excluded:       make(map[string]struct{}, len(excluded)),
		allowOperators: allowOperators,
	}
	for _, name := range excluded {
		if name = strings.TrimSpace(name); name != "" {
			p.excluded[name] = struct{}{}
		}
	}
	return p
}

// Allow removes name from the denylist.
func (p *Policy) Allow(name string) {
	p.mu.Lock()
	delete(p.excluded, name)
	p.mu.Unlock()
}

// Deny adds name to the denylist.
func (p *Policy) Deny(name string) {
	p.mu.Lock()
	p.excluded[name] = struct{}{}
	p.mu.Unlock()
}

// Excluded returns the denylist in sorted order.
func (p *Policy) Excluded() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.excluded))
	for name := range p.excluded {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AllowOperators reports whether the permissive policy is active.
func (p *Policy) AllowOperators() bool {
	return p.allowOperators
}

// IsExcluded reports whether a program name is denied, as written or by basename.
func (p *Policy) IsExcluded(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.excluded[name]; ok {
		return true
	}
	_, ok := p.excluded[filepath.Base(name)]
	return ok
}

// Check parses command and applies the policy. Rejections are *PolicyError
// values wrapping ErrCommandNotAllowed or ErrMalformedCommand.
func (p *Policy) Check(command string) (Command, error) {
	cmd, err := Parse(command)
	if err != nil {
		return Command{}, err
	}

	if cmd.HasOperators() && !p.allowOperators {
		return cmd, reject(ErrCommandNotAllowed, "shell operator %q is not permitted", displayOp(cmd.Operators[0]))
	}

	candidates := programWords(cmd.Words)
	if cmd.HasOperators() {
		candidates = nil
		for _, seg := range segments(command) {
			candidates = append(candidates, programWords(looseWords(seg))...)
		}
	}

	for _, name := range candidates {
		if expandsInShell(name) {
			return cmd, reject(ErrCommandNotAllowed, "program name %q uses shell expansion", name)
		}
		if p.IsExcluded(name) {
			return cmd, reject(ErrCommandNotAllowed, "%q is excluded", name)
		}
	}
	return cmd, nil
}

func displayOp(op string) string {
	if op == "\n" {
		return "newline"
	}
	return op
}

type operator struct {
	text string
	pos  int
	// boundary operators start a new simple command.
	boundary bool
}

// Longest match first.
var unquotedOps = []operator{
	{text: "&&", boundary: true}, {text: "||", boundary: true},
	{text: "<<<"}, {text: "<<"}, {text: ">>"},
	{text: "<(", boundary: true}, {text: ">(", boundary: true},
	{text: "$(", boundary: true}, {text: "${"}, {text: "$"},
	{text: "|", boundary: true}, {text: "&", boundary: true}, {text: ";", boundary: true},
	{text: "<"}, {text: ">"},
	{text: "`", boundary: true},
	{text: "(", boundary: true}, {text: ")", boundary: true},
	{text: "\n", boundary: true},
}

// Expansions that still run inside double quotes.
var doubleQuotedOps = []operator{
	{text: "$(", boundary: true}, {text: "${"}, {text: "$"}, {text: "`", boundary: true},
}

// scanOperators finds shell operators while honoring quoting.
func scanOperators(s string) []operator {
	var (
		found  []operator
		single bool
		double bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case single:
			if c == '\'' {
				single = false
			}
			continue
		case c == '\\':
			i++
			continue
		case double && c == '"':
			double = false
			continue
		case !double && c == '\'':
			single = true
			continue
		case !double && c == '"':
			double = true
			continue
		}

		table := unquotedOps
		if double {
			table = doubleQuotedOps
		}
		for _, op := range table {
			if strings.HasPrefix(s[i:], op.text) {
				op.pos = i
				found = append(found, op)
				i += len(op.text) - 1
				break
			}
		}
	}
	return found
}

// segments splits s at boundary operators. Segments are raw text and may
// carry unbalanced quotes.
func segments(s string) []string {
	var out []string
	start := 0
	for _, op := range scanOperators(s) {
		if !op.boundary {
			continue
		}
		out = append(out, s[start:op.pos])
		start = op.pos + len(op.text)
	}
	return append(out, s[start:])
}

var quoteStripper = strings.NewReplacer(`"`, "", `'`, "", `\`, "")

// looseWords splits a raw segment on whitespace and strips quoting.
func looseWords(seg string) []string {
	fields := strings.Fields(seg)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(quoteStripper.Replace(f), "(){}")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// expandsInShell reports whether a shell would rewrite a program word before
// running it, so the denylist cannot see the final name.
func expandsInShell(word string) bool {
	if word == "[" || word == "[[" {
		return false
	}
	return strings.HasPrefix(word, "~") || strings.ContainsAny(word, "$*?[{`")
}

var (
	assignmentRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)
	redirectionRe = regexp.MustCompile(`^[0-9]*(&>>?|>>?&?|<<?<?|<&|>\|)`)
	numericRe     = regexp.MustCompile(`^[0-9][0-9.]*[smhd]?$`)
)

// wrappers run their arguments as a command.
var wrappers = map[string]bool{
	"builtin": true, "command": true, "doas": true, "env": true, "eval": true,
	"exec": true, "nice": true, "nohup": true, "setsid": true, "stdbuf": true,
	"sudo": true, "time": true, "timeout": true, "xargs": true,
}

// programWords returns the words of a simple command that name programs: any
// wrapper commands followed by the command they run. Redirections,
// variable assignments and wrapper flags are skipped.
func programWords(words []string) []string {
	var out []string
	for i := 0; i < len(words); i++ {
		w := words[i]
		if m := redirectionRe.FindString(w); m != "" {
			if m == w {
				i++ // target is the next word
			}
			continue
		}
		if assignmentRe.MatchString(w) {
			continue
		}
		if len(out) > 0 && (strings.HasPrefix(w, "-") || numericRe.MatchString(w)) {
			continue
		}
		out = append(out, w)
		if !wrappers[filepath.Base(w)] {
			return out
		}
	}
	return out
}
