// Package ignore applies gitignore-style rules while walking a directory tree.
package ignore

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultFiles are read in every directory that is entered.
var DefaultFiles = []string{".gitignore", ".ignore"}

// Matcher decides whether paths below a root are ignored. Rules from nested
// ignore files apply only beneath the directory that holds them and take
// precedence over rules from its ancestors.
type Matcher struct {
	root  string
	files []string

	mu       sync.RWMutex
	patterns []gitignore.Pattern
	matcher  gitignore.Matcher
	loaded   map[string]bool
}

// New creates a matcher for root that reads the named ignore files, plus any
// extra patterns given in gitignore syntax.
func New(root string, files []string, extra ...string) *Matcher {
	m := &Matcher{
		root:   root,
		files:  files,
		loaded: make(map[string]bool),
	}
	for _, line := range extra {
		if p := parseLine(line, nil); p != nil {
			m.patterns = append(m.patterns, p)
		}
	}
	m.matcher = gitignore.NewMatcher(m.patterns)
	return m
}

// Enter loads the ignore files of the directory at rel (slash separated,
// relative to the root; "" or "." for the root itself). Entering the same
// directory twice is a no-op.
func (m *Matcher) Enter(rel string) error {
	rel = normalize(rel)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded[rel] {
		return nil
	}
	m.loaded[rel] = true

	domain := split(rel)
	var added []gitignore.Pattern
	for _, name := range m.files {
		path := filepath.Join(m.root, filepath.FromSlash(rel), name)
		ps, err := parseFile(path, domain)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		added = append(added, ps...)
	}
	if len(added) > 0 {
		m.patterns = append(m.patterns, added...)
		m.matcher = gitignore.NewMatcher(m.patterns)
	}
	return nil
}

// Ignored reports whether rel is excluded.
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	rel = normalize(rel)
	if rel == "" {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.matcher.Match(split(rel), isDir)
}

func parseFile(path string, domain []string) ([]gitignore.Pattern, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if p := parseLine(scanner.Text(), domain); p != nil {
			patterns = append(patterns, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// parseLine returns nil for blank lines and comments.
func parseLine(line string, domain []string) gitignore.Pattern {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	return gitignore.ParsePattern(line, domain)
}

func normalize(rel string) string {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "." {
		return ""
	}
	return rel
}

func split(rel string) []string {
	if rel == "" {
		return nil
	}
	return strings.Split(rel, "/")
}
