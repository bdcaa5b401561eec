package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/shelld/internal/ignore"
)

// Match is one matching line.
type Match struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// SearchResult holds matches in walk order.
type SearchResult struct {
	Pattern   string  `json:"pattern"`
	Root      string  `json:"root"`
	Include   string  `json:"include"`
	Matches   []Match `json:"matches"`
	Files     int     `json:"files"`
	Truncated bool    `json:"truncated"`
}

const maxLineBytes = 1 << 20

var errEnoughMatches = errors.New("match limit reached")

// Search finds lines matching the regular expression pattern in files under
// path (or in path itself when it is a file). include is a glob applied to
// file names; empty means every file. Binary files are skipped.
func (s *Service) Search(ctx context.Context, pattern, path, include string) (*SearchResult, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	if include == "" {
		include = "*"
	}
	if _, err := filepath.Match(include, ""); err != nil {
		return nil, fmt.Errorf("%w: include %q: %v", ErrInvalidPattern, include, err)
	}

	root, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	res := &SearchResult{Pattern: pattern, Root: root, Include: include, Matches: []Match{}}
	files := make(map[string]bool)
	record := func(file string, line int, text string) error {
		if len(res.Matches) >= s.cfg.MaxMatches {
			res.Truncated = true
			return errEnoughMatches
		}
		res.Matches = append(res.Matches, Match{Path: file, Line: line, Text: text})
		files[file] = true
		return nil
	}

	if !info.IsDir() {
		err = s.searchFile(re, root, record)
	} else {
		err = s.searchDir(ctx, re, root, include, record)
	}
	if err != nil && !errors.Is(err, errEnoughMatches) {
		return nil, err
	}
	res.Files = len(files)
	return res, nil
}

func (s *Service) searchDir(ctx context.Context, re *regexp.Regexp, root, include string, record func(string, int, string) error) error {
	matcher := ignore.New(root, s.cfg.IgnoreFiles)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return matcher.Enter("")
			}
			if isFilteredDir(d.Name()) || matcher.Ignored(rel, true) || s.paths.Check(path) != nil {
				return filepath.SkipDir
			}
			return matcher.Enter(rel)
		}
		if !d.Type().IsRegular() || matcher.Ignored(rel, false) || s.paths.Check(path) != nil {
			return nil
		}
		if ok, _ := filepath.Match(include, d.Name()); !ok {
			return nil
		}
		return s.searchFile(re, path, record)
	})
}

// searchFile scans one file. Unreadable, oversized and binary files are
// skipped without error.
func (s *Service) searchFile(re *regexp.Regexp, path string, record func(string, int, string) error) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() > s.cfg.MaxReadBytes*4 {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if head, _ := r.Peek(8000); bytes.IndexByte(head, 0) >= 0 {
		return nil
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)
	for n := 1; sc.Scan(); n++ {
		line := sc.Bytes()
		if !re.Match(line) {
			continue
		}
		if !utf8.Valid(line) {
			return nil
		}
		if err := record(path, n, string(line)); err != nil {
			return err
		}
	}
	return nil
}

// Format renders matches as path:line:text lines under a count header.
func (r *SearchResult) Format() string {
	if len(r.Matches) == 0 {
		return "No matches found for pattern '" + r.Pattern + "' in files matching '" + r.Include + "' in " + r.Root
	}
	var b strings.Builder
	plural := "s"
	if r.Files == 1 {
		plural = ""
	}
	fmt.Fprintf(&b, "Found %d matches in %d file%s:\n\n", len(r.Matches), r.Files, plural)
	for _, m := range r.Matches {
		b.WriteString(m.Path + ":" + strconv.Itoa(m.Line) + ":" + m.Text + "\n")
	}
	if r.Truncated {
		b.WriteString("\nResults truncated at the match limit.")
	}
	return strings.TrimRight(b.String(), "\n")
}
