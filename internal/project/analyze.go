package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelld/internal/ignore"
	"github.com/fyrsmithlabs/shelld/internal/logging"
)

// ErrNotDirectory is returned when the analyzed path is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// PathChecker reports whether a path may be read. Implementations resolve
// symlinks before deciding.
type PathChecker interface {
	Check(path string) error
}

// Options bound an analysis.
type Options struct {
	// MaxDepth limits how many directory levels below the root are walked.
	MaxDepth int
	// MaxEntries stops the walk after this many files and directories.
	MaxEntries int
	// IgnoreFiles are read in every visited directory.
	IgnoreFiles []string
	// Exclude holds extra gitignore-style patterns.
	Exclude []string
	// Paths, when set, gates manifest reads and git metadata.
	Paths  PathChecker
	Logger *logging.Logger
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{
	MaxDepth:    6,
	MaxEntries:  20000,
	IgnoreFiles: ignore.DefaultFiles,
	Exclude:     []string{".git", "node_modules", "vendor", "__pycache__", ".venv"},
}

// LanguageCount is the number of files of one language.
type LanguageCount struct {
	Language string `json:"language"`
	Files    int    `json:"files"`
}

// Analysis is the summary of one directory tree.
type Analysis struct {
	Root            string          `json:"root"`
	Name            string          `json:"name"`
	Version         string          `json:"version,omitempty"`
	PrimaryLanguage string          `json:"primary_language,omitempty"`
	Languages       []LanguageCount `json:"languages"`
	Manifests       []Manifest      `json:"manifests"`
	Git             *GitInfo        `json:"git,omitempty"`
	Files           int             `json:"files"`
	Dirs            int             `json:"dirs"`
	Truncated       bool            `json:"truncated"`
}

var errStopWalk = errors.New("entry limit reached")

// Analyze walks dir and summarizes it.
func Analyze(ctx context.Context, dir string, opts Options) (*Analysis, error) {
	opts = withDefaults(opts)
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	a := &Analysis{Root: root, Name: filepath.Base(root), Languages: []LanguageCount{}, Manifests: []Manifest{}}
	counts := make(map[string]int)
	matcher := ignore.New(root, opts.IgnoreFiles, opts.Exclude...)
	entries := 0

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
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
			if rel != "." {
				if matcher.Ignored(rel, true) {
					return filepath.SkipDir
				}
				if strings.Count(rel, "/")+1 > opts.MaxDepth {
					a.Truncated = true
					return filepath.SkipDir
				}
				a.Dirs++
			}
			return matcher.Enter(rel)
		}
		if matcher.Ignored(rel, false) {
			return nil
		}

		entries++
		if entries > opts.MaxEntries {
			a.Truncated = true
			return errStopWalk
		}
		a.Files++
		if lang, ok := languageOf(d.Name()); ok {
			counts[lang]++
		}
		if kind, ok := manifestKinds[d.Name()]; ok {
			if err := checkPath(opts.Paths, path); err != nil {
				opts.Logger.Debug(ctx, "skipping manifest contents", zap.String("path", rel), zap.Error(err))
				a.Manifests = append(a.Manifests, Manifest{Path: rel, Ecosystem: kind.ecosystem})
			} else {
				a.Manifests = append(a.Manifests, readManifest(path, rel, kind))
			}
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errStopWalk) {
		return nil, walkErr
	}

	a.Languages = rankLanguages(counts)
	for _, lc := range a.Languages {
		if !markupLanguages[lc.Language] {
			a.PrimaryLanguage = lc.Language
			break
		}
	}
	sort.Slice(a.Manifests, func(i, j int) bool {
		return manifestDepth(a.Manifests[i]) < manifestDepth(a.Manifests[j]) ||
			manifestDepth(a.Manifests[i]) == manifestDepth(a.Manifests[j]) && a.Manifests[i].Path < a.Manifests[j].Path
	})
	for _, m := range a.Manifests {
		if m.Name != "" && !strings.Contains(m.Path, "/") {
			a.Name, a.Version = m.Name, m.Version
			break
		}
	}

	if a.Git, err = readGitInfo(root, opts.Paths); err != nil {
		a.Git = nil
		if errors.Is(err, errRepoNotAllowed) {
			opts.Logger.Debug(ctx, "git metadata withheld", zap.String("root", root), zap.Error(err))
		} else {
			opts.Logger.Warn(ctx, "failed to read git metadata", zap.String("root", root), zap.Error(err))
		}
	}
	return a, nil
}

// Summary renders the analysis as plain text.
func (a *Analysis) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s", a.Name)
	if a.Version != "" {
		fmt.Fprintf(&b, " %s", a.Version)
	}
	fmt.Fprintf(&b, "\nRoot: %s\n", a.Root)
	if a.PrimaryLanguage != "" {
		fmt.Fprintf(&b, "Primary language: %s\n", a.PrimaryLanguage)
	}
	fmt.Fprintf(&b, "Files: %d, directories: %d", a.Files, a.Dirs)
	if a.Truncated {
		b.WriteString(" (walk truncated)")
	}
	b.WriteString("\n")

	if len(a.Languages) > 0 {
		b.WriteString("\nLanguages:\n")
		for _, lc := range a.Languages {
			fmt.Fprintf(&b, "  %-12s %d\n", lc.Language, lc.Files)
		}
	}
	if len(a.Manifests) > 0 {
		b.WriteString("\nManifests:\n")
		for _, m := range a.Manifests {
			line := "  " + m.Path + " (" + m.Ecosystem + ")"
			if m.Name != "" {
				line += " " + m.Name
				if m.Version != "" {
					line += "@" + m.Version
				}
			}
			b.WriteString(line + "\n")
		}
	}
	if g := a.Git; g != nil {
		b.WriteString("\nGit:\n")
		if g.Branch != "" {
			fmt.Fprintf(&b, "  branch: %s\n", g.Branch)
		}
		if g.Head != "" {
			fmt.Fprintf(&b, "  head: %s\n", g.Head)
		}
		fmt.Fprintf(&b, "  dirty: %s\n", strconv.FormatBool(g.Dirty))
		if g.Origin != "" {
			fmt.Fprintf(&b, "  origin: %s\n", g.Origin)
		}
	}
	return b.String()
}

func withDefaults(opts Options) Options {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultOptions.MaxDepth
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultOptions.MaxEntries
	}
	if opts.IgnoreFiles == nil {
		opts.IgnoreFiles = DefaultOptions.IgnoreFiles
	}
	if opts.Exclude == nil {
		opts.Exclude = DefaultOptions.Exclude
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return opts
}

func checkPath(paths PathChecker, path string) error {
	if paths == nil {
		return nil
	}
	return paths.Check(path)
}

func rankLanguages(counts map[string]int) []LanguageCount {
	out := make([]LanguageCount, 0, len(counts))
	for lang, n := range counts {
		out = append(out, LanguageCount{Language: lang, Files: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Files != out[j].Files {
			return out[i].Files > out[j].Files
		}
		return out[i].Language < out[j].Language
	})
	return out
}

func manifestDepth(m Manifest) int {
	return strings.Count(m.Path, "/")
}
