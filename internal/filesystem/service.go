package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/shelld/internal/ignore"
	"github.com/fyrsmithlabs/shelld/internal/permissions"
)

var (
	// ErrNotDirectory is returned when a directory was expected.
	ErrNotDirectory = errors.New("not a directory")
	// ErrIsDirectory is returned when a file was expected.
	ErrIsDirectory = errors.New("is a directory")
	// ErrBinaryFile is returned for files that are not UTF-8 text.
	ErrBinaryFile = errors.New("binary file")
	// ErrInvalidPattern is returned for bad search or include patterns.
	ErrInvalidPattern = errors.New("invalid pattern")
)

// PathChecker reports whether a path may be accessed.
type PathChecker interface {
	Check(path string) error
}

// Config bounds the tools.
type Config struct {
	MaxReadBytes int64
	MaxTreeDepth int
	MaxEntries   int
	MaxMatches   int
	// IgnoreFiles are honored by Tree and Search. Nil means ignore.DefaultFiles;
	// an empty slice disables them.
	IgnoreFiles []string
}

// Service runs the file tools.
type Service struct {
	paths PathChecker
	cfg   Config
}

// New creates a Service. Zero limits take defaults.
func New(paths PathChecker, cfg Config) *Service {
	if cfg.MaxReadBytes <= 0 {
		cfg.MaxReadBytes = 512 << 10
	}
	if cfg.MaxTreeDepth <= 0 {
		cfg.MaxTreeDepth = 3
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = 200
	}
	if cfg.IgnoreFiles == nil {
		cfg.IgnoreFiles = ignore.DefaultFiles
	}
	return &Service{paths: paths, cfg: cfg}
}

// filteredDirs are skipped by Tree and Search unless filtering is disabled.
var filteredDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true, ".venv": true, ".idea": true, ".vscode": true,
	".cache": true, ".pytest_cache": true, ".mypy_cache": true, ".ruff_cache": true, ".tox": true,
	"__pycache__": true, "node_modules": true, "venv": true, "vendor": true,
	"dist": true, "build": true, "target": true, "coverage": true,
}

func isFilteredDir(name string) bool {
	return filteredDirs[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

// resolve expands and cleans path, then checks it with the permission manager.
func (s *Service) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", permissions.ErrPathNotAllowed)
	}
	expanded, err := permissions.ExpandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	if err := s.paths.Check(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func (s *Service) resolveDir(path string) (string, error) {
	dir, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}
	return dir, nil
}
