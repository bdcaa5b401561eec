package permissions

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// ErrPathNotAllowed is returned by Check when a path is outside every
// allowed root or matches an exclusion.
var ErrPathNotAllowed = errors.New("path not allowed")

// Manager tracks allowed and excluded filesystem locations.
type Manager struct {
	mu       sync.RWMutex
	allowed  []string
	excluded []string
	patterns []string
}

// New returns an empty Manager. With no allowed roots every path is denied.
func New() *Manager {
	return &Manager{}
}

// AddAllowedPath adds path and everything beneath it to the allowed set.
func (m *Manager) AddAllowedPath(path string) error {
	resolved, err := Resolve(path)
	if err != nil {
		return fmt.Errorf("add allowed path: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.allowed, resolved) {
		m.allowed = append(m.allowed, resolved)
	}
	return nil
}

// RemoveAllowedPath removes a previously allowed root. Unknown paths are ignored.
func (m *Manager) RemoveAllowedPath(path string) error {
	resolved, err := Resolve(path)
	if err != nil {
		return fmt.Errorf("remove allowed path: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowed = slices.DeleteFunc(m.allowed, func(p string) bool { return p == resolved })
	return nil
}

// ExcludePath denies path and everything beneath it, even inside an allowed root.
func (m *Manager) ExcludePath(path string) error {
	resolved, err := Resolve(path)
	if err != nil {
		return fmt.Errorf("exclude path: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.excluded, resolved) {
		m.excluded = append(m.excluded, resolved)
	}
	return nil
}

// AddExclusionPattern denies any path with a component matching the glob
// pattern, e.g. ".env" or "*.pem".
func (m *Manager) AddExclusionPattern(pattern string) error {
	if pattern == "" || strings.ContainsRune(pattern, filepath.Separator) {
		return fmt.Errorf("invalid exclusion pattern %q: must be a single path component", pattern)
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid exclusion pattern %q: %w", pattern, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.patterns, pattern) {
		m.patterns = append(m.patterns, pattern)
	}
	return nil
}

// IsPathAllowed reports whether tools may access path.
func (m *Manager) IsPathAllowed(path string) bool {
	return m.Check(path) == nil
}

// Check is IsPathAllowed with a reason. Denials wrap ErrPathNotAllowed.
func (m *Manager) Check(path string) error {
	resolved, err := Resolve(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPathNotAllowed, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ex := range m.excluded {
		if _, ok := within(ex, resolved); ok {
			return fmt.Errorf("%w: %s is excluded", ErrPathNotAllowed, resolved)
		}
	}

	for _, root := range m.allowed {
		rel, ok := within(root, resolved)
		if !ok {
			continue
		}
		if name, hit := m.matchPattern(rel); hit {
			return fmt.Errorf("%w: %s matches excluded name %q", ErrPathNotAllowed, resolved, name)
		}
		return nil
	}

	return fmt.Errorf("%w: %s is outside allowed paths", ErrPathNotAllowed, resolved)
}

// matchPattern checks the components of rel (relative to an allowed root).
// Components above the root are not considered. Caller holds m.mu.
func (m *Manager) matchPattern(rel string) (string, bool) {
	if rel == "." || len(m.patterns) == 0 {
		return "", false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		for _, p := range m.patterns {
			if ok, _ := filepath.Match(p, part); ok {
				return part, true
			}
		}
	}
	return "", false
}

// AllowedPaths returns a copy of the allowed roots.
func (m *Manager) AllowedPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.allowed)
}

// ExcludedPaths returns a copy of the excluded paths.
func (m *Manager) ExcludedPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.excluded)
}

// ExclusionPatterns returns a copy of the exclusion patterns.
func (m *Manager) ExclusionPatterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.patterns)
}

type snapshot struct {
	AllowedPaths      []string `json:"allowed_paths"`
	ExcludedPaths     []string `json:"excluded_paths"`
	ExclusionPatterns []string `json:"exclusion_patterns"`
}

// MarshalJSON implements json.Marshaler.
func (m *Manager) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(snapshot{
		AllowedPaths:      nonNil(m.allowed),
		ExcludedPaths:     nonNil(m.excluded),
		ExclusionPatterns: nonNil(m.patterns),
	})
}

// UnmarshalJSON implements json.Unmarshaler. Entries are re-resolved.
func (m *Manager) UnmarshalJSON(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode permissions: %w", err)
	}
	fresh := New()
	for _, p := range s.AllowedPaths {
		if err := fresh.AddAllowedPath(p); err != nil {
			return err
		}
	}
	for _, p := range s.ExcludedPaths {
		if err := fresh.ExcludePath(p); err != nil {
			return err
		}
	}
	for _, p := range s.ExclusionPatterns {
		if err := fresh.AddExclusionPattern(p); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowed, m.excluded, m.patterns = fresh.allowed, fresh.excluded, fresh.patterns
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
