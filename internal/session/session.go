// Package session tracks per-client shell state across tool calls.
//
// Each session id maps to a working directory and a set of environment
// overrides. Sessions are created on first use and live until the process
// exits. The Registry is owned by the caller and injected where needed.
//
// Fields of a single Session are guarded by a mutex, so concurrent access is
// race free. The relative order of a "cd" and a command racing on the same
// session id is not defined.
package session

import (
	"maps"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/shelld/internal/permissions"
)

// DefaultID is used when neither the caller nor the transport supplies an id.
const DefaultID = "default"

// Session holds the state of one client conversation.
type Session struct {
	id         string
	initialDir string

	mu         sync.RWMutex
	workingDir string
	env        map[string]string
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// WorkingDir returns the current working directory.
func (s *Session) WorkingDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workingDir
}

// SetWorkingDir stores path with "~" expanded, made absolute and cleaned.
// Existence is not checked here.
func (s *Session) SetWorkingDir(path string) error {
	expanded, err := permissions.ExpandHome(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.workingDir = filepath.Clean(abs)
	s.mu.Unlock()
	return nil
}

// Reset restores the initial working directory and clears environment overrides.
func (s *Session) Reset() {
	s.mu.Lock()
	s.workingDir = s.initialDir
	s.env = make(map[string]string)
	s.mu.Unlock()
}

// SetEnv sets an environment override applied to every command in the session.
func (s *Session) SetEnv(key, value string) {
	s.mu.Lock()
	s.env[key] = value
	s.mu.Unlock()
}

// UnsetEnv removes an override.
func (s *Session) UnsetEnv(key string) {
	s.mu.Lock()
	delete(s.env, key)
	s.mu.Unlock()
}

// Getenv returns an override and whether it was set.
func (s *Session) Getenv(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.env[key]
	return v, ok
}

// Env returns a copy of the overrides.
func (s *Session) Env() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.env)
}

// Environ returns the overrides as sorted KEY=VALUE pairs.
func (s *Session) Environ() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.env))
	for k, v := range s.env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Registry maps session ids to sessions.
type Registry struct {
	defaultDir string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry whose new sessions start in defaultDir.
func NewRegistry(defaultDir string) *Registry {
	return &Registry{
		defaultDir: filepath.Clean(defaultDir),
		sessions:   make(map[string]*Session),
	}
}

// DefaultDir returns the starting directory of new sessions.
func (r *Registry) DefaultDir() string { return r.defaultDir }

// Get returns the session for id, creating it on first use.
// An empty id maps to DefaultID.
func (r *Registry) Get(id string) *Session {
	if id == "" {
		id = DefaultID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{
			id:         id,
			initialDir: r.defaultDir,
			workingDir: r.defaultDir,
			env:        make(map[string]string),
		}
		r.sessions[id] = s
	}
	return s
}

// WorkingDir returns the working directory of session id.
func (r *Registry) WorkingDir(id string) string {
	return r.Get(id).WorkingDir()
}

// SetWorkingDir updates the working directory of session id.
func (r *Registry) SetWorkingDir(id, path string) error {
	return r.Get(id).SetWorkingDir(path)
}

// Len returns the number of sessions created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// IDs returns the known session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
