package session

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetCreatesLazily(t *testing.T) {
	start := t.TempDir()
	r := NewRegistry(start)
	assert.Equal(t, 0, r.Len())

	s := r.Get("a")
	assert.Equal(t, "a", s.ID())
	assert.Equal(t, start, s.WorkingDir())
	assert.Same(t, s, r.Get("a"))
	assert.Equal(t, 1, r.Len())

	assert.Equal(t, DefaultID, r.Get("").ID())
	assert.Equal(t, []string{"a", DefaultID}, r.IDs())
}

func TestRegistry_SetWorkingDir(t *testing.T) {
	start := t.TempDir()
	r := NewRegistry(start)

	target := filepath.Join(start, "sub", "..", "sub")
	require.NoError(t, r.SetWorkingDir("s1", target))
	assert.Equal(t, filepath.Join(start, "sub"), r.WorkingDir("s1"))

	// Other sessions are unaffected.
	assert.Equal(t, start, r.WorkingDir("s2"))
}

func TestSession_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s := NewRegistry(t.TempDir()).Get("x")
	require.NoError(t, s.SetWorkingDir("~/work"))
	assert.Equal(t, filepath.Join(home, "work"), s.WorkingDir())

	require.NoError(t, s.SetWorkingDir("~"))
	assert.Equal(t, home, s.WorkingDir())
}

func TestSession_EnvAndReset(t *testing.T) {
	start := t.TempDir()
	s := NewRegistry(start).Get("x")

	s.SetEnv("B", "2")
	s.SetEnv("A", "1")
	v, ok := s.Getenv("A")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, []string{"A=1", "B=2"}, s.Environ())

	env := s.Env()
	env["C"] = "3"
	_, ok = s.Getenv("C")
	assert.False(t, ok, "Env must return a copy")

	s.UnsetEnv("B")
	assert.Equal(t, []string{"A=1"}, s.Environ())

	require.NoError(t, s.SetWorkingDir(filepath.Join(start, "elsewhere")))
	s.Reset()
	assert.Equal(t, start, s.WorkingDir())
	assert.Empty(t, s.Environ())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	start := t.TempDir()
	r := NewRegistry(start)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := r.Get("shared")
			if i%2 == 0 {
				_ = s.SetWorkingDir(start)
				s.SetEnv("K", "v")
			} else {
				_ = s.WorkingDir()
				_ = s.Environ()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, r.Len())
}
