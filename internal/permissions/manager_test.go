package permissions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tempRoot returns a symlink-free temp dir (macOS puts TempDir under /var -> /private/var).
func tempRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestManager_EmptyDeniesEverything(t *testing.T) {
	m := New()
	assert.False(t, m.IsPathAllowed(tempRoot(t)))
	assert.False(t, m.IsPathAllowed("/"))
}

func TestManager_AllowedRootAndDescendants(t *testing.T) {
	root := tempRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "pkg"), 0o755))

	m := New()
	require.NoError(t, m.AddAllowedPath(root))

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"root itself", root, true},
		{"existing child", filepath.Join(root, "src", "pkg"), true},
		{"missing child", filepath.Join(root, "src", "new.txt"), true},
		{"parent", filepath.Dir(root), false},
		{"dotdot escape", filepath.Join(root, "src", "..", ".."), false},
		{"sibling with shared prefix", root + "-other", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.IsPathAllowed(tt.path))
		})
	}
}

func TestManager_ExclusionWins(t *testing.T) {
	root := tempRoot(t)
	secret := filepath.Join(root, "private")
	require.NoError(t, os.Mkdir(secret, 0o755))

	m := New()
	require.NoError(t, m.AddAllowedPath(root))
	require.NoError(t, m.ExcludePath(secret))

	assert.True(t, m.IsPathAllowed(filepath.Join(root, "public.txt")))
	assert.False(t, m.IsPathAllowed(secret))
	assert.False(t, m.IsPathAllowed(filepath.Join(secret, "keys.txt")))

	err := m.Check(filepath.Join(secret, "keys.txt"))
	require.ErrorIs(t, err, ErrPathNotAllowed)
	assert.Contains(t, err.Error(), "excluded")
}

func TestManager_ExclusionPatterns(t *testing.T) {
	root := tempRoot(t)
	m := New()
	require.NoError(t, m.AddAllowedPath(root))
	require.NoError(t, m.AddExclusionPattern(".env"))
	require.NoError(t, m.AddExclusionPattern("*.pem"))
	require.NoError(t, m.AddExclusionPattern("secret_*"))

	assert.False(t, m.IsPathAllowed(filepath.Join(root, ".env")))
	assert.False(t, m.IsPathAllowed(filepath.Join(root, "certs", "server.pem")))
	assert.False(t, m.IsPathAllowed(filepath.Join(root, "secret_data.txt")))
	assert.False(t, m.IsPathAllowed(filepath.Join(root, ".env", "nested")))
	assert.True(t, m.IsPathAllowed(filepath.Join(root, "env.go")))
	assert.True(t, m.IsPathAllowed(filepath.Join(root, "data.txt")))
}

func TestManager_PatternsIgnoreComponentsAboveRoot(t *testing.T) {
	base := tempRoot(t)
	root := filepath.Join(base, ".git", "worktree")
	require.NoError(t, os.MkdirAll(root, 0o755))

	m := New()
	require.NoError(t, m.AddAllowedPath(root))
	require.NoError(t, m.AddExclusionPattern(".git"))

	assert.True(t, m.IsPathAllowed(filepath.Join(root, "main.go")))
}

func TestManager_InvalidPattern(t *testing.T) {
	m := New()
	assert.Error(t, m.AddExclusionPattern("["))
	assert.Error(t, m.AddExclusionPattern(""))
	assert.Error(t, m.AddExclusionPattern("a/b"))
}

func TestManager_SymlinkEscape(t *testing.T) {
	root := tempRoot(t)
	outside := tempRoot(t)
	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink(outside, link))

	m := New()
	require.NoError(t, m.AddAllowedPath(root))

	assert.False(t, m.IsPathAllowed(link))
	assert.False(t, m.IsPathAllowed(filepath.Join(link, "file-that-does-not-exist")))
}

func TestManager_RemoveAllowedPath(t *testing.T) {
	root := tempRoot(t)
	m := New()
	require.NoError(t, m.AddAllowedPath(root))
	require.NoError(t, m.AddAllowedPath(root))
	assert.Len(t, m.AllowedPaths(), 1)

	require.NoError(t, m.RemoveAllowedPath(root))
	assert.Empty(t, m.AllowedPaths())
	assert.False(t, m.IsPathAllowed(root))
}

func TestManager_HomeExpansion(t *testing.T) {
	home := tempRoot(t)
	t.Setenv("HOME", home)

	m := New()
	require.NoError(t, m.AddAllowedPath("~"))
	assert.True(t, m.IsPathAllowed("~/projects/app"))
	assert.Equal(t, []string{home}, m.AllowedPaths())
}

func TestManager_JSONRoundTrip(t *testing.T) {
	root := tempRoot(t)
	m := New()
	require.NoError(t, m.AddAllowedPath(root))
	require.NoError(t, m.ExcludePath(filepath.Join(root, "tmp")))
	require.NoError(t, m.AddExclusionPattern("*.key"))

	data, err := json.Marshal(m)
	require.NoError(t, err)

	restored := New()
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, m.AllowedPaths(), restored.AllowedPaths())
	assert.Equal(t, m.ExcludedPaths(), restored.ExcludedPaths())
	assert.Equal(t, m.ExclusionPatterns(), restored.ExclusionPatterns())
	assert.False(t, restored.IsPathAllowed(filepath.Join(root, "id.key")))
}

func TestManager_ConcurrentReads(t *testing.T) {
	root := tempRoot(t)
	m := New()
	require.NoError(t, m.AddAllowedPath(root))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.True(t, m.IsPathAllowed(filepath.Join(root, "a")))
			}
		}()
	}
	wg.Wait()
}
