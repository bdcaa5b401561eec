package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/shelld/internal/logging"
	"github.com/fyrsmithlabs/shelld/internal/permissions"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func sampleTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/widget\n\ngo 1.24\n")
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "internal/util/util.go", "package util\n")
	writeFile(t, root, "README.md", "# widget\n")
	writeFile(t, root, "scripts/build.sh", "#!/bin/sh\n")
	writeFile(t, root, "web/package.json", `{"name": "widget-web", "version": "0.3.1"}`)
	writeFile(t, root, "web/app.ts", "export {}\n")
	writeFile(t, root, ".gitignore", "build/\n")
	writeFile(t, root, "build/generated.go", "package build\n")
	writeFile(t, root, "node_modules/dep/index.js", "module.exports = 1\n")
	return root
}

func TestAnalyze(t *testing.T) {
	root := sampleTree(t)

	a, err := Analyze(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, "example.com/widget", a.Name)
	assert.Equal(t, "Go", a.PrimaryLanguage)
	assert.Equal(t, LanguageCount{Language: "Go", Files: 2}, a.Languages[0])
	assert.Contains(t, a.Languages, LanguageCount{Language: "TypeScript", Files: 1})
	assert.Contains(t, a.Languages, LanguageCount{Language: "Shell", Files: 1})
	assert.NotContains(t, a.Languages, LanguageCount{Language: "JavaScript", Files: 1})
	assert.False(t, a.Truncated)
	assert.Nil(t, a.Git)

	require.Len(t, a.Manifests, 2)
	assert.Equal(t, Manifest{Path: "go.mod", Ecosystem: "go", Name: "example.com/widget"}, a.Manifests[0])
	assert.Equal(t, Manifest{Path: "web/package.json", Ecosystem: "npm", Name: "widget-web", Version: "0.3.1"}, a.Manifests[1])

	summary := a.Summary()
	assert.Contains(t, summary, "Project: example.com/widget")
	assert.Contains(t, summary, "web/package.json (npm) widget-web@0.3.1")
}

func TestAnalyze_TOMLManifests(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Cargo.toml", "[package]\nname = \"crab\"\nversion = \"1.2.0\"\n")
	writeFile(t, root, "src/main.rs", "fn main() {}\n")
	writeFile(t, root, "py/pyproject.toml", "[tool.poetry]\nname = \"snake\"\nversion = \"0.1.0\"\n")
	writeFile(t, root, "py/broken/pyproject.toml", "this is = not [toml")

	a, err := Analyze(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, "crab", a.Name)
	assert.Equal(t, "1.2.0", a.Version)
	assert.Equal(t, "Rust", a.PrimaryLanguage)
	require.Len(t, a.Manifests, 3)
	assert.Equal(t, "snake", a.Manifests[1].Name)
	assert.Equal(t, Manifest{Path: "py/broken/pyproject.toml", Ecosystem: "python"}, a.Manifests[2])
}

func TestAnalyze_Bounds(t *testing.T) {
	root := sampleTree(t)

	a, err := Analyze(context.Background(), root, Options{MaxEntries: 2})
	require.NoError(t, err)
	assert.True(t, a.Truncated)
	assert.Equal(t, 2, a.Files)

	a, err = Analyze(context.Background(), root, Options{MaxDepth: 1})
	require.NoError(t, err)
	assert.True(t, a.Truncated)
	assert.Equal(t, LanguageCount{Language: "Go", Files: 1}, a.Languages[0])
}

func TestAnalyze_Errors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file.txt", "x")

	_, err := Analyze(context.Background(), filepath.Join(root, "file.txt"), Options{})
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = Analyze(context.Background(), filepath.Join(root, "missing"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Analyze(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func allowOnly(t *testing.T, dirs ...string) *permissions.Manager {
	t.Helper()
	pm := permissions.New()
	for _, d := range dirs {
		require.NoError(t, pm.AddAllowedPath(d))
	}
	return pm
}

func TestAnalyze_SymlinkedManifestOutsideAllowedPaths(t *testing.T) {
	base := t.TempDir()
	project := filepath.Join(base, "project")
	private := filepath.Join(base, "private")
	writeFile(t, project, "index.ts", "export {}\n")
	writeFile(t, private, "package.json", `{"name": "private-pkg", "version": "9.9.9"}`)
	if err := os.Symlink(filepath.Join(private, "package.json"), filepath.Join(project, "package.json")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	log := logging.NewTestLogger()

	a, err := Analyze(context.Background(), project, Options{Paths: allowOnly(t, project), Logger: log.Logger})
	require.NoError(t, err)
	require.Len(t, a.Manifests, 1)
	assert.Equal(t, Manifest{Path: "package.json", Ecosystem: "npm"}, a.Manifests[0])
	assert.Equal(t, "project", a.Name)
	assert.NotContains(t, a.Summary(), "private-pkg")
	log.AssertLogged(t, zapcore.DebugLevel, "skipping manifest contents")

	a, err = Analyze(context.Background(), project, Options{Paths: allowOnly(t, base)})
	require.NoError(t, err)
	assert.Equal(t, "private-pkg", a.Manifests[0].Name)
}

func initRepo(t *testing.T, root string) plumbing.Hash {
	t.Helper()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{"https://example.com/widget.git"}})
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.go")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash
}

func TestAnalyze_GitParentOutsideAllowedPaths(t *testing.T) {
	root := sampleTree(t)
	initRepo(t, root)
	sub := filepath.Join(root, "internal")
	log := logging.NewTestLogger()

	a, err := Analyze(context.Background(), sub, Options{Paths: allowOnly(t, sub), Logger: log.Logger})
	require.NoError(t, err)
	assert.Nil(t, a.Git)
	assert.NotContains(t, a.Summary(), "example.com/widget.git")
	log.AssertLogged(t, zapcore.DebugLevel, "git metadata withheld")

	a, err = Analyze(context.Background(), sub, Options{Paths: allowOnly(t, root)})
	require.NoError(t, err)
	require.NotNil(t, a.Git)
	assert.Equal(t, "https://example.com/widget.git", a.Git.Origin)
}

func TestAnalyze_GitErrorIsLogged(t *testing.T) {
	root := sampleTree(t)
	writeFile(t, root, ".git", "not a gitdir pointer\n")
	log := logging.NewTestLogger()

	a, err := Analyze(context.Background(), root, Options{Logger: log.Logger})
	require.NoError(t, err)
	assert.Nil(t, a.Git)
	log.AssertLogged(t, zapcore.WarnLevel, "failed to read git metadata")
}

func TestAnalyze_Git(t *testing.T) {
	root := sampleTree(t)
	hash := initRepo(t, root)

	a, err := Analyze(context.Background(), filepath.Join(root, "internal"), Options{})
	require.NoError(t, err)
	require.NotNil(t, a.Git)
	assert.Equal(t, hash.String(), a.Git.Head)
	assert.NotEmpty(t, a.Git.Branch)
	assert.True(t, a.Git.Dirty)
	assert.Equal(t, "https://example.com/widget.git", a.Git.Origin)
}
