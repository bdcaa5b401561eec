package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func stubEnv(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func stubExists(paths ...string) func(string) bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return func(p string) bool { return set[p] }
}

func TestPreferredShell(t *testing.T) {
	t.Run("uses SHELL when it exists", func(t *testing.T) {
		got := PreferredShell(stubEnv(map[string]string{"SHELL": "/usr/local/bin/fish"}), stubExists("/usr/local/bin/fish", "/bin/bash"))
		assert.Equal(t, "/usr/local/bin/fish", got)
	})
	t.Run("ignores missing SHELL", func(t *testing.T) {
		got := PreferredShell(stubEnv(map[string]string{"SHELL": "/nope/zsh"}), stubExists("/usr/bin/bash"))
		assert.Equal(t, "/usr/bin/bash", got)
	})
	t.Run("prefers zsh over bash", func(t *testing.T) {
		got := PreferredShell(stubEnv(nil), stubExists("/bin/bash", "/bin/zsh"))
		assert.Equal(t, "/bin/zsh", got)
	})
	t.Run("falls back", func(t *testing.T) {
		assert.Equal(t, FallbackShell, PreferredShell(stubEnv(nil), stubExists()))
	})
}

func TestShellArgs(t *testing.T) {
	assert.Equal(t, []string{"-l", "-c", "ls"}, ShellArgs("/bin/zsh", "ls"))
	assert.Equal(t, []string{"-l", "-c", "ls"}, ShellArgs("/usr/bin/bash", "ls"))
	assert.Equal(t, []string{"-l", "-c", "ls"}, ShellArgs("/opt/homebrew/bin/fish", "ls"))
	assert.Equal(t, []string{"-c", "ls"}, ShellArgs("/bin/sh", "ls"))
	assert.Equal(t, []string{"-c", "ls"}, ShellArgs("/bin/dash", "ls"))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "''", Quote(""))
	assert.Equal(t, "/tmp/shelld-1.py", Quote("/tmp/shelld-1.py"))
	assert.Equal(t, "'hello world'", Quote("hello world"))
	assert.Equal(t, `'it'\''s'`, Quote("it's"))
	assert.Equal(t, "'$HOME'", Quote("$HOME"))
}
