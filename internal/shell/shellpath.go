package shell

import (
	"os"
	"path/filepath"
	"strings"
)

// FallbackShell is used when no candidate shell exists.
const FallbackShell = "/bin/sh"

// shellCandidates are tried in order after $SHELL.
var shellCandidates = []string{
	"/bin/zsh", "/usr/bin/zsh",
	"/bin/bash", "/usr/bin/bash",
	"/bin/fish", "/usr/bin/fish",
	"/bin/sh", "/usr/bin/sh",
}

// PreferredShell picks the shell used for login-shell execution: $SHELL if
// it exists, else the first existing candidate, else FallbackShell.
// getenv and exists are injected so the lookup is testable.
func PreferredShell(getenv func(string) string, exists func(string) bool) string {
	if sh := getenv("SHELL"); sh != "" && exists(sh) {
		return sh
	}
	for _, candidate := range shellCandidates {
		if exists(candidate) {
			return candidate
		}
	}
	return FallbackShell
}

// DetectShell is PreferredShell against the real environment.
func DetectShell() string {
	return PreferredShell(os.Getenv, isExecutable)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}

// ShellArgs returns the arguments that make shell run command. zsh, bash and
// fish are started as login shells.
func ShellArgs(shell, command string) []string {
	switch strings.TrimSuffix(filepath.Base(shell), ".exe") {
	case "zsh", "bash", "fish":
		return []string{"-l", "-c", command}
	default:
		return []string{"-c", command}
	}
}

// Quote makes s safe to embed as one word in a POSIX shell command line.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./=:,+@%", r)
}
