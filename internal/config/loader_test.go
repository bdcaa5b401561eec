package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the shelld config dir inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "shelld")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, "shelld", cfg.Server.Name)
	assert.Equal(t, TransportStdio, cfg.Server.Transport)
	assert.Equal(t, 60*time.Second, cfg.Shell.DefaultTimeout.Duration())
	assert.False(t, cfg.Shell.AllowOperators)
	assert.Contains(t, cfg.Shell.ExcludedCommands, "rm")
	assert.Contains(t, cfg.Permissions.ExcludePatterns, ".ssh")
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  name: test-shell
  transport: sse
  http_port: 9999
permissions:
  allowed_paths:
    - /srv/project
shell:
  excluded_commands: [rm, dd]
  allow_operators: true
  default_timeout: 5s
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "test-shell", cfg.Server.Name)
	assert.Equal(t, TransportSSE, cfg.Server.Transport)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, []string{"/srv/project"}, cfg.Permissions.AllowedPaths)
	assert.Equal(t, []string{"rm", "dd"}, cfg.Shell.ExcludedCommands)
	assert.True(t, cfg.Shell.AllowOperators)
	assert.Equal(t, 5*time.Second, cfg.Shell.DefaultTimeout.Duration())
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  http_port: 9090
shell:
  default_timeout: 10s
`, 0600)

	t.Setenv("SHELLD_SERVER_HTTP_PORT", "7777")
	t.Setenv("SHELLD_SHELL_DEFAULT_TIMEOUT", "3s")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Shell.DefaultTimeout.Duration())
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  name: x\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_PathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)
	other := filepath.Join(t.TempDir(), "config.yaml")

	_, err := LoadWithFile(other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

func TestLoadWithFile_InvalidTransport(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  transport: carrier-pigeon\n", 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transport")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SHELLD_SERVER_HTTP_PORT":          "server.http_port",
		"SHELLD_SHELL_ALLOW_OPERATORS":     "shell.allow_operators",
		"SHELLD_PERMISSIONS_ALLOWED_PATHS": "permissions.allowed_paths",
		"SHELLD_DEBUG":                     "debug",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad port for sse", mutate: func(c *Config) {
			c.Server.Transport = TransportSSE
			c.Server.Port = 70000
		}, wantErr: "invalid server port"},
		{name: "zero timeout", mutate: func(c *Config) { c.Shell.DefaultTimeout = 0 }, wantErr: "shell default timeout"},
		{name: "negative rate", mutate: func(c *Config) { c.Shell.RateLimit = -1 }, wantErr: "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
