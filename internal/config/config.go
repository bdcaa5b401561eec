// Package config provides configuration loading for shelld.
//
// Configuration is layered: built-in defaults, an optional YAML file and
// SHELLD_* environment variables. Command-line flags are applied on top by
// the caller.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Transport names accepted by ServerConfig.Transport.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Config holds the complete shelld configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Permissions   PermissionsConfig   `koanf:"permissions"`
	Shell         ShellConfig         `koanf:"shell"`
	Files         FilesConfig         `koanf:"files"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
	Secrets       SecretsConfig       `koanf:"secrets"`
}

// ServerConfig holds MCP server and transport configuration.
type ServerConfig struct {
	Name            string   `koanf:"name"`
	Transport       string   `koanf:"transport"`
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PermissionsConfig seeds the path permission manager.
type PermissionsConfig struct {
	AllowedPaths    []string `koanf:"allowed_paths"`
	ExcludedPaths   []string `koanf:"excluded_paths"`
	ExcludePatterns []string `koanf:"exclude_patterns"`
}

// ShellConfig controls command execution policy.
type ShellConfig struct {
	ExcludedCommands []string `koanf:"excluded_commands"`
	// AllowOperators lets commands containing shell operators run through a
	// shell instead of being rejected.
	AllowOperators bool     `koanf:"allow_operators"`
	DefaultTimeout Duration `koanf:"default_timeout"`
	MaxOutputBytes int      `koanf:"max_output_bytes"`
	RateLimit      float64  `koanf:"rate_limit"`
	RateBurst      int      `koanf:"rate_burst"`
}

// FilesConfig bounds the filesystem tools.
type FilesConfig struct {
	MaxReadBytes    int64 `koanf:"max_read_bytes"`
	MaxTreeDepth    int   `koanf:"max_tree_depth"`
	MaxEntries      int   `koanf:"max_entries"`
	MaxMatches      int   `koanf:"max_matches"`
	SkipIgnoreFiles bool  `koanf:"skip_ignore_files"`
}

// LoggingConfig holds the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	Protocol        string `koanf:"protocol"`
	Insecure        bool   `koanf:"insecure"`
}

// SecretsConfig controls scrubbing of tool output.
type SecretsConfig struct {
	DisableScrubbing bool     `koanf:"disable_scrubbing"`
	Gitleaks         bool     `koanf:"gitleaks"`
	AllowList        []string `koanf:"allow_list"`
}

// DefaultExcludedCommands are denied unless explicitly allowed.
var DefaultExcludedCommands = []string{
	"rm", "rmdir", "mv", "cp", "dd", "mkfs", "fdisk", "format",
	"chmod", "chown", "chgrp", "sudo", "su", "passwd", "mkpasswd",
	"ssh", "scp", "sftp", "ftp", "curl", "wget", "nc", "netcat",
	"mount", "umount", "apt", "apt-get", "yum", "dnf", "brew",
	"systemctl", "service",
}

// DefaultExcludePatterns hide credentials and VCS internals from every tool.
var DefaultExcludePatterns = []string{
	".git", ".ssh", ".gnupg", ".env", "*.pem", "*.key", "id_rsa*", "id_ed25519*",
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportSSE:
	default:
		return fmt.Errorf("invalid transport %q (must be %s or %s)", c.Server.Transport, TransportStdio, TransportSSE)
	}

	if c.Server.Name == "" {
		return errors.New("server name is required")
	}

	if c.Server.Transport == TransportSSE && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Shell.DefaultTimeout.Duration() <= 0 {
		return errors.New("shell default timeout must be positive")
	}

	if c.Shell.RateLimit < 0 || c.Shell.RateBurst < 0 {
		return errors.New("shell rate limit and burst cannot be negative")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "shelld"
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = TransportStdio
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Permissions.ExcludePatterns == nil {
		cfg.Permissions.ExcludePatterns = append([]string(nil), DefaultExcludePatterns...)
	}

	if cfg.Shell.ExcludedCommands == nil {
		cfg.Shell.ExcludedCommands = append([]string(nil), DefaultExcludedCommands...)
	}
	if cfg.Shell.DefaultTimeout == 0 {
		cfg.Shell.DefaultTimeout = Duration(60 * time.Second)
	}
	if cfg.Shell.MaxOutputBytes == 0 {
		cfg.Shell.MaxOutputBytes = 1 << 20
	}
	if cfg.Shell.RateLimit == 0 {
		cfg.Shell.RateLimit = 5
	}
	if cfg.Shell.RateBurst == 0 {
		cfg.Shell.RateBurst = 10
	}

	if cfg.Files.MaxReadBytes == 0 {
		cfg.Files.MaxReadBytes = 512 * 1024
	}
	if cfg.Files.MaxTreeDepth == 0 {
		cfg.Files.MaxTreeDepth = 3
	}
	if cfg.Files.MaxEntries == 0 {
		cfg.Files.MaxEntries = 1000
	}
	if cfg.Files.MaxMatches == 0 {
		cfg.Files.MaxMatches = 200
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "shelld"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
}
