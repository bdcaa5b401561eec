package main

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/shelld/internal/config"
	"github.com/fyrsmithlabs/shelld/internal/filesystem"
	"github.com/fyrsmithlabs/shelld/internal/logging"
	"github.com/fyrsmithlabs/shelld/internal/mcp"
	"github.com/fyrsmithlabs/shelld/internal/permissions"
	"github.com/fyrsmithlabs/shelld/internal/secrets"
	"github.com/fyrsmithlabs/shelld/internal/session"
	"github.com/fyrsmithlabs/shelld/internal/shell"
	"github.com/fyrsmithlabs/shelld/internal/telemetry"
)

// dependencies holds the wired service graph.
type dependencies struct {
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	paths     *permissions.Manager
	sessions  *session.Registry
	executor  *shell.Executor
	files     *filesystem.Service
	scrubber  secrets.Scrubber
	mcp       *mcp.Server
}

// Close flushes telemetry and logs.
func (d *dependencies) Close() {
	if d.telemetry != nil {
		_ = d.telemetry.Shutdown(context.Background())
	}
	if d.logger != nil {
		_ = d.logger.Sync() // Best-effort sync
	}
}

// initDependencies builds every service from cfg.
//
// Order matters: telemetry first so the logger can bridge to it, then the
// permission manager that the executor and file tools share.
func initDependencies(ctx context.Context, cfg *config.Config, opts *serveOptions) (*dependencies, error) {
	deps := &dependencies{}

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	deps.telemetry = tel

	logCfg, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		deps.Close()
		return nil, err
	}
	logCfg.OTEL = tel.LoggerProvider() != nil
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	deps.logger = logger

	deps.paths, err = newPermissions(cfg.Permissions)
	if err != nil {
		deps.Close()
		return nil, err
	}

	defaultDir := opts.projectDir
	if defaultDir == "" {
		if len(cfg.Permissions.AllowedPaths) == 0 {
			deps.Close()
			return nil, fmt.Errorf("at least one allowed path is required")
		}
		defaultDir = cfg.Permissions.AllowedPaths[0]
	}
	if defaultDir, err = permissions.Resolve(defaultDir); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	deps.sessions = session.NewRegistry(defaultDir)

	deps.executor = shell.NewExecutor(shell.Config{
		ExcludedCommands: cfg.Shell.ExcludedCommands,
		AllowOperators:   cfg.Shell.AllowOperators,
		DefaultTimeout:   cfg.Shell.DefaultTimeout.Duration(),
		MaxOutputBytes:   cfg.Shell.MaxOutputBytes,
	}, deps.paths, deps.sessions,
		shell.WithLogger(logger),
		shell.WithMetrics(shell.NewMetrics()),
	)
	for _, name := range opts.allowCommands {
		deps.executor.AllowCommand(name)
	}

	filesCfg := filesystem.Config{
		MaxReadBytes: cfg.Files.MaxReadBytes,
		MaxTreeDepth: cfg.Files.MaxTreeDepth,
		MaxEntries:   cfg.Files.MaxEntries,
		MaxMatches:   cfg.Files.MaxMatches,
	}
	if cfg.Files.SkipIgnoreFiles {
		filesCfg.IgnoreFiles = []string{}
	}
	deps.files = filesystem.New(deps.paths, filesCfg)

	deps.scrubber, err = secrets.New(secrets.Config{
		Enabled:   !cfg.Secrets.DisableScrubbing,
		Gitleaks:  cfg.Secrets.Gitleaks,
		Redaction: secrets.DefaultRedaction,
		AllowList: cfg.Secrets.AllowList,
	})
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize secret scrubber: %w", err)
	}

	mcpCfg := mcp.DefaultConfig()
	mcpCfg.Name = cfg.Server.Name
	mcpCfg.Version = version
	mcpCfg.Logger = logger
	mcpCfg.Telemetry = tel
	mcpCfg.RateLimit = cfg.Shell.RateLimit
	mcpCfg.RateBurst = cfg.Shell.RateBurst
	deps.mcp, err = mcp.NewServer(mcpCfg, deps.executor, deps.sessions, deps.paths, deps.files, deps.scrubber)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}

	return deps, nil
}

// newPermissions seeds a permission manager from configuration.
func newPermissions(cfg config.PermissionsConfig) (*permissions.Manager, error) {
	m := permissions.New()
	for _, p := range cfg.AllowedPaths {
		if err := m.AddAllowedPath(p); err != nil {
			return nil, fmt.Errorf("invalid allowed path %q: %w", p, err)
		}
	}
	for _, p := range cfg.ExcludedPaths {
		if err := m.ExcludePath(p); err != nil {
			return nil, fmt.Errorf("invalid excluded path %q: %w", p, err)
		}
	}
	for _, pattern := range cfg.ExcludePatterns {
		if err := m.AddExclusionPattern(pattern); err != nil {
			return nil, fmt.Errorf("invalid exclusion pattern %q: %w", pattern, err)
		}
	}
	return m, nil
}

// telemetryConfig maps the user-facing observability section onto the
// telemetry package config.
func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Observability.EnableTelemetry
	tc.ServiceName = cfg.Observability.ServiceName
	tc.ServiceVersion = version
	tc.Endpoint = cfg.Observability.Endpoint
	tc.Protocol = cfg.Observability.Protocol
	tc.Insecure = cfg.Observability.Insecure
	return tc
}
