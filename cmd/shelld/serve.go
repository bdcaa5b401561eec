package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shelld/internal/config"
	httpserver "github.com/fyrsmithlabs/shelld/internal/http"
)

// serveOptions holds the serve command flags.
type serveOptions struct {
	configPath     string
	transport      string
	name           string
	allowPaths     []string
	projectDir     string
	addr           string
	logLevel       string
	allowOperators bool
	allowCommands  []string
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Run the shelld MCP server on stdio (default) or SSE.

Flags override the config file (~/.config/shelld/config.yaml) and SHELLD_*
environment variables. When no allowed path is configured the current
directory is allowed.

Examples:
  # Claude Desktop / Claude Code over stdio
  shelld serve --allow-path ~/src

  # SSE on a custom port, permitting pipes and redirects
  shelld serve --transport sse --addr 127.0.0.1:9000 --allow-shell-operators

  # Re-enable a command that is denied by default
  shelld serve --allow-command curl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, &serveOpts, cmd.Flags().Changed)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.configPath, "config", "", "config file (default ~/.config/shelld/config.yaml)")
	f.StringVar(&serveOpts.transport, "transport", config.TransportStdio, "transport protocol: stdio or sse")
	f.StringVar(&serveOpts.name, "name", "shelld", "MCP server name")
	f.StringArrayVar(&serveOpts.allowPaths, "allow-path", nil, "allowed path (repeatable)")
	f.StringVar(&serveOpts.projectDir, "project-dir", "", "project directory; allowed and used as the initial working directory")
	f.StringVar(&serveOpts.addr, "addr", "", "SSE listen address host:port")
	f.StringVar(&serveOpts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	f.BoolVar(&serveOpts.allowOperators, "allow-shell-operators", false, "run commands containing pipes, redirects and other shell operators")
	f.StringArrayVar(&serveOpts.allowCommands, "allow-command", nil, "remove a command from the denylist (repeatable)")
}

// runServe loads configuration, builds the dependency graph and serves
// until ctx is cancelled.
func runServe(ctx context.Context, opts *serveOptions, changed func(string) bool) error {
	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyFlags(cfg, opts, changed); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	deps, err := initDependencies(ctx, cfg, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	deps.logger.Info(ctx, "starting shelld",
		zap.String("version", version),
		zap.String("transport", cfg.Server.Transport),
		zap.Strings("allowed_paths", deps.paths.AllowedPaths()),
		zap.Bool("allow_operators", cfg.Shell.AllowOperators),
		zap.String("shell", deps.executor.Shell()))

	if cfg.Server.Transport == config.TransportSSE {
		return serveSSE(ctx, cfg, deps)
	}
	return deps.mcp.Run(ctx)
}

// applyFlags layers explicitly set flags over the loaded configuration.
func applyFlags(cfg *config.Config, opts *serveOptions, changed func(string) bool) error {
	if changed("transport") {
		cfg.Server.Transport = opts.transport
	}
	if changed("name") {
		cfg.Server.Name = opts.name
	}
	if changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if changed("allow-shell-operators") {
		cfg.Shell.AllowOperators = opts.allowOperators
	}
	if changed("addr") {
		host, port, err := net.SplitHostPort(opts.addr)
		if err != nil {
			return fmt.Errorf("invalid --addr %q: %w", opts.addr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid --addr port %q: %w", port, err)
		}
		cfg.Server.Host = host
		cfg.Server.Port = p
	}

	cfg.Permissions.AllowedPaths = append(cfg.Permissions.AllowedPaths, opts.allowPaths...)
	if len(cfg.Permissions.AllowedPaths) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.Permissions.AllowedPaths = []string{wd}
	}
	if opts.projectDir != "" && !slices.Contains(cfg.Permissions.AllowedPaths, opts.projectDir) {
		cfg.Permissions.AllowedPaths = append(cfg.Permissions.AllowedPaths, opts.projectDir)
	}
	return nil
}

// serveSSE hosts the SSE transport on the HTTP server and shuts it down
// gracefully when ctx is cancelled.
func serveSSE(ctx context.Context, cfg *config.Config, deps *dependencies) error {
	srv, err := httpserver.NewServer(deps.mcp.SSEHandler(), deps.mcp, deps.scrubber, deps.logger, &httpserver.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		Version:   version,
		Telemetry: deps.telemetry,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	deps.logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}
